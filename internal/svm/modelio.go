package svm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Save writes m in the libsvm model text format. Floats use the shortest
// representation that parses back to the same value.
func (m *Model) Save(w io.Writer) error {
	if err := m.check(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	p := m.Param
	fmt.Fprintf(bw, "svm_type %s\n", p.SvmType)
	fmt.Fprintf(bw, "kernel_type %s\n", p.KernelType)
	if p.KernelType == Poly {
		fmt.Fprintf(bw, "degree %d\n", p.Degree)
	}
	if p.KernelType == Poly || p.KernelType == RBF || p.KernelType == Sigmoid {
		fmt.Fprintf(bw, "gamma %s\n", formatFloat(p.Gamma))
	}
	if p.KernelType == Poly || p.KernelType == Sigmoid {
		fmt.Fprintf(bw, "coef0 %s\n", formatFloat(p.Coef0))
	}
	fmt.Fprintf(bw, "nr_class 2\n")
	fmt.Fprintf(bw, "total_sv %d\n", len(m.SV))
	fmt.Fprintf(bw, "rho %s\n", formatFloat(m.Rho))
	fmt.Fprintf(bw, "SV\n")
	for i, sv := range m.SV {
		bw.WriteString(formatFloat(m.Coef[i]))
		for j, v := range sv {
			fmt.Fprintf(bw, " %d:%s", j+1, formatFloat(v))
		}
		bw.WriteString(" \n")
	}
	return bw.Flush()
}

// SaveFile writes the model to path.
func (m *Model) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load parses a libsvm model. Only one_class models are accepted.
func Load(r io.Reader) (*Model, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	m := &Model{Param: DefaultParameter()}
	totalSV := -1
	line := 0
	inSV := false
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if inSV {
			coef, sv, err := parseSVLine(text)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			m.Coef = append(m.Coef, coef)
			m.SV = append(m.SV, sv)
			continue
		}

		key, val, _ := strings.Cut(text, " ")
		val = strings.TrimSpace(val)
		var err error
		switch key {
		case "svm_type":
			m.Param.SvmType, err = ParseSvmType(val)
		case "kernel_type":
			m.Param.KernelType, err = ParseKernelType(val)
		case "degree":
			m.Param.Degree, err = strconv.Atoi(val)
		case "gamma":
			m.Param.Gamma, err = strconv.ParseFloat(val, 64)
		case "coef0":
			m.Param.Coef0, err = strconv.ParseFloat(val, 64)
		case "nr_class":
			var n int
			n, err = strconv.Atoi(val)
			if err == nil && n != 2 {
				err = fmt.Errorf("nr_class %d is not supported", n)
			}
		case "total_sv":
			totalSV, err = strconv.Atoi(val)
		case "rho":
			if strings.Contains(val, " ") {
				err = errors.New("multiple rho values: only one_class models are supported")
				break
			}
			m.Rho, err = strconv.ParseFloat(val, 64)
		case "label", "nr_sv", "probA", "probB", "prob_density_marks":
			// present in classification models only
		case "SV":
			inSV = true
		default:
			err = fmt.Errorf("unknown text in model file: %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	if !inSV {
		return nil, errors.New("model has no SV section")
	}
	if totalSV >= 0 && totalSV != len(m.SV) {
		return nil, fmt.Errorf("total_sv is %d but %d support vectors were read", totalSV, len(m.SV))
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadFile reads a model from path.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer f.Close()
	m, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// parseSVLine reads "coef idx:val idx:val ...". Missing indices are zero.
func parseSVLine(text string) (float64, []float64, error) {
	fields := strings.Fields(text)
	coef, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, nil, fmt.Errorf("bad coefficient: %w", err)
	}
	var sv []float64
	prev := 0
	for _, f := range fields[1:] {
		idxStr, valStr, ok := strings.Cut(f, ":")
		if !ok {
			return 0, nil, fmt.Errorf("bad feature %q", f)
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx <= prev {
			return 0, nil, fmt.Errorf("bad feature index %q", idxStr)
		}
		v, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("bad feature value %q: %w", valStr, err)
		}
		for len(sv) < idx-1 {
			sv = append(sv, 0)
		}
		sv = append(sv, v)
		prev = idx
	}
	return coef, sv, nil
}

package scaler

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const fileHeader = "standard_scaler"

// Save writes the fitted parameters as a header line followed by one
// "<mean> <std>" line per column.
func (s *Standard) Save(path string) error {
	if !s.Fitted() {
		return ErrNotFitted
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create scaler file: %w", err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%s %d\n", fileHeader, s.Width())
	for i := range s.Means {
		fmt.Fprintf(w, "%s %s\n",
			strconv.FormatFloat(s.Means[i], 'g', -1, 64),
			strconv.FormatFloat(s.StdDevs[i], 'g', -1, 64))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write scaler file: %w", err)
	}
	return f.Close()
}

// Load replaces the parameters with those stored at path. On error the
// scaler keeps its previous state.
func (s *Standard) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open scaler file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return fmt.Errorf("failed to read scaler file: %w", err)
		}
		return fmt.Errorf("%s: empty scaler file", path)
	}
	head := strings.Fields(sc.Text())
	if len(head) != 2 || head[0] != fileHeader {
		return fmt.Errorf("%s: bad scaler header %q", path, sc.Text())
	}
	n, err := strconv.Atoi(head[1])
	if err != nil || n <= 0 {
		return fmt.Errorf("%s: bad column count %q", path, head[1])
	}

	means := make([]float64, 0, n)
	stds := make([]float64, 0, n)
	line := 1
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return fmt.Errorf("%s:%d: want 2 fields, got %d", path, line, len(fields))
		}
		m, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return fmt.Errorf("%s:%d: mean: %w", path, line, err)
		}
		sd, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("%s:%d: std: %w", path, line, err)
		}
		if sd == 0 {
			return fmt.Errorf("%s:%d: zero standard deviation", path, line)
		}
		means = append(means, m)
		stds = append(stds, sd)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read scaler file: %w", err)
	}
	if len(means) != n {
		return fmt.Errorf("%s: header declares %d columns, found %d", path, n, len(means))
	}
	s.Means, s.StdDevs = means, stds
	return nil
}

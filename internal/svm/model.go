package svm

import (
	"errors"
	"fmt"

	"github.com/banshee-data/gait.report/internal/monitoring"
)

// Model is a trained one-class decision function:
//
//	f(x) = sum_i Coef[i] * K(SV[i], x) - Rho
type Model struct {
	Param Parameter
	SV    [][]float64
	Coef  []float64
	Rho   float64
}

// Train fits a model on prob. The parameters are checked first; an error is
// returned without training when they are invalid.
func Train(prob *Problem, param *Parameter) (*Model, error) {
	if err := CheckParameter(prob, param); err != nil {
		return nil, err
	}
	sol := solveOneClass(prob.X, param)

	m := &Model{Param: *param, Rho: sol.rho}
	m.Param.WeightLabel = nil
	m.Param.Weight = nil
	nBSV := 0
	for i, a := range sol.alpha {
		if a <= 0 {
			continue
		}
		if a >= 1 {
			nBSV++
		}
		sv := make([]float64, len(prob.X[i]))
		copy(sv, prob.X[i])
		m.SV = append(m.SV, sv)
		m.Coef = append(m.Coef, a)
	}
	monitoring.Debugf("[svm] nSV = %d, nBSV = %d", len(m.SV), nBSV)
	return m, nil
}

// TotalSV returns the number of support vectors.
func (m *Model) TotalSV() int { return len(m.SV) }

// Dim returns the widest support vector, which is the feature count the
// model was trained with unless trailing features were always zero.
func (m *Model) Dim() int {
	d := 0
	for _, sv := range m.SV {
		d = max(d, len(sv))
	}
	return d
}

// PredictValues returns the decision value for x.
func (m *Model) PredictValues(x []float64) float64 {
	sum := 0.0
	for i, sv := range m.SV {
		sum += m.Coef[i] * Kernel(&m.Param, sv, x)
	}
	return sum - m.Rho
}

// Predict returns +1 when x lies inside the learned region and -1 otherwise,
// together with the decision value.
func (m *Model) Predict(x []float64) (label, value float64) {
	value = m.PredictValues(x)
	if value > 0 {
		return 1, value
	}
	return -1, value
}

// HasProbability reports whether the model carries probability estimates.
// One-class models never do.
func (m *Model) HasProbability() bool { return false }

func (m *Model) check() error {
	if m == nil {
		return errors.New("nil model")
	}
	if m.Param.SvmType != OneClass {
		return fmt.Errorf("svm type %s is not supported", m.Param.SvmType)
	}
	if len(m.SV) != len(m.Coef) {
		return fmt.Errorf("model has %d support vectors but %d coefficients", len(m.SV), len(m.Coef))
	}
	return nil
}

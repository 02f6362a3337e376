package svm

import (
	"errors"
	"fmt"
	"math"
)

// Problem is a dense training set: X[i] is a feature vector, Y[i] its
// target. One-class problems label every row +1.
type Problem struct {
	X [][]float64
	Y []float64
}

// NewOneClassProblem copies rows into a problem with every target set to +1.
func NewOneClassProblem(rows [][]float64) *Problem {
	p := &Problem{
		X: make([][]float64, len(rows)),
		Y: make([]float64, len(rows)),
	}
	for i, r := range rows {
		x := make([]float64, len(r))
		copy(x, r)
		p.X[i] = x
		p.Y[i] = 1
	}
	return p
}

// Len returns the number of rows.
func (p *Problem) Len() int { return len(p.X) }

// Dim returns the feature width of the first row.
func (p *Problem) Dim() int {
	if len(p.X) == 0 {
		return 0
	}
	return len(p.X[0])
}

func (p *Problem) subset(idx []int) *Problem {
	sub := &Problem{X: make([][]float64, len(idx)), Y: make([]float64, len(idx))}
	for k, i := range idx {
		sub.X[k] = p.X[i]
		sub.Y[k] = p.Y[i]
	}
	return sub
}

func (p *Problem) validate() error {
	if len(p.X) == 0 {
		return errors.New("empty problem")
	}
	if len(p.X) != len(p.Y) {
		return fmt.Errorf("problem has %d rows but %d targets", len(p.X), len(p.Y))
	}
	dim := p.Dim()
	for i, x := range p.X {
		if len(x) != dim {
			return fmt.Errorf("row %d has %d features, want %d", i, len(x), dim)
		}
		for j, v := range x {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d feature %d is not finite", i, j+1)
			}
		}
	}
	return nil
}

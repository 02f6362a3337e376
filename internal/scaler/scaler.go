// Package scaler standardises feature columns. A scaler is fit once on a
// training dataset and then reapplied to every later dataset or sample.
package scaler

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/gait.report/internal/dataset"
)

var (
	ErrNotFitted         = errors.New("scaler has not been fit")
	ErrEmptyDataset      = errors.New("cannot fit scaler on empty dataset")
	ErrDimensionMismatch = errors.New("column count does not match fitted scaler")
)

// Scaler is the strategy used by the detection service to normalise
// features. Implementations transform in place.
type Scaler interface {
	Fit(ds *dataset.Dataset) error
	Transform(ds *dataset.Dataset) error
	TransformSample(x []float64) error
	Save(path string) error
	Load(path string) error
	Width() int
}

// Standard rescales every column to zero mean and unit standard deviation.
type Standard struct {
	Means   []float64
	StdDevs []float64
}

var _ Scaler = (*Standard)(nil)

// NewStandard returns an unfitted standard scaler.
func NewStandard() *Standard { return &Standard{} }

// FitStandard is a shorthand for NewStandard followed by Fit.
func FitStandard(ds *dataset.Dataset) (*Standard, error) {
	s := NewStandard()
	if err := s.Fit(ds); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStandardFromFile loads a previously saved scaler.
func NewStandardFromFile(path string) (*Standard, error) {
	s := NewStandard()
	if err := s.Load(path); err != nil {
		return nil, err
	}
	return s, nil
}

// Width returns the number of fitted columns, zero before Fit.
func (s *Standard) Width() int { return len(s.Means) }

// Fitted reports whether Fit or Load has succeeded.
func (s *Standard) Fitted() bool { return len(s.Means) > 0 }

// Fit computes per-column mean and standard deviation. Columns with zero
// spread keep a standard deviation of 1 so transform stays finite.
func (s *Standard) Fit(ds *dataset.Dataset) error {
	if ds == nil || ds.Empty() || ds.Width() == 0 {
		return ErrEmptyDataset
	}
	means := make([]float64, ds.Width())
	stds := make([]float64, ds.Width())
	for c := range means {
		m, sd := stat.MeanStdDev(ds.Column(c), nil)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		means[c], stds[c] = m, sd
	}
	s.Means, s.StdDevs = means, stds
	return nil
}

// Transform standardises ds in place and marks it scaled. A dataset that is
// already scaled is left untouched.
func (s *Standard) Transform(ds *dataset.Dataset) error {
	if !s.Fitted() {
		return ErrNotFitted
	}
	if ds.Scaled {
		return nil
	}
	if ds.Width() != s.Width() {
		return fmt.Errorf("%w: dataset has %d columns, scaler has %d", ErrDimensionMismatch, ds.Width(), s.Width())
	}
	for _, row := range ds.Rows {
		s.apply(row)
	}
	ds.Scaled = true
	return nil
}

// TransformSample standardises one feature vector in place.
func (s *Standard) TransformSample(x []float64) error {
	if !s.Fitted() {
		return ErrNotFitted
	}
	if len(x) != s.Width() {
		return fmt.Errorf("%w: sample has %d values, scaler has %d", ErrDimensionMismatch, len(x), s.Width())
	}
	s.apply(x)
	return nil
}

func (s *Standard) apply(x []float64) {
	for i := range x {
		x[i] = (x[i] - s.Means[i]) / s.StdDevs[i]
	}
}

// Package detection composes a fitted feature scaler and a trained novelty
// classifier into one predict/validate unit.
package detection

import (
	"fmt"

	"github.com/banshee-data/gait.report/internal/dataset"
	"github.com/banshee-data/gait.report/internal/monitoring"
	"github.com/banshee-data/gait.report/internal/novelty"
	"github.com/banshee-data/gait.report/internal/scaler"
)

// Columns appended by ValidateAndExport.
const (
	ResultColumn        = "result"
	DecisionValueColumn = "dec_value"
)

// Config locates the persisted artefacts of a trained detector.
type Config struct {
	FeatureCount int
	ModelPath    string
	ScalerPath   string
}

// Summary counts the labels of an annotated dataset.
type Summary struct {
	Rows      int
	Normal    int
	Anomalous int
}

// NormalPercent returns the share of rows labelled normal.
func (s Summary) NormalPercent() float64 {
	if s.Rows == 0 {
		return 0
	}
	return 100 * float64(s.Normal) / float64(s.Rows)
}

// Service is not safe for concurrent use; callers serialise access.
type Service struct {
	scaler     scaler.Scaler
	classifier *novelty.Classifier
	scratch    []float64
}

// New wraps an already fitted scaler and trained classifier.
func New(sc scaler.Scaler, c *novelty.Classifier) (*Service, error) {
	if sc == nil || c == nil {
		return nil, fmt.Errorf("detection: scaler and classifier are required")
	}
	if sc.Width() != c.FeatureCount() {
		return nil, fmt.Errorf("%w: scaler has %d columns, classifier expects %d",
			novelty.ErrDimensionMismatch, sc.Width(), c.FeatureCount())
	}
	return &Service{scaler: sc, classifier: c, scratch: make([]float64, c.FeatureCount())}, nil
}

// Open loads the standard scaler and the model named by cfg.
func Open(cfg Config) (*Service, error) {
	sc, err := scaler.NewStandardFromFile(cfg.ScalerPath)
	if err != nil {
		return nil, fmt.Errorf("open scaler: %w", err)
	}
	c, err := novelty.New(novelty.Config{
		FeatureCount: cfg.FeatureCount,
		Params:       novelty.DefaultParams(),
		ModelPath:    cfg.ModelPath,
	})
	if err != nil {
		return nil, err
	}
	monitoring.Debugf("[detection] opened model=%s scaler=%s features=%d", cfg.ModelPath, cfg.ScalerPath, cfg.FeatureCount)
	return New(sc, c)
}

// Classifier returns the wrapped classifier.
func (s *Service) Classifier() *novelty.Classifier { return s.classifier }

// FeatureCount returns the expected sample width.
func (s *Service) FeatureCount() int { return s.classifier.FeatureCount() }

// Predict classifies one raw feature vector, standardising a private copy
// first when applyScaling is set. raw is never modified.
func (s *Service) Predict(raw []float64, applyScaling bool) (novelty.Result, error) {
	if len(raw) != s.classifier.FeatureCount() {
		return novelty.Result{}, fmt.Errorf("%w: sample has %d features, detector expects %d",
			novelty.ErrDimensionMismatch, len(raw), s.classifier.FeatureCount())
	}
	if !applyScaling {
		return s.classifier.Predict(raw)
	}
	if len(s.scratch) != len(raw) {
		s.scratch = make([]float64, len(raw))
	}
	copy(s.scratch, raw)
	if err := s.scaler.TransformSample(s.scratch); err != nil {
		return novelty.Result{}, err
	}
	return s.classifier.Predict(s.scratch)
}

// prepare standardises ds in place unless it is already scaled.
func (s *Service) prepare(ds *dataset.Dataset, applyScaling bool) error {
	if ds == nil {
		return novelty.ErrEmptyDataset
	}
	if applyScaling && !ds.Scaled {
		return s.scaler.Transform(ds)
	}
	return nil
}

// ValidateInDistribution returns the percentage of rows labelled normal.
// When applyScaling is set an unscaled ds is standardised in place.
func (s *Service) ValidateInDistribution(ds *dataset.Dataset, applyScaling bool) (float64, error) {
	if err := s.prepare(ds, applyScaling); err != nil {
		return -1, err
	}
	return s.classifier.ValidateInDistribution(ds)
}

// ValidateAgainstKnownAnomalies returns the percentage of rows labelled
// anomalous. ds should hold only abnormal gait.
func (s *Service) ValidateAgainstKnownAnomalies(ds *dataset.Dataset, applyScaling bool) (float64, error) {
	if err := s.prepare(ds, applyScaling); err != nil {
		return -1, err
	}
	return s.classifier.ValidateAgainstKnownAnomalies(ds)
}

// Annotate predicts every row and returns a copy of ds with the result and
// dec_value columns appended. The copied feature values are the inputs as
// given; ds itself is not modified.
func (s *Service) Annotate(ds *dataset.Dataset, applyScaling bool) (*dataset.Dataset, []novelty.Result, Summary, error) {
	var sum Summary
	if ds == nil {
		return nil, nil, sum, novelty.ErrEmptyDataset
	}
	cols := append(append([]string{}, ds.Columns...), ResultColumn, DecisionValueColumn)
	out := dataset.New(cols)
	out.Scaled = ds.Scaled
	scale := applyScaling && !ds.Scaled

	results := make([]novelty.Result, 0, ds.Len())
	row := make([]float64, 0, len(cols))
	for i, x := range ds.Rows {
		res, err := s.Predict(x, scale)
		if err != nil {
			return nil, nil, sum, fmt.Errorf("row %d: %w", i, err)
		}
		results = append(results, res)
		row = append(append(row[:0], x...), res.Label, res.DecisionValue)
		if err := out.Append(row); err != nil {
			return nil, nil, sum, err
		}
		sum.Rows++
		if res.IsNormal() {
			sum.Normal++
		} else {
			sum.Anomalous++
		}
	}
	return out, results, sum, nil
}

// ValidateAndExport annotates ds and writes it as CSV to path.
func (s *Service) ValidateAndExport(ds *dataset.Dataset, path string, applyScaling bool) ([]novelty.Result, Summary, error) {
	out, results, sum, err := s.Annotate(ds, applyScaling)
	if err != nil {
		return nil, sum, err
	}
	if err := out.WriteFile(path); err != nil {
		return nil, sum, fmt.Errorf("export %s: %w", path, err)
	}
	monitoring.Logf("[detection] exported %d rows to %s (normal=%d anomalous=%d)", sum.Rows, path, sum.Normal, sum.Anomalous)
	return results, sum, nil
}

// Close releases the classifier.
func (s *Service) Close() error {
	s.scratch = nil
	return s.classifier.Close()
}

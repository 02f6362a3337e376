// Package novelty wraps the one-class SVM engine as a gait novelty
// detector: it is trained on normal walking only and labels every later
// sample +1 (normal) or -1 (anomalous).
//
// A Classifier is not safe for concurrent use.
package novelty

import (
	"errors"
	"fmt"

	"github.com/banshee-data/gait.report/internal/dataset"
	"github.com/banshee-data/gait.report/internal/monitoring"
	"github.com/banshee-data/gait.report/internal/svm"
)

var (
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
	ErrEmptyDataset      = errors.New("empty dataset")
	ErrInvalidParams     = errors.New("invalid svm parameters")
	ErrNoModel           = errors.New("no trained model")
	ErrNoProblem         = errors.New("no training problem")
)

// Labels produced by Predict.
const (
	Normal    = 1.0
	Anomalous = -1.0
)

// autoGammaThreshold: gamma below this is replaced by 1/featureCount at
// train time.
const autoGammaThreshold = 1e-6

// DefaultParams returns the tuned one-class hyper-parameters.
func DefaultParams() svm.Parameter {
	return svm.Parameter{
		SvmType:     svm.OneClass,
		KernelType:  svm.RBF,
		Degree:      3,
		Gamma:       0, // 1/featureCount
		Coef0:       0,
		CacheSizeMB: 200,
		Eps:         1e-3,
		C:           1,
		Nu:          0.0015,
		P:           0.1,
		Shrinking:   true,
		Probability: false,
		Seed:        1,
	}
}

// Config holds the classifier construction parameters.
type Config struct {
	FeatureCount int
	Params       svm.Parameter
	// ModelPath, when set, is loaded by New.
	ModelPath string
}

// DefaultConfig returns DefaultParams for featureCount features.
func DefaultConfig(featureCount int) Config {
	return Config{FeatureCount: featureCount, Params: DefaultParams()}
}

// Result is one prediction.
type Result struct {
	Label         float64 // Normal or Anomalous
	DecisionValue float64 // signed margin; probability when the model has estimates
}

// IsNormal reports whether the sample was labelled Normal.
func (r Result) IsNormal() bool { return r.Label == Normal }

// Classifier owns one trained model, its hyper-parameters, the last
// training problem and a staging buffer for predictions.
type Classifier struct {
	featureCount int
	params       svm.Parameter
	model        *svm.Model
	problem      *svm.Problem
	staging      []float64
}

// New builds a classifier. When cfg.ModelPath is set the model is loaded
// from it.
func New(cfg Config) (*Classifier, error) {
	if cfg.FeatureCount <= 0 {
		return nil, fmt.Errorf("%w: feature count must be positive, got %d", ErrDimensionMismatch, cfg.FeatureCount)
	}
	c := &Classifier{
		featureCount: cfg.FeatureCount,
		params:       cfg.Params,
		staging:      make([]float64, cfg.FeatureCount),
	}
	c.params.WeightLabel = append([]int(nil), cfg.Params.WeightLabel...)
	c.params.Weight = append([]float64(nil), cfg.Params.Weight...)
	if cfg.ModelPath != "" {
		if err := c.Load(cfg.ModelPath); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// FeatureCount returns the configured feature dimensionality.
func (c *Classifier) FeatureCount() int { return c.featureCount }

// Params returns the effective hyper-parameters. Gamma reflects the auto
// value once Train has run.
func (c *Classifier) Params() svm.Parameter { return c.params }

// Model returns the trained or loaded model, or nil.
func (c *Classifier) Model() *svm.Model { return c.model }

// Trained reports whether a model is available for prediction.
func (c *Classifier) Trained() bool { return c.model != nil }

func (c *Classifier) checkWidth(ds *dataset.Dataset) error {
	if ds == nil {
		return fmt.Errorf("%w: nil dataset", ErrEmptyDataset)
	}
	if ds.Width() != c.featureCount {
		return fmt.Errorf("%w: dataset has %d columns, classifier expects %d",
			ErrDimensionMismatch, ds.Width(), c.featureCount)
	}
	return nil
}

// Train fits a new model on every row of ds, treating each row as normal.
// labels are ignored for one-class training. With folds > 1 the returned
// accuracy is the k-fold cross-validation accuracy; otherwise it is the
// accuracy of the new model on ds itself.
//
// A dimension mismatch returns -1 and leaves the classifier untouched.
// An empty dataset returns -1 and invalid parameters return 0; in both
// cases the previous model has already been released.
func (c *Classifier) Train(ds *dataset.Dataset, labels []float64, folds int) (float64, error) {
	if err := c.checkWidth(ds); err != nil {
		return -1, err
	}
	c.releaseModel()
	c.problem = nil

	if ds.Empty() {
		return -1, ErrEmptyDataset
	}
	if len(labels) > 0 {
		monitoring.Debugf("[novelty] ignoring %d labels for one-class training", len(labels))
	}
	prob := svm.NewOneClassProblem(ds.Rows)
	c.problem = prob

	if c.params.Gamma < autoGammaThreshold {
		c.params.Gamma = 1.0 / float64(c.featureCount)
	}
	if err := svm.CheckParameter(prob, &c.params); err != nil {
		monitoring.Logf("[novelty] parameter check failed: %v", err)
		return 0, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	m, err := svm.Train(prob, &c.params)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	c.model = m
	monitoring.Logf("[novelty] trained on %d rows: %d support vectors, rho=%g, gamma=%g",
		prob.Len(), m.TotalSV(), m.Rho, c.params.Gamma)

	if folds > 1 {
		cv, err := c.CrossValidate(folds)
		if err != nil {
			return 0, err
		}
		return cv.Accuracy, nil
	}
	return c.Validate(ds, nil)
}

// Predict classifies one feature vector.
func (c *Classifier) Predict(x []float64) (Result, error) {
	if c.model == nil {
		return Result{}, ErrNoModel
	}
	if len(x) != c.featureCount {
		return Result{}, fmt.Errorf("%w: sample has %d features, classifier expects %d",
			ErrDimensionMismatch, len(x), c.featureCount)
	}
	if len(c.staging) != c.featureCount {
		c.staging = make([]float64, c.featureCount)
	}
	copy(c.staging, x)
	label, value := c.model.Predict(c.staging)
	return Result{Label: label, DecisionValue: value}, nil
}

// Validate returns the percentage of rows whose predicted label matches
// the expected one. With nil labels every row is expected to be Normal.
func (c *Classifier) Validate(ds *dataset.Dataset, labels []float64) (float64, error) {
	if err := c.checkWidth(ds); err != nil {
		return -1, err
	}
	if c.model == nil {
		return -1, ErrNoModel
	}
	if ds.Empty() {
		return -1, ErrEmptyDataset
	}
	if labels != nil && len(labels) < ds.Len() {
		return -1, fmt.Errorf("%w: %d labels for %d rows", ErrDimensionMismatch, len(labels), ds.Len())
	}

	correct := 0
	for i, row := range ds.Rows {
		want := Normal
		if labels != nil {
			want = labels[i]
		}
		res, err := c.Predict(row)
		if err != nil {
			return -1, fmt.Errorf("row %d: %w", i, err)
		}
		if res.Label == want {
			correct++
		}
	}
	return 100 * float64(correct) / float64(ds.Len()), nil
}

// ValidateInDistribution returns the percentage of rows labelled Normal.
// ds is expected to hold only normal gait.
func (c *Classifier) ValidateInDistribution(ds *dataset.Dataset) (float64, error) {
	return c.Validate(ds, nil)
}

// ValidateAgainstKnownAnomalies returns the percentage of rows labelled
// Anomalous, the true positive rate on a dataset of abnormal gait.
func (c *Classifier) ValidateAgainstKnownAnomalies(ds *dataset.Dataset) (float64, error) {
	if ds == nil {
		return c.Validate(ds, nil)
	}
	labels := make([]float64, ds.Len())
	for i := range labels {
		labels[i] = Anomalous
	}
	return c.Validate(ds, labels)
}

// CrossValidate runs k-fold cross-validation on the last training problem.
func (c *Classifier) CrossValidate(folds int) (svm.CrossValidation, error) {
	if c.problem == nil {
		return svm.CrossValidation{}, ErrNoProblem
	}
	target, err := svm.CrossValidate(c.problem, &c.params, folds)
	if err != nil {
		return svm.CrossValidation{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	cv := svm.ScoreCrossValidation(c.problem, target, min(folds, c.problem.Len()))
	if c.params.SvmType.IsRegression() {
		monitoring.Logf("[novelty] Cross Validation Mean squared error = %g", cv.MeanSquaredError)
		monitoring.Logf("[novelty] Cross Validation Squared correlation coefficient = %g", cv.SquaredCorrelation)
	} else {
		monitoring.Logf("[novelty] Cross Validation Accuracy = %g%%", cv.Accuracy)
	}
	return cv, nil
}

// Save writes the model to path.
func (c *Classifier) Save(path string) error {
	if c.model == nil {
		return ErrNoModel
	}
	if err := c.model.SaveFile(path); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}

// Load replaces the current model with the one stored at path. The old
// model is released first, so a failed load leaves the classifier
// untrained.
func (c *Classifier) Load(path string) error {
	c.releaseModel()
	m, err := svm.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	if m.Dim() > c.featureCount {
		return fmt.Errorf("%w: model has %d features, classifier expects %d",
			ErrDimensionMismatch, m.Dim(), c.featureCount)
	}
	c.model = m
	c.params.KernelType = m.Param.KernelType
	c.params.Gamma = m.Param.Gamma
	c.params.Degree = m.Param.Degree
	c.params.Coef0 = m.Param.Coef0
	monitoring.Debugf("[novelty] loaded %s: %d support vectors", path, m.TotalSV())
	return nil
}

func (c *Classifier) releaseModel() { c.model = nil }

// Close releases the model, the training problem and the staging buffer.
// The classifier can be retrained afterwards.
func (c *Classifier) Close() error {
	c.releaseModel()
	c.problem = nil
	c.staging = nil
	return nil
}

package svm

import (
	"errors"
	"fmt"
	"strings"
)

// SvmType selects the formulation. Only OneClass can be trained here; the
// other names exist so model files from libsvm can be recognised.
type SvmType int

const (
	CSVC SvmType = iota
	NuSVC
	OneClass
	EpsilonSVR
	NuSVR
)

var svmTypeNames = []string{"c_svc", "nu_svc", "one_class", "epsilon_svr", "nu_svr"}

func (t SvmType) String() string {
	if t >= 0 && int(t) < len(svmTypeNames) {
		return svmTypeNames[t]
	}
	return fmt.Sprintf("svm_type(%d)", int(t))
}

// IsRegression reports whether t predicts real values instead of labels.
func (t SvmType) IsRegression() bool { return t == EpsilonSVR || t == NuSVR }

// ParseSvmType parses a libsvm svm_type name.
func ParseSvmType(s string) (SvmType, error) {
	for i, name := range svmTypeNames {
		if strings.EqualFold(s, name) {
			return SvmType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown svm type %q", s)
}

// KernelType selects the kernel function.
type KernelType int

const (
	Linear KernelType = iota
	Poly
	RBF
	Sigmoid
)

var kernelTypeNames = []string{"linear", "polynomial", "rbf", "sigmoid"}

func (k KernelType) String() string {
	if k >= 0 && int(k) < len(kernelTypeNames) {
		return kernelTypeNames[k]
	}
	return fmt.Sprintf("kernel_type(%d)", int(k))
}

// ParseKernelType parses a libsvm kernel_type name; "poly" is accepted as
// an alias for "polynomial".
func ParseKernelType(s string) (KernelType, error) {
	if strings.EqualFold(s, "poly") {
		return Poly, nil
	}
	for i, name := range kernelTypeNames {
		if strings.EqualFold(s, name) {
			return KernelType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown kernel type %q", s)
}

// Parameter mirrors libsvm's svm_parameter.
type Parameter struct {
	SvmType     SvmType
	KernelType  KernelType
	Degree      int     // poly
	Gamma       float64 // poly/rbf/sigmoid
	Coef0       float64 // poly/sigmoid
	CacheSizeMB float64
	Eps         float64 // stopping tolerance
	C           float64 // C_SVC, EPSILON_SVR, NU_SVR
	WeightLabel []int
	Weight      []float64
	Nu          float64 // NU_SVC, ONE_CLASS, NU_SVR
	P           float64 // EPSILON_SVR
	Shrinking   bool
	Probability bool

	// Seed drives the fold shuffle in CrossValidation.
	Seed int64
}

// DefaultParameter returns libsvm's command-line defaults with the type set
// to one-class.
func DefaultParameter() Parameter {
	return Parameter{
		SvmType:     OneClass,
		KernelType:  RBF,
		Degree:      3,
		Gamma:       0,
		Coef0:       0,
		CacheSizeMB: 100,
		Eps:         1e-3,
		C:           1,
		Nu:          0.5,
		P:           0.1,
		Shrinking:   true,
		Seed:        1,
	}
}

// CheckParameter validates param against prob and returns a diagnostic
// error, or nil when training can proceed. prob may be nil.
func CheckParameter(prob *Problem, param *Parameter) error {
	if param == nil {
		return errors.New("nil parameter")
	}
	if param.SvmType != OneClass {
		if param.SvmType < CSVC || param.SvmType > NuSVR {
			return errors.New("unknown svm type")
		}
		return fmt.Errorf("svm type %s is not supported: only one_class training is available", param.SvmType)
	}
	if param.KernelType < Linear || param.KernelType > Sigmoid {
		return errors.New("unknown kernel type")
	}
	if param.Gamma < 0 {
		return errors.New("gamma < 0")
	}
	if param.KernelType == Poly && param.Degree < 0 {
		return errors.New("degree of polynomial kernel < 0")
	}
	if param.CacheSizeMB <= 0 {
		return errors.New("cache_size <= 0")
	}
	if param.Eps <= 0 {
		return errors.New("eps <= 0")
	}
	if param.Nu <= 0 || param.Nu > 1 {
		return errors.New("nu <= 0 or nu > 1")
	}
	if len(param.WeightLabel) != len(param.Weight) {
		return errors.New("weight labels and weights differ in length")
	}
	if param.Probability {
		return errors.New("probability estimates are not supported for one_class models")
	}
	if prob != nil {
		if err := prob.validate(); err != nil {
			return err
		}
	}
	return nil
}

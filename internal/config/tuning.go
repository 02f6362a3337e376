package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/gait.report/internal/gait/offset"
	"github.com/banshee-data/gait.report/internal/novelty"
	"github.com/banshee-data/gait.report/internal/svm"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/gait.defaults.json"

// TuningConfig is the JSON tuning file shared by the gait CLI and daemon.
// Every field is optional; the Get* methods supply defaults.
type TuningConfig struct {
	// Body geometry
	ChestLength *float64 `json:"chest_length,omitempty"`
	ShankLength *float64 `json:"shank_length,omitempty"`
	ThighLength *float64 `json:"thigh_length,omitempty"`

	// Projection
	PrimaryAxis     *string `json:"primary_axis,omitempty"`   // "roll", "pitch" or "course"
	SecondaryAxis   *string `json:"secondary_axis,omitempty"` // "roll", "pitch" or "course"
	Layout          *string `json:"layout,omitempty"`         // "aggregated" or "joint"
	MalformedPolicy *string `json:"malformed_policy,omitempty"`
	TrackDistance   *bool   `json:"track_distance,omitempty"`

	// One-class SVM
	Kernel      *string  `json:"kernel,omitempty"`
	Nu          *float64 `json:"nu,omitempty"`
	Gamma       *float64 `json:"gamma,omitempty"` // 0 = 1/feature count
	C           *float64 `json:"c,omitempty"`
	Eps         *float64 `json:"eps,omitempty"`
	CacheSizeMB *float64 `json:"cache_size_mb,omitempty"`
	Shrinking   *bool    `json:"shrinking,omitempty"`
	Degree      *int     `json:"degree,omitempty"`
	Coef0       *float64 `json:"coef0,omitempty"`
	Folds       *int     `json:"folds,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a config with every field set to its default.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		ChestLength:     ptrFloat64(e.GetChestLength()),
		ShankLength:     ptrFloat64(e.GetShankLength()),
		ThighLength:     ptrFloat64(e.GetThighLength()),
		PrimaryAxis:     ptrString("roll"),
		SecondaryAxis:   ptrString("pitch"),
		Layout:          ptrString("aggregated"),
		MalformedPolicy: ptrString("skip"),
		TrackDistance:   ptrBool(false),
		Kernel:          ptrString("rbf"),
		Nu:              ptrFloat64(e.GetNu()),
		Gamma:           ptrFloat64(e.GetGamma()),
		C:               ptrFloat64(e.GetC()),
		Eps:             ptrFloat64(e.GetEps()),
		CacheSizeMB:     ptrFloat64(e.GetCacheSizeMB()),
		Shrinking:       ptrBool(e.GetShrinking()),
		Degree:          ptrInt(e.GetDegree()),
		Coef0:           ptrFloat64(e.GetCoef0()),
		Folds:           ptrInt(e.GetFolds()),
		Seed:            ptrInt64(e.GetSeed()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to the Get* defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/gait/offset/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func positiveFinite(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return fmt.Errorf("%s must be positive, got %v", name, *v)
	}
	return nil
}

// Validate checks that the configured values are usable.
func (c *TuningConfig) Validate() error {
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"chest_length", c.ChestLength},
		{"shank_length", c.ShankLength},
		{"thigh_length", c.ThighLength},
		{"c", c.C},
		{"eps", c.Eps},
		{"cache_size_mb", c.CacheSizeMB},
	} {
		if err := positiveFinite(f.name, f.v); err != nil {
			return err
		}
	}

	if c.Nu != nil && (*c.Nu <= 0 || *c.Nu > 1) {
		return fmt.Errorf("nu must be in (0, 1], got %v", *c.Nu)
	}
	if c.Gamma != nil && *c.Gamma < 0 {
		return fmt.Errorf("gamma must be non-negative, got %v", *c.Gamma)
	}
	if c.Degree != nil && *c.Degree < 0 {
		return fmt.Errorf("degree must be non-negative, got %d", *c.Degree)
	}
	if c.Folds != nil && *c.Folds < 0 {
		return fmt.Errorf("folds must be non-negative, got %d", *c.Folds)
	}

	if c.PrimaryAxis != nil {
		if _, err := offset.ParseAxis(*c.PrimaryAxis); err != nil {
			return fmt.Errorf("primary_axis: %w", err)
		}
	}
	if c.SecondaryAxis != nil {
		if _, err := offset.ParseAxis(*c.SecondaryAxis); err != nil {
			return fmt.Errorf("secondary_axis: %w", err)
		}
	}
	if c.Layout != nil {
		if _, err := offset.ParseLayout(*c.Layout); err != nil {
			return err
		}
	}
	if c.MalformedPolicy != nil {
		if _, err := offset.ParseMalformedPolicy(*c.MalformedPolicy); err != nil {
			return err
		}
	}
	if c.Kernel != nil {
		if _, err := svm.ParseKernelType(*c.Kernel); err != nil {
			return err
		}
	}
	return nil
}

// GetChestLength returns the chest_length value or the default.
func (c *TuningConfig) GetChestLength() float64 {
	if c.ChestLength == nil {
		return 1.0
	}
	return *c.ChestLength
}

// GetShankLength returns the shank_length value or the default.
func (c *TuningConfig) GetShankLength() float64 {
	if c.ShankLength == nil {
		return 1.0
	}
	return *c.ShankLength
}

// GetThighLength returns the thigh_length value or the default.
func (c *TuningConfig) GetThighLength() float64 {
	if c.ThighLength == nil {
		return 1.0
	}
	return *c.ThighLength
}

// GetAxisSelection returns the configured axes, defaulting to (roll, pitch).
// Invalid names fall back to the default; Validate reports them.
func (c *TuningConfig) GetAxisSelection() offset.AxisSelection {
	sel := offset.DefaultAxisSelection()
	if c.PrimaryAxis != nil {
		if a, err := offset.ParseAxis(*c.PrimaryAxis); err == nil {
			sel.Primary = a
		}
	}
	if c.SecondaryAxis != nil {
		if a, err := offset.ParseAxis(*c.SecondaryAxis); err == nil {
			sel.Secondary = a
		}
	}
	return sel
}

// GetLayout returns the feature layout or Aggregated.
func (c *TuningConfig) GetLayout() offset.Layout {
	if c.Layout == nil {
		return offset.Aggregated
	}
	l, err := offset.ParseLayout(*c.Layout)
	if err != nil {
		return offset.Aggregated
	}
	return l
}

// GetMalformedPolicy returns the malformed-row policy or SkipMalformed.
func (c *TuningConfig) GetMalformedPolicy() offset.MalformedPolicy {
	if c.MalformedPolicy == nil {
		return offset.SkipMalformed
	}
	p, err := offset.ParseMalformedPolicy(*c.MalformedPolicy)
	if err != nil {
		return offset.SkipMalformed
	}
	return p
}

// GetTrackDistance returns the track_distance value or the default.
func (c *TuningConfig) GetTrackDistance() bool {
	if c.TrackDistance == nil {
		return false
	}
	return *c.TrackDistance
}

// GetKernel returns the kernel type or RBF.
func (c *TuningConfig) GetKernel() svm.KernelType {
	if c.Kernel == nil {
		return svm.RBF
	}
	k, err := svm.ParseKernelType(*c.Kernel)
	if err != nil {
		return svm.RBF
	}
	return k
}

// GetNu returns the nu value or the default.
func (c *TuningConfig) GetNu() float64 {
	if c.Nu == nil {
		return 0.0015
	}
	return *c.Nu
}

// GetGamma returns the gamma value or 0 (auto).
func (c *TuningConfig) GetGamma() float64 {
	if c.Gamma == nil {
		return 0
	}
	return *c.Gamma
}

// GetC returns the c value or the default.
func (c *TuningConfig) GetC() float64 {
	if c.C == nil {
		return 1
	}
	return *c.C
}

// GetEps returns the eps value or the default.
func (c *TuningConfig) GetEps() float64 {
	if c.Eps == nil {
		return 1e-3
	}
	return *c.Eps
}

// GetCacheSizeMB returns the cache_size_mb value or the default.
func (c *TuningConfig) GetCacheSizeMB() float64 {
	if c.CacheSizeMB == nil {
		return 200
	}
	return *c.CacheSizeMB
}

// GetShrinking returns the shrinking value or the default.
func (c *TuningConfig) GetShrinking() bool {
	if c.Shrinking == nil {
		return true
	}
	return *c.Shrinking
}

// GetDegree returns the degree value or the default.
func (c *TuningConfig) GetDegree() int {
	if c.Degree == nil {
		return 3
	}
	return *c.Degree
}

// GetCoef0 returns the coef0 value or the default.
func (c *TuningConfig) GetCoef0() float64 {
	if c.Coef0 == nil {
		return 0
	}
	return *c.Coef0
}

// GetFolds returns the folds value or the default. 0 or 1 means no
// cross-validation.
func (c *TuningConfig) GetFolds() int {
	if c.Folds == nil {
		return 1
	}
	return *c.Folds
}

// GetSeed returns the cross-validation shuffle seed or the default.
func (c *TuningConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// PipelineOptions builds offset pipeline options from the config.
func (c *TuningConfig) PipelineOptions() offset.Options {
	return offset.Options{
		Layout:    c.GetLayout(),
		Selection: c.GetAxisSelection(),
		Lengths: offset.BodyLengths{
			Chest: c.GetChestLength(),
			Shank: c.GetShankLength(),
			Thigh: c.GetThighLength(),
		},
		Malformed:     c.GetMalformedPolicy(),
		TrackDistance: c.GetTrackDistance(),
	}
}

// SVMParams builds one-class parameters, starting from the tuned defaults.
func (c *TuningConfig) SVMParams() svm.Parameter {
	p := novelty.DefaultParams()
	p.KernelType = c.GetKernel()
	p.Nu = c.GetNu()
	p.Gamma = c.GetGamma()
	p.C = c.GetC()
	p.Eps = c.GetEps()
	p.CacheSizeMB = c.GetCacheSizeMB()
	p.Shrinking = c.GetShrinking()
	p.Degree = c.GetDegree()
	p.Coef0 = c.GetCoef0()
	p.Seed = c.GetSeed()
	return p
}

package scaler

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/gait.report/internal/dataset"
)

func randomDataset(t *testing.T, rows int) *dataset.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	d := dataset.New([]string{"a", "b", "c"})
	for i := 0; i < rows; i++ {
		require.NoError(t, d.Append([]float64{
			rng.NormFloat64()*3 + 10,
			rng.Float64() * 100,
			-5 + rng.NormFloat64()*0.01,
		}))
	}
	return d
}

func TestFitTransform_ZeroMeanUnitStd(t *testing.T) {
	d := randomDataset(t, 200)
	s, err := FitStandard(d)
	require.NoError(t, err)
	require.NoError(t, s.Transform(d))
	assert.True(t, d.Scaled)

	for c := 0; c < d.Width(); c++ {
		m, sd := stat.MeanStdDev(d.Column(c), nil)
		assert.InDelta(t, 0, m, 1e-9, "column %d mean", c)
		assert.InDelta(t, 1, sd, 1e-9, "column %d std", c)
	}
}

func TestTransform_Idempotent(t *testing.T) {
	d := randomDataset(t, 50)
	s, err := FitStandard(d)
	require.NoError(t, err)
	require.NoError(t, s.Transform(d))
	once := d.Clone()

	require.NoError(t, s.Transform(d))
	assert.Equal(t, once.Rows, d.Rows)
}

func TestFit_Empty(t *testing.T) {
	s := NewStandard()
	assert.ErrorIs(t, s.Fit(dataset.New([]string{"a"})), ErrEmptyDataset)
	assert.ErrorIs(t, s.Fit(nil), ErrEmptyDataset)
	assert.False(t, s.Fitted())
}

func TestFit_ConstantColumn(t *testing.T) {
	d, _ := dataset.FromRows([]string{"a", "b"}, [][]float64{{1, 4}, {1, 6}})
	s, err := FitStandard(d)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.StdDevs[0])
	require.NoError(t, s.Transform(d))
	assert.Equal(t, 0.0, d.Rows[0][0])
}

func TestTransform_Errors(t *testing.T) {
	s := NewStandard()
	assert.ErrorIs(t, s.Transform(dataset.New([]string{"a"})), ErrNotFitted)
	assert.ErrorIs(t, s.TransformSample([]float64{1}), ErrNotFitted)

	d := randomDataset(t, 10)
	require.NoError(t, s.Fit(d))
	narrow, _ := dataset.FromRows([]string{"a"}, [][]float64{{1}})
	assert.ErrorIs(t, s.Transform(narrow), ErrDimensionMismatch)
	assert.False(t, narrow.Scaled)
	assert.ErrorIs(t, s.TransformSample([]float64{1, 2}), ErrDimensionMismatch)
}

func TestTransformSample_MatchesDataset(t *testing.T) {
	d := randomDataset(t, 30)
	s, err := FitStandard(d)
	require.NoError(t, err)

	x := append([]float64(nil), d.Rows[4]...)
	require.NoError(t, s.TransformSample(x))
	require.NoError(t, s.Transform(d))
	assert.Equal(t, d.Rows[4], x)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	d := randomDataset(t, 40)
	s, err := FitStandard(d)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "scaler")
	require.NoError(t, s.Save(path))

	loaded, err := NewStandardFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, s.Means, loaded.Means)
	assert.Equal(t, s.StdDevs, loaded.StdDevs)
}

func TestSave_Unfitted(t *testing.T) {
	err := NewStandard().Save(filepath.Join(t.TempDir(), "scaler"))
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"bad header", "minmax_scaler 2\n0 1\n0 1\n"},
		{"bad count", "standard_scaler x\n"},
		{"short", "standard_scaler 2\n0 1\n"},
		{"bad number", "standard_scaler 1\nzero 1\n"},
		{"zero std", "standard_scaler 1\n0 0\n"},
		{"extra field", "standard_scaler 1\n0 1 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			s := &Standard{Means: []float64{5}, StdDevs: []float64{2}}
			assert.Error(t, s.Load(path))
			// previous state is kept
			assert.Equal(t, []float64{5}, s.Means)
		})
	}

	_, err := NewStandardFromFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

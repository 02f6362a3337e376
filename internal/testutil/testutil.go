// Package testutil provides seeded synthetic fixtures shared by the gait
// package tests.
//
// Every generator takes an explicit *rand.Rand so tests stay deterministic.
package testutil

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/banshee-data/gait.report/internal/dataset"
)

// NewRand returns a deterministic source for fixtures.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// GaussianClusters draws n 2-D points split evenly between isotropic
// Gaussians at the given centres with standard deviation sigma.
func GaussianClusters(rng *rand.Rand, n int, sigma float64, centres ...[2]float64) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		c := centres[i%len(centres)]
		rows[i] = []float64{
			c[0] + rng.NormFloat64()*sigma,
			c[1] + rng.NormFloat64()*sigma,
		}
	}
	return rows
}

// UniformBox draws n points uniformly from [lo, hi) in each of dim
// dimensions.
func UniformBox(rng *rand.Rand, n, dim int, lo, hi float64) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		r := make([]float64, dim)
		for j := range r {
			r[j] = lo + rng.Float64()*(hi-lo)
		}
		rows[i] = r
	}
	return rows
}

// RawColumns names the 15 raw angle columns in channel order.
var RawColumns = []string{
	"l_shank_roll", "l_shank_pitch", "l_shank_course",
	"r_shank_roll", "r_shank_pitch", "r_shank_course",
	"l_thigh_roll", "l_thigh_pitch", "l_thigh_course",
	"r_thigh_roll", "r_thigh_pitch", "r_thigh_course",
	"chest_roll", "chest_pitch", "chest_course",
}

// GaitFrames produces n raw frames of a walking cycle: legs swing in pitch
// with opposite phase, the chest sways gently in roll, and every angle gets
// noise degrees of Gaussian jitter. amplitude scales the swing.
func GaitFrames(rng *rand.Rand, n int, amplitude, noise float64) [][]float64 {
	frames := make([][]float64, n)
	for i := range frames {
		phase := 2 * math.Pi * float64(i) / 50
		f := make([]float64, 15)
		// left shank, right shank
		f[1] = amplitude * math.Sin(phase)
		f[4] = -amplitude * math.Sin(phase)
		// left thigh, right thigh
		f[7] = 0.6 * amplitude * math.Sin(phase+0.4)
		f[10] = -0.6 * amplitude * math.Sin(phase+0.4)
		// chest
		f[12] = 0.1 * amplitude * math.Sin(2*phase)
		f[13] = 2
		for j := range f {
			f[j] += rng.NormFloat64() * noise
		}
		frames[i] = f
	}
	return frames
}

// Dataset builds a dataset or fails the test.
func Dataset(t testing.TB, columns []string, rows [][]float64) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.FromRows(columns, rows)
	if err != nil {
		t.Fatalf("building dataset: %v", err)
	}
	return ds
}

// WriteCSV writes rows to a CSV file under t.TempDir and returns its path.
func WriteCSV(t testing.TB, name string, columns []string, rows [][]float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := Dataset(t, columns, rows).WriteFile(path); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

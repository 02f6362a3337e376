package svm

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gait.report/internal/testutil"
)

func clusterProblem(seed int64, n int) *Problem {
	rows := testutil.GaussianClusters(testutil.NewRand(seed), n, 0.3, [2]float64{2, 2}, [2]float64{-2, -2})
	return NewOneClassProblem(rows)
}

func testParam(nu float64) Parameter {
	p := DefaultParameter()
	p.Nu = nu
	p.Gamma = 0.5
	return p
}

func TestKernel(t *testing.T) {
	x := []float64{1, 2, 3}
	y := []float64{4, 5, 6}

	tests := []struct {
		name  string
		param Parameter
		want  float64
	}{
		{"linear", Parameter{KernelType: Linear}, 32},
		{"poly", Parameter{KernelType: Poly, Gamma: 0.5, Coef0: 1, Degree: 2}, 17 * 17},
		{"rbf", Parameter{KernelType: RBF, Gamma: 0.1}, math.Exp(-0.1 * 27)},
		{"sigmoid", Parameter{KernelType: Sigmoid, Gamma: 0.01, Coef0: -0.2}, math.Tanh(0.32 - 0.2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Kernel(&tt.param, x, y), 1e-12)
		})
	}
}

func TestKernel_UnequalLengths(t *testing.T) {
	rbf := Parameter{KernelType: RBF, Gamma: 1}
	// the missing trailing feature is treated as zero
	assert.InDelta(t, math.Exp(-(1 + 4)), Kernel(&rbf, []float64{1, 2}, []float64{0}), 1e-12)
	assert.InDelta(t, Kernel(&rbf, []float64{1, 0}, []float64{0, 0}), Kernel(&rbf, []float64{1}, []float64{0, 0}), 1e-15)

	lin := Parameter{KernelType: Linear}
	assert.Equal(t, 2.0, Kernel(&lin, []float64{1, 2, 3}, []float64{2}))
}

func TestCheckParameter(t *testing.T) {
	prob := NewOneClassProblem([][]float64{{1, 2}, {3, 4}})

	tests := []struct {
		name   string
		mutate func(p *Parameter)
		prob   *Problem
		errMsg string
	}{
		{"valid", func(p *Parameter) {}, prob, ""},
		{"nu zero", func(p *Parameter) { p.Nu = 0 }, prob, "nu"},
		{"nu above one", func(p *Parameter) { p.Nu = 1.5 }, prob, "nu"},
		{"negative gamma", func(p *Parameter) { p.Gamma = -1 }, prob, "gamma"},
		{"cache", func(p *Parameter) { p.CacheSizeMB = 0 }, prob, "cache_size"},
		{"eps", func(p *Parameter) { p.Eps = 0 }, prob, "eps"},
		{"probability", func(p *Parameter) { p.Probability = true }, prob, "probability"},
		{"c_svc", func(p *Parameter) { p.SvmType = CSVC }, prob, "not supported"},
		{"kernel", func(p *Parameter) { p.KernelType = 9 }, prob, "kernel"},
		{"weights", func(p *Parameter) { p.WeightLabel = []int{1} }, prob, "weight"},
		{"empty problem", func(p *Parameter) {}, &Problem{}, "empty"},
		{"ragged problem", func(p *Parameter) {}, &Problem{X: [][]float64{{1, 2}, {1}}, Y: []float64{1, 1}}, "features"},
		{"nan", func(p *Parameter) {}, NewOneClassProblem([][]float64{{math.NaN()}}), "finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParam(0.5)
			tt.mutate(&p)
			err := CheckParameter(tt.prob, &p)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
	assert.Error(t, CheckParameter(nil, nil))
}

func TestNewOneClassProblem_CopiesRows(t *testing.T) {
	rows := [][]float64{{1, 2}}
	p := NewOneClassProblem(rows)
	rows[0][0] = 99
	assert.Equal(t, []float64{1, 2}, p.X[0])
	assert.Equal(t, []float64{1}, p.Y)
	assert.Equal(t, 2, p.Dim())
}

func TestTrain_OneClassProperties(t *testing.T) {
	prob := clusterProblem(1, 200)
	param := testParam(0.1)

	m, err := Train(prob, &param)
	require.NoError(t, err)

	var sum float64
	for _, c := range m.Coef {
		assert.Greater(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0)
		sum += c
	}
	assert.InDelta(t, param.Nu*float64(prob.Len()), sum, 1e-9)
	assert.GreaterOrEqual(t, m.TotalSV(), int(param.Nu*float64(prob.Len())))
	assert.Greater(t, m.Rho, 0.0)

	// clear training outliers sit at the upper bound, so there are at most nu*l
	outliers := 0
	for _, x := range prob.X {
		if m.PredictValues(x) < -param.Eps {
			outliers++
		}
	}
	assert.LessOrEqual(t, outliers, int(param.Nu*float64(prob.Len())))

	far, v := m.Predict([]float64{20, 20})
	assert.Equal(t, -1.0, far)
	assert.InDelta(t, -m.Rho, v, 1e-9)

	centre, _ := m.Predict([]float64{2, 2})
	assert.Equal(t, 1.0, centre)
}

func TestTrain_ShrinkingMatchesFullSolve(t *testing.T) {
	prob := clusterProblem(2, 150)
	a := testParam(0.2)
	a.Eps = 1e-7
	b := a
	b.Shrinking = false

	ma, err := Train(prob, &a)
	require.NoError(t, err)
	mb, err := Train(prob, &b)
	require.NoError(t, err)

	assert.InDelta(t, mb.Rho, ma.Rho, 1e-4)
	for _, x := range [][]float64{{2, 2}, {0, 0}, {-2.5, -1.5}, {5, 5}} {
		assert.InDelta(t, mb.PredictValues(x), ma.PredictValues(x), 1e-4)
	}
}

func TestTrain_SmallCacheStillConverges(t *testing.T) {
	prob := clusterProblem(3, 120)
	big := testParam(0.1)
	small := big
	small.CacheSizeMB = 1e-6

	mb, err := Train(prob, &big)
	require.NoError(t, err)
	ms, err := Train(prob, &small)
	require.NoError(t, err)
	assert.Equal(t, mb.Rho, ms.Rho)
	assert.Equal(t, mb.Coef, ms.Coef)
}

func TestTrain_Deterministic(t *testing.T) {
	prob := clusterProblem(4, 100)
	param := testParam(0.05)

	a, err := Train(prob, &param)
	require.NoError(t, err)
	b, err := Train(prob, &param)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("models differ (-first +second):\n%s", diff)
	}
}

func TestCrossValidate(t *testing.T) {
	prob := clusterProblem(5, 100)
	param := testParam(0.05)

	first, err := CrossValidate(prob, &param, 5)
	require.NoError(t, err)
	second, err := CrossValidate(prob, &param, 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, prob.Len())
	for _, v := range first {
		assert.Contains(t, []float64{-1, 1}, v)
	}

	cv := ScoreCrossValidation(prob, first, 5)
	assert.Equal(t, 5, cv.Folds)
	assert.Greater(t, cv.Accuracy, 80.0)
	assert.InDelta(t, 4*(100-cv.Accuracy)/100, cv.MeanSquaredError, 1e-9)

	_, err = CrossValidate(prob, &param, 1)
	assert.Error(t, err)
}

func TestCrossValidate_ClampsFolds(t *testing.T) {
	prob := clusterProblem(6, 6)
	param := testParam(0.5)

	target, err := CrossValidate(prob, &param, 50)
	require.NoError(t, err)
	assert.Len(t, target, 6)
}

func TestCrossValidate_SeedChangesShuffle(t *testing.T) {
	prob := clusterProblem(7, 60)
	a := testParam(0.3)
	b := a
	b.Seed = 99

	ta, err := CrossValidate(prob, &a, 3)
	require.NoError(t, err)
	tb, err := CrossValidate(prob, &b, 3)
	require.NoError(t, err)
	assert.Len(t, tb, len(ta))
}

func TestScoreCrossValidation_Regression(t *testing.T) {
	prob := &Problem{X: [][]float64{{0}, {1}, {2}}, Y: []float64{1, 2, 3}}
	cv := ScoreCrossValidation(prob, []float64{1, 2, 3}, 3)
	assert.Equal(t, 100.0, cv.Accuracy)
	assert.Equal(t, 0.0, cv.MeanSquaredError)
	assert.InDelta(t, 1.0, cv.SquaredCorrelation, 1e-12)

	empty := ScoreCrossValidation(prob, nil, 3)
	assert.Equal(t, 0.0, empty.Accuracy)
}

func TestModelRoundTrip(t *testing.T) {
	prob := clusterProblem(8, 80)
	param := testParam(0.1)
	m, err := Train(prob, &param)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))
	text := buf.String()
	assert.True(t, strings.HasPrefix(text, "svm_type one_class\nkernel_type rbf\ngamma 0.5\nnr_class 2\n"))

	got, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.SV, got.SV)
	assert.Equal(t, m.Coef, got.Coef)
	assert.Equal(t, m.Rho, got.Rho)
	assert.Equal(t, m.Param.Gamma, got.Param.Gamma)
	assert.Equal(t, 2, got.Dim())

	for _, x := range [][]float64{{2, 2}, {-1.7, -2.2}, {0, 0}, {7, -7}} {
		wl, wv := m.Predict(x)
		gl, gv := got.Predict(x)
		assert.Equal(t, wl, gl)
		assert.Equal(t, wv, gv)
	}
}

func TestModelFileRoundTrip(t *testing.T) {
	m := &Model{
		Param: Parameter{SvmType: OneClass, KernelType: Poly, Degree: 2, Gamma: 0.25, Coef0: 1},
		SV:    [][]float64{{0.1, 0.2}, {1.0 / 3, -4}},
		Coef:  []float64{0.5, 0.25},
		Rho:   0.125,
	}
	path := filepath.Join(t.TempDir(), "gait.model")
	require.NoError(t, m.SaveFile(path))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Poly, got.Param.KernelType)
	assert.Equal(t, 2, got.Param.Degree)
	assert.Equal(t, 1.0, got.Param.Coef0)
	assert.Equal(t, m.SV, got.SV)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.model"))
	assert.Error(t, err)
}

func TestLoad_SparseLibsvmFile(t *testing.T) {
	text := `svm_type one_class
kernel_type rbf
gamma 0.5
nr_class 2
total_sv 2
rho 0.3
SV
0.2 1:1 3:2 
0.1 2:-1 
`
	m, err := Load(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0, 2}, {0, -1}}, m.SV)
	assert.Equal(t, 3, m.Dim())
	assert.Equal(t, 0.3, m.Rho)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no sv section", "svm_type one_class\nkernel_type rbf\n"},
		{"c_svc", "svm_type c_svc\nkernel_type rbf\nnr_class 2\nrho 0.1\nSV\n"},
		{"multi rho", "svm_type one_class\nkernel_type rbf\nrho 0.1 0.2\nSV\n"},
		{"unknown key", "svm_type one_class\nfoo bar\nSV\n"},
		{"bad kernel", "svm_type one_class\nkernel_type cubic\nSV\n"},
		{"total mismatch", "svm_type one_class\nkernel_type rbf\ntotal_sv 3\nrho 0\nSV\n1 1:1\n"},
		{"bad index", "svm_type one_class\nkernel_type rbf\nrho 0\nSV\n1 2:1 1:1\n"},
		{"bad pair", "svm_type one_class\nkernel_type rbf\nrho 0\nSV\n1 x\n"},
		{"nr_class", "svm_type one_class\nnr_class 3\nSV\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.text))
			assert.Error(t, err)
		})
	}
}

func TestParseNames(t *testing.T) {
	k, err := ParseKernelType("poly")
	require.NoError(t, err)
	assert.Equal(t, Poly, k)
	assert.Equal(t, "polynomial", k.String())

	_, err = ParseKernelType("cubic")
	assert.Error(t, err)

	st, err := ParseSvmType("ONE_CLASS")
	require.NoError(t, err)
	assert.Equal(t, OneClass, st)
	assert.False(t, st.IsRegression())
	assert.True(t, NuSVR.IsRegression())
}

package svm

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"tailscale.com/util/lru"
)

// dot treats missing trailing values as zero so sparse model files with
// omitted features still evaluate.
func dot(a, b []float64) float64 {
	n := min(len(a), len(b))
	return floats.Dot(a[:n], b[:n])
}

func sqDist(a, b []float64) float64 {
	n := min(len(a), len(b))
	d := floats.Distance(a[:n], b[:n], 2)
	sum := d * d
	for _, v := range a[n:] {
		sum += v * v
	}
	for _, v := range b[n:] {
		sum += v * v
	}
	return sum
}

func powi(base float64, times int) float64 {
	tmp, ret := base, 1.0
	for t := times; t > 0; t /= 2 {
		if t%2 == 1 {
			ret *= tmp
		}
		tmp *= tmp
	}
	return ret
}

// Kernel evaluates k(x, y) for the kernel described by param.
func Kernel(param *Parameter, x, y []float64) float64 {
	switch param.KernelType {
	case Linear:
		return dot(x, y)
	case Poly:
		return powi(param.Gamma*dot(x, y)+param.Coef0, param.Degree)
	case RBF:
		return math.Exp(-param.Gamma * sqDist(x, y))
	case Sigmoid:
		return math.Tanh(param.Gamma*dot(x, y) + param.Coef0)
	}
	return 0
}

// kernelMatrix serves full rows of the training kernel matrix through an LRU
// cache sized from Parameter.CacheSizeMB.
type kernelMatrix struct {
	x     [][]float64
	param *Parameter
	diag  []float64
	cache lru.Cache[int, []float64]

	hits, misses int
}

func newKernelMatrix(x [][]float64, param *Parameter) *kernelMatrix {
	l := len(x)
	km := &kernelMatrix{x: x, param: param, diag: make([]float64, l)}
	rowBytes := 8 * max(l, 1)
	km.cache.MaxEntries = max(2, int(param.CacheSizeMB*(1<<20))/rowBytes)
	for i := range x {
		km.diag[i] = Kernel(param, x[i], x[i])
	}
	return km
}

// row returns K(x_i, x_j) for every j. The returned slice must not be
// modified.
func (km *kernelMatrix) row(i int) []float64 {
	if r, ok := km.cache.GetOk(i); ok {
		km.hits++
		return r
	}
	km.misses++
	r := make([]float64, len(km.x))
	xi := km.x[i]
	for j := range km.x {
		r[j] = Kernel(km.param, xi, km.x[j])
	}
	km.cache.Set(i, r)
	return r
}

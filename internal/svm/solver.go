package svm

import (
	"math"

	"github.com/banshee-data/gait.report/internal/monitoring"
)

const tau = 1e-12

type alphaStatus uint8

const (
	lowerBound alphaStatus = iota
	upperBound
	free
)

// solution is the raw output of one SMO run.
type solution struct {
	alpha []float64
	rho   float64
	obj   float64
	iter  int
}

// oneClassSolver is the sequential minimal optimisation solver specialised
// to the one-class dual:
//
//	min 0.5 a'Qa  s.t.  0 <= a_i <= 1, sum a_i = nu*l
//
// Every target is +1, so the two-sided working set selection collapses to a
// single class.
type oneClassSolver struct {
	q      *kernelMatrix
	eps    float64
	shrink bool

	l      int
	alpha  []float64
	status []alphaStatus
	g      []float64 // gradient of the objective
	gBar   []float64 // gradient contribution of upper-bounded alphas
	active []int
	inSet  []bool

	unshrink bool
}

func (s *oneClassSolver) updateStatus(i int) {
	switch {
	case s.alpha[i] >= 1:
		s.status[i] = upperBound
	case s.alpha[i] <= 0:
		s.status[i] = lowerBound
	default:
		s.status[i] = free
	}
}

func (s *oneClassSolver) isUpper(i int) bool { return s.status[i] == upperBound }
func (s *oneClassSolver) isLower(i int) bool { return s.status[i] == lowerBound }
func (s *oneClassSolver) isFree(i int) bool  { return s.status[i] == free }

func solveOneClass(x [][]float64, param *Parameter) solution {
	l := len(x)
	s := &oneClassSolver{
		q:      newKernelMatrix(x, param),
		eps:    param.Eps,
		shrink: param.Shrinking,
		l:      l,
		alpha:  make([]float64, l),
		status: make([]alphaStatus, l),
		g:      make([]float64, l),
		gBar:   make([]float64, l),
		active: make([]int, l),
		inSet:  make([]bool, l),
	}

	n := int(param.Nu * float64(l))
	for i := 0; i < n; i++ {
		s.alpha[i] = 1
	}
	if n < l {
		s.alpha[n] = param.Nu*float64(l) - float64(n)
	}
	for i := range s.alpha {
		s.updateStatus(i)
		s.active[i] = i
		s.inSet[i] = true
	}

	for i := 0; i < l; i++ {
		if s.isLower(i) {
			continue
		}
		qi := s.q.row(i)
		for j := 0; j < l; j++ {
			s.g[j] += s.alpha[i] * qi[j]
		}
		if s.isUpper(i) {
			for j := 0; j < l; j++ {
				s.gBar[j] += qi[j]
			}
		}
	}

	iter := s.optimise()
	sol := solution{alpha: s.alpha, rho: s.rho(), iter: iter}
	for i := 0; i < l; i++ {
		sol.obj += s.alpha[i] * s.g[i]
	}
	sol.obj /= 2

	monitoring.Debugf("[svm] optimization finished, #iter = %d obj = %g rho = %g cache hits=%d misses=%d",
		iter, sol.obj, sol.rho, s.q.hits, s.q.misses)
	return sol
}

func (s *oneClassSolver) optimise() int {
	l := s.l
	maxIter := max(10000000, 100*l)
	if l > math.MaxInt32/100 {
		maxIter = math.MaxInt32
	}
	counter := min(l, 1000) + 1

	iter := 0
	for iter < maxIter {
		counter--
		if counter == 0 {
			counter = min(l, 1000)
			if s.shrink {
				s.doShrinking()
			}
		}

		i, j, ok := s.selectWorkingSet()
		if !ok {
			s.reconstructGradient()
			s.resetActive()
			i, j, ok = s.selectWorkingSet()
			if !ok {
				break
			}
			counter = 1
		}
		iter++
		s.update(i, j)
	}

	if iter >= maxIter {
		s.reconstructGradient()
		s.resetActive()
		monitoring.Logf("[svm] WARNING: reaching max number of iterations (%d)", maxIter)
	}
	return iter
}

// selectWorkingSet picks the maximal violating pair using second order
// information. ok is false once the pair violates the stopping tolerance by
// less than eps.
func (s *oneClassSolver) selectWorkingSet() (int, int, bool) {
	gmax, gmax2 := math.Inf(-1), math.Inf(-1)
	gmaxIdx, gminIdx := -1, -1
	objDiffMin := math.Inf(1)

	for _, t := range s.active {
		if !s.isUpper(t) && -s.g[t] >= gmax {
			gmax = -s.g[t]
			gmaxIdx = t
		}
	}
	if gmaxIdx == -1 {
		return -1, -1, false
	}

	i := gmaxIdx
	qi := s.q.row(i)
	qdi := s.q.diag[i]
	for _, j := range s.active {
		if s.isLower(j) {
			continue
		}
		gradDiff := gmax + s.g[j]
		if s.g[j] >= gmax2 {
			gmax2 = s.g[j]
		}
		if gradDiff <= 0 {
			continue
		}
		quad := qdi + s.q.diag[j] - 2*qi[j]
		var objDiff float64
		if quad > 0 {
			objDiff = -(gradDiff * gradDiff) / quad
		} else {
			objDiff = -(gradDiff * gradDiff) / tau
		}
		if objDiff <= objDiffMin {
			gminIdx = j
			objDiffMin = objDiff
		}
	}

	if gmax+gmax2 < s.eps || gminIdx == -1 {
		return -1, -1, false
	}
	return i, gminIdx, true
}

func (s *oneClassSolver) update(i, j int) {
	qi := s.q.row(i)
	qj := s.q.row(j)

	oldI, oldJ := s.alpha[i], s.alpha[j]
	quad := s.q.diag[i] + s.q.diag[j] - 2*qi[j]
	if quad <= 0 {
		quad = tau
	}
	delta := (s.g[i] - s.g[j]) / quad
	sum := s.alpha[i] + s.alpha[j]
	s.alpha[i] -= delta
	s.alpha[j] += delta

	if sum > 1 {
		if s.alpha[i] > 1 {
			s.alpha[i] = 1
			s.alpha[j] = sum - 1
		}
	} else if s.alpha[j] < 0 {
		s.alpha[j] = 0
		s.alpha[i] = sum
	}
	if sum > 1 {
		if s.alpha[j] > 1 {
			s.alpha[j] = 1
			s.alpha[i] = sum - 1
		}
	} else if s.alpha[i] < 0 {
		s.alpha[i] = 0
		s.alpha[j] = sum
	}

	dI, dJ := s.alpha[i]-oldI, s.alpha[j]-oldJ
	for _, k := range s.active {
		s.g[k] += qi[k]*dI + qj[k]*dJ
	}

	wasUpperI, wasUpperJ := s.isUpper(i), s.isUpper(j)
	s.updateStatus(i)
	s.updateStatus(j)
	s.adjustGBar(qi, wasUpperI, s.isUpper(i))
	s.adjustGBar(qj, wasUpperJ, s.isUpper(j))
}

func (s *oneClassSolver) adjustGBar(row []float64, wasUpper, isUpper bool) {
	if wasUpper == isUpper {
		return
	}
	sign := 1.0
	if wasUpper {
		sign = -1
	}
	for k := 0; k < s.l; k++ {
		s.gBar[k] += sign * row[k]
	}
}

func (s *oneClassSolver) beShrunk(i int, gmax1, gmax2 float64) bool {
	switch {
	case s.isUpper(i):
		return -s.g[i] > gmax1
	case s.isLower(i):
		return s.g[i] > gmax2
	}
	return false
}

func (s *oneClassSolver) doShrinking() {
	gmax1, gmax2 := math.Inf(-1), math.Inf(-1)
	for _, i := range s.active {
		if !s.isUpper(i) {
			gmax1 = max(gmax1, -s.g[i])
		}
		if !s.isLower(i) {
			gmax2 = max(gmax2, s.g[i])
		}
	}

	if !s.unshrink && gmax1+gmax2 <= s.eps*10 {
		s.unshrink = true
		s.reconstructGradient()
		s.resetActive()
	}

	kept := s.active[:0]
	for _, i := range s.active {
		if s.beShrunk(i, gmax1, gmax2) {
			s.inSet[i] = false
			continue
		}
		kept = append(kept, i)
	}
	s.active = kept
}

func (s *oneClassSolver) resetActive() {
	s.active = s.active[:0]
	for i := 0; i < s.l; i++ {
		s.active = append(s.active, i)
		s.inSet[i] = true
	}
}

// reconstructGradient recomputes G for shrunk variables from gBar and the
// free alphas.
func (s *oneClassSolver) reconstructGradient() {
	if len(s.active) == s.l {
		return
	}
	for j := 0; j < s.l; j++ {
		if !s.inSet[j] {
			s.g[j] = s.gBar[j]
		}
	}
	for _, i := range s.active {
		if !s.isFree(i) {
			continue
		}
		qi := s.q.row(i)
		for j := 0; j < s.l; j++ {
			if !s.inSet[j] {
				s.g[j] += s.alpha[i] * qi[j]
			}
		}
	}
}

func (s *oneClassSolver) rho() float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	nrFree := 0
	sumFree := 0.0
	for _, i := range s.active {
		yg := s.g[i]
		switch {
		case s.isUpper(i):
			lb = max(lb, yg)
		case s.isLower(i):
			ub = min(ub, yg)
		default:
			nrFree++
			sumFree += yg
		}
	}
	if nrFree > 0 {
		return sumFree / float64(nrFree)
	}
	return (ub + lb) / 2
}

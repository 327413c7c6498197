// Package stats provides the running statistics the search's stopping rules
// are built on.
package stats

import "math"

const Epsilon = 1e-6

// Common z values for confidence intervals.
const (
	Z95 = 1.96
	Z98 = 2.33
	Z99 = 2.58
)

func FuzzyEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// Statistic accumulates a stream of observations with Welford's algorithm;
// mean and variance are available at any point without storing the stream.
type Statistic struct {
	n    int
	last float64

	oldM float64
	newM float64
	oldS float64
	newS float64
}

func (s *Statistic) Push(val float64) {
	s.last = val
	s.n++
	if s.n == 1 {
		s.oldM = val
		s.newM = val
		s.oldS = 0
	} else {
		s.newM = s.oldM + (val-s.oldM)/float64(s.n)
		s.newS = s.oldS + (val-s.oldM)*(val-s.newM)
		s.oldM = s.newM
		s.oldS = s.newS
	}
}

func (s *Statistic) Mean() float64 {
	if s.n > 0 {
		return s.newM
	}
	return 0.0
}

func (s *Statistic) Variance() float64 {
	if s.n <= 1 {
		return 0.0
	}
	return s.newS / float64(s.n-1)
}

func (s *Statistic) Stdev() float64 {
	return math.Sqrt(s.Variance())
}

func (s *Statistic) Last() float64 {
	return s.last
}

// StandardError returns the half-width of the confidence interval at the
// given z value.
func (s *Statistic) StandardError(z float64) float64 {
	if s.n == 0 {
		return 0.0
	}
	return z * math.Sqrt(s.Variance()/float64(s.n))
}

func (s *Statistic) Iterations() int {
	return s.n
}

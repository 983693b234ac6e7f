package slant

import (
	"container/heap"
	"errors"
	"math"
)

// ErrMaxSubdivisions means the requested tolerance was not reached before the
// subdivision limit. The accompanying estimate is still the best available.
var ErrMaxSubdivisions = errors.New("maximum number of subdivisions reached")

// DefaultLimit is the default maximum number of subintervals.
const DefaultLimit = 50

// Kronrod nodes, Kronrod weights and the Gauss weights of the embedded
// 10-point rule. Node 10 is the centre; Gauss nodes are the odd indices.
var (
	xgk = [11]float64{
		0.995657163025808080735527280689003,
		0.973906528517171720077964012084452,
		0.930157491355708226001207180059508,
		0.865063366688984510732096688423493,
		0.780817726586416897063717578345042,
		0.679409568299024406234327365114874,
		0.562757134668604683339000099272694,
		0.433395394129247190799265943165784,
		0.294392862701460198131126603103866,
		0.148874338981631210884826001129720,
		0,
	}
	wgk = [11]float64{
		0.011694638867371874278064396062192,
		0.032558162307964727478818972459390,
		0.054755896574351996031381300244580,
		0.075039674810919952767043140916190,
		0.093125454583697605535065465083366,
		0.109387158802297641899210590325805,
		0.123491976262065851077600525359493,
		0.134709217311473325928054001771707,
		0.142775938577060080797094273138717,
		0.147739104901338491374841515972068,
		0.149445554002916905664936468389821,
	}
	wg = [5]float64{
		0.066671344308688137593568809893332,
		0.149451349150580593145776339657697,
		0.219086362515982043995534934228163,
		0.269266719309996355091226921569469,
		0.295524224714752870173892994651338,
	}
)

// gk21 integrates f over [a, b] with the 21-point Kronrod rule and returns the
// estimate and the Kronrod-Gauss difference as the error.
func gk21(f func(float64) float64, a, b float64) (result, abserr float64) {
	center := 0.5 * (a + b)
	half := 0.5 * (b - a)

	fc := f(center)
	resk := fc * wgk[10]
	var resg float64
	for j := 0; j < 10; j++ {
		dx := half * xgk[j]
		sum := f(center-dx) + f(center+dx)
		resk += wgk[j] * sum
		if j%2 == 1 {
			resg += wg[j/2] * sum
		}
	}
	return resk * half, math.Abs((resk-resg)*half)
}

type segment struct {
	a, b       float64
	value, err float64
}

// segments is a max-heap on the error estimate.
type segments []segment

func (s segments) Len() int           { return len(s) }
func (s segments) Less(i, j int) bool { return s[i].err > s[j].err }
func (s segments) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s *segments) Push(x any)        { *s = append(*s, x.(segment)) }
func (s *segments) Pop() any {
	old := *s
	n := len(old)
	x := old[n-1]
	*s = old[:n-1]
	return x
}

// Result reports a quadrature outcome.
type Result struct {
	Value       float64
	AbsErr      float64
	Evaluations int
	Intervals   int
}

// Integrate1D adaptively integrates f over [a, b], bisecting the interval with
// the largest error until the total error is within max(epsabs, epsrel*|I|)
// or limit intervals are in use.
func Integrate1D(f func(float64) float64, a, b, epsabs, epsrel float64, limit int) (Result, error) {
	if limit < 1 {
		limit = DefaultLimit
	}
	evals := 0
	counted := func(x float64) float64 {
		evals++
		return f(x)
	}

	if a == b {
		return Result{}, nil
	}

	v, e := gk21(counted, a, b)
	h := &segments{{a: a, b: b, value: v, err: e}}
	total, totalErr := v, e

	for !converged(total, totalErr, epsabs, epsrel) {
		if h.Len() >= limit {
			return Result{Value: total, AbsErr: totalErr, Evaluations: evals, Intervals: h.Len()}, ErrMaxSubdivisions
		}
		worst := heap.Pop(h).(segment)
		mid := 0.5 * (worst.a + worst.b)
		lv, le := gk21(counted, worst.a, mid)
		rv, re := gk21(counted, mid, worst.b)
		heap.Push(h, segment{a: worst.a, b: mid, value: lv, err: le})
		heap.Push(h, segment{a: mid, b: worst.b, value: rv, err: re})

		// Re-sum so rounding does not accumulate across many updates.
		total, totalErr = 0, 0
		for _, s := range *h {
			total += s.value
			totalErr += s.err
		}
	}
	return Result{Value: total, AbsErr: totalErr, Evaluations: evals, Intervals: h.Len()}, nil
}

func converged(value, err, epsabs, epsrel float64) bool {
	return err <= math.Max(epsabs, epsrel*math.Abs(value))
}

package transfer

import (
	"errors"
	"math"
	"slices"
)

// Mu0 is the vacuum permeability in H/m.
const Mu0 = 4e-7 * math.Pi

// OhmToFieldUnits converts an impedance in ohms to (mV/km)/nT.
const OhmToFieldUnits = 1e-3 / Mu0

// Matrix is a 2x2 impedance tensor in (mV/km)/nT.
type Matrix struct {
	XX, XY, YX, YY complex128
}

// Tensor evaluates an impedance tensor at a frequency in Hz.
type Tensor interface {
	At(freqHz float64) Matrix
}

// TensorFunc adapts a function to Tensor.
type TensorFunc func(freqHz float64) Matrix

func (f TensorFunc) At(freqHz float64) Matrix { return f(freqHz) }

// Tabulated is an impedance tensor sampled at discrete periods.
type Tabulated struct {
	periods []float64 // seconds, ascending
	values  []Matrix
}

// NewTabulated builds a tabulated tensor. Periods are sorted together with
// their values.
func NewTabulated(periods []float64, values []Matrix) (*Tabulated, error) {
	if len(periods) == 0 {
		return nil, errors.New("tabulated tensor: no periods")
	}
	if len(periods) != len(values) {
		return nil, errors.New("tabulated tensor: periods and values differ in length")
	}
	idx := make([]int, len(periods))
	for i := range idx {
		idx[i] = i
		if !(periods[i] > 0) {
			return nil, errors.New("tabulated tensor: periods must be positive")
		}
	}
	slices.SortFunc(idx, func(a, b int) int {
		switch {
		case periods[a] < periods[b]:
			return -1
		case periods[a] > periods[b]:
			return 1
		}
		return 0
	})
	t := &Tabulated{periods: make([]float64, len(idx)), values: make([]Matrix, len(idx))}
	for i, j := range idx {
		t.periods[i] = periods[j]
		t.values[i] = values[j]
	}
	return t, nil
}

// Band returns the shortest and longest tabulated periods.
func (t *Tabulated) Band() (minPeriod, maxPeriod float64) {
	return t.periods[0], t.periods[len(t.periods)-1]
}

// At interpolates linearly in log-period. Frequencies outside the tabulated
// band map to a zero tensor.
func (t *Tabulated) At(freqHz float64) Matrix {
	if freqHz <= 0 {
		return Matrix{}
	}
	period := 1 / freqHz
	n := len(t.periods)
	if period < t.periods[0] || period > t.periods[n-1] {
		return Matrix{}
	}
	i, found := slices.BinarySearch(t.periods, period)
	if found {
		return t.values[i]
	}
	lo, hi := i-1, i
	w := (math.Log(period) - math.Log(t.periods[lo])) / (math.Log(t.periods[hi]) - math.Log(t.periods[lo]))
	return lerp(t.values[lo], t.values[hi], w)
}

func lerp(a, b Matrix, w float64) Matrix {
	cw := complex(w, 0)
	return Matrix{
		XX: a.XX + cw*(b.XX-a.XX),
		XY: a.XY + cw*(b.XY-a.XY),
		YX: a.YX + cw*(b.YX-a.YX),
		YY: a.YY + cw*(b.YY-a.YY),
	}
}

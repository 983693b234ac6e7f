package transfer

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
)

var (
	// ErrNoData means a component contains no finite samples.
	ErrNoData = errors.New("component has no finite samples")
	// ErrBadInterval means the sampling interval is not positive.
	ErrBadInterval = errors.New("sampling interval must be positive")
)

// Apply computes (Ex, Ey) from (Bx, By) sampled every interval.
//
// Gaps (NaN) are linearly filled before the transform and restored as NaN in
// the output. The mean is removed and the series zero-padded to the next power
// of two.
func Apply(bx, by []float64, interval time.Duration, z Tensor) (ex, ey []float64, err error) {
	if len(bx) != len(by) {
		return nil, nil, fmt.Errorf("apply transfer function: Bx has %d samples, By has %d", len(bx), len(by))
	}
	if interval <= 0 {
		return nil, nil, ErrBadInterval
	}
	n := len(bx)
	if n == 0 {
		return []float64{}, []float64{}, nil
	}

	fx, gapX, err := fillGaps(bx)
	if err != nil {
		return nil, nil, fmt.Errorf("Bx: %w", err)
	}
	fy, gapY, err := fillGaps(by)
	if err != nil {
		return nil, nil, fmt.Errorf("By: %w", err)
	}

	size := nextPow2(n)
	px := padded(fx, size)
	py := padded(fy, size)

	fft := fourier.NewFFT(size)
	cx := fft.Coefficients(nil, px)
	cy := fft.Coefficients(nil, py)

	dt := interval.Seconds()
	cex := make([]complex128, len(cx))
	cey := make([]complex128, len(cy))
	for k := 1; k < len(cx); k++ {
		m := z.At(float64(k) / (float64(size) * dt))
		cex[k] = m.XX*cx[k] + m.XY*cy[k]
		cey[k] = m.YX*cx[k] + m.YY*cy[k]
	}
	if size%2 == 0 {
		last := len(cx) - 1
		cex[last] = complex(real(cex[last]), 0)
		cey[last] = complex(real(cey[last]), 0)
	}

	sx := fft.Sequence(nil, cex)
	sy := fft.Sequence(nil, cey)

	ex = make([]float64, n)
	ey = make([]float64, n)
	scale := 1 / float64(size)
	for i := 0; i < n; i++ {
		if gapX[i] || gapY[i] {
			ex[i], ey[i] = math.NaN(), math.NaN()
			continue
		}
		ex[i] = sx[i] * scale
		ey[i] = sy[i] * scale
	}
	return ex, ey, nil
}

// fillGaps linearly interpolates interior NaNs and holds the nearest finite
// value at the edges. The returned mask marks the filled samples.
func fillGaps(x []float64) ([]float64, []bool, error) {
	out := make([]float64, len(x))
	gap := make([]bool, len(x))
	prev := -1
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			gap[i] = true
			continue
		}
		out[i] = v
		if prev == -1 {
			for j := 0; j < i; j++ {
				out[j] = v
			}
		} else if i-prev > 1 {
			step := (v - out[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				out[j] = out[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
	if prev == -1 {
		return nil, nil, ErrNoData
	}
	for j := prev + 1; j < len(x); j++ {
		out[j] = out[prev]
	}
	return out, gap, nil
}

func padded(x []float64, size int) []float64 {
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	out := make([]float64, size)
	for i, v := range x {
		out[i] = v - mean
	}
	return out
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Package slant integrates a scalar field along the straight ray between a
// ground station and a target, restricted to an altitude band.
package slant

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/geoderive/internal/geodesy"
)

// Field samples a scalar field at an ECEF position.
type Field func(p geodesy.Position) float64

// Request describes one slant integral. Altitudes are geodetic heights in
// meters; tolerances are in the units of the integral (field units times
// meters).
type Request struct {
	Station geodesy.Position
	Target  geodesy.Position
	Alt1M   float64
	Alt2M   float64
	EpsAbs  float64
	EpsRel  float64
	Limit   int
}

// Path is the portion of the ray inside the altitude band, as fractions of
// the station-to-target segment.
type Path struct {
	T1, T2  float64
	LengthM float64
}

// Empty reports whether the band is not crossed.
func (p Path) Empty() bool { return p.T2 <= p.T1 }

// bisectIterations is enough to resolve a crossing well below a millimetre on
// any Earth-to-GNSS ray.
const bisectIterations = 64

// ClipPath finds where the ray enters and leaves [alt1, alt2]. The end lower
// in height may already lie inside the band, in which case the path starts
// there; a ray entirely below alt1 or above alt2 yields an empty path. The
// result does not depend on which end is the station.
func ClipPath(station, target geodesy.Position, alt1, alt2 float64) (Path, error) {
	if !(alt1 < alt2) {
		return Path{}, fmt.Errorf("clip path: alt1 %g must be below alt2 %g", alt1, alt2)
	}
	p := Path{LengthM: station.Distance(target)}
	if p.LengthM == 0 {
		return p, nil
	}
	if station.LLH().HeightM > target.LLH().HeightM {
		// Clip the ascending ray and map fractions back onto station->target.
		up := clipAscending(target, station, alt1, alt2)
		if up.Empty() {
			return p, nil
		}
		p.T1, p.T2 = 1-up.T2, 1-up.T1
		return p, nil
	}
	up := clipAscending(station, target, alt1, alt2)
	p.T1, p.T2 = up.T1, up.T2
	return p, nil
}

// clipAscending clips a ray whose hi end is not lower than its lo end.
func clipAscending(lo, hi geodesy.Position, alt1, alt2 float64) Path {
	height := func(t float64) float64 { return lo.Lerp(hi, t).LLH().HeightM }

	var p Path
	h0, h1 := height(0), height(1)
	if h1 < alt1 || h0 >= alt2 {
		return p
	}
	if h0 < alt1 {
		p.T1 = crossing(height, 0, 1, alt1)
	}
	p.T2 = 1
	if h1 > alt2 {
		p.T2 = crossing(height, p.T1, 1, alt2)
	}
	return p
}

// crossing bisects for the first t in [lo, hi] where height reaches alt,
// given height(lo) < alt <= height(hi).
func crossing(height func(float64) float64, lo, hi, alt float64) float64 {
	for i := 0; i < bisectIterations; i++ {
		mid := 0.5 * (lo + hi)
		if height(mid) >= alt {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}

// Integrate computes the line integral of f over the part of the ray inside
// the altitude band. The integration variable is path length in meters. An
// empty path integrates to zero without evaluating f.
//
// ErrMaxSubdivisions is returned together with the best estimate when the
// tolerance could not be met.
func Integrate(f Field, req Request) (Result, error) {
	if f == nil {
		return Result{}, errors.New("integrate: nil field")
	}
	path, err := ClipPath(req.Station, req.Target, req.Alt1M, req.Alt2M)
	if err != nil {
		return Result{}, err
	}
	if path.Empty() {
		return Result{}, nil
	}

	at := func(s float64) float64 {
		return f(req.Station.Lerp(req.Target, s/path.LengthM))
	}
	return Integrate1D(at, path.T1*path.LengthM, path.T2*path.LengthM, req.EpsAbs, req.EpsRel, req.Limit)
}

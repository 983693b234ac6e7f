package ionosphere

import (
	"fmt"
	"time"

	"github.com/couchcryptid/geoderive/internal/geodesy"
	"github.com/couchcryptid/geoderive/internal/slant"
)

// TECU is one total electron content unit in electrons per square meter.
const TECU = 1e16

// Options bound a STEC integral. Tolerances are in TECU.
type Options struct {
	Alt1M     float64
	Alt2M     float64
	EpsAbsTEC float64
	EpsRel    float64
	Limit     int
}

// DefaultOptions integrates from 100 km to 2000 km to within 0.1 TECU or 10%.
func DefaultOptions() Options {
	return Options{
		Alt1M:     100e3,
		Alt2M:     2000e3,
		EpsAbsTEC: 0.1,
		EpsRel:    0.1,
		Limit:     slant.DefaultLimit,
	}
}

// Result is a STEC value with its quadrature diagnostics.
type Result struct {
	TEC         float64 // TECU
	AbsErrTEC   float64 // TECU
	Evaluations int
}

// STEC integrates model along the ray from station to target at time at.
// Negative densities should be handled by wrapping model in Clamped.
func STEC(model DensityModel, at time.Time, station, target geodesy.Position, opts Options) (Result, error) {
	field := func(p geodesy.Position) float64 {
		return model.Density(at, p.LLH())
	}
	res, err := slant.Integrate(field, slant.Request{
		Station: station,
		Target:  target,
		Alt1M:   opts.Alt1M,
		Alt2M:   opts.Alt2M,
		EpsAbs:  opts.EpsAbsTEC * TECU,
		EpsRel:  opts.EpsRel,
		Limit:   opts.Limit,
	})
	out := Result{
		TEC:         res.Value / TECU,
		AbsErrTEC:   res.AbsErr / TECU,
		Evaluations: res.Evaluations,
	}
	if err != nil {
		return out, fmt.Errorf("integrate electron density: %w", err)
	}
	return out, nil
}

// Package ionosphere computes slant total electron content through an
// electron density model.
package ionosphere

import (
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/geoderive/internal/geodesy"
)

// DensityModel returns electron density in electrons per cubic meter.
type DensityModel interface {
	Density(at time.Time, p geodesy.LLH) float64
}

// DensityFunc adapts a function to DensityModel.
type DensityFunc func(at time.Time, p geodesy.LLH) float64

func (f DensityFunc) Density(at time.Time, p geodesy.LLH) float64 { return f(at, p) }

// Chapman is an alpha-Chapman layer:
//
//	ne(h) = NmF2 * exp(0.5 * (1 - z - exp(-z))),  z = (h - HmF2) / ScaleHeight
type Chapman struct {
	NmF2         float64 // peak density, el/m^3
	HmF2M        float64 // peak height, m
	ScaleHeightM float64 // m
}

// DefaultChapman is a mid-latitude daytime F2 layer.
var DefaultChapman = Chapman{NmF2: 1e12, HmF2M: 350e3, ScaleHeightM: 60e3}

func (c Chapman) Density(_ time.Time, p geodesy.LLH) float64 {
	z := (p.HeightM - c.HmF2M) / c.ScaleHeightM
	return c.NmF2 * math.Exp(0.5*(1-z-math.Exp(-z)))
}

// Clamped replaces negative densities with zero. Each replacement is logged
// as a warning and reported to the hook, and integration carries on.
type Clamped struct {
	inner   DensityModel
	logger  *slog.Logger
	onClamp func()
}

// NewClamped wraps inner. onClamp may be nil.
func NewClamped(inner DensityModel, logger *slog.Logger, onClamp func()) *Clamped {
	return &Clamped{inner: inner, logger: logger, onClamp: onClamp}
}

func (c *Clamped) Density(at time.Time, p geodesy.LLH) float64 {
	ne := c.inner.Density(at, p)
	if ne < 0 {
		c.logger.Warn("negative electron density clamped to zero",
			"height_km", math.Round(p.HeightM/100)/10,
			"density", ne,
		)
		if c.onClamp != nil {
			c.onClamp()
		}
		return 0
	}
	return ne
}

package transfer

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
)

// Layer is one horizontal layer of a 1-D conductivity model. The thickness of
// the last layer is ignored; it extends to infinite depth.
type Layer struct {
	ThicknessM      float64
	ResistivityOhmM float64
}

// LayeredEarth is a 1-D conductivity profile ordered from the surface down.
type LayeredEarth struct {
	Layers []Layer
}

// Validate checks that every layer is physical.
func (m LayeredEarth) Validate() error {
	if len(m.Layers) == 0 {
		return errors.New("layered model has no layers")
	}
	for i, l := range m.Layers {
		if !(l.ResistivityOhmM > 0) {
			return fmt.Errorf("layer %d: resistivity must be positive", i)
		}
		if i < len(m.Layers)-1 && !(l.ThicknessM > 0) {
			return fmt.Errorf("layer %d: thickness must be positive", i)
		}
	}
	return nil
}

// Impedance returns the surface impedance in ohms at freqHz using the
// standard layer recursion from the bottom half-space upward.
func (m LayeredEarth) Impedance(freqHz float64) complex128 {
	if freqHz <= 0 || len(m.Layers) == 0 {
		return 0
	}
	iwm := complex(0, 2*math.Pi*freqHz*Mu0)

	n := len(m.Layers)
	z := intrinsic(iwm, m.Layers[n-1].ResistivityOhmM)
	for j := n - 2; j >= 0; j-- {
		l := m.Layers[j]
		k := cmplx.Sqrt(iwm / complex(l.ResistivityOhmM, 0))
		eta := iwm / k
		kh := k * complex(l.ThicknessM, 0)
		// tanh saturates long before cmplx.Tanh overflows.
		t := complex(1, 0)
		if real(kh) < 20 {
			t = cmplx.Tanh(kh)
		}
		z = eta * (z + eta*t) / (eta + z*t)
	}
	return z
}

func intrinsic(iwm complex128, rho float64) complex128 {
	k := cmplx.Sqrt(iwm / complex(rho, 0))
	return iwm / k
}

// At implements Tensor for a 1-D model: Ex = Z*By/μ0, Ey = -Z*Bx/μ0.
func (m LayeredEarth) At(freqHz float64) Matrix {
	z := m.Impedance(freqHz) * complex(OhmToFieldUnits, 0)
	return Matrix{XY: z, YX: -z}
}

// ApparentResistivity returns |Z|^2/(ωμ0) in ohm-m.
func ApparentResistivity(z complex128, freqHz float64) float64 {
	a := cmplx.Abs(z)
	return a * a / (2 * math.Pi * freqHz * Mu0)
}

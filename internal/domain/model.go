package domain

import (
	"strings"
	"unicode"
)

// SpatialPrefix marks identifiers of spatially-registered (3-D) models.
const SpatialPrefix = "USArray"

// ModelKind selects which evaluator handles a model.
type ModelKind int

const (
	// RegionModel is a 1-D layered-earth model keyed by physiographic region.
	RegionModel ModelKind = iota + 1
	// SpatialModel is a 3-D transfer function registered at a site location.
	SpatialModel
)

func (k ModelKind) String() string {
	switch k {
	case RegionModel:
		return "region"
	case SpatialModel:
		return "spatial"
	default:
		return "unknown"
	}
}

// ModelRef is a resolved model identifier.
type ModelRef struct {
	Kind ModelKind
	ID   string
}

// RegionRef references a region-keyed model.
func RegionRef(id string) ModelRef { return ModelRef{Kind: RegionModel, ID: id} }

// SpatialRef references a spatially-registered model.
func SpatialRef(id string) ModelRef { return ModelRef{Kind: SpatialModel, ID: id} }

// ParseModelRef resolves a user-supplied identifier into its namespace.
func ParseModelRef(id string) ModelRef {
	if strings.HasPrefix(id, SpatialPrefix) {
		return SpatialRef(id)
	}
	return RegionRef(id)
}

// ExColumn is the name of the northward E-field column for a model.
func (m ModelRef) ExColumn() string { return m.ID + "_Ex" }

// EyColumn is the name of the eastward E-field column for a model.
func (m ModelRef) EyColumn() string { return m.ID + "_Ey" }

// NormalizeRegionName replaces separator characters with underscores so the
// name is usable as a model identifier and column-name fragment.
func NormalizeRegionName(name string) string {
	name = strings.TrimSpace(name)
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '/' || r == '.' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, name)
}

package domain

import (
	"context"
	"time"
)

// RegionLookup maps a location to a raw physiographic region name.
type RegionLookup interface {
	Lookup(lat, lon float64) (string, bool)
}

// SpatialIndex answers quality and distance queries over a model catalog.
type SpatialIndex interface {
	// QualitySubset returns a view holding entries with quality >= minQuality.
	QualitySubset(minQuality int) SpatialIndex
	// ByDistance returns identifiers within maxDistanceKm of the point.
	ByDistance(lat, lon, maxDistanceKm float64) []string
	// Locate returns the resource locator for an identifier.
	Locate(id string) (string, bool)
	// Len returns the number of entries in the view.
	Len() int
}

// CatalogLoader loads a spatial model catalog from a path.
type CatalogLoader interface {
	Load(ctx context.Context, path string) (SpatialIndex, error)
}

// RegionEvaluator applies a region-keyed transfer function.
type RegionEvaluator interface {
	ApplyRegion(ctx context.Context, bx, by []float64, interval time.Duration, model string) (ex, ey []float64, err error)
}

// SpatialEvaluator applies the transfer function stored at locator.
type SpatialEvaluator interface {
	ApplySpatial(ctx context.Context, bx, by []float64, interval time.Duration, locator string) (ex, ey []float64, err error)
}

// ClassifyRegion looks up the region at a location and normalizes its name.
func ClassifyRegion(lookup RegionLookup, lat, lon float64) (string, bool) {
	if lookup == nil {
		return "", false
	}
	name, ok := lookup.Lookup(lat, lon)
	if !ok || name == "" {
		return "", false
	}
	return NormalizeRegionName(name), true
}

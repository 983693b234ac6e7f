// Package spatial indexes spatially-registered transfer-function models by
// site location and data-quality rating.
package spatial

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/couchcryptid/geoderive/internal/domain"
)

// Quality ratings range from 0 (unrated) to 5 (best).
const (
	MinQuality = 0
	MaxQuality = 5
)

// Entry is one catalogued model.
type Entry struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Quality   int     `json:"quality"`
	// Locator is opaque to the index; evaluators use it to find the model data.
	Locator string `json:"locator"`
}

// Index is an immutable set of entries.
type Index struct {
	entries []Entry // sorted by ID
	byID    map[string]int
}

var _ domain.SpatialIndex = (*Index)(nil)

// NewIndex builds an index. Identifiers must be unique.
func NewIndex(entries []Entry) (*Index, error) {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int { return cmp.Compare(a.ID, b.ID) })

	byID := make(map[string]int, len(sorted))
	for i, e := range sorted {
		if e.ID == "" {
			return nil, fmt.Errorf("entry %d: empty identifier", i)
		}
		if _, dup := byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate identifier %q", e.ID)
		}
		byID[e.ID] = i
	}
	return &Index{entries: sorted, byID: byID}, nil
}

// Len returns the number of entries.
func (ix *Index) Len() int { return len(ix.entries) }

// Entries returns a copy of the entries sorted by identifier.
func (ix *Index) Entries() []Entry { return slices.Clone(ix.entries) }

// ClampQuality limits q to the rating scale.
func ClampQuality(q int) int {
	return min(max(q, MinQuality), MaxQuality)
}

// QualitySubset returns a new index holding entries rated at least minQuality.
// Out-of-range thresholds are clamped.
func (ix *Index) QualitySubset(minQuality int) domain.SpatialIndex {
	q := ClampQuality(minQuality)
	out := &Index{byID: make(map[string]int)}
	for _, e := range ix.entries {
		if e.Quality >= q {
			out.byID[e.ID] = len(out.entries)
			out.entries = append(out.entries, e)
		}
	}
	return out
}

// ByDistance returns identifiers of entries whose great-circle distance from
// (lat, lon) is at most maxDistanceKm, nearest first with ties broken by
// identifier.
func (ix *Index) ByDistance(lat, lon, maxDistanceKm float64) []string {
	if maxDistanceKm <= 0 {
		return []string{}
	}

	type hit struct {
		id string
		km float64
	}
	origin := orb.Point{lon, lat}
	var hits []hit
	for _, e := range ix.entries {
		km := DistanceKm(origin, orb.Point{e.Longitude, e.Latitude})
		if km <= maxDistanceKm {
			hits = append(hits, hit{id: e.ID, km: km})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.km, b.km); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids
}

// Locate returns the locator registered for id.
func (ix *Index) Locate(id string) (string, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return "", false
	}
	return ix.entries[i].Locator, true
}

// DistanceKm is the haversine distance between two lon/lat points in km.
func DistanceKm(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b) / 1000
}

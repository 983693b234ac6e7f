package domain

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
)

// ThreeDRequest asks for spatial models within a distance of the station.
type ThreeDRequest struct {
	MaxDistanceKm float64
	CatalogPath   string
}

// SelectRequest holds the user criteria for model selection.
type SelectRequest struct {
	Include    []string
	Exclude    []string
	Want1D     bool
	ThreeD     *ThreeDRequest
	MinQuality int

	// ExcludeAutoSelected applies Exclude to region and spatial models that
	// were added automatically. When false, auto-selected models are kept
	// even if they appear in Exclude.
	ExcludeAutoSelected bool
}

// Selection is the outcome of model selection.
type Selection struct {
	// Models is sorted by identifier.
	Models []ModelRef
	// Catalog is the full spatial catalog when one was loaded, otherwise nil.
	Catalog SpatialIndex
}

// IDs returns the selected identifiers in application order.
func (s Selection) IDs() []string {
	ids := make([]string, len(s.Models))
	for i, m := range s.Models {
		ids[i] = m.ID
	}
	return ids
}

// Selector combines region classification, spatial lookup and the user's
// include/exclude sets.
type Selector struct {
	regions  RegionLookup
	catalogs CatalogLoader
	logger   *slog.Logger
}

// NewSelector creates a Selector. Either collaborator may be nil when the
// corresponding selection mode is never requested.
func NewSelector(regions RegionLookup, catalogs CatalogLoader, logger *slog.Logger) *Selector {
	return &Selector{regions: regions, catalogs: catalogs, logger: logger}
}

// Select computes the set of models to evaluate for a station.
func (s *Selector) Select(ctx context.Context, header Header, req SelectRequest) (Selection, error) {
	excluded := make(map[string]struct{}, len(req.Exclude))
	for _, id := range req.Exclude {
		excluded[id] = struct{}{}
	}
	isExcluded := func(id string) bool {
		_, ok := excluded[id]
		return ok
	}

	set := make(map[string]ModelRef)
	for _, id := range req.Include {
		if id == "" || isExcluded(id) {
			continue
		}
		set[id] = ParseModelRef(id)
	}

	addAuto := func(ref ModelRef) {
		if req.ExcludeAutoSelected && isExcluded(ref.ID) {
			s.logger.Debug("auto-selected model excluded", "model", ref.ID)
			return
		}
		set[ref.ID] = ref
	}

	lat, lon := header.GeodeticLatitude, header.GeodeticLongitude

	if req.Want1D {
		if region, ok := ClassifyRegion(s.regions, lat, lon); ok {
			s.logger.Info("region model selected", "model", region, "lat", lat, "lon", lon)
			addAuto(RegionRef(region))
		} else {
			s.logger.Info("location is outside every physiographic region", "lat", lat, "lon", lon)
		}
	}

	var catalog SpatialIndex
	if req.ThreeD != nil {
		if s.catalogs == nil {
			return Selection{}, &CatalogLoadError{Path: req.ThreeD.CatalogPath, Err: errors.New("no catalog loader configured")}
		}
		idx, err := s.catalogs.Load(ctx, req.ThreeD.CatalogPath)
		if err != nil {
			var cle *CatalogLoadError
			if errors.As(err, &cle) {
				return Selection{}, err
			}
			return Selection{}, &CatalogLoadError{Path: req.ThreeD.CatalogPath, Err: err}
		}
		catalog = idx
		nearby := idx.QualitySubset(req.MinQuality).ByDistance(lat, lon, req.ThreeD.MaxDistanceKm)
		s.logger.Info("spatial models selected",
			"count", len(nearby),
			"max_distance_km", req.ThreeD.MaxDistanceKm,
			"min_quality", req.MinQuality,
		)
		for _, id := range nearby {
			addAuto(SpatialRef(id))
		}
	}

	models := make([]ModelRef, 0, len(set))
	for _, ref := range set {
		models = append(models, ref)
	}
	SortModels(models)

	return Selection{Models: models, Catalog: catalog}, nil
}

// SortModels orders models lexicographically by identifier.
func SortModels(models []ModelRef) {
	slices.SortFunc(models, func(a, b ModelRef) int { return cmp.Compare(a.ID, b.ID) })
}

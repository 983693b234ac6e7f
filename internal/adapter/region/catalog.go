// Package region resolves physiographic regions and evaluates the 1-D
// layered-earth models keyed by them.
package region

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

type area struct {
	name  string
	bound orb.Bound
	geom  orb.Geometry
}

// Catalog is a set of named region polygons. Lookups return the first
// feature, in file order, that contains the point.
type Catalog struct {
	areas []area
}

// LoadCatalog reads a GeoJSON FeatureCollection. Each Polygon or MultiPolygon
// feature is named by its property prop; other features are ignored.
func LoadCatalog(path, prop string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region catalog: %w", err)
	}
	return ParseCatalog(data, prop)
}

// ParseCatalog decodes a GeoJSON FeatureCollection.
func ParseCatalog(data []byte, prop string) (*Catalog, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode region catalog: %w", err)
	}

	c := &Catalog{}
	for i, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		name, ok := f.Properties[prop].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("decode region catalog: feature %d has no %q property", i, prop)
		}
		c.areas = append(c.areas, area{name: name, bound: f.Geometry.Bound(), geom: f.Geometry})
	}
	return c, nil
}

// Len returns the number of regions.
func (c *Catalog) Len() int { return len(c.areas) }

// Lookup returns the name of the first region containing the location.
func (c *Catalog) Lookup(lat, lon float64) (string, bool) {
	pt := orb.Point{lon, lat}
	for _, a := range c.areas {
		if !a.bound.Contains(pt) {
			continue
		}
		switch g := a.geom.(type) {
		case orb.Polygon:
			if planar.PolygonContains(g, pt) {
				return a.name, true
			}
		case orb.MultiPolygon:
			if planar.MultiPolygonContains(g, pt) {
				return a.name, true
			}
		}
	}
	return "", false
}

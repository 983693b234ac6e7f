// Package geodesy converts between WGS-84 geodetic and Earth-centred,
// Earth-fixed coordinates.
package geodesy

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// LLH is a geodetic position: latitude and longitude in degrees, height in
// meters above the ellipsoid.
type LLH struct {
	LatDeg, LonDeg, HeightM float64
}

// Position is an ECEF position in meters.
type Position struct {
	X, Y, Z float64
}

// FromLLH converts geodetic coordinates to ECEF.
func FromLLH(latDeg, lonDeg, heightM float64) Position {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Position{
		X: (n + heightM) * cosLat * math.Cos(lon),
		Y: (n + heightM) * cosLat * math.Sin(lon),
		Z: (n*(1-wgs84E2) + heightM) * sinLat,
	}
}

// LLH converts to geodetic coordinates with Bowring's iteration.
func (p Position) LLH() LLH {
	lon := math.Atan2(p.Y, p.X)
	r := math.Hypot(p.X, p.Y)

	lat := math.Atan2(p.Z, r*(1-wgs84E2))
	for i := 0; i < 6; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(p.Z+wgs84E2*n*sinLat, r)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var h float64
	if math.Abs(cosLat) > 1e-10 {
		h = r/cosLat - n
	} else {
		h = math.Abs(p.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return LLH{
		LatDeg:  lat * 180.0 / math.Pi,
		LonDeg:  lon * 180.0 / math.Pi,
		HeightM: h,
	}
}

// Lerp returns p + t*(q - p).
func (p Position) Lerp(q Position, t float64) Position {
	return Position{
		X: p.X + t*(q.X-p.X),
		Y: p.Y + t*(q.Y-p.Y),
		Z: p.Z + t*(q.Z-p.Z),
	}
}

// Distance returns the straight-line distance to q in meters.
func (p Position) Distance(q Position) float64 {
	dx, dy, dz := q.X-p.X, q.Y-p.Y, q.Z-p.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

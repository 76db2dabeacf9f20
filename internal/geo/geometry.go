// README: Pure spatial math used by work-area filtering and candidate ranking.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"evconnect/internal/types"
)

const (
	EarthRadiusMiles = 3958.8
	MetersPerMile    = 1609.344
	// MilesPerMeter is the conversion applied to routing-provider distances.
	MilesPerMeter = 0.000621371
)

// DirectDistance returns the great-circle distance in miles between a and b.
// Invalid coordinates yield +Inf so the pair never passes a distance bound.
func DirectDistance(a, b types.Point) float64 {
	if !a.Valid() || !b.Valid() {
		return math.Inf(1)
	}
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degreesToRadians(a.Lat))*math.Cos(degreesToRadians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMiles * c
}

// PointInPolygon runs a ray-casting parity test in the (lng, lat) plane.
// The ring closes implicitly; points on an edge count as inside.
func PointInPolygon(p types.Point, vertices []types.Point) bool {
	if !p.Valid() || len(vertices) < 3 {
		return false
	}
	ring := make(orb.Ring, 0, len(vertices))
	for _, v := range vertices {
		if !v.Valid() {
			return false
		}
		ring = append(ring, orb.Point{v.Lng, v.Lat})
	}
	return planar.PolygonContains(orb.Polygon{ring}, orb.Point{p.Lng, p.Lat})
}

// PointInCircle reports whether p lies within radiusMeters of center.
func PointInCircle(p, center types.Point, radiusMeters float64) bool {
	if radiusMeters <= 0 {
		return false
	}
	return DirectDistance(p, center) <= radiusMeters/MetersPerMile
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

package geo

import (
	"math"

	"evconnect/internal/types"
)

// WorkArea is a declared service territory. The set of variants is closed:
// Circle and Polygon are the only implementations.
type WorkArea interface {
	// Valid reports whether the shape can take part in containment checks.
	Valid() bool
	// Contains is false for invalid shapes.
	Contains(p types.Point) bool
	// Bounds returns the south-west and north-east corners of the shape.
	Bounds() (sw, ne types.Point)
	isWorkArea()
}

type Circle struct {
	Name         string
	Center       types.Point
	RadiusMeters float64
}

type Polygon struct {
	Name     string
	Vertices []types.Point
}

func (Circle) isWorkArea()  {}
func (Polygon) isWorkArea() {}

func (c Circle) Valid() bool {
	return c.Center.Valid() && c.RadiusMeters > 0
}

func (c Circle) Contains(p types.Point) bool {
	if !c.Valid() {
		return false
	}
	return PointInCircle(p, c.Center, c.RadiusMeters)
}

func (c Circle) Bounds() (types.Point, types.Point) {
	latDeg := (c.RadiusMeters / MetersPerMile) / EarthRadiusMiles * 180 / math.Pi
	lngDeg := 180.0
	if cos := math.Cos(degreesToRadians(c.Center.Lat)); cos > 1e-9 {
		lngDeg = math.Min(180, latDeg/cos)
	}
	sw := types.Point{Lat: c.Center.Lat - latDeg, Lng: c.Center.Lng - lngDeg}
	ne := types.Point{Lat: c.Center.Lat + latDeg, Lng: c.Center.Lng + lngDeg}
	// Boxes that wrap the antimeridian or a pole widen to every longitude.
	if sw.Lng < -180 || ne.Lng > 180 || sw.Lat < -90 || ne.Lat > 90 {
		sw.Lng, ne.Lng = -180, 180
	}
	sw.Lat = math.Max(sw.Lat, -90)
	ne.Lat = math.Min(ne.Lat, 90)
	return sw, ne
}

func (p Polygon) Valid() bool {
	if len(p.Vertices) < 3 {
		return false
	}
	for _, v := range p.Vertices {
		if !v.Valid() {
			return false
		}
	}
	return true
}

func (p Polygon) Contains(pt types.Point) bool {
	if !p.Valid() {
		return false
	}
	return PointInPolygon(pt, p.Vertices)
}

func (p Polygon) Bounds() (types.Point, types.Point) {
	if len(p.Vertices) == 0 {
		return types.Point{}, types.Point{}
	}
	sw, ne := p.Vertices[0], p.Vertices[0]
	for _, v := range p.Vertices[1:] {
		sw.Lat = math.Min(sw.Lat, v.Lat)
		sw.Lng = math.Min(sw.Lng, v.Lng)
		ne.Lat = math.Max(ne.Lat, v.Lat)
		ne.Lng = math.Max(ne.Lng, v.Lng)
	}
	return sw, ne
}

// AnyContains reports whether at least one valid area contains p.
func AnyContains(areas []WorkArea, p types.Point) bool {
	for _, a := range areas {
		if a.Contains(p) {
			return true
		}
	}
	return false
}

// HasPolygon reports whether any declared area is a polygon, valid or not.
func HasPolygon(areas []WorkArea) bool {
	for _, a := range areas {
		if _, ok := a.(Polygon); ok {
			return true
		}
	}
	return false
}

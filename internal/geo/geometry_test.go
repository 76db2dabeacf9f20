package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"evconnect/internal/types"
)

func TestDirectDistance_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantMiles float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: 25.033, Lng: 121.565},
			b:         types.Point{Lat: 25.033, Lng: 121.565},
			wantMiles: 0,
			tolerance: 0.0001,
		},
		{
			name:      "one degree of longitude at the equator",
			a:         types.Point{Lat: 0, Lng: 0},
			b:         types.Point{Lat: 0, Lng: 1},
			wantMiles: 69.17,
			tolerance: 0.01,
		},
		{
			name:      "New York to Los Angeles",
			a:         types.Point{Lat: 40.7128, Lng: -74.0060},
			b:         types.Point{Lat: 34.0522, Lng: -118.2437},
			wantMiles: 2445.6,
			tolerance: 5,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DirectDistance(tc.a, tc.b)
			assert.InDelta(t, tc.wantMiles, got, tc.tolerance)
			assert.InDelta(t, got, DirectDistance(tc.b, tc.a), 1e-9, "distance must be symmetric")
		})
	}
}

func TestDirectDistance_InvalidCoordinates(t *testing.T) {
	assert.True(t, math.IsInf(DirectDistance(types.Point{Lat: 91, Lng: 0}, types.Point{}), 1))
	assert.True(t, math.IsInf(DirectDistance(types.Point{}, types.Point{Lat: 0, Lng: -181}), 1))
}

func TestPointInPolygon_Square(t *testing.T) {
	square := []types.Point{
		{Lat: -1, Lng: -1},
		{Lat: -1, Lng: 1},
		{Lat: 1, Lng: 1},
		{Lat: 1, Lng: -1},
	}
	assert.True(t, PointInPolygon(types.Point{Lat: 0, Lng: 0}, square))
	assert.False(t, PointInPolygon(types.Point{Lat: 2, Lng: 2}, square))
	assert.False(t, PointInPolygon(types.Point{Lat: 0, Lng: 1.5}, square))
}

func TestPointInPolygon_Concave(t *testing.T) {
	// U shape opening to the north.
	u := []types.Point{
		{Lat: 0, Lng: 0}, {Lat: 0, Lng: 3}, {Lat: 3, Lng: 3}, {Lat: 3, Lng: 2},
		{Lat: 1, Lng: 2}, {Lat: 1, Lng: 1}, {Lat: 3, Lng: 1}, {Lat: 3, Lng: 0},
	}
	assert.True(t, PointInPolygon(types.Point{Lat: 2, Lng: 0.5}, u))
	assert.False(t, PointInPolygon(types.Point{Lat: 2, Lng: 1.5}, u), "notch is outside")
}

func TestPointInPolygon_RejectsDegenerateInput(t *testing.T) {
	assert.False(t, PointInPolygon(types.Point{}, []types.Point{{Lat: 1, Lng: 1}, {Lat: -1, Lng: 1}}))
	assert.False(t, PointInPolygon(types.Point{}, []types.Point{{Lat: 95, Lng: 1}, {Lat: -1, Lng: 1}, {Lat: -1, Lng: -1}}))
	assert.False(t, PointInPolygon(types.Point{Lat: 100}, []types.Point{{Lat: 1, Lng: 1}, {Lat: -1, Lng: 1}, {Lat: -1, Lng: -1}}))
}

func TestPointInCircle(t *testing.T) {
	center := types.Point{Lat: 10, Lng: 10}
	// ~0.31 miles east of the center.
	near := types.Point{Lat: 10, Lng: 10.005}
	assert.True(t, PointInCircle(near, center, MetersPerMile))
	assert.False(t, PointInCircle(near, center, 400))
	assert.False(t, PointInCircle(near, center, 0))
	assert.False(t, PointInCircle(near, types.Point{Lat: -95, Lng: 10}, MetersPerMile))
}

func TestWorkArea_Validity(t *testing.T) {
	tests := []struct {
		name  string
		area  WorkArea
		valid bool
	}{
		{"circle", Circle{Center: types.Point{Lat: 1, Lng: 1}, RadiusMeters: 10}, true},
		{"circle missing radius", Circle{Center: types.Point{Lat: 1, Lng: 1}}, false},
		{"circle bad center", Circle{Center: types.Point{Lat: 1, Lng: 200}, RadiusMeters: 10}, false},
		{"triangle", Polygon{Vertices: []types.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 0}}}, true},
		{"two vertices", Polygon{Vertices: []types.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, tc.area.Valid())
			if !tc.valid {
				assert.False(t, tc.area.Contains(types.Point{Lat: 0.1, Lng: 0.1}))
			}
		})
	}
}

func TestCircleBounds_CoverRadius(t *testing.T) {
	c := Circle{Center: types.Point{Lat: 45, Lng: -100}, RadiusMeters: 5 * MetersPerMile}
	sw, ne := c.Bounds()
	edge := types.Point{Lat: 45, Lng: ne.Lng}
	assert.GreaterOrEqual(t, DirectDistance(c.Center, edge), 4.99)
	assert.Less(t, sw.Lat, 45.0)
	assert.Greater(t, ne.Lat, 45.0)
}

func TestSortByDistance_Stable(t *testing.T) {
	type item struct {
		id   string
		dist float64
	}
	items := []item{{"a", 3}, {"b", 1}, {"c", 3}, {"d", 1}}
	SortByDistance(items, func(i item) float64 { return i.dist })
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
}

package geo

import (
	"math"
	"strings"
	"testing"

	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sanFrancisco = core.Coordinate{Lat: 37.7749, Lng: -122.4194}

func TestDisplace_NorthMovesLatitudeOnly(t *testing.T) {
	got := Displace(sanFrancisco, 0, 100)

	assert.Equal(t, sanFrancisco.Lng, got.Lng)
	assert.InDelta(t, 100.0/EarthRadius*180/math.Pi, got.Lat-sanFrancisco.Lat, 1e-12)
}

func TestDisplace_EastScalesWithLatitude(t *testing.T) {
	equator := Displace(core.Coordinate{}, 100, 0)
	north := Displace(sanFrancisco, 100, 0)

	assert.Equal(t, 0.0, equator.Lat)
	assert.Greater(t, north.Lng-sanFrancisco.Lng, equator.Lng, "a meter spans more longitude away from the equator")
}

func TestDisplace_RoundTripsThroughDistance(t *testing.T) {
	for _, d := range []float64{1, 3, 5, 15, 75, 150, 500} {
		moved := Displace(sanFrancisco, d, 0)
		assert.InDelta(t, d, Distance(sanFrancisco, moved), d*1e-3, "east %v m", d)

		moved = Displace(sanFrancisco, 0, -d)
		assert.InDelta(t, d, Distance(sanFrancisco, moved), d*1e-3, "south %v m", d)
	}
}

func TestDisplace_PanicsOnNonFinite(t *testing.T) {
	assert.Panics(t, func() { Displace(sanFrancisco, math.NaN(), 0) })
	assert.Panics(t, func() { Displace(sanFrancisco, 0, math.Inf(1)) })
	assert.Panics(t, func() { Displace(core.Coordinate{Lat: math.NaN()}, 0, 0) })
}

func TestDistance_Identity(t *testing.T) {
	assert.Equal(t, 0.0, Distance(sanFrancisco, sanFrancisco))
	assert.Equal(t, 0.0, Distance(core.Coordinate{}, core.Coordinate{}))
}

func TestDistance_Symmetric(t *testing.T) {
	points := []core.Coordinate{
		sanFrancisco,
		{Lat: 0, Lng: 0},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 51.5074, Lng: -0.1278},
		Displace(sanFrancisco, 12, -7),
	}
	for _, a := range points {
		for _, b := range points {
			assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-6)
		}
	}
}

func TestDistance_KnownValue(t *testing.T) {
	// one degree of latitude on a 6371 km sphere
	d := Distance(core.Coordinate{Lat: 0, Lng: 0}, core.Coordinate{Lat: 1, Lng: 0})
	assert.InDelta(t, 111194.93, d, 0.01)
}

func TestValidCoordinate(t *testing.T) {
	assert.True(t, ValidCoordinate(sanFrancisco))
	assert.False(t, ValidCoordinate(core.Coordinate{Lat: 91}))
	assert.False(t, ValidCoordinate(core.Coordinate{Lng: -181}))
	assert.False(t, ValidCoordinate(core.Coordinate{Lat: math.NaN()}))
	assert.False(t, ValidCoordinate(core.Coordinate{Lng: math.Inf(-1)}))
}

func TestToWebMercator_Origin(t *testing.T) {
	x, y := ToWebMercator(core.Coordinate{})
	assert.InDelta(t, 0, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)
}

func TestToWebMercator_WestIsNegative(t *testing.T) {
	x, y := ToWebMercator(sanFrancisco)
	assert.Less(t, x, 0.0)
	assert.Greater(t, y, 0.0)
}

func TestZoneWKT_ClosedRing(t *testing.T) {
	bounds := [4]core.Coordinate{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
		{Lat: 1, Lng: 1},
		{Lat: 1, Lng: 0},
	}

	wkt, err := ZoneWKT(bounds)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(wkt, "POLYGON(("), wkt)
	assert.Equal(t, strings.Count(wkt, ",")+1, 5, "ring should have 5 vertices, got %s", wkt)
}

func TestZonePolygon_Degenerate(t *testing.T) {
	p := core.Coordinate{Lat: 1, Lng: 1}
	_, err := ZonePolygon([4]core.Coordinate{p, p, p, p})
	assert.Error(t, err)

	wkt, err := ZoneWKT([4]core.Coordinate{p, p, p, p})
	assert.Error(t, err)
	assert.Empty(t, wkt)
}

func TestToWebMercator_KnownPoint(t *testing.T) {
	// 180 degrees east on the equator is half the mercator world width.
	x, y := ToWebMercator(core.Coordinate{Lat: 0, Lng: 180})
	assert.InDelta(t, 20037508.34, x, 1)
	assert.InDelta(t, 0, y, 1e-6)
}

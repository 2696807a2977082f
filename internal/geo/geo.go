// Package geo converts between local metric offsets and WGS84 coordinates.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6371000.0

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ValidCoordinate reports whether c is finite and inside the WGS84 range.
func ValidCoordinate(c core.Coordinate) bool {
	if !finite(c.Lat) || !finite(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// Displace moves origin by dx meters east and dy meters north using the
// small-angle approximation. Non-finite input is a caller bug and panics.
func Displace(origin core.Coordinate, dx, dy float64) core.Coordinate {
	if !finite(origin.Lat) || !finite(origin.Lng) || !finite(dx) || !finite(dy) {
		panic(fmt.Sprintf("geo: non-finite displacement from %+v by (%v, %v)", origin, dx, dy))
	}
	dLat := toDeg(dy / EarthRadius)
	dLng := toDeg(dx / (EarthRadius * math.Cos(toRad(origin.Lat))))
	return core.Coordinate{
		Lat: origin.Lat + dLat,
		Lng: origin.Lng + dLng,
	}
}

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b core.Coordinate) float64 {
	phi1 := toRad(a.Lat)
	phi2 := toRad(b.Lat)
	dPhi := toRad(b.Lat - a.Lat)
	dLambda := toRad(b.Lng - a.Lng)

	x := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(x), math.Sqrt(1-x))

	return EarthRadius * c
}

var toWebMercator = wgs84.EPSG().Transform(4326, 3857)

// ToWebMercator projects c from EPSG:4326 into EPSG:3857 meters.
func ToWebMercator(c core.Coordinate) (x, y float64) {
	x, y, _ = toWebMercator(c.Lng, c.Lat, 0)
	return x, y
}

// ZonePolygon builds a closed lng/lat polygon from the four zone corners.
// Degenerate bounds fail geometry validation.
func ZonePolygon(bounds [4]core.Coordinate) (geom.Polygon, error) {
	flat := make([]float64, 0, 10)
	for _, c := range bounds {
		flat = append(flat, c.Lng, c.Lat)
	}
	// close the ring
	flat = append(flat, bounds[0].Lng, bounds[0].Lat)

	ring, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("zone ring: %w", err)
	}
	poly, err := geom.NewPolygon([]geom.LineString{ring})
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("zone polygon: %w", err)
	}
	return poly, nil
}

// ZoneWKT renders the zone bounds as a WKT polygon.
func ZoneWKT(bounds [4]core.Coordinate) (string, error) {
	poly, err := ZonePolygon(bounds)
	if err != nil {
		return "", err
	}
	return poly.AsText(), nil
}

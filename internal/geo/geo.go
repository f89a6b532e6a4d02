// Package geo holds the geometry primitives the pipeline is built on:
// great-circle distances, bounding boxes and their metric spans, and
// the EPSG:3857 projection used to anchor overlays on web maps.
package geo

import (
	"errors"
	"math"

	"github.com/golang/geo/s2"

	"github.com/nicoegiaian/heatfield/pkg/core"
)

// EarthRadiusKm is the mean Earth radius used for all great-circle math.
const EarthRadiusKm = 6371.0

// ErrInvalidCoordinates is returned when coordinates fall outside the
// valid latitude/longitude ranges.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// HaversineKm returns the great-circle distance between two points in
// kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// ValidCoordinate reports whether lat/lon are finite and inside the
// valid geographic ranges.
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// BoundsOf returns the tight bounding box of the points. ok is false
// for an empty sequence.
func BoundsOf(points core.Track) (b core.BoundingBox, ok bool) {
	if len(points) == 0 {
		return core.BoundingBox{}, false
	}
	b = core.BoundingBox{
		MinLat: points[0].Lat, MaxLat: points[0].Lat,
		MinLon: points[0].Lon, MaxLon: points[0].Lon,
	}
	for _, p := range points[1:] {
		if p.Lat < b.MinLat {
			b.MinLat = p.Lat
		}
		if p.Lat > b.MaxLat {
			b.MaxLat = p.Lat
		}
		if p.Lon < b.MinLon {
			b.MinLon = p.Lon
		}
		if p.Lon > b.MaxLon {
			b.MaxLon = p.Lon
		}
	}
	return b, true
}

// SpanKm returns the box's width and height in kilometers, measured as
// great circles through the box midpoint so width reflects the local
// meridian convergence.
func SpanKm(b core.BoundingBox) core.Extent {
	midLat, midLon := b.Center()
	return core.Extent{
		WidthKm:  HaversineKm(midLat, b.MinLon, midLat, b.MaxLon),
		HeightKm: HaversineKm(b.MinLat, midLon, b.MaxLat, midLon),
	}
}

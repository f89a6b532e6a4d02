package geo

import (
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/nicoegiaian/heatfield/pkg/core"
)

// LineString builds a lon/lat geometry from a point sequence. ok is
// false when fewer than two points are available, which cannot form a
// line.
func LineString(points core.Track) (geom.LineString, bool) {
	if len(points) < 2 {
		return geom.LineString{}, false
	}
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.Lon, p.Lat)
	}
	seq := geom.NewSequence(flat, geom.DimXY)
	return geom.NewLineString(seq), true
}

// LineStringWKT returns the segment polyline in WKT form, or "" when
// no line can be formed. Hosts use it to draw the route as a vector
// layer alongside the raster overlays.
func LineStringWKT(points core.Track) string {
	ls, ok := LineString(points)
	if !ok {
		return ""
	}
	return ls.AsText()
}

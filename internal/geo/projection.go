package geo

import (
	"github.com/wroge/wgs84"

	"github.com/nicoegiaian/heatfield/pkg/core"
)

// Project3857 converts a geographic coordinate to EPSG:3857 meters.
func Project3857(lat, lon float64) (x, y float64) {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ = f(lon, lat, 0)
	return x, y
}

// ProjectBounds converts a geographic bounding box to its EPSG:3857
// equivalent for hosts that anchor overlays in projected coordinates.
func ProjectBounds(b core.BoundingBox) core.ProjectedBounds {
	minX, minY := Project3857(b.MinLat, b.MinLon)
	maxX, maxY := Project3857(b.MaxLat, b.MaxLon)
	return core.ProjectedBounds{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

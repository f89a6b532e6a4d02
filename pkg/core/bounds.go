package core

// BoundingBox is a geographic extent in EPSG:4326 degrees.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// LatSpan returns the north-south extent in degrees.
func (b BoundingBox) LatSpan() float64 { return b.MaxLat - b.MinLat }

// LonSpan returns the east-west extent in degrees.
func (b BoundingBox) LonSpan() float64 { return b.MaxLon - b.MinLon }

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// Pad returns a copy expanded by margin degrees on every side.
func (b BoundingBox) Pad(margin float64) BoundingBox {
	return BoundingBox{
		MinLat: b.MinLat - margin,
		MinLon: b.MinLon - margin,
		MaxLat: b.MaxLat + margin,
		MaxLon: b.MaxLon + margin,
	}
}

// Contains reports whether the point lies inside the box, borders included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// ProjectedBounds is the same extent projected to EPSG:3857 meters,
// the frame web map overlays are anchored in.
type ProjectedBounds struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

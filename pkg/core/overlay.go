package core

// OverlayKind distinguishes the raster layers a segment can carry.
type OverlayKind string

const (
	OverlayHeatmap OverlayKind = "heatmap"
	OverlayPath    OverlayKind = "path"
)

// Overlay is a rendered raster ready for display on the map, anchored
// to Bounds (and to Projected for hosts working in EPSG:3857).
type Overlay struct {
	Kind      OverlayKind     `json:"kind"`
	PNG       []byte          `json:"-"`
	DataURI   string          `json:"dataUri"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Bounds    BoundingBox     `json:"bounds"`
	Projected ProjectedBounds `json:"projected"`
	Params    RenderParams    `json:"params"`
}

// OverlayUpdate is delivered to the host whenever a segment's raster
// changes. A nil Overlay clears the layer, which happens when the
// selection has no points to render.
type OverlayUpdate struct {
	SessionID    string      `json:"sessionId"`
	SegmentIndex int         `json:"segmentIndex"`
	Kind         OverlayKind `json:"kind"`
	Overlay      *Overlay    `json:"overlay,omitempty"`
}

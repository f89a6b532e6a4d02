package raster

import (
	"math"

	"github.com/fogleman/gg"

	"github.com/nicoegiaian/heatfield/internal/geo"
	"github.com/nicoegiaian/heatfield/pkg/core"
)

// Path renders the track outline as a stroked polyline on the same grid the
// heatmap uses, so both overlays anchor to identical bounds.
func (b *Builder) Path(points core.Track, bounds core.BoundingBox, params core.RenderParams) (*core.Overlay, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	params = params.Clamped()

	w, h := gridSize(bounds, params.ResolutionPx)
	latSpan := math.Max(bounds.LatSpan(), spanEpsilon)
	lonSpan := math.Max(bounds.LonSpan(), spanEpsilon)

	dc := gg.NewContext(w, h)
	dc.SetRGBA(0.15, 0.35, 0.95, 0.85)
	dc.SetLineWidth(b.strokeWidth)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	for i, p := range points {
		px := (p.Lon - bounds.MinLon) / lonSpan * float64(w-1)
		py := float64(h-1) - (p.Lat-bounds.MinLat)/latSpan*float64(h-1)
		if i == 0 {
			dc.MoveTo(px, py)
		} else {
			dc.LineTo(px, py)
		}
	}
	dc.Stroke()

	data, err := encodePNG(dc.Image())
	if err != nil {
		return nil, err
	}

	b.logger.Debug().
		Int("width", w).
		Int("height", h).
		Int("points", len(points)).
		Msg("Rendered path overlay")

	return &core.Overlay{
		Kind:      core.OverlayPath,
		PNG:       data,
		DataURI:   dataURI(data),
		Width:     w,
		Height:    h,
		Bounds:    bounds,
		Projected: geo.ProjectBounds(bounds),
		Params:    params,
	}, nil
}

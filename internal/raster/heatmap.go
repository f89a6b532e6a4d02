// Package raster renders track density heatmaps and path outlines as
// georeferenced image overlays.
package raster

import (
	"errors"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/nicoegiaian/heatfield/internal/geo"
	"github.com/nicoegiaian/heatfield/pkg/core"
)

// ErrNoPoints is returned when a build is invoked for an empty point set.
// Callers are expected to clear the overlay instead of rendering.
var ErrNoPoints = errors.New("raster: no points to render")

const (
	minGridHeight = 10
	// spanEpsilon keeps degenerate bounds from dividing by zero.
	spanEpsilon = 1e-9
	// ceilingSampleLimit bounds the number of cells sorted for the
	// percentile ceiling estimate.
	ceilingSampleLimit = 15000
)

// Builder rasterizes point sets into display overlays.
type Builder struct {
	logger      zerolog.Logger
	strokeWidth float64
}

// NewBuilder creates a builder. strokeWidth only affects path overlays.
func NewBuilder(logger zerolog.Logger, strokeWidth float64) *Builder {
	return &Builder{logger: logger, strokeWidth: strokeWidth}
}

// Heatmap renders the density overlay for the given points anchored to
// bounds. Params are clamped to their documented ranges first. The pipeline
// is: bin to a grid, separable Gaussian blur, percentile normalization,
// gamma correction, then threshold and color mapping.
func (b *Builder) Heatmap(points core.Track, bounds core.BoundingBox, params core.RenderParams) (*core.Overlay, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	params = params.Clamped()

	w, h := gridSize(bounds, params.ResolutionPx)
	grid := binPoints(points, bounds, w, h)
	grid = blur(grid, w, h, params.Sigma)
	normalizeAndGamma(grid, params.Gamma)

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	opaque := 0
	for i, v := range grid {
		c, ok := shade(v, params.Threshold)
		if !ok {
			continue
		}
		off := i * 4
		img.Pix[off+0] = c.R
		img.Pix[off+1] = c.G
		img.Pix[off+2] = c.B
		img.Pix[off+3] = c.A
		opaque++
	}

	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	b.logger.Debug().
		Int("width", w).
		Int("height", h).
		Int("points", len(points)).
		Int("opaquePixels", opaque).
		Msg("Rendered heatmap overlay")

	return &core.Overlay{
		Kind:      core.OverlayHeatmap,
		PNG:       data,
		DataURI:   dataURI(data),
		Width:     w,
		Height:    h,
		Bounds:    bounds,
		Projected: geo.ProjectBounds(bounds),
		Params:    params,
	}, nil
}

// gridSize derives the raster dimensions from the bounds' aspect ratio at
// the requested horizontal resolution.
func gridSize(bounds core.BoundingBox, resolutionPx int) (int, int) {
	latSpan := math.Max(bounds.LatSpan(), spanEpsilon)
	lonSpan := math.Max(bounds.LonSpan(), spanEpsilon)

	w := resolutionPx
	h := int(math.Round(float64(w) * latSpan / lonSpan))
	if h < minGridHeight {
		h = minGridHeight
	}
	return w, h
}

// binPoints accumulates point counts into a row-major grid with north at row
// zero. Points landing outside the grid after rounding are discarded.
func binPoints(points core.Track, bounds core.BoundingBox, w, h int) []float64 {
	latSpan := math.Max(bounds.LatSpan(), spanEpsilon)
	lonSpan := math.Max(bounds.LonSpan(), spanEpsilon)

	grid := make([]float64, w*h)
	for _, p := range points {
		fx := (p.Lon - bounds.MinLon) / lonSpan
		fy := (p.Lat - bounds.MinLat) / latSpan
		x := int(math.Round(fx * float64(w-1)))
		y := int(math.Round(fy * float64(h-1)))
		if x < 0 || x >= w || y < 0 || y >= h {
			continue
		}
		grid[(h-1-y)*w+x]++
	}
	return grid
}

// gaussianKernel builds the normalized 1D kernel with radius round(3*sigma).
func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Round(3 * sigma))
	if radius < 1 {
		radius = 1
	}

	k := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range k {
		d := float64(i - radius)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// blur applies the kernel horizontally then vertically. Taps falling outside
// the grid clamp to the nearest valid cell rather than zero-padding, so a
// uniform grid passes through unchanged.
func blur(grid []float64, w, h int, sigma float64) []float64 {
	k := gaussianKernel(sigma)
	radius := len(k) / 2

	tmp := make([]float64, len(grid))
	for row := 0; row < h; row++ {
		base := row * w
		for x := 0; x < w; x++ {
			acc := 0.0
			for j, kv := range k {
				tap := x + j - radius
				if tap < 0 {
					tap = 0
				} else if tap >= w {
					tap = w - 1
				}
				acc += kv * grid[base+tap]
			}
			tmp[base+x] = acc
		}
	}

	out := make([]float64, len(grid))
	for row := 0; row < h; row++ {
		for x := 0; x < w; x++ {
			acc := 0.0
			for j, kv := range k {
				tap := row + j - radius
				if tap < 0 {
					tap = 0
				} else if tap >= h {
					tap = h - 1
				}
				acc += kv * tmp[tap*w+x]
			}
			out[row*w+x] = acc
		}
	}
	return out
}

// normalizeAndGamma scales the grid by the sampled 99th percentile ceiling,
// clamps to [0,1] and applies gamma correction in place. A grid with no mass
// zeroes out entirely.
func normalizeAndGamma(grid []float64, gamma float64) {
	ceiling := sampleCeiling(grid)
	if ceiling <= 0 {
		for i := range grid {
			grid[i] = 0
		}
		return
	}

	for i, v := range grid {
		v /= ceiling
		if v > 1 {
			v = 1
		} else if v < 0 {
			v = 0
		}
		grid[i] = math.Pow(v, gamma)
	}
}

// sampleCeiling estimates the 99th percentile by stride sampling at most
// ceilingSampleLimit cells, sorting and indexing directly. Cheaper than a
// full interpolated quantile and accurate enough for a display ceiling.
func sampleCeiling(grid []float64) float64 {
	stride := len(grid)/ceilingSampleLimit + 1
	sample := make([]float64, 0, len(grid)/stride+1)
	for i := 0; i < len(grid); i += stride {
		sample = append(sample, grid[i])
	}
	sort.Float64s(sample)
	return sample[int(0.99*float64(len(sample)-1))]
}

// shade maps one normalized cell value to its display color. ok is false for
// cells at or below the visibility threshold, which stay fully transparent.
func shade(v, threshold float64) (color.NRGBA, bool) {
	if v <= threshold {
		return color.NRGBA{}, false
	}

	t := (v - threshold) / (1 - threshold)
	c := heatColor(t)
	return color.NRGBA{
		R: uint8(math.Round(c.r)),
		G: uint8(math.Round(c.g)),
		B: uint8(math.Round(c.b)),
		A: uint8(math.Round(heatAlpha(t) * 255)),
	}, true
}

package core

import "math"

// Accepted knob ranges, shared with the host UI controls.
const (
	GammaMin = 0.3
	GammaMax = 1.8

	SigmaMin = 2.0
	SigmaMax = 30.0

	ThresholdMin = 0.0
	ThresholdMax = 0.2

	ResolutionMin = 400
	ResolutionMax = 1600

	GapMinutesMin = 1.0
	GapMinutesMax = 60.0
)

// RenderParams are the tunable raster-generation knobs. A session owns
// one set; rebuilds capture a snapshot of it per overlay.
type RenderParams struct {
	Gamma        float64 `json:"gamma"`
	Sigma        float64 `json:"sigma"`
	Threshold    float64 `json:"threshold"`
	ResolutionPx int     `json:"resolutionPx"`
}

// Clamped returns a copy with every knob forced into its accepted range.
func (p RenderParams) Clamped() RenderParams {
	return RenderParams{
		Gamma:        clampFloat(p.Gamma, GammaMin, GammaMax),
		Sigma:        clampFloat(p.Sigma, SigmaMin, SigmaMax),
		Threshold:    clampFloat(p.Threshold, ThresholdMin, ThresholdMax),
		ResolutionPx: clampInt(p.ResolutionPx, ResolutionMin, ResolutionMax),
	}
}

// ClampGapMinutes bounds an inactivity gap to its accepted range while
// letting +Inf through, which means "merge all segments".
func ClampGapMinutes(v float64) float64 {
	if math.IsInf(v, 1) {
		return v
	}
	if math.IsNaN(v) {
		return GapMinutesMin
	}
	return clampFloat(v, GapMinutesMin, GapMinutesMax)
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

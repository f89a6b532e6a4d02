package raster

type rgb struct {
	r, g, b float64
}

var (
	colorGreen  = rgb{0, 255, 0}
	colorYellow = rgb{255, 255, 0}
	colorOrange = rgb{255, 165, 0}
	colorRed    = rgb{255, 0, 0}
)

// Opacity rises linearly with intensity across the visible range.
const (
	alphaMin = 0.25
	alphaMax = 0.90
)

// heatColor maps a rescaled intensity in [0,1] onto the green-yellow-orange-red
// ramp with breakpoints at 50% and 80%.
func heatColor(t float64) rgb {
	switch {
	case t <= 0:
		return colorGreen
	case t <= 0.5:
		return lerp(colorGreen, colorYellow, t/0.5)
	case t <= 0.8:
		return lerp(colorYellow, colorOrange, (t-0.5)/0.3)
	case t < 1:
		return lerp(colorOrange, colorRed, (t-0.8)/0.2)
	default:
		return colorRed
	}
}

func heatAlpha(t float64) float64 {
	return alphaMin + t*(alphaMax-alphaMin)
}

func lerp(a, b rgb, u float64) rgb {
	return rgb{
		r: a.r + (b.r-a.r)*u,
		g: a.g + (b.g-a.g)*u,
		b: a.b + (b.b-a.b)*u,
	}
}

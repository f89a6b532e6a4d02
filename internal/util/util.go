// Package util provides display formatting helpers shared across the heatfield packages.
package util

import (
	"fmt"
	"math"
	"strings"

	"github.com/nicoegiaian/heatfield/pkg/core"
)

// Placeholder is shown for values that cannot be computed from the track.
const Placeholder = "–"

// FormatKm renders a distance in kilometres with two decimals.
func FormatKm(km float64) string {
	if !isFinite(km) {
		return Placeholder
	}
	return fmt.Sprintf("%.2f km", km)
}

// FormatSpeed renders a speed in km/h with one decimal.
func FormatSpeed(kmh float64) string {
	if !isFinite(kmh) {
		return Placeholder
	}
	return fmt.Sprintf("%.1f km/h", kmh)
}

// FormatDuration renders a duration in seconds as "1h 23m 45s", omitting
// leading zero components. Sub-minute durations render as seconds only.
func FormatDuration(seconds float64) string {
	if !isFinite(seconds) || seconds < 0 {
		return Placeholder
	}

	total := int(math.Round(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	var b strings.Builder
	if h > 0 {
		fmt.Fprintf(&b, "%dh ", h)
	}
	if h > 0 || m > 0 {
		fmt.Fprintf(&b, "%dm ", m)
	}
	fmt.Fprintf(&b, "%ds", s)
	return b.String()
}

// DisplayStats converts computed statistics to their display form.
func DisplayStats(s core.TrackStatistics) core.StatsDisplay {
	return core.StatsDisplay{
		Distance: FormatKm(s.TotalDistanceKm),
		Duration: FormatDuration(s.TotalDurationSec),
		AvgSpeed: FormatSpeed(s.AvgSpeedKmh),
		MaxSpeed: FormatSpeed(s.MaxSpeedKmh),
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Package classify labels tracks with an activity type based on their statistics.
package classify

import (
	"fmt"
	"math"

	"github.com/nicoegiaian/heatfield/pkg/core"
)

// Threshold tables for the three activity profiles. Spans and areas refer to
// the outlier-trimmed extents so a single GPS glitch cannot flip the label.
const (
	fieldMaxSpanKm     = 0.25
	fieldMaxAreaKm2    = 0.04
	fieldMaxDistanceKm = 15.0
	fieldSpeedMinKmh   = 2.0
	fieldSpeedMaxKmh   = 12.0

	runSpeedMinKmh   = 6.0
	runSpeedMaxKmh   = 16.0
	runMinDistanceKm = 3.0
	runMinSpanKm     = 0.5

	rideSpeedMinKmh   = 15.0
	rideSpeedMaxKmh   = 45.0
	rideMinDistanceKm = 8.0
	rideMinSpanKm     = 1.0

	// boundaryMargin is the relative distance to a disqualifying threshold
	// below which the advisory note is emitted.
	boundaryMargin = 0.10
)

// Classifier maps track statistics to an activity label. Implementations must
// be deterministic: equal statistics yield equal classifications.
type Classifier interface {
	Classify(core.TrackStatistics) core.Classification
}

// Heuristic scores statistics against the fixed activity profiles above.
type Heuristic struct{}

// NewHeuristic returns the default threshold-table classifier.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Classify scores the statistics against each profile and returns the label
// with the highest score. Ties fall to the more specific profile (cycling
// over field sport over running); a track matching no profile at all is
// reported as running.
func (h *Heuristic) Classify(s core.TrackStatistics) core.Classification {
	span := math.Max(s.Trimmed.WidthKm, s.Trimmed.HeightKm)
	area := s.Trimmed.AreaKm2()

	fieldScore := 0
	if span > 0 && span <= fieldMaxSpanKm {
		fieldScore += 3
	}
	if area > 0 && area <= fieldMaxAreaKm2 {
		fieldScore += 2
	}
	if s.TotalDistanceKm > 0 && s.TotalDistanceKm <= fieldMaxDistanceKm {
		fieldScore++
	}
	if inBand(s.AvgSpeedKmh, fieldSpeedMinKmh, fieldSpeedMaxKmh) {
		fieldScore++
	}

	runScore := 0
	if inBand(s.AvgSpeedKmh, runSpeedMinKmh, runSpeedMaxKmh) {
		runScore += 3
	}
	if s.TotalDistanceKm >= runMinDistanceKm {
		runScore++
	}
	if span >= runMinSpanKm {
		runScore++
	}

	rideScore := 0
	if inBand(s.AvgSpeedKmh, rideSpeedMinKmh, rideSpeedMaxKmh) {
		rideScore += 3
	}
	if s.TotalDistanceKm >= rideMinDistanceKm {
		rideScore += 2
	}
	if span >= rideMinSpanKm {
		rideScore++
	}

	// first strict maximum in priority order implements the tie-break
	label := core.ActivityRunning
	best := 0
	for _, c := range []struct {
		label core.ActivityLabel
		score int
	}{
		{core.ActivityCycling, rideScore},
		{core.ActivityFieldSport, fieldScore},
		{core.ActivityRunning, runScore},
	} {
		if c.score > best {
			best = c.score
			label = c.label
		}
	}

	return core.Classification{
		Label: label,
		Note:  borderlineNote(label, s, span, area),
	}
}

// borderlineNote re-checks the winning profile's metrics and reports the
// first one sitting close to a threshold that would have disqualified it.
// The note never changes the label.
func borderlineNote(label core.ActivityLabel, s core.TrackStatistics, span, area float64) string {
	switch label {
	case core.ActivityFieldSport:
		if nearUpper(span, fieldMaxSpanKm) {
			return fmt.Sprintf("borderline: trimmed span %.2f km is close to the field-sport limit of %.2f km", span, fieldMaxSpanKm)
		}
		if nearUpper(area, fieldMaxAreaKm2) {
			return fmt.Sprintf("borderline: trimmed area %.3f km² is close to the field-sport limit of %.3f km²", area, fieldMaxAreaKm2)
		}
		if nearUpper(s.AvgSpeedKmh, fieldSpeedMaxKmh) {
			return fmt.Sprintf("borderline: average speed %.1f km/h is close to the field-sport maximum of %.0f km/h", s.AvgSpeedKmh, fieldSpeedMaxKmh)
		}
	case core.ActivityCycling:
		if nearLower(s.AvgSpeedKmh, rideSpeedMinKmh) {
			return fmt.Sprintf("borderline: average speed %.1f km/h is close to the cycling minimum of %.0f km/h", s.AvgSpeedKmh, rideSpeedMinKmh)
		}
		if nearUpper(s.AvgSpeedKmh, rideSpeedMaxKmh) {
			return fmt.Sprintf("borderline: average speed %.1f km/h is close to the cycling maximum of %.0f km/h", s.AvgSpeedKmh, rideSpeedMaxKmh)
		}
		if nearLower(s.TotalDistanceKm, rideMinDistanceKm) {
			return fmt.Sprintf("borderline: distance %.1f km is close to the cycling minimum of %.0f km", s.TotalDistanceKm, rideMinDistanceKm)
		}
	case core.ActivityRunning:
		if nearLower(s.AvgSpeedKmh, runSpeedMinKmh) {
			return fmt.Sprintf("borderline: average speed %.1f km/h is close to the running minimum of %.0f km/h", s.AvgSpeedKmh, runSpeedMinKmh)
		}
		if nearUpper(s.AvgSpeedKmh, runSpeedMaxKmh) {
			return fmt.Sprintf("borderline: average speed %.1f km/h is close to the running maximum of %.0f km/h", s.AvgSpeedKmh, runSpeedMaxKmh)
		}
	}
	return ""
}

func inBand(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

// nearUpper reports whether v passed an upper bound but sits within the
// margin below it.
func nearUpper(v, max float64) bool {
	return v <= max && v >= max*(1-boundaryMargin)
}

// nearLower reports whether v passed a lower bound but sits within the
// margin above it.
func nearLower(v, min float64) bool {
	return v >= min && v <= min*(1+boundaryMargin)
}

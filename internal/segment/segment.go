// Package segment splits tracks into activity bouts separated by sustained
// idle gaps.
package segment

import (
	"github.com/nicoegiaian/heatfield/internal/geo"
	"github.com/nicoegiaian/heatfield/pkg/core"
)

// lowSpeedThresholdKmh is the pace at or below which a point pair counts as
// inactive. Standing still with GPS jitter typically reads below this.
const lowSpeedThresholdKmh = 1.0

// Split divides a track into contiguous sub-sequences wherever the time spent
// at or below the low-speed threshold accumulates to gapMinutes. A gap of
// +Inf never qualifies a break, yielding a single segment spanning the whole
// track. The idle points inside a qualified break belong to no segment, and a
// qualified break still open at the end of the track is dropped rather than
// emitted. Non-empty input always yields at least one segment.
//
// Timestamp anomalies are handled per pair: a negative elapsed time cuts the
// current segment at that point, a missing or zero elapsed time only resets
// the idle tracking.
func Split(track core.Track, gapMinutes float64) []core.Track {
	if len(track) == 0 {
		return nil
	}

	gapSec := gapMinutes * 60
	var segments []core.Track

	segStart := 0
	inRun := false
	runStart := 0
	accSec := 0.0

	reset := func() {
		inRun = false
		runStart = 0
		accSec = 0
	}

	for i := 1; i < len(track); i++ {
		prev, cur := track[i-1], track[i]

		var dt float64
		hasDt := prev.Time != nil && cur.Time != nil
		if hasDt {
			dt = cur.Time.Sub(*prev.Time).Seconds()
		}

		if hasDt && dt < 0 {
			// out-of-order timestamps: cut here and start over
			segments = append(segments, track[segStart:i])
			segStart = i
			reset()
			continue
		}
		if !hasDt || dt == 0 {
			reset()
			continue
		}

		d := geo.HaversineKm(prev.Lat, prev.Lon, cur.Lat, cur.Lon)
		speed := d / (dt / 3600)

		if speed <= lowSpeedThresholdKmh {
			if !inRun {
				inRun = true
				runStart = i - 1
			}
			accSec += dt
			continue
		}

		// moving again: if the idle run we are leaving qualified as a break,
		// close the segment at the break start and begin a new one here
		if inRun && accSec >= gapSec {
			segments = append(segments, track[segStart:runStart+1])
			segStart = i
		}
		reset()
	}

	if inRun && accSec >= gapSec {
		// the track ends inside a qualified break; drop the idle tail
		segments = append(segments, track[segStart:runStart+1])
	} else {
		segments = append(segments, track[segStart:])
	}

	return segments
}

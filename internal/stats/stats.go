// Package stats derives summary statistics from GPS tracks.
package stats

import (
	"time"

	"github.com/nicoegiaian/heatfield/internal/geo"
	"github.com/nicoegiaian/heatfield/pkg/core"
)

// Compute derives the full statistics block for a track. Distance accumulates
// over every consecutive pair; duration and speeds only consider timestamped
// points. A pair with non-positive elapsed time has no defined speed and is
// skipped for the maximum.
func Compute(track core.Track) core.TrackStatistics {
	s := core.TrackStatistics{PointCount: len(track)}
	if len(track) == 0 {
		return s
	}

	for i := 1; i < len(track); i++ {
		d := geo.HaversineKm(track[i-1].Lat, track[i-1].Lon, track[i].Lat, track[i].Lon)
		s.TotalDistanceKm += d

		a, b := track[i-1].Time, track[i].Time
		if a != nil && b != nil {
			if dt := b.Sub(*a).Seconds(); dt > 0 {
				if v := d / (dt / 3600); v > s.MaxSpeedKmh {
					s.MaxSpeedKmh = v
				}
			}
		}
	}

	s.TotalDurationSec = durationSec(track)
	if s.TotalDurationSec > 0 {
		s.AvgSpeedKmh = s.TotalDistanceKm / (s.TotalDurationSec / 3600)
	}

	if b, ok := geo.BoundsOf(track); ok {
		s.Raw = geo.SpanKm(b)
	}
	s.Trimmed = trimmedExtent(track)

	return s
}

// durationSec spans the earliest to the latest timestamp, tolerating points
// recorded out of order. Fewer than two timestamped points yield zero.
func durationSec(track core.Track) float64 {
	var earliest, latest *time.Time
	for i := range track {
		t := track[i].Time
		if t == nil {
			continue
		}
		if earliest == nil || t.Before(*earliest) {
			earliest = t
		}
		if latest == nil || t.After(*latest) {
			latest = t
		}
	}
	if earliest == nil {
		return 0
	}
	return latest.Sub(*earliest).Seconds()
}

// trimmedExtent measures the box spanned by the 2nd to 98th percentile of
// each axis, discarding GPS outliers independently per axis.
func trimmedExtent(track core.Track) core.Extent {
	if len(track) == 0 {
		return core.Extent{}
	}

	lats := make([]float64, len(track))
	lons := make([]float64, len(track))
	for i, p := range track {
		lats[i] = p.Lat
		lons[i] = p.Lon
	}

	b := core.BoundingBox{
		MinLat: geo.Quantile(lats, 0.02),
		MaxLat: geo.Quantile(lats, 0.98),
		MinLon: geo.Quantile(lons, 0.02),
		MaxLon: geo.Quantile(lons, 0.98),
	}
	return geo.SpanKm(b)
}

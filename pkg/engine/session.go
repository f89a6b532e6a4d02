package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/nicoegiaian/heatfield/internal/geo"
	segmenter "github.com/nicoegiaian/heatfield/internal/segment"
	"github.com/nicoegiaian/heatfield/internal/stats"
	"github.com/nicoegiaian/heatfield/pkg/core"
)

// boundsPadDeg widens each segment's bounding box so strokes and blur
// kernels near the edge are not clipped by the overlay border.
const boundsPadDeg = 0.0005

// session is the engine-internal state for one ingested file. All fields
// are guarded by the engine mutex once the session is registered.
type session struct {
	id         string
	fileName   string
	startTime  *time.Time
	place      string
	track      core.Track
	stats      core.TrackStatistics
	display    core.StatsDisplay
	activity   core.Classification
	params     core.RenderParams
	gapMinutes float64
	segments   []*segment
	active     int

	// splitSeq increments on every resegmentation; seqs holds the latest
	// issued build sequence per segment index. Together they version the
	// tokens that stale async results are checked against.
	splitSeq uint64
	seqs     map[int]uint64
}

// segment is one contiguous activity bout of a track. points and bounds
// never change after creation; overlay and path are replaced by commits.
type segment struct {
	points  core.Track
	bounds  core.BoundingBox
	stats   core.TrackStatistics
	wkt     string
	overlay *core.Overlay
	path    *core.Overlay
}

func newSegment(points core.Track) *segment {
	bounds, _ := geo.BoundsOf(points)
	return &segment{
		points: points,
		bounds: bounds.Pad(boundsPadDeg),
		stats:  stats.Compute(points),
		wkt:    geo.LineStringWKT(points),
	}
}

// resegment recuts the track at the current inactivity gap and resets the
// build sequences. Bumping splitSeq invalidates every pending build at
// once, so results captured against the old segmentation can never land.
func (s *session) resegment() {
	parts := segmenter.Split(s.track, s.gapMinutes)
	segs := make([]*segment, 0, len(parts))
	for _, points := range parts {
		segs = append(segs, newSegment(points))
	}
	s.segments = segs
	s.splitSeq++
	s.seqs = make(map[int]uint64)
	if s.active >= len(segs) {
		s.active = 0
	}
}

// info builds the host-visible snapshot. Callers hold the engine mutex.
func (s *session) info() core.SessionInfo {
	segs := make([]core.SegmentInfo, len(s.segments))
	for i, seg := range s.segments {
		segs[i] = core.SegmentInfo{
			Index:      i,
			PointCount: len(seg.points),
			Bounds:     seg.bounds,
			Stats:      seg.stats,
			PathWKT:    seg.wkt,
			HasOverlay: seg.overlay != nil,
		}
	}

	gap := s.gapMinutes
	merged := math.IsInf(gap, 1)
	if merged {
		gap = 0
	}

	return core.SessionInfo{
		ID:            s.id,
		FileName:      s.fileName,
		StartTime:     s.startTime,
		Place:         s.place,
		Stats:         s.stats,
		Display:       s.display,
		Activity:      s.activity,
		Params:        s.params,
		GapMinutes:    gap,
		MergeAll:      merged,
		ActiveSegment: s.active,
		Segments:      segs,
	}
}

// SetRenderParams updates a session's render knobs (clamped to their
// accepted ranges) and rebuilds the active segment's overlay. Unchanged
// params are a no-op.
func (e *Engine) SetRenderParams(sessionID string, params core.RenderParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sessionID]
	if !ok {
		return ErrUnknownSession
	}

	params = params.Clamped()
	if params == s.params {
		return nil
	}
	s.params = params
	e.launchBuild(s, s.active)
	return nil
}

// SetInactivityGap changes the segmentation gap threshold in minutes
// (clamped; +Inf merges all segments), recuts the track and rebuilds the
// active segment. Pending builds against the old segmentation are
// invalidated.
func (e *Engine) SetInactivityGap(sessionID string, minutes float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sessionID]
	if !ok {
		return ErrUnknownSession
	}

	minutes = core.ClampGapMinutes(minutes)
	if minutes == s.gapMinutes {
		return nil
	}
	s.gapMinutes = minutes
	s.resegment()
	e.launchBuild(s, s.active)

	e.deps.Logger.Debug().
		Str("session", s.id).
		Float64("gapMinutes", minutes).
		Int("segments", len(s.segments)).
		Msg("Resegmented track")
	return nil
}

// MergeSegments collapses a session into a single segment spanning the
// whole track.
func (e *Engine) MergeSegments(sessionID string) error {
	return e.SetInactivityGap(sessionID, math.Inf(1))
}

// SelectSegment makes the given segment active. A cached overlay matching
// the current params is re-delivered immediately; otherwise a rebuild is
// launched.
func (e *Engine) SelectSegment(sessionID string, index int) error {
	e.mu.Lock()
	s, ok := e.sessions[sessionID]
	if !ok {
		e.mu.Unlock()
		return ErrUnknownSession
	}
	if index < 0 || index >= len(s.segments) {
		e.mu.Unlock()
		return fmt.Errorf("%w: index %d of %d segments", ErrUnknownSegment, index, len(s.segments))
	}

	s.active = index
	seg := s.segments[index]

	var cached []core.OverlayUpdate
	if seg.overlay != nil && seg.overlay.Params == s.params {
		cached = append(cached, core.OverlayUpdate{
			SessionID:    s.id,
			SegmentIndex: index,
			Kind:         core.OverlayHeatmap,
			Overlay:      seg.overlay,
		})
		if seg.path != nil {
			cached = append(cached, core.OverlayUpdate{
				SessionID:    s.id,
				SegmentIndex: index,
				Kind:         core.OverlayPath,
				Overlay:      seg.path,
			})
		}
	} else {
		e.launchBuild(s, index)
	}
	e.mu.Unlock()

	for _, u := range cached {
		e.deliver(u)
	}
	return nil
}

package engine

import (
	"context"
	"time"

	"github.com/nicoegiaian/heatfield/internal/influx"
	"github.com/nicoegiaian/heatfield/pkg/core"
)

// buildToken versions one overlay build. split is the session's split
// sequence at capture time, seq the per-segment build sequence. A result
// commits only while both still match; there is no cancellation beyond
// this check, superseded builds run to completion and are discarded.
type buildToken struct {
	split uint64
	seq   uint64
}

// launchBuild snapshots the active inputs for one segment and starts the
// raster build on a goroutine. Callers hold the engine mutex; everything
// the goroutine touches is captured here.
func (e *Engine) launchBuild(s *session, index int) {
	if e.closed {
		return
	}

	s.seqs[index]++
	token := buildToken{split: s.splitSeq, seq: s.seqs[index]}

	seg := s.segments[index]
	points := seg.points
	bounds := seg.bounds
	params := s.params
	sessionID := s.id

	e.buildsStarted.Add(context.Background(), 1)
	e.inFlight.Add(1)
	e.wg.Add(1)

	go func() {
		defer e.wg.Done()
		defer e.inFlight.Add(-1)

		if len(points) == 0 {
			// nothing to render; clear any existing overlay
			if e.commit(sessionID, index, token, nil, nil, 0) {
				e.deliver(core.OverlayUpdate{SessionID: sessionID, SegmentIndex: index, Kind: core.OverlayHeatmap})
				if e.pathOverlay {
					e.deliver(core.OverlayUpdate{SessionID: sessionID, SegmentIndex: index, Kind: core.OverlayPath})
				}
			}
			return
		}

		start := e.deps.Now()
		heat, err := e.deps.Renderer.Heatmap(points, bounds, params)
		if err != nil {
			e.deps.Logger.Error().Err(err).
				Str("session", sessionID).
				Int("segment", index).
				Msg("Overlay build failed")
			return
		}

		var path *core.Overlay
		if e.pathOverlay {
			path, err = e.deps.Renderer.Path(points, bounds, params)
			if err != nil {
				e.deps.Logger.Warn().Err(err).
					Str("session", sessionID).
					Int("segment", index).
					Msg("Path overlay failed, committing heatmap only")
				path = nil
			}
		}
		elapsed := e.deps.Now().Sub(start)

		committed := e.commit(sessionID, index, token, heat, path, elapsed)

		ctx := context.Background()
		e.buildDuration.Record(ctx, float64(elapsed.Microseconds())/1000.0)
		if committed {
			e.buildsCommitted.Add(ctx, 1)
			e.deliver(core.OverlayUpdate{
				SessionID:    sessionID,
				SegmentIndex: index,
				Kind:         core.OverlayHeatmap,
				Overlay:      heat,
			})
			if path != nil {
				e.deliver(core.OverlayUpdate{
					SessionID:    sessionID,
					SegmentIndex: index,
					Kind:         core.OverlayPath,
					Overlay:      path,
				})
			}
		} else {
			e.buildsDiscarded.Add(ctx, 1)
			e.deps.Logger.Debug().
				Str("session", sessionID).
				Int("segment", index).
				Msg("Discarded stale overlay build")
		}

		if e.deps.Telemetry != nil {
			e.deps.Telemetry.WriteRender(influx.RenderMetric{
				SessionID:  sessionID,
				Segment:    index,
				Kind:       string(core.OverlayHeatmap),
				Duration:   elapsed,
				Width:      heat.Width,
				Height:     heat.Height,
				PointCount: len(points),
				Stale:      !committed,
			})
		}
	}()
}

// commit stores a finished overlay iff the token is still current for its
// (session, segment) key. The split check runs first: after a
// resegmentation the captured index may no longer exist.
func (e *Engine) commit(sessionID string, index int, token buildToken, heat, path *core.Overlay, elapsed time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[sessionID]
	if !ok || e.closed || token.split != s.splitSeq || token.seq != s.seqs[index] {
		return false
	}

	seg := s.segments[index]
	seg.overlay = heat
	seg.path = path
	e.lastBuild = elapsed
	return true
}

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicoegiaian/heatfield/internal/config"
	"github.com/nicoegiaian/heatfield/internal/influx"
	"github.com/nicoegiaian/heatfield/pkg/core"
)

// fakeRenderer echoes its inputs back as overlays. Builds whose gamma
// matches slowGamma block on gate until it is closed, which lets tests
// order the completion of concurrent builds deterministically.
type fakeRenderer struct {
	mu        sync.Mutex
	heatCalls int
	pathCalls int
	failHeat  bool
	slowGamma float64
	gate      chan struct{}
}

func (f *fakeRenderer) Heatmap(points core.Track, bounds core.BoundingBox, params core.RenderParams) (*core.Overlay, error) {
	f.mu.Lock()
	f.heatCalls++
	gate := f.gate
	slow := f.slowGamma != 0 && params.Gamma == f.slowGamma
	fail := f.failHeat
	f.mu.Unlock()

	if slow && gate != nil {
		<-gate
	}
	if fail {
		return nil, errors.New("render exploded")
	}
	return &core.Overlay{
		Kind:    core.OverlayHeatmap,
		PNG:     []byte("heat"),
		DataURI: "data:image/png;base64,aGVhdA==",
		Width:   params.ResolutionPx,
		Height:  params.ResolutionPx,
		Bounds:  bounds,
		Params:  params,
	}, nil
}

func (f *fakeRenderer) Path(points core.Track, bounds core.BoundingBox, params core.RenderParams) (*core.Overlay, error) {
	f.mu.Lock()
	f.pathCalls++
	f.mu.Unlock()
	return &core.Overlay{
		Kind:    core.OverlayPath,
		PNG:     []byte("path"),
		DataURI: "data:image/png;base64,cGF0aA==",
		Width:   params.ResolutionPx,
		Height:  params.ResolutionPx,
		Bounds:  bounds,
		Params:  params,
	}, nil
}

func (f *fakeRenderer) heatmapCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heatCalls
}

func (f *fakeRenderer) pathCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pathCalls
}

func (f *fakeRenderer) setFail(fail bool) {
	f.mu.Lock()
	f.failHeat = fail
	f.mu.Unlock()
}

type fakeGeocoder struct {
	mu    sync.Mutex
	place string
	calls int
}

func (f *fakeGeocoder) Place(ctx context.Context, lat, lon float64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.place
}

func (f *fakeGeocoder) CacheSize() int { return 1 }

type fakeTelemetry struct {
	mu      sync.Mutex
	renders []influx.RenderMetric
	ingests []influx.IngestMetric
}

func (f *fakeTelemetry) WriteRender(m influx.RenderMetric) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders = append(f.renders, m)
}

func (f *fakeTelemetry) WriteIngest(m influx.IngestMetric) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingests = append(f.ingests, m)
}

func (f *fakeTelemetry) renderMetrics() []influx.RenderMetric {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]influx.RenderMetric, len(f.renders))
	copy(out, f.renders)
	return out
}

func (f *fakeTelemetry) ingestMetrics() []influx.IngestMetric {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]influx.IngestMetric, len(f.ingests))
	copy(out, f.ingests)
	return out
}

type fixPoint struct {
	lat, lon float64
	sec      int
}

func gpxFixture(points []fixPoint) []byte {
	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><gpx version="1.1"><trk><trkseg>`)
	for _, p := range points {
		ts := base.Add(time.Duration(p.sec) * time.Second).Format(time.RFC3339)
		fmt.Fprintf(&b, `<trkpt lat="%.6f" lon="%.6f"><time>%s</time></trkpt>`, p.lat, p.lon, ts)
	}
	b.WriteString(`</trkseg></trk></gpx>`)
	return []byte(b.String())
}

// movingTrack walks diagonally at roughly 8 km/h, one point per minute.
func movingTrack(n int) []fixPoint {
	pts := make([]fixPoint, n)
	for i := range pts {
		pts[i] = fixPoint{lat: 45.0 + float64(i)*0.001, lon: 7.0 + float64(i)*0.001, sec: i * 60}
	}
	return pts
}

// twoBoutTrack is three minutes of movement, twelve near-stationary
// minutes, and three more minutes of movement. At the default 10 minute
// gap it splits into two three-point segments.
func twoBoutTrack() []fixPoint {
	pts := movingTrack(3)
	last := pts[len(pts)-1]
	for k := 1; k <= 12; k++ {
		pts = append(pts, fixPoint{lat: last.lat + float64(k)*0.00001, lon: last.lon, sec: last.sec + k*60})
	}
	tail := pts[len(pts)-1]
	for k := 1; k <= 3; k++ {
		pts = append(pts, fixPoint{lat: tail.lat + float64(k)*0.001, lon: tail.lon + float64(k)*0.001, sec: tail.sec + k*60})
	}
	return pts
}

var defaultTestParams = core.RenderParams{Gamma: 1.0, Sigma: 6.0, Threshold: 0.05, ResolutionPx: 800}

// newTestEngine loads the default config into viper and builds an engine
// around the given dependencies. A nil Geocoder is replaced with a fake
// so no test ever reaches the network.
func newTestEngine(t *testing.T, deps Dependencies) *Engine {
	t.Helper()
	t.Cleanup(viper.Reset)
	require.NoError(t, config.Load(t.TempDir()))
	if deps.Geocoder == nil {
		deps.Geocoder = &fakeGeocoder{place: "Testville"}
	}
	e, err := New(deps)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func waitForOverlay(t *testing.T, e *Engine, id string, index int) {
	t.Helper()
	require.Eventually(t, func() bool {
		info, err := e.Session(id)
		return err == nil && index < len(info.Segments) && info.Segments[index].HasOverlay
	}, 2*time.Second, 10*time.Millisecond)
}

func waitForIdle(t *testing.T, e *Engine) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.Status().InFlightBuilds == 0
	}, 2*time.Second, 10*time.Millisecond)
}

// collectUpdates drains the engine queue until the collected updates
// satisfy the predicate, and returns everything drained so far.
func collectUpdates(t *testing.T, e *Engine, done func([]core.OverlayUpdate) bool) []core.OverlayUpdate {
	t.Helper()
	var got []core.OverlayUpdate
	require.Eventually(t, func() bool {
		got = append(got, e.Updates()...)
		return done(got)
	}, 2*time.Second, 10*time.Millisecond)
	return got
}

func TestIngest_CreatesSessionAndBuildsOverlay(t *testing.T) {
	renderer := &fakeRenderer{}
	geocoder := &fakeGeocoder{place: "Parco Ruffini"}
	telemetry := &fakeTelemetry{}
	e := newTestEngine(t, Dependencies{
		Logger:    zerolog.Nop(),
		Renderer:  renderer,
		Geocoder:  geocoder,
		Telemetry: telemetry,
	})

	id, err := e.Ingest("morning.gpx", gpxFixture(movingTrack(6)))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	info, err := e.Session(id)
	require.NoError(t, err)
	assert.Equal(t, "morning.gpx", info.FileName)
	assert.Equal(t, 6, info.Stats.PointCount)
	assert.Equal(t, defaultTestParams, info.Params)
	assert.Equal(t, 10.0, info.GapMinutes)
	assert.False(t, info.MergeAll)
	assert.Equal(t, 0, info.ActiveSegment)
	assert.NotNil(t, info.StartTime)
	assert.NotEmpty(t, info.Activity.Label)
	require.Len(t, info.Segments, 1)
	assert.Equal(t, 6, info.Segments[0].PointCount)
	assert.True(t, strings.HasPrefix(info.Segments[0].PathWKT, "LINESTRING"))

	waitForOverlay(t, e, id, 0)

	got := collectUpdates(t, e, func(us []core.OverlayUpdate) bool {
		for _, u := range us {
			if u.SessionID == id && u.Kind == core.OverlayHeatmap && u.Overlay != nil {
				return true
			}
		}
		return false
	})
	assert.NotEmpty(t, got)

	require.Eventually(t, func() bool {
		info, err := e.Session(id)
		return err == nil && info.Place == "Parco Ruffini"
	}, 2*time.Second, 10*time.Millisecond)

	ingests := telemetry.ingestMetrics()
	require.Len(t, ingests, 1)
	assert.Equal(t, id, ingests[0].SessionID)
	assert.Equal(t, 6, ingests[0].PointCount)
	assert.Equal(t, 1, ingests[0].Segments)
	assert.Positive(t, ingests[0].DistanceKm)
	assert.NotEmpty(t, ingests[0].Activity)

	require.Eventually(t, func() bool {
		return len(telemetry.renderMetrics()) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	render := telemetry.renderMetrics()[0]
	assert.False(t, render.Stale)
	assert.Equal(t, 6, render.PointCount)
}

func TestIngest_EmptyTrackSkipsSession(t *testing.T) {
	renderer := &fakeRenderer{}
	e := newTestEngine(t, Dependencies{Logger: zerolog.Nop(), Renderer: renderer})

	id, err := e.Ingest("empty.gpx", []byte(`<?xml version="1.0"?><gpx version="1.1"></gpx>`))
	require.ErrorIs(t, err, ErrEmptyTrack)
	assert.Empty(t, id)
	assert.Empty(t, e.Sessions())
	assert.Equal(t, 0, renderer.heatmapCalls())
}

func TestIngest_AfterCloseFails(t *testing.T) {
	e := newTestEngine(t, Dependencies{Logger: zerolog.Nop(), Renderer: &fakeRenderer{}})
	e.Close()

	_, err := e.Ingest("late.gpx", gpxFixture(movingTrack(3)))
	require.ErrorIs(t, err, ErrClosed)
}

func TestSetRenderParams_RebuildsActiveSegment(t *testing.T) {
	renderer := &fakeRenderer{}
	e := newTestEngine(t, Dependencies{Logger: zerolog.Nop(), Renderer: renderer})

	id, err := e.Ingest("run.gpx", gpxFixture(movingTrack(6)))
	require.NoError(t, err)
	waitForOverlay(t, e, id, 0)
	e.Updates()
	before := renderer.heatmapCalls()

	params := core.RenderParams{Gamma: 1.5, Sigma: 4, Threshold: 0.1, ResolutionPx: 600}
	require.NoError(t, e.SetRenderParams(id, params))

	info, err := e.Session(id)
	require.NoError(t, err)
	assert.Equal(t, params, info.Params)

	collectUpdates(t, e, func(us []core.OverlayUpdate) bool {
		for _, u := range us {
			if u.Overlay != nil && u.Overlay.Params == params {
				return true
			}
		}
		return false
	})
	assert.Equal(t, before+1, renderer.heatmapCalls())
}

func TestSetRenderParams_ClampsOutOfRange(t *testing.T) {
	e := newTestEngine(t, Dependencies{Logger: zerolog.Nop(), Renderer: &fakeRenderer{}})

	id, err := e.Ingest("run.gpx", gpxFixture(movingTrack(6)))
	require.NoError(t, err)

	require.NoError(t, e.SetRenderParams(id, core.RenderParams{Gamma: 99, Sigma: 0.1, Threshold: 9, ResolutionPx: 50}))

	info, err := e.Session(id)
	require.NoError(t, err)
	assert.Equal(t, core.RenderParams{
		Gamma:        core.GammaMax,
		Sigma:        core.SigmaMin,
		Threshold:    core.ThresholdMax,
		ResolutionPx: core.ResolutionMin,
	}, info.Params)
}

func TestSetRenderParams_UnchangedIsNoOp(t *testing.T) {
	renderer := &fakeRenderer{}
	e := newTestEngine(t, Dependencies{Logger: zerolog.Nop(), Renderer: renderer})

	id, err := e.Ingest("run.gpx", gpxFixture(movingTrack(6)))
	require.NoError(t, err)
	waitForOverlay(t, e, id, 0)
	waitForIdle(t, e)

	before := renderer.heatmapCalls()
	require.NoError(t, e.SetRenderParams(id, defaultTestParams))
	assert.Equal(t, before, renderer.heatmapCalls())
}

func TestSetRenderParams_UnknownSession(t *testing.T) {
	e := newTestEngine(t, Dependencies{Logger: zerolog.Nop(), Renderer: &fakeRenderer{}})
	err := e.SetRenderParams("nope", defaultTestParams)
	require.ErrorIs(t, err, ErrUnknownSession)
}

func TestSetInactivityGap_Resegments(t *testing.T) {
	e := newTestEngine(t, Dependencies{Logger: zerolog.Nop(), Renderer: &fakeRenderer{}})

	id, err := e.Ingest("bouts.gpx", gpxFixture(twoBoutTrack()))
	require.NoError(t, err)

	info, err := e.Session(id)
	require.NoError(t, err)
	require.Len(t, info.Segments, 2)
	assert.Equal(t, 3, info.Segments[0].PointCount)
	assert.Equal(t, 3, info.Segments[1].PointCount)

	// a gap longer than the whole idle stretch merges the bouts back
	require.NoError(t, e.SetInactivityGap(id, 60))
	info, err = e.Session(id)
	require.NoError(t, err)
	assert.Len(t, info.Segments, 1)
	assert.Equal(t, 60.0, info.GapMinutes)

	require.NoError(t, e.SetInactivityGap(id, 10))
	info, err = e.Session(id)
	require.NoError(t, err)
	assert.Len(t, info.Segments, 2)

	// below-range values clamp up to the minimum
	require.NoError(t, e.SetInactivityGap(id, 0.2))
	info, err = e.Session(id)
	require.NoError(t, err)
	assert.Equal(t, core.GapMinutesMin, info.GapMinutes)
}

func TestMergeSegments_CollapsesToSingleSegment(t *testing.T) {
	e := newTestEngine(t, Dependencies{Logger: zerolog.Nop(), Renderer: &fakeRenderer{}})

	id, err := e.Ingest("bouts.gpx", gpxFixture(twoBoutTrack()))
	require.NoError(t, err)

	require.NoError(t, e.MergeSegments(id))

	info, err := e.Session(id)
	require.NoError(t, err)
	require.Len(t, info.Segments, 1)
	assert.True(t, info.MergeAll)
	assert.Equal(t, 0.0, info.GapMinutes)
	assert.Equal(t, 18, info.Segments[0].PointCount)

	waitForOverlay(t, e, id, 0)
}

func TestSelectSegment_BuildsAndCaches(t *testing.T) {
	renderer := &fakeRenderer{}
	e := newTestEngine(t, Dependencies{Logger: zerolog.Nop(), Renderer: renderer})

	id, err := e.Ingest("bouts.gpx", gpxFixture(twoBoutTrack()))
	require.NoError(t, err)
	waitForOverlay(t, e, id, 0)
	e.Updates()

	before := renderer.heatmapCalls()
	require.NoError(t, e.SelectSegment(id, 1))

	info, err := e.Session(id)
	require.NoError(t, err)
	assert.Equal(t, 1, info.ActiveSegment)

	collectUpdates(t, e, func(us []core.OverlayUpdate) bool {
		for _, u := range us {
			if u.SegmentIndex == 1 && u.Overlay != nil {
				return true
			}
		}
		return false
	})
	assert.Equal(t, before+1, renderer.heatmapCalls())

	// segment 0 still has a matching overlay; selecting it re-delivers
	// from cache without a rebuild
	waitForIdle(t, e)
	before = renderer.heatmapCalls()
	require.NoError(t, e.SelectSegment(id, 0))

	got := e.Updates()
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].SegmentIndex)
	assert.NotNil(t, got[0].Overlay)
	assert.Equal(t, before, renderer.heatmapCalls())
}

func TestSelectSegment_InvalidIndex(t *testing.T) {
	e := newTestEngine(t, Dependencies{Logger: zerolog.Nop(), Renderer: &fakeRenderer{}})

	id, err := e.Ingest("run.gpx", gpxFixture(movingTrack(6)))
	require.NoError(t, err)

	require.ErrorIs(t, e.SelectSegment(id, 5), ErrUnknownSegment)
	require.ErrorIs(t, e.SelectSegment(id, -1), ErrUnknownSegment)
	require.ErrorIs(t, e.SelectSegment("nope", 0), ErrUnknownSession)
}

func TestOnUpdate_CallbackReceivesCommits(t *testing.T) {
	var mu sync.Mutex
	var seen []core.OverlayUpdate
	e := newTestEngine(t, Dependencies{
		Logger:   zerolog.Nop(),
		Renderer: &fakeRenderer{},
		OnUpdate: func(u core.OverlayUpdate) {
			mu.Lock()
			seen = append(seen, u)
			mu.Unlock()
		},
	})

	id, err := e.Ingest("run.gpx", gpxFixture(movingTrack(6)))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, id, seen[0].SessionID)
	assert.NotNil(t, seen[0].Overlay)
}

func TestStatus_ReportsEngineInternals(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), step: 5 * time.Millisecond}
	e := newTestEngine(t, Dependencies{
		Logger:   zerolog.Nop(),
		Renderer: &fakeRenderer{},
		Now:      clock.Now,
	})

	assert.Equal(t, 0, e.Status().Sessions)

	id, err := e.Ingest("run.gpx", gpxFixture(movingTrack(6)))
	require.NoError(t, err)
	waitForOverlay(t, e, id, 0)
	waitForIdle(t, e)

	status := e.Status()
	assert.Equal(t, 1, status.Sessions)
	assert.Equal(t, 0, status.InFlightBuilds)
	assert.Equal(t, 1, status.GeocodeCacheSize)
	assert.Equal(t, 5.0, status.LastBuildMs)
	assert.Positive(t, status.PendingUpdates)

	e.Updates()
	assert.Equal(t, 0, e.Status().PendingUpdates)
}

type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func TestClose_WaitsForInFlightBuilds(t *testing.T) {
	renderer := &fakeRenderer{slowGamma: 1.5, gate: make(chan struct{})}
	e := newTestEngine(t, Dependencies{Logger: zerolog.Nop(), Renderer: renderer})

	id, err := e.Ingest("run.gpx", gpxFixture(movingTrack(6)))
	require.NoError(t, err)
	waitForOverlay(t, e, id, 0)
	e.Updates()

	slow := core.RenderParams{Gamma: 1.5, Sigma: 6, Threshold: 0.05, ResolutionPx: 800}
	require.NoError(t, e.SetRenderParams(id, slow))
	require.Eventually(t, func() bool {
		return e.Status().InFlightBuilds == 1
	}, 2*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		e.Close()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Close returned while a build was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(renderer.gate)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after the build finished")
	}

	// the late result was discarded, not committed
	for _, u := range e.Updates() {
		if u.Overlay != nil {
			assert.NotEqual(t, 1.5, u.Overlay.Params.Gamma)
		}
	}
}

// End to end against the real parser, classifier and raster builder: a
// GPX document in, a decodable PNG overlay out.
func TestEngine_EndToEndWithRealRenderer(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, config.Load(t.TempDir()))
	viper.Set("render.resolutionPx", 400)

	e, err := New(Dependencies{
		Logger:   zerolog.Nop(),
		Geocoder: &fakeGeocoder{place: "Testville"},
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)

	id, err := e.Ingest("run.gpx", gpxFixture(movingTrack(6)))
	require.NoError(t, err)
	waitForOverlay(t, e, id, 0)

	got := collectUpdates(t, e, func(us []core.OverlayUpdate) bool {
		for _, u := range us {
			if u.Kind == core.OverlayHeatmap && u.Overlay != nil {
				return true
			}
		}
		return false
	})

	var overlay *core.Overlay
	for _, u := range got {
		if u.Kind == core.OverlayHeatmap && u.Overlay != nil {
			overlay = u.Overlay
		}
	}
	require.NotNil(t, overlay)
	assert.True(t, bytes.HasPrefix(overlay.PNG, []byte("\x89PNG")))
	assert.True(t, strings.HasPrefix(overlay.DataURI, "data:image/png;base64,"))
	assert.Equal(t, 400, overlay.Width)
	assert.Positive(t, overlay.Height)
	assert.Less(t, overlay.Projected.MinX, overlay.Projected.MaxX)
	assert.Less(t, overlay.Projected.MinY, overlay.Projected.MaxY)
}

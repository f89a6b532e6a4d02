// Package engine ties the track pipeline together. It owns the session
// registry and coordinates the asynchronous overlay rebuilds so that a
// stale result never overwrites a newer one.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/nicoegiaian/heatfield/internal/classify"
	"github.com/nicoegiaian/heatfield/internal/config"
	"github.com/nicoegiaian/heatfield/internal/geocode"
	"github.com/nicoegiaian/heatfield/internal/influx"
	"github.com/nicoegiaian/heatfield/internal/parser"
	"github.com/nicoegiaian/heatfield/internal/queue"
	"github.com/nicoegiaian/heatfield/internal/raster"
	"github.com/nicoegiaian/heatfield/internal/stats"
	"github.com/nicoegiaian/heatfield/internal/util"
	"github.com/nicoegiaian/heatfield/pkg/core"
)

var (
	// ErrEmptyTrack is returned when an ingested file yields no valid points.
	ErrEmptyTrack = errors.New("track has no valid points")

	// ErrUnknownSession is returned for operations on a session id that
	// was never created.
	ErrUnknownSession = errors.New("unknown session")

	// ErrUnknownSegment is returned when a segment index is out of range.
	ErrUnknownSegment = errors.New("unknown segment")

	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("engine is closed")
)

// TrackParser turns raw GPX bytes into an ordered point sequence plus an
// optional start timestamp.
type TrackParser interface {
	ParseTrack(raw []byte) (core.Track, *time.Time)
}

// Renderer produces raster overlays for a point selection.
type Renderer interface {
	Heatmap(points core.Track, bounds core.BoundingBox, params core.RenderParams) (*core.Overlay, error)
	Path(points core.Track, bounds core.BoundingBox, params core.RenderParams) (*core.Overlay, error)
}

// Geocoder resolves a display place name for a coordinate. It must never
// block a caller on failure; a fallback label is expected instead.
type Geocoder interface {
	Place(ctx context.Context, lat, lon float64) string
	CacheSize() int
}

// TelemetrySink receives optional render telemetry.
type TelemetrySink interface {
	WriteRender(metric influx.RenderMetric)
	WriteIngest(metric influx.IngestMetric)
}

// Dependencies holds all dependencies for the engine. Parser, Renderer
// and Classifier default to the built-in implementations when nil.
// Geocoder defaults to the configured HTTP resolver when geocode.enabled
// is set; a nil Telemetry disables the sink. OnUpdate, when set, is
// invoked for every overlay update in addition to the drainable queue; it
// is always called without engine locks held.
type Dependencies struct {
	Logger     zerolog.Logger
	Parser     TrackParser
	Renderer   Renderer
	Classifier classify.Classifier
	Geocoder   Geocoder
	Telemetry  TelemetrySink
	OnUpdate   func(core.OverlayUpdate)
	Now        func() time.Time
}

// Engine is the host-facing facade. All session state lives behind its
// mutex; overlay builds run on goroutines and commit through versioned
// tokens (see rebuild.go).
type Engine struct {
	deps Dependencies

	mu        sync.Mutex
	sessions  map[string]*session
	order     []string
	lastBuild time.Duration
	closed    bool

	defaultParams core.RenderParams
	defaultGap    float64
	pathOverlay   bool

	updates  *queue.Updates
	inFlight atomic.Int64
	wg       sync.WaitGroup

	// OTEL metrics
	buildsStarted   metric.Int64Counter
	buildsCommitted metric.Int64Counter
	buildsDiscarded metric.Int64Counter
	buildDuration   metric.Float64Histogram
	inFlightGauge   metric.Int64ObservableGauge
}

// New creates an engine with the given dependencies. Initial render
// params, inactivity gap and the path-overlay switch come from the
// loaded configuration. Uses the global OTel meter for metrics (no-op
// if not configured).
func New(deps Dependencies) (*Engine, error) {
	if deps.Parser == nil {
		deps.Parser = parser.New(deps.Logger)
	}
	if deps.Renderer == nil {
		deps.Renderer = raster.NewBuilder(deps.Logger, config.GetFloat64("render.pathStrokeWidth"))
	}
	if deps.Classifier == nil {
		deps.Classifier = classify.NewHeuristic()
	}
	if deps.Geocoder == nil && config.GetBool("geocode.enabled") {
		client := geocode.NewClient(
			config.GetString("geocode.endpoint"),
			config.GetString("geocode.userAgent"),
		)
		svc, err := geocode.NewService(client, geocode.NewPlaceCache(), deps.Logger)
		if err != nil {
			return nil, fmt.Errorf("creating geocode service: %w", err)
		}
		deps.Geocoder = svc
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	e := &Engine{
		deps:          deps,
		sessions:      make(map[string]*session),
		defaultParams: config.GetRenderParams(),
		defaultGap:    config.GetGapMinutes(),
		pathOverlay:   config.GetBool("render.pathOverlay"),
		updates:       queue.New(queue.DefaultLimit),
	}

	m := meter()

	var err error

	e.buildsStarted, err = m.Int64Counter(
		"engine.builds.started",
		metric.WithDescription("Total overlay builds launched"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating builds started counter: %w", err)
	}

	e.buildsCommitted, err = m.Int64Counter(
		"engine.builds.committed",
		metric.WithDescription("Total overlay builds committed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating builds committed counter: %w", err)
	}

	e.buildsDiscarded, err = m.Int64Counter(
		"engine.builds.discarded",
		metric.WithDescription("Total overlay builds discarded as stale"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating builds discarded counter: %w", err)
	}

	e.buildDuration, err = m.Float64Histogram(
		"engine.build.duration",
		metric.WithDescription("Overlay build duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating build duration histogram: %w", err)
	}

	e.inFlightGauge, err = m.Int64ObservableGauge(
		"engine.builds.inflight",
		metric.WithDescription("Overlay builds currently running"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating in-flight gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(e.inFlightGauge, e.inFlight.Load())
			return nil
		},
		e.inFlightGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("registering in-flight callback: %w", err)
	}

	return e, nil
}

// Ingest parses one GPX file into a new session, classifies it, splits it
// into segments and starts the overlay build for the active segment. The
// place name resolves asynchronously when a geocoder is configured.
func (e *Engine) Ingest(fileName string, raw []byte) (string, error) {
	track, startTime := e.deps.Parser.ParseTrack(raw)
	if len(track) == 0 {
		return "", ErrEmptyTrack
	}

	st := stats.Compute(track)
	s := &session{
		id:         uuid.NewString(),
		fileName:   fileName,
		startTime:  startTime,
		track:      track,
		stats:      st,
		display:    util.DisplayStats(st),
		activity:   e.deps.Classifier.Classify(st),
		params:     e.defaultParams,
		gapMinutes: e.defaultGap,
	}
	s.resegment()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrClosed
	}
	e.sessions[s.id] = s
	e.order = append(e.order, s.id)
	e.launchBuild(s, s.active)
	e.mu.Unlock()

	e.deps.Logger.Info().
		Str("session", s.id).
		Str("file", fileName).
		Int("points", len(track)).
		Int("segments", len(s.segments)).
		Str("activity", string(s.activity.Label)).
		Msg("Ingested track")

	if e.deps.Geocoder != nil {
		go e.resolvePlace(s.id, track[0].Lat, track[0].Lon)
	}
	if e.deps.Telemetry != nil {
		e.deps.Telemetry.WriteIngest(influx.IngestMetric{
			SessionID:  s.id,
			Activity:   string(s.activity.Label),
			PointCount: len(track),
			DistanceKm: st.TotalDistanceKm,
			Segments:   len(s.segments),
		})
	}

	return s.id, nil
}

// Session returns a snapshot of one session.
func (e *Engine) Session(sessionID string) (core.SessionInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[sessionID]
	if !ok {
		return core.SessionInfo{}, ErrUnknownSession
	}
	return s.info(), nil
}

// Sessions returns snapshots of every session in ingestion order.
func (e *Engine) Sessions() []core.SessionInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.SessionInfo, 0, len(e.order))
	for _, id := range e.order {
		if s, ok := e.sessions[id]; ok {
			out = append(out, s.info())
		}
	}
	return out
}

// Updates drains and returns the pending overlay updates.
func (e *Engine) Updates() []core.OverlayUpdate {
	return e.updates.Drain()
}

// Status reports a point-in-time snapshot of engine internals.
func (e *Engine) Status() core.EngineStatus {
	e.mu.Lock()
	sessions := len(e.sessions)
	last := e.lastBuild
	e.mu.Unlock()

	status := core.EngineStatus{
		Sessions:       sessions,
		InFlightBuilds: int(e.inFlight.Load()),
		PendingUpdates: e.updates.Len(),
		LastBuildMs:    float64(last.Microseconds()) / 1000.0,
	}
	if e.deps.Geocoder != nil {
		status.GeocodeCacheSize = e.deps.Geocoder.CacheSize()
	}
	return status
}

// Close stops accepting work and waits for in-flight builds to finish.
// Results completing after Close are discarded.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.wg.Wait()
	e.deps.Logger.Info().Msg("Engine closed")
}

// deliver pushes one update into the queue and invokes the host callback.
// Never called with the engine mutex held.
func (e *Engine) deliver(u core.OverlayUpdate) {
	e.updates.Push(u)
	if e.deps.OnUpdate != nil {
		e.deps.OnUpdate(u)
	}
}

func (e *Engine) resolvePlace(sessionID string, lat, lon float64) {
	place := e.deps.Geocoder.Place(context.Background(), lat, lon)

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[sessionID]; ok && !e.closed {
		s.place = place
	}
}

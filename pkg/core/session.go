package core

import "time"

// SegmentInfo is the host-visible view of one activity segment.
// PathWKT carries the segment polyline as WKT for hosts that draw the
// raw route as a vector layer; it is empty for single-point segments.
type SegmentInfo struct {
	Index      int             `json:"index"`
	PointCount int             `json:"pointCount"`
	Bounds     BoundingBox     `json:"bounds"`
	Stats      TrackStatistics `json:"stats"`
	PathWKT    string          `json:"pathWkt,omitempty"`
	HasOverlay bool            `json:"hasOverlay"`
}

// SessionInfo is the host-visible view of one ingested file.
// Place is empty until the asynchronous geocode lookup resolves.
// MergeAll reports an infinite inactivity gap; GapMinutes is zero then.
type SessionInfo struct {
	ID            string          `json:"id"`
	FileName      string          `json:"fileName"`
	StartTime     *time.Time      `json:"startTime,omitempty"`
	Place         string          `json:"place,omitempty"`
	Stats         TrackStatistics `json:"stats"`
	Display       StatsDisplay    `json:"display"`
	Activity      Classification  `json:"activity"`
	Params        RenderParams    `json:"params"`
	GapMinutes    float64         `json:"gapMinutes"`
	MergeAll      bool            `json:"mergeAll"`
	ActiveSegment int             `json:"activeSegment"`
	Segments      []SegmentInfo   `json:"segments"`
}

// EngineStatus is a point-in-time snapshot of engine internals,
// reported by the status monitor and exposed for debug panels.
type EngineStatus struct {
	Sessions         int     `json:"sessions"`
	InFlightBuilds   int     `json:"inFlightBuilds"`
	PendingUpdates   int     `json:"pendingUpdates"`
	GeocodeCacheSize int     `json:"geocodeCacheSize"`
	LastBuildMs      float64 `json:"lastBuildMs"`
}

// Package parser decodes GPX documents into track points.
package parser

import (
	"encoding/xml"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/nicoegiaian/heatfield/internal/geo"
	"github.com/nicoegiaian/heatfield/pkg/core"
)

// Parser converts raw GPX bytes into core track points.
type Parser struct {
	logger zerolog.Logger
}

// New creates a parser with the given logger.
func New(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseTrack decodes a GPX document. Track segments from all trk elements are
// concatenated in document order. Points with unparseable or out-of-range
// coordinates are dropped; points with a missing or invalid time element are
// kept without a timestamp. A document that does not decode at all yields an
// empty track.
func (p *Parser) ParseTrack(raw []byte) (core.Track, *time.Time) {
	var doc gpxDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to decode GPX document")
		return nil, nil
	}

	var track core.Track
	dropped := 0
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, pt := range seg.Points {
				lat, latErr := strconv.ParseFloat(pt.Lat, 64)
				lon, lonErr := strconv.ParseFloat(pt.Lon, 64)
				if latErr != nil || lonErr != nil || !geo.ValidCoordinate(lat, lon) {
					dropped++
					continue
				}

				point := core.TrackPoint{Lat: lat, Lon: lon}
				if ts, err := time.Parse(time.RFC3339, pt.Time); err == nil {
					point.Time = &ts
				}
				track = append(track, point)
			}
		}
	}
	if dropped > 0 {
		p.logger.Warn().Int("dropped", dropped).Msg("Dropped track points with invalid coordinates")
	}

	return track, startTime(doc, track)
}

// startTime picks the activity start: the first timestamped point, falling
// back to the document metadata time.
func startTime(doc gpxDocument, track core.Track) *time.Time {
	for _, pt := range track {
		if pt.Time != nil {
			return pt.Time
		}
	}
	if doc.Metadata != nil && doc.Metadata.Time != "" {
		if ts, err := time.Parse(time.RFC3339, doc.Metadata.Time); err == nil {
			return &ts
		}
	}
	return nil
}

// Package core defines the value types exchanged between the heatfield
// engine and its host UI. Types here carry no behavior beyond small
// accessors so they can cross the API boundary freely.
package core

import "time"

// TrackPoint is a single GPS fix. Time is nil when the source point
// carried no usable timestamp.
type TrackPoint struct {
	Lat  float64    `json:"lat"`
	Lon  float64    `json:"lon"`
	Time *time.Time `json:"time,omitempty"`
}

// Track is the ordered point sequence parsed from one input file.
// Points keep their document order; the sequence is never re-sorted.
type Track []TrackPoint

package parser

import "encoding/xml"

// gpxDocument mirrors the subset of the GPX 1.1 schema the engine consumes.
// Waypoints and routes are ignored; only tracks contribute points.
type gpxDocument struct {
	XMLName  xml.Name     `xml:"gpx"`
	Metadata *gpxMetadata `xml:"metadata"`
	Tracks   []gpxTrack   `xml:"trk"`
}

type gpxMetadata struct {
	Time string `xml:"time"`
}

type gpxTrack struct {
	Name     string       `xml:"name"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

// gpxPoint keeps lat/lon as strings so a single malformed attribute drops
// that point instead of failing the whole document.
type gpxPoint struct {
	Lat  string `xml:"lat,attr"`
	Lon  string `xml:"lon,attr"`
	Time string `xml:"time"`
}

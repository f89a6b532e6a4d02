package core

// Extent is a bounding-box size expressed in kilometers.
type Extent struct {
	WidthKm  float64 `json:"widthKm"`
	HeightKm float64 `json:"heightKm"`
}

// AreaKm2 returns the covered area in square kilometers.
func (e Extent) AreaKm2() float64 { return e.WidthKm * e.HeightKm }

// TrackStatistics summarizes one track or one segment of it.
// Trimmed is computed from the 2nd-98th percentile of each coordinate
// axis independently, which keeps single GPS outliers from inflating
// the extent used by the classifier.
type TrackStatistics struct {
	TotalDistanceKm  float64 `json:"totalDistanceKm"`
	TotalDurationSec float64 `json:"totalDurationSec"`
	AvgSpeedKmh      float64 `json:"avgSpeedKmh"`
	MaxSpeedKmh      float64 `json:"maxSpeedKmh"`
	Raw              Extent  `json:"raw"`
	Trimmed          Extent  `json:"trimmed"`
	PointCount       int     `json:"pointCount"`
}

// StatsDisplay holds statistics pre-formatted for the UI. Non-finite
// values are rendered as a placeholder dash instead of NaN/Inf.
type StatsDisplay struct {
	Distance string `json:"distance"`
	Duration string `json:"duration"`
	AvgSpeed string `json:"avgSpeed"`
	MaxSpeed string `json:"maxSpeed"`
}

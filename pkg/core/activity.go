package core

// ActivityLabel is the closed set of activity types the classifier emits.
type ActivityLabel string

const (
	// ActivityFieldSport covers compact-field ball sports played on a
	// pitch-sized area (football, hockey and similar).
	ActivityFieldSport ActivityLabel = "field_sport"
	// ActivityRunning covers endurance runs over open routes.
	ActivityRunning ActivityLabel = "running"
	// ActivityCycling covers rides at sustained road speeds.
	ActivityCycling ActivityLabel = "cycling"
)

// Classification is an activity label plus an optional advisory note.
// The note is set when the winning label's metrics sat close to a
// disqualifying threshold; it never changes the label itself.
type Classification struct {
	Label ActivityLabel `json:"label"`
	Note  string        `json:"note,omitempty"`
}

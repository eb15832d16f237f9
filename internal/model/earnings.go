package model

// EarningsLog is one logged trip's take-home amount. Immutable once
// created except for deletion; the sole input to personal statistics.
type EarningsLog struct {
	ID       string   `json:"id"`
	Platform Platform `json:"platform"`
	Amount   float64  `json:"amount"`
	Zone     string   `json:"zone"`
	// DurationMin may be zero when the driver did not record it.
	DurationMin float64 `json:"durationMin"`
	TimestampMs int64   `json:"timestampMs"`
}

// Preferences holds the driver's stored settings.
type Preferences struct {
	Name                 string   `json:"name"`
	PreferredZones       []string `json:"preferredZones"`
	NotificationsEnabled bool     `json:"notificationsEnabled"`
	Temperature          float64  `json:"temperature"`
	ScoringMode          string   `json:"scoringMode"`
	Language             string   `json:"language"`
	SelectedZone         string   `json:"selectedZone"`
}

// DefaultPreferences returns the settings used before the driver has
// saved anything.
func DefaultPreferences() Preferences {
	return Preferences{
		Name:         "Driver",
		Temperature:  1.0,
		ScoringMode:  "PILOT",
		Language:     "en",
		SelectedZone: "stare-miasto",
	}
}

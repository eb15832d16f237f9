package model

// SessionStatus is the lifecycle state of a tracking session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Session brackets a period of active zone tracking. At most one
// session is active at a time.
type Session struct {
	ID      int64         `json:"id"`
	StartMs int64         `json:"startMs"`
	EndMs   *int64        `json:"endMs,omitempty"`
	Status  SessionStatus `json:"status"`
}

// ZoneDwell records a contiguous stay in one zone within a session.
// A session has at most one open (EndMs nil) dwell at a time.
type ZoneDwell struct {
	ID            int64   `json:"id"`
	SessionID     int64   `json:"sessionId"`
	ZoneID        string  `json:"zoneId"`
	StartMs       int64   `json:"startMs"`
	EndMs         *int64  `json:"endMs,omitempty"`
	DistanceEstKm float64 `json:"distanceEstKm"`
	TimeRegime    string  `json:"timeRegime"`
	DayType       string  `json:"dayType"`
}

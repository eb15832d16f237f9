package zone

import "math"

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// DetectOnce maps a coordinate to a zone id. A zone is a candidate iff
// the point lies within its radius; among candidates the largest
// containment margin (radius minus distance) wins, with ties broken by
// catalog order. Returns "" when no zone contains the point.
func DetectOnce(lat, lng float64, catalog *Catalog) string {
	bestID := ""
	bestMargin := math.Inf(-1)
	for i := range catalog.zones {
		z := &catalog.zones[i]
		d := HaversineKm(lat, lng, z.Lat, z.Lng)
		if d > z.RadiusKm {
			continue
		}
		if margin := z.RadiusKm - d; margin > bestMargin {
			bestMargin = margin
			bestID = z.ID
		}
	}
	return bestID
}

// DetectorConfig tunes the hysteresis state machine.
type DetectorConfig struct {
	// AccuracyMaxM rejects GPS samples with worse reported accuracy.
	AccuracyMaxM float64
	// StableMs is how long a new zone must persist before committing.
	StableMs int64
}

// DefaultDetectorConfig returns the shipped hysteresis tuning.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{AccuracyMaxM: 80, StableMs: 25_000}
}

// State is the hysteresis state threaded through a location stream.
// The zero value is the initial state. Callers must serialize updates:
// transitions assume samples arrive one at a time, in order.
type State struct {
	Current        string `json:"current,omitempty"`
	Pending        string `json:"pending,omitempty"`
	PendingSinceMs int64  `json:"pendingSinceMs,omitempty"`
}

// Sample is one GPS fix.
type Sample struct {
	Lat       float64
	Lng       float64
	AccuracyM float64
	NowMs     int64
}

// Advance runs one hysteresis transition: a pure function of
// (state, sample). A zone change commits only after the candidate has
// persisted continuously for the stability window, which debounces
// flicker at zone boundaries.
func Advance(s State, sample Sample, catalog *Catalog, cfg DetectorConfig) State {
	if sample.AccuracyM > cfg.AccuracyMaxM {
		return s
	}

	candidate := DetectOnce(sample.Lat, sample.Lng, catalog)
	if candidate == "" {
		return State{Current: s.Current}
	}
	if candidate == s.Current {
		return State{Current: s.Current}
	}
	if candidate != s.Pending {
		return State{Current: s.Current, Pending: candidate, PendingSinceMs: sample.NowMs}
	}
	if sample.NowMs-s.PendingSinceMs >= cfg.StableMs {
		return State{Current: candidate}
	}
	return s
}

// Package timectx derives the discrete (day type, time regime) bucket
// used to index seasonality tables and historical offer statistics.
package timectx

import "time"

// TimeRegime is a named band of the 24-hour clock.
type TimeRegime string

const (
	MorningRush TimeRegime = "morning-rush"
	Midday      TimeRegime = "midday"
	EveningRush TimeRegime = "evening-rush"
	LateNight   TimeRegime = "late-night"
	Overnight   TimeRegime = "overnight"
)

// DayType splits the week into weekday and weekend behavior. Friday
// from 20:00 counts as weekend.
type DayType string

const (
	Weekday DayType = "weekday"
	Weekend DayType = "weekend"
)

// Context is the resolved bucket for a wall-clock instant.
type Context struct {
	TimeRegime  TimeRegime `json:"timeRegime"`
	DayType     DayType    `json:"dayType"`
	WeekendMode bool       `json:"weekendMode"`
}

// Resolve computes the bucket for t. Pure and total: the five regimes
// cover the full clock with half-open intervals, late-night wrapping
// past midnight.
func Resolve(t time.Time) Context {
	hm := float64(t.Hour()) + float64(t.Minute())/60

	var regime TimeRegime
	switch {
	case hm >= 5 && hm < 9:
		regime = MorningRush
	case hm >= 9 && hm < 15:
		regime = Midday
	case hm >= 15 && hm < 19:
		regime = EveningRush
	case hm >= 19 || hm < 1:
		regime = LateNight
	default:
		regime = Overnight
	}

	wd := t.Weekday()
	weekend := wd == time.Saturday || wd == time.Sunday || (wd == time.Friday && hm >= 20)

	dayType := Weekday
	if weekend {
		dayType = Weekend
	}
	return Context{TimeRegime: regime, DayType: dayType, WeekendMode: weekend}
}

// ResolveMs resolves a unix-millisecond timestamp in local time.
func ResolveMs(ms int64) Context {
	return Resolve(time.UnixMilli(ms))
}

var regimeLabels = map[TimeRegime]string{
	MorningRush: "Morning Rush (05-09)",
	Midday:      "Midday (09-15)",
	EveningRush: "Evening Rush (15-19)",
	LateNight:   "Late Night (19-01)",
	Overnight:   "Overnight (01-05)",
}

// Label returns the display label for a regime.
func (r TimeRegime) Label() string {
	if l, ok := regimeLabels[r]; ok {
		return l
	}
	return string(r)
}

// Label returns the display label for a day type.
func (d DayType) Label() string {
	if d == Weekend {
		return "Weekend"
	}
	return "Weekday"
}

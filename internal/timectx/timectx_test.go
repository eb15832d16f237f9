package timectx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(day time.Weekday, hour, minute int) time.Time {
	// 2024-01-01 is a Monday.
	base := time.Date(2024, 1, 1, hour, minute, 0, 0, time.Local)
	offset := (int(day) - int(time.Monday) + 7) % 7
	return base.AddDate(0, 0, offset)
}

func TestResolve_Regimes(t *testing.T) {
	tests := []struct {
		name   string
		hour   int
		minute int
		want   TimeRegime
	}{
		{"morning rush start", 5, 0, MorningRush},
		{"morning rush end exclusive", 9, 0, Midday},
		{"midday", 12, 30, Midday},
		{"evening rush start", 15, 0, EveningRush},
		{"evening rush last minute", 18, 59, EveningRush},
		{"late night start", 19, 0, LateNight},
		{"late night wraps midnight", 0, 30, LateNight},
		{"overnight start", 1, 0, Overnight},
		{"overnight end exclusive", 4, 59, Overnight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(at(time.Wednesday, tt.hour, tt.minute))
			assert.Equal(t, tt.want, got.TimeRegime)
		})
	}
}

func TestResolve_DayType(t *testing.T) {
	assert.Equal(t, Weekday, Resolve(at(time.Monday, 12, 0)).DayType)
	assert.Equal(t, Weekday, Resolve(at(time.Friday, 19, 59)).DayType)
	assert.Equal(t, Weekend, Resolve(at(time.Friday, 20, 0)).DayType)
	assert.Equal(t, Weekend, Resolve(at(time.Saturday, 3, 0)).DayType)
	assert.Equal(t, Weekend, Resolve(at(time.Sunday, 23, 0)).DayType)
	assert.True(t, Resolve(at(time.Saturday, 3, 0)).WeekendMode)
}

func TestResolveMs_MatchesResolve(t *testing.T) {
	ts := at(time.Thursday, 8, 15)
	assert.Equal(t, Resolve(ts), ResolveMs(ts.UnixMilli()))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Morning Rush (05-09)", MorningRush.Label())
	assert.Equal(t, "Weekend", Weekend.Label())
	assert.Equal(t, "Weekday", Weekday.Label())
}

package rank

import (
	"math"
	"time"

	"github.com/driveradar/driveradar/internal/model"
	"github.com/driveradar/driveradar/internal/timectx"
)

// PersonalStats is the time-decayed aggregate of a driver's own logged
// trips for one platform in one (zone, day type, regime) bucket.
type PersonalStats struct {
	Platform   model.Platform     `json:"platform"`
	Zone       string             `json:"zone"`
	DayType    timectx.DayType    `json:"dayType"`
	TimeRegime timectx.TimeRegime `json:"timeRegime"`

	// AvgRevPerHour is nil when duration coverage is too thin to trust.
	AvgRevPerHour      *float64 `json:"avgRevPerHour,omitempty"`
	AvgEarningsPerTrip float64  `json:"avgEarningsPerTrip"`
	TripCount          int      `json:"tripCount"`
	TotalEarnings      float64  `json:"totalEarnings"`
	TotalDurationMin   float64  `json:"totalDurationMinutes"`
	HasDurationData    bool     `json:"hasDurationData"`
}

// timeDecay weighs a log by its age: a trip TimeDecayDays old counts
// about 37% as much as one logged today.
func (c Config) timeDecay(logMs, nowMs int64) float64 {
	days := float64(nowMs-logMs) / float64(24*time.Hour/time.Millisecond)
	return math.Exp(-days / c.TimeDecayDays)
}

// PersonalStatsFor aggregates the driver's logs per platform for a
// target zone and context. Only historically comparable trips count:
// each log's own timestamp must resolve to the same day type and
// regime as the target.
func (c Config) PersonalStatsFor(logs []model.EarningsLog, zoneID string, ctx timectx.Context, now time.Time) []PersonalStats {
	nowMs := now.UnixMilli()
	platforms := model.AllPlatforms()
	out := make([]PersonalStats, 0, len(platforms))

	for _, p := range platforms {
		stat := PersonalStats{
			Platform:   p,
			Zone:       zoneID,
			DayType:    ctx.DayType,
			TimeRegime: ctx.TimeRegime,
		}

		var weightedEarnings, weightedDuration, totalWeight float64
		var tripsWithDuration int
		for _, log := range logs {
			if log.Platform != p || log.Zone != zoneID {
				continue
			}
			logCtx := timectx.ResolveMs(log.TimestampMs)
			if logCtx.DayType != ctx.DayType || logCtx.TimeRegime != ctx.TimeRegime {
				continue
			}

			w := c.timeDecay(log.TimestampMs, nowMs)
			weightedEarnings += log.Amount * w
			totalWeight += w
			stat.TripCount++
			stat.TotalEarnings += log.Amount
			stat.TotalDurationMin += log.DurationMin
			if log.DurationMin > 0 {
				weightedDuration += log.DurationMin * w
				tripsWithDuration++
			}
		}

		if stat.TripCount == 0 {
			out = append(out, stat)
			continue
		}

		if totalWeight > 0 {
			stat.AvgEarningsPerTrip = weightedEarnings / totalWeight
		}
		// Require duration on more than half the trips before trusting
		// an hourly rate: one bogus one-minute trip must not produce a
		// distorted figure from a mostly-empty duration pool.
		stat.HasDurationData = float64(tripsWithDuration) > float64(stat.TripCount)*0.5
		if stat.HasDurationData && weightedDuration > 0 {
			avgDurationMin := weightedDuration / float64(tripsWithDuration)
			rev := stat.AvgEarningsPerTrip / avgDurationMin * 60
			stat.AvgRevPerHour = &rev
		}

		out = append(out, stat)
	}
	return out
}

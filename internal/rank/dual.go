package rank

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/driveradar/driveradar/internal/model"
	"github.com/driveradar/driveradar/internal/timectx"
)

// Mode selects the scoring data source.
type Mode string

const (
	// ModePilot ranks from market benchmarks.
	ModePilot Mode = "PILOT"
	// ModePersonal ranks from the driver's own logged history.
	ModePersonal Mode = "PERSONAL"
)

// DualResult is a Result plus mode metadata, so callers stay
// mode-agnostic.
type DualResult struct {
	Result
	Mode               Mode   `json:"mode"`
	ModeLabel          string `json:"modeLabel"`
	DataSource         string `json:"dataSource"`
	MinRecordsRequired int    `json:"minRecordsRequired"`
	CurrentRecordCount int    `json:"currentRecordCount"`
}

func (c Config) personalConfidence(gap float64) ConfidenceLevel {
	switch {
	case gap >= c.PersonalStrong:
		return ConfidenceStrong
	case gap >= c.PersonalMedium:
		return ConfidenceMedium
	default:
		return ConfidenceWeak
	}
}

// pilot wraps a benchmark ranking in dual-mode metadata.
func (c Config) pilot(cat model.ZoneCategory, at time.Time) DualResult {
	return DualResult{
		Result:             c.Benchmark(cat, at),
		Mode:               ModePilot,
		ModeLabel:          "Pilot mode using market benchmarks. Log earnings to unlock Personal mode.",
		DataSource:         "Krakow market benchmarks",
		MinRecordsRequired: c.MinRecordsForPersonal,
	}
}

// personal ranks from logged history, or returns nil when the zone's
// matching record count is below the personal-mode floor.
func (c Config) personal(logs []model.EarningsLog, zoneID string, at time.Time) *DualResult {
	ctx := timectx.Resolve(at)
	stats := c.PersonalStatsFor(logs, zoneID, ctx, at)

	totalRecords := 0
	hasAnyDuration := false
	for _, s := range stats {
		totalRecords += s.TripCount
		hasAnyDuration = hasAnyDuration || s.HasDurationData
	}
	if totalRecords < c.MinRecordsForPersonal {
		return nil
	}

	rankings := make([]PlatformScore, len(stats))
	var sum float64
	for i, s := range stats {
		var score float64
		if hasAnyDuration && s.AvgRevPerHour != nil {
			score = *s.AvgRevPerHour / c.RevPerHourNorm
		} else {
			score = s.AvgEarningsPerTrip / c.PerTripNorm
		}
		// Platforms with more personal data earn a small boost even
		// before the primary score separates them.
		score += math.Min(float64(s.TripCount)/c.TripCountBoostDivisor, c.TripCountBoostCap)
		score = math.Max(0, score)

		rankings[i] = PlatformScore{
			Platform:    s.Platform,
			Score:       score,
			Demand:      s.AvgEarningsPerTrip / c.PerTripNorm,
			Friction:    0.3,
			Incentive:   0.1,
			Reliability: float64(s.TripCount) / 50,
		}
		sum += score
	}

	if sum == 0 {
		sum = 1
	}
	for i := range rankings {
		rankings[i].Probability = rankings[i].Score / sum
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Score > rankings[j].Score
	})

	gap := rankings[0].Probability
	if len(rankings) > 1 {
		gap -= rankings[1].Probability
	}

	modeLabel := "Based on your logged earnings"
	dataSource := "Your earnings history (PLN/hour)"
	if !hasAnyDuration {
		modeLabel = "Based on your logged earnings (duration missing - showing per-trip)"
		dataSource = "Your earnings history (per trip, duration missing)"
	}

	return &DualResult{
		Result: Result{
			Rankings:        rankings,
			TopPlatform:     rankings[0].Platform,
			Confidence:      c.personalConfidence(gap),
			ConfidenceValue: gap,
			Context:         ctx,
		},
		Mode:               ModePersonal,
		ModeLabel:          modeLabel,
		DataSource:         dataSource,
		MinRecordsRequired: c.MinRecordsForPersonal,
		CurrentRecordCount: totalRecords,
	}
}

// Dual ranks platforms in the requested mode. PERSONAL silently falls
// back to the benchmark when fewer than MinRecordsForPersonal matching
// trips exist; the fallback still reports the caller's actual record
// count for that zone.
func (c Config) Dual(mode Mode, logs []model.EarningsLog, zoneID string, cat model.ZoneCategory, at time.Time) DualResult {
	if mode == ModePersonal {
		if res := c.personal(logs, zoneID, at); res != nil {
			return *res
		}
		zap.L().Debug("rank: personal mode below record floor, falling back to pilot",
			zap.String("zone", zoneID),
		)
	}

	res := c.pilot(cat, at)
	res.CurrentRecordCount = RecordCountForZone(logs, zoneID)
	return res
}

// RecordCountForZone counts logs for a zone regardless of context.
func RecordCountForZone(logs []model.EarningsLog, zoneID string) int {
	n := 0
	for _, l := range logs {
		if l.Zone == zoneID {
			n++
		}
	}
	return n
}

// HasEnoughDataForPersonal reports whether a zone has reached the
// personal-mode record floor.
func (c Config) HasEnoughDataForPersonal(logs []model.EarningsLog, zoneID string) bool {
	return RecordCountForZone(logs, zoneID) >= c.MinRecordsForPersonal
}

package rank

import (
	"math"
	"sort"
	"time"

	"github.com/driveradar/driveradar/internal/model"
	"github.com/driveradar/driveradar/internal/timectx"
)

// ConfidenceLevel labels how separated the top two platforms are.
type ConfidenceLevel string

const (
	ConfidenceStrong ConfidenceLevel = "Strong"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceWeak   ConfidenceLevel = "Weak"
)

// PlatformScore is one platform's scored position in a ranking.
type PlatformScore struct {
	Platform    model.Platform `json:"platform"`
	Score       float64        `json:"score"`
	Probability float64        `json:"probability"`
	Demand      float64        `json:"demandScore"`
	Friction    float64        `json:"frictionScore"`
	Incentive   float64        `json:"incentiveScore"`
	Reliability float64        `json:"reliabilityScore"`
}

// Result is a full ranking across all platforms. Produced fresh per
// call, never persisted as a unit.
type Result struct {
	Rankings        []PlatformScore `json:"rankings"`
	TopPlatform     model.Platform  `json:"topPlatform"`
	Confidence      ConfidenceLevel `json:"confidence"`
	ConfidenceValue float64         `json:"confidenceValue"`
	Context         timectx.Context `json:"context"`
}

// Event and weather demand factors are constant extension points.
func (c Config) eventMultiplier() float64   { return 1.0 }
func (c Config) weatherMultiplier() float64 { return 1.0 }

func (c Config) seasonality(cat model.ZoneCategory, ctx timectx.Context, hour int) float64 {
	table := c.Seasonality[cat]
	if ctx.DayType == timectx.Weekend {
		return table.Weekend[hour]
	}
	return table.Weekday[hour]
}

func (c Config) demand(cat model.ZoneCategory, ctx timectx.Context, hour int) float64 {
	return c.Weights.Event*c.eventMultiplier() +
		c.Weights.Weather*c.weatherMultiplier() +
		c.Weights.Seasonality*c.seasonality(cat, ctx, hour)
}

func (c Config) friction(cat model.ZoneCategory, hour int) float64 {
	return c.Weights.Congestion*c.Congestion[cat][hour] +
		c.Weights.Deadhead*c.Deadhead[cat]
}

// softmax converts raw scores to probabilities, stabilized by
// subtracting the max before exponentiating.
func softmax(scores []float64, temperature float64) []float64 {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp((s - maxScore) / temperature)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func (c Config) benchmarkConfidence(gap float64) ConfidenceLevel {
	switch {
	case gap >= c.BenchmarkStrong:
		return ConfidenceStrong
	case gap >= c.BenchmarkMedium:
		return ConfidenceMedium
	default:
		return ConfidenceWeak
	}
}

// Benchmark ranks all platforms for a zone category at a given time
// using market priors. Pure and total: a ranking is always produced.
func (c Config) Benchmark(cat model.ZoneCategory, at time.Time) Result {
	ctx := timectx.Resolve(at)
	hour := at.Hour()

	demand := c.demand(cat, ctx, hour)
	friction := c.friction(cat, hour)

	platforms := model.AllPlatforms()
	rankings := make([]PlatformScore, len(platforms))
	scores := make([]float64, len(platforms))
	for i, p := range platforms {
		incentive := c.Incentive[p][cat]
		reliability := c.Reliability[p]
		score := c.Weights.Demand*demand -
			c.Weights.Friction*friction +
			c.Weights.Incentive*incentive +
			c.Weights.Reliability*reliability
		rankings[i] = PlatformScore{
			Platform:    p,
			Score:       score,
			Demand:      demand,
			Friction:    friction,
			Incentive:   incentive,
			Reliability: reliability,
		}
		scores[i] = score
	}

	probs := softmax(scores, c.Temperature)
	for i := range rankings {
		rankings[i].Probability = probs[i]
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Probability > rankings[j].Probability
	})

	gap := rankings[0].Probability - rankings[1].Probability
	return Result{
		Rankings:        rankings,
		TopPlatform:     rankings[0].Platform,
		Confidence:      c.benchmarkConfidence(gap),
		ConfidenceValue: gap,
		Context:         ctx,
	}
}

// DemandLevel buckets a demand value for display.
func DemandLevel(v float64) string {
	switch {
	case v >= 1.2:
		return "High"
	case v >= 0.8:
		return "Medium"
	default:
		return "Low"
	}
}

// FrictionLevel buckets a friction value for display.
func FrictionLevel(v float64) string {
	switch {
	case v >= 0.6:
		return "High"
	case v >= 0.3:
		return "Medium"
	default:
		return "Low"
	}
}

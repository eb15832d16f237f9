// Package rank implements the platform ranking engine: the market
// benchmark model, the personal-history aggregator, and the dual-mode
// scorer that arbitrates between them.
package rank

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/driveradar/driveradar/internal/model"
)

// Weights are the linear coefficients of the benchmark model.
// Demand dominates, friction is penalized.
type Weights struct {
	Demand      float64 `yaml:"demand" mapstructure:"demand"`
	Friction    float64 `yaml:"friction" mapstructure:"friction"`
	Incentive   float64 `yaml:"incentive" mapstructure:"incentive"`
	Reliability float64 `yaml:"reliability" mapstructure:"reliability"`

	// Demand sub-weights.
	Event       float64 `yaml:"event" mapstructure:"event"`
	Weather     float64 `yaml:"weather" mapstructure:"weather"`
	Seasonality float64 `yaml:"seasonality" mapstructure:"seasonality"`

	// Friction sub-weights.
	Congestion float64 `yaml:"congestion" mapstructure:"congestion"`
	Deadhead   float64 `yaml:"deadhead" mapstructure:"deadhead"`
}

// HourTable holds one multiplier per hour of day.
type HourTable [24]float64

// SeasonalityTable holds demand multipliers by day type and hour.
type SeasonalityTable struct {
	Weekday HourTable `yaml:"weekday"`
	Weekend HourTable `yaml:"weekend"`
}

// Config carries every tunable of the ranking engine. The multiplier
// tables are configuration data, not derived facts: deployments retune
// them per city without code changes.
type Config struct {
	Weights     Weights
	Temperature float64

	Seasonality map[model.ZoneCategory]SeasonalityTable
	Congestion  map[model.ZoneCategory]HourTable
	Deadhead    map[model.ZoneCategory]float64
	Incentive   map[model.Platform]map[model.ZoneCategory]float64
	Reliability map[model.Platform]float64

	// Confidence tier thresholds on the top-two probability gap. The
	// benchmark and personal sets differ deliberately: softmax
	// probabilities cluster tighter than linear shares.
	BenchmarkStrong float64
	BenchmarkMedium float64
	PersonalStrong  float64
	PersonalMedium  float64

	// Personal mode tuning.
	MinRecordsForPersonal int
	TimeDecayDays         float64
	RevPerHourNorm        float64
	PerTripNorm           float64
	TripCountBoostDivisor float64
	TripCountBoostCap     float64
}

// DefaultConfig returns the shipped Krakow tuning.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Demand:      1.0,
			Friction:    0.8,
			Incentive:   0.5,
			Reliability: 0.3,
			Event:       0.4,
			Weather:     0.3,
			Seasonality: 0.3,
			Congestion:  0.6,
			Deadhead:    0.4,
		},
		Temperature: 1.0,

		Seasonality: defaultSeasonality(),
		Congestion: map[model.ZoneCategory]HourTable{
			model.CategoryAirport: {
				0.1, 0.1, 0.1, 0.1, 0.2, 0.4, 0.6, 0.8, 0.9, 0.7,
				0.5, 0.4, 0.5, 0.5, 0.5, 0.6, 0.7, 0.8, 0.8, 0.6,
				0.4, 0.3, 0.2, 0.1,
			},
			model.CategoryCenter: {
				0.1, 0.1, 0.1, 0.1, 0.1, 0.2, 0.4, 0.7, 0.9, 0.8,
				0.6, 0.6, 0.7, 0.7, 0.6, 0.6, 0.7, 0.9, 0.9, 0.7,
				0.5, 0.4, 0.3, 0.2,
			},
			model.CategoryResidential: {
				0.1, 0.1, 0.1, 0.1, 0.1, 0.2, 0.3, 0.5, 0.6, 0.4,
				0.3, 0.3, 0.3, 0.3, 0.3, 0.4, 0.5, 0.6, 0.5, 0.4,
				0.3, 0.2, 0.1, 0.1,
			},
		},
		Deadhead: map[model.ZoneCategory]float64{
			model.CategoryAirport:     0.3,
			model.CategoryCenter:      0.2,
			model.CategoryResidential: 0.6,
		},
		Incentive: map[model.Platform]map[model.ZoneCategory]float64{
			model.PlatformBolt:    {model.CategoryAirport: 0.1, model.CategoryCenter: 0.2, model.CategoryResidential: 0.15},
			model.PlatformUber:    {model.CategoryAirport: 0.15, model.CategoryCenter: 0.1, model.CategoryResidential: 0.1},
			model.PlatformFreeNow: {model.CategoryAirport: 0.05, model.CategoryCenter: 0.15, model.CategoryResidential: 0.2},
		},
		Reliability: map[model.Platform]float64{
			model.PlatformBolt:    0.1,
			model.PlatformUber:    0.2,
			model.PlatformFreeNow: 0.0,
		},

		BenchmarkStrong: 0.30,
		BenchmarkMedium: 0.15,
		PersonalStrong:  0.25,
		PersonalMedium:  0.10,

		MinRecordsForPersonal: 5,
		TimeDecayDays:         30,
		RevPerHourNorm:        50,
		PerTripNorm:           30,
		TripCountBoostDivisor: 20,
		TripCountBoostCap:     0.2,
	}
}

// defaultSeasonality builds the hand-tuned demand bands. Airports peak
// at commute hours, the center spikes late-night on weekends, and
// residential zones follow commuter flows.
func defaultSeasonality() map[model.ZoneCategory]SeasonalityTable {
	var airport, center, centerWknd, residential HourTable
	for hour := 0; hour < 24; hour++ {
		switch {
		case hour >= 5 && hour <= 9:
			airport[hour] = 1.8
		case hour >= 16 && hour <= 20:
			airport[hour] = 1.6
		case hour <= 4:
			airport[hour] = 0.6
		default:
			airport[hour] = 1.2
		}

		switch {
		case hour >= 7 && hour <= 9:
			center[hour] = 1.6
		case hour >= 17 && hour <= 19:
			center[hour] = 1.8
		case hour >= 12 && hour <= 14:
			center[hour] = 1.3
		case hour >= 22 || hour <= 5:
			center[hour] = 0.5
		default:
			center[hour] = 1.0
		}

		switch {
		case hour >= 20 || hour <= 2:
			centerWknd[hour] = 2.0
		case hour >= 12 && hour <= 18:
			centerWknd[hour] = 1.5
		default:
			centerWknd[hour] = 0.8
		}

		switch {
		case hour >= 7 && hour <= 9:
			residential[hour] = 1.5
		case hour >= 17 && hour <= 19:
			residential[hour] = 1.4
		case hour >= 22 || hour <= 6:
			residential[hour] = 0.4
		default:
			residential[hour] = 0.9
		}
	}
	return map[model.ZoneCategory]SeasonalityTable{
		model.CategoryAirport:     {Weekday: airport, Weekend: airport},
		model.CategoryCenter:      {Weekday: center, Weekend: centerWknd},
		model.CategoryResidential: {Weekday: residential, Weekend: residential},
	}
}

// Validate checks that a Config is internally consistent.
func Validate(c Config) error {
	var errs []string

	if c.Temperature <= 0 {
		errs = append(errs, "temperature must be > 0")
	}
	for name, w := range map[string]float64{
		"demand":      c.Weights.Demand,
		"friction":    c.Weights.Friction,
		"incentive":   c.Weights.Incentive,
		"reliability": c.Weights.Reliability,
		"event":       c.Weights.Event,
		"weather":     c.Weights.Weather,
		"seasonality": c.Weights.Seasonality,
		"congestion":  c.Weights.Congestion,
		"deadhead":    c.Weights.Deadhead,
	} {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("weight %s must be >= 0", name))
		}
	}
	for _, cat := range model.AllCategories() {
		if _, ok := c.Seasonality[cat]; !ok {
			errs = append(errs, fmt.Sprintf("seasonality table missing category %s", cat))
		}
		if _, ok := c.Congestion[cat]; !ok {
			errs = append(errs, fmt.Sprintf("congestion table missing category %s", cat))
		}
		if _, ok := c.Deadhead[cat]; !ok {
			errs = append(errs, fmt.Sprintf("deadhead table missing category %s", cat))
		}
	}
	for _, p := range model.AllPlatforms() {
		if _, ok := c.Incentive[p]; !ok {
			errs = append(errs, fmt.Sprintf("incentive priors missing platform %s", p))
		}
		if _, ok := c.Reliability[p]; !ok {
			errs = append(errs, fmt.Sprintf("reliability prior missing platform %s", p))
		}
	}
	if c.BenchmarkStrong < c.BenchmarkMedium || c.PersonalStrong < c.PersonalMedium {
		errs = append(errs, "strong thresholds must be >= medium thresholds")
	}
	if c.MinRecordsForPersonal < 1 {
		errs = append(errs, "min_records_for_personal must be >= 1")
	}
	if c.TimeDecayDays <= 0 || math.IsNaN(c.TimeDecayDays) {
		errs = append(errs, "time_decay_days must be > 0")
	}
	if c.RevPerHourNorm <= 0 || c.PerTripNorm <= 0 {
		errs = append(errs, "score normalizers must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("rank: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

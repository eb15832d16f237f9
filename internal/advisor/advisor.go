// Package advisor scores individual dispatch offers and produces idle
// positioning guidance from persisted bucket history.
package advisor

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/driveradar/driveradar/internal/model"
	"github.com/driveradar/driveradar/internal/timectx"
	"github.com/driveradar/driveradar/internal/zone"
)

// Confidence reflects how much bucket history backs a recommendation.
type Confidence string

const (
	ConfidenceWeak   Confidence = "WEAK"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceStrong Confidence = "STRONG"
)

// Action is the advised move.
type Action string

const (
	ActionTake    Action = "TAKE"
	ActionDecline Action = "DECLINE"
	ActionWait    Action = "WAIT"
	ActionMove    Action = "MOVE"
	ActionCollect Action = "COLLECT"
)

// Mode distinguishes the three recommendation shapes.
type Mode string

const (
	ModePick    Mode = "PICK"
	ModeGuide   Mode = "GUIDE"
	ModeCollect Mode = "COLLECT"
)

// Recommendation is a tagged variant: exactly one of Pick, Guide, or
// Collect, each carrying only the fields meaningful to that shape.
type Recommendation interface {
	Mode() Mode
	Action() Action
}

// Pick is a TAKE/DECLINE judgment on a specific offer.
type Pick struct {
	Act           Action         `json:"action"`
	PlatformHint  model.Platform `json:"platformHint,omitempty"`
	Confidence    Confidence     `json:"confidence"`
	Reasons       []string       `json:"reasons"`
	StayUntilMin  float64        `json:"stayUntilMin,omitempty"`
	LeaveIfMin    float64        `json:"leaveIfMin,omitempty"`
	SuggestedZone string         `json:"suggestedZone,omitempty"`
}

func (Pick) Mode() Mode       { return ModePick }
func (p Pick) Action() Action { return p.Act }

// Guide is idle positioning advice: stay put or reposition.
type Guide struct {
	Act           Action     `json:"action"`
	Confidence    Confidence `json:"confidence"`
	Reasons       []string   `json:"reasons"`
	StayUntilMin  float64    `json:"stayUntilMin"`
	LeaveIfMin    float64    `json:"leaveIfMin"`
	SuggestedZone string     `json:"suggestedZone,omitempty"`
}

func (Guide) Mode() Mode       { return ModeGuide }
func (g Guide) Action() Action { return g.Act }

// Collect means there is not enough history to judge; no TAKE/DECLINE
// verdict is issued.
type Collect struct {
	NeededSamples int    `json:"neededSamples"`
	Instruction   string `json:"instruction"`
}

func (Collect) Mode() Mode     { return ModeCollect }
func (Collect) Action() Action { return ActionCollect }

// Settings are the driver's economic preferences.
type Settings struct {
	TargetHourly   float64 `json:"targetHourly"`
	CostPerKm      float64 `json:"costPerKm"`
	Tolerance      float64 `json:"tolerance"`
	RiskPreference float64 `json:"riskPreference"`
}

// DefaultSettings returns the shipped driver economics.
func DefaultSettings() Settings {
	return Settings{
		TargetHourly:   90,
		CostPerKm:      0.70,
		Tolerance:      0.10,
		RiskPreference: 0.5,
	}
}

// OfferInput is one incoming dispatch offer to judge.
type OfferInput struct {
	Platform   model.Platform `json:"platform"`
	PickupZone string         `json:"pickupZone"`
	DestZone   string         `json:"destZone"`
	Fare       float64        `json:"fare"`
	ETAMinutes float64        `json:"etaMinutes"`
	DistanceKm *float64       `json:"distanceKm,omitempty"`
}

// ScoreComponents is the numeric breakdown kept alongside the
// recommendation for audit.
type ScoreComponents struct {
	EffectiveHourly float64 `json:"effectiveHourly"`
	PostDestHourly  float64 `json:"postDestHourly"`
	TotalScore      float64 `json:"totalScore"`
	EstCosts        float64 `json:"estCosts"`
	NetFare         float64 `json:"netFare"`
}

const (
	estimatedSpeedKmPerMin = 0.45
	minSamplesForJudgment  = 5
	strongSampleThreshold  = 15
)

// BucketSource provides historical offer aggregates.
type BucketSource interface {
	StatsForBucket(ctx context.Context, platform model.Platform, destZone, timeRegime, dayType string) (*model.BucketStats, error)
}

// Advisor scores offers against bucket history and the zone catalog.
type Advisor struct {
	stats    BucketSource
	catalog  *zone.Catalog
	settings Settings
}

func New(stats BucketSource, catalog *zone.Catalog, settings Settings) *Advisor {
	return &Advisor{stats: stats, catalog: catalog, settings: settings}
}

func confidenceLevel(sampleCount int) Confidence {
	if sampleCount < minSamplesForJudgment {
		return ConfidenceWeak
	}
	if sampleCount < strongSampleThreshold {
		return ConfidenceMedium
	}
	return ConfidenceStrong
}

// ConfidenceValue maps a sample count onto a 0..0.85 scale for display.
func ConfidenceValue(sampleCount int) float64 {
	if sampleCount < minSamplesForJudgment {
		return 0.35 * (float64(sampleCount) / minSamplesForJudgment)
	}
	if sampleCount < strongSampleThreshold {
		return 0.35 + 0.30*(float64(sampleCount-minSamplesForJudgment)/(strongSampleThreshold-minSamplesForJudgment))
	}
	return math.Min(0.85, 0.65+0.20*math.Min(float64(sampleCount-strongSampleThreshold)/15, 1))
}

func (a *Advisor) effectiveHourly(in OfferInput) (effective, estCosts, netFare float64) {
	estDist := in.ETAMinutes * estimatedSpeedKmPerMin
	if in.DistanceKm != nil {
		estDist = *in.DistanceKm
	}
	estCosts = a.settings.CostPerKm * estDist
	netFare = in.Fare - estCosts
	if in.ETAMinutes > 0 {
		effective = netFare / in.ETAMinutes * 60
	}
	return effective, estCosts, netFare
}

// bucketStats fetches history for one bucket. Store failures degrade
// to no history rather than blocking the recommendation.
func (a *Advisor) bucketStats(ctx context.Context, platform model.Platform, destZone string, tc timectx.Context) *model.BucketStats {
	stats, err := a.stats.StatsForBucket(ctx, platform, destZone, string(tc.TimeRegime), string(tc.DayType))
	if err != nil {
		zap.L().Warn("advisor: bucket stats lookup failed",
			zap.String("platform", string(platform)),
			zap.String("dest_zone", destZone),
			zap.Error(err))
		return nil
	}
	return stats
}

// ScoreOffer judges a single offer at the given time. With fewer than
// five bucket samples the verdict is withheld as a Collect.
func (a *Advisor) ScoreOffer(ctx context.Context, in OfferInput, at time.Time) (Recommendation, ScoreComponents) {
	tc := timectx.Resolve(at)
	stats := a.bucketStats(ctx, in.Platform, in.DestZone, tc)

	sampleCount := 0
	postDestHourly := 0.0
	if stats != nil {
		sampleCount = stats.SampleCount
		postDestHourly = stats.AvgRevPerHour
	}
	confidence := confidenceLevel(sampleCount)

	effective, estCosts, netFare := a.effectiveHourly(in)

	var postDestWeight float64
	switch confidence {
	case ConfidenceMedium:
		postDestWeight = 0.2
	case ConfidenceStrong:
		postDestWeight = 0.3
	}

	totalScore := (1-postDestWeight)*effective + postDestWeight*postDestHourly

	components := ScoreComponents{
		EffectiveHourly: effective,
		PostDestHourly:  postDestHourly,
		TotalScore:      totalScore,
		EstCosts:        estCosts,
		NetFare:         netFare,
	}

	if confidence == ConfidenceWeak {
		needed := minSamplesForJudgment - sampleCount
		return Collect{
			NeededSamples: needed,
			Instruction:   fmt.Sprintf("Log %d more trips to %s to get personalized recommendations", needed, in.DestZone),
		}, components
	}

	minAcceptable := a.settings.TargetHourly * (1 - a.settings.Tolerance)
	take := totalScore >= minAcceptable

	var reasons []string
	if take {
		reasons = append(reasons, fmt.Sprintf("Expected %.0f PLN/h meets your %.0f PLN/h target", totalScore, minAcceptable))
		if postDestWeight > 0 && postDestHourly > 0 {
			reasons = append(reasons, fmt.Sprintf("%s historically yields %.0f PLN/h", in.DestZone, postDestHourly))
		}
	} else {
		reasons = append(reasons, fmt.Sprintf("Expected %.0f PLN/h is below your %.0f PLN/h target", totalScore, minAcceptable))
		if estCosts > in.Fare*0.3 {
			reasons = append(reasons, fmt.Sprintf("High estimated costs: %.0f PLN", estCosts))
		}
	}

	pick := Pick{
		Act:          ActionDecline,
		PlatformHint: in.Platform,
		Confidence:   confidence,
		Reasons:      reasons,
	}
	if take {
		pick.Act = ActionTake
	}
	if dest := a.catalog.ByID(in.DestZone); dest != nil {
		pick.StayUntilMin = dest.StayUntilMin
		pick.LeaveIfMin = dest.LeaveIfMin
		if len(dest.SuggestedNext) > 0 {
			pick.SuggestedZone = dest.SuggestedNext[0]
		}
	}
	return pick, components
}

// IdleRecommendation advises a driver with no offer in hand, based on
// how long they have dwelled in the current zone.
func (a *Advisor) IdleRecommendation(ctx context.Context, currentZoneID string, dwellMinutes float64, at time.Time) Recommendation {
	if currentZoneID == "" {
		return Collect{
			NeededSamples: minSamplesForJudgment,
			Instruction:   "Enable location to get zone-based recommendations",
		}
	}
	z := a.catalog.ByID(currentZoneID)
	if z == nil {
		return Collect{
			NeededSamples: minSamplesForJudgment,
			Instruction:   "Zone not recognized. Log trips to build data.",
		}
	}

	tc := timectx.Resolve(at)
	totalSamples := 0
	for _, p := range model.AllPlatforms() {
		if stats := a.bucketStats(ctx, p, currentZoneID, tc); stats != nil {
			totalSamples += stats.SampleCount
		}
	}

	confidence := confidenceLevel(totalSamples)
	if confidence == ConfidenceWeak {
		needed := minSamplesForJudgment - totalSamples
		return Collect{
			NeededSamples: needed,
			Instruction:   fmt.Sprintf("Log %d trips from %s to build recommendations", needed, z.Name),
		}
	}

	suggested := ""
	if len(z.SuggestedNext) > 0 {
		suggested = z.SuggestedNext[0]
	}

	if dwellMinutes >= z.LeaveIfMin {
		return Guide{
			Act:        ActionMove,
			Confidence: confidence,
			Reasons: []string{
				fmt.Sprintf("You've been in %s for %.0f min (leave threshold: %.0f min)", z.Name, dwellMinutes, z.LeaveIfMin),
				fmt.Sprintf("Consider moving to %s", suggested),
			},
			StayUntilMin:  z.StayUntilMin,
			LeaveIfMin:    z.LeaveIfMin,
			SuggestedZone: suggested,
		}
	}

	var reasons []string
	if dwellMinutes < z.StayUntilMin {
		reasons = []string{
			fmt.Sprintf("Wait up to %.0f min in %s", z.StayUntilMin, z.Name),
			fmt.Sprintf("Zone bias: %s", z.Bias),
		}
	} else {
		reasons = []string{
			fmt.Sprintf("In %s for %.0f min", z.Name, dwellMinutes),
			fmt.Sprintf("Consider leaving after %.0f min if no offers", z.LeaveIfMin),
		}
	}
	return Guide{
		Act:           ActionWait,
		Confidence:    confidence,
		Reasons:       reasons,
		StayUntilMin:  z.StayUntilMin,
		LeaveIfMin:    z.LeaveIfMin,
		SuggestedZone: suggested,
	}
}

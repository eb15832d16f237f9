package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveradar/driveradar/internal/advisor"
	"github.com/driveradar/driveradar/internal/model"
	"github.com/driveradar/driveradar/internal/rank"
	"github.com/driveradar/driveradar/internal/timectx"
)

func TestResolveRankMode(t *testing.T) {
	mode, err := resolveRankMode("")
	require.NoError(t, err)
	assert.Equal(t, rank.Mode(""), mode)

	mode, err = resolveRankMode("pilot")
	require.NoError(t, err)
	assert.Equal(t, rank.ModePilot, mode)

	mode, err = resolveRankMode("PERSONAL")
	require.NoError(t, err)
	assert.Equal(t, rank.ModePersonal, mode)

	_, err = resolveRankMode("market")
	assert.Error(t, err)
}

func TestFormatRanking(t *testing.T) {
	res := rank.DualResult{
		Result: rank.Result{
			Rankings: []rank.PlatformScore{
				{Platform: model.PlatformUber, Score: 1.234, Probability: 0.52, Demand: 1.3, Friction: 0.4},
				{Platform: model.PlatformBolt, Score: 1.100, Probability: 0.48, Demand: 0.9, Friction: 0.7},
			},
			TopPlatform:     model.PlatformUber,
			Confidence:      rank.ConfidenceMedium,
			ConfidenceValue: 0.04,
			Context: timectx.Context{
				TimeRegime: timectx.EveningRush,
				DayType:    timectx.Weekday,
			},
		},
		Mode:               rank.ModePilot,
		ModeLabel:          "Pilot mode using market benchmarks. Log earnings to unlock Personal mode.",
		MinRecordsRequired: 10,
		CurrentRecordCount: 3,
	}

	var buf bytes.Buffer
	formatRanking(&buf, "Stare Miasto", res)
	out := buf.String()

	assert.Contains(t, out, "Zone: Stare Miasto")
	assert.Contains(t, out, "Mode: PILOT")
	assert.Contains(t, out, "Uber")
	assert.Contains(t, out, "52.0%")
	assert.Contains(t, out, "High")
	assert.Contains(t, out, "Log 7 more trips in this zone to unlock Personal mode.")
}

func TestFormatRanking_PersonalOmitsUnlockHint(t *testing.T) {
	res := rank.DualResult{
		Result: rank.Result{
			Rankings:   []rank.PlatformScore{{Platform: model.PlatformBolt, Score: 1, Probability: 1}},
			Confidence: rank.ConfidenceStrong,
		},
		Mode:               rank.ModePersonal,
		MinRecordsRequired: 10,
		CurrentRecordCount: 12,
	}

	var buf bytes.Buffer
	formatRanking(&buf, "Kazimierz", res)
	assert.NotContains(t, buf.String(), "unlock Personal mode")
}

func TestBuildOffer(t *testing.T) {
	dist := 10.0
	in := advisor.OfferInput{
		Platform:   model.PlatformUber,
		PickupZone: "stare-miasto",
		DestZone:   "airport",
		Fare:       50,
		ETAMinutes: 30,
		DistanceKm: &dist,
	}
	rec := advisor.Pick{Act: advisor.ActionTake, Confidence: advisor.ConfidenceMedium}
	components := advisor.ScoreComponents{EffectiveHourly: 86, NetFare: 43}
	now := time.Date(2024, 3, 13, 18, 0, 0, 0, time.Local)

	offer, err := buildOffer(in, rec, components, true, "rain", now)
	require.NoError(t, err)

	assert.Equal(t, model.PlatformUber, offer.Platform)
	assert.Equal(t, "airport", offer.DestZone)
	assert.True(t, offer.Surge)
	assert.Equal(t, "rain", offer.Note)
	assert.Equal(t, now.UnixMilli(), offer.CreatedAtMs)
	assert.Equal(t, "evening-rush", offer.TimeRegime)
	assert.Equal(t, "weekday", offer.DayType)
	assert.Equal(t, "TAKE", offer.RecommendationAction)
	assert.Equal(t, "MEDIUM", offer.RecommendationConfidence)
	assert.Equal(t, scorerVersion, offer.ModelVersion)

	var decoded advisor.ScoreComponents
	require.NoError(t, json.Unmarshal([]byte(offer.ScoreComponents), &decoded))
	assert.InDelta(t, 86, decoded.EffectiveHourly, 0.001)
}

func TestBuildOffer_CollectHasNoConfidence(t *testing.T) {
	in := advisor.OfferInput{Platform: model.PlatformBolt, DestZone: "airport", Fare: 30}
	rec := advisor.Collect{NeededSamples: 3, Instruction: "Log 3 more trips to airport"}

	offer, err := buildOffer(in, rec, advisor.ScoreComponents{}, false, "", time.Now())
	require.NoError(t, err)

	assert.Equal(t, "COLLECT", offer.RecommendationAction)
	assert.Empty(t, offer.RecommendationConfidence)
}

func TestFormatRecommendation_Pick(t *testing.T) {
	rec := advisor.Pick{
		Act:           advisor.ActionTake,
		Confidence:    advisor.ConfidenceStrong,
		Reasons:       []string{"Expected 95 PLN/h meets your 90 PLN/h target"},
		SuggestedZone: "kazimierz",
		StayUntilMin:  10,
		LeaveIfMin:    18,
	}

	var buf bytes.Buffer
	formatRecommendation(&buf, rec)
	out := buf.String()

	assert.Contains(t, out, "TAKE (STRONG)")
	assert.Contains(t, out, "Expected 95 PLN/h")
	assert.Contains(t, out, "kazimierz")
}

func TestFormatRecommendation_Collect(t *testing.T) {
	var buf bytes.Buffer
	formatRecommendation(&buf, advisor.Collect{NeededSamples: 2, Instruction: "Log 2 more trips to airport"})
	assert.Contains(t, buf.String(), "COLLECT")
	assert.Contains(t, buf.String(), "Log 2 more trips to airport")
}

func TestFormatOffersList(t *testing.T) {
	fb := model.FeedbackFollowed
	offers := []model.Offer{
		{
			ID:                   1,
			Platform:             model.PlatformUber,
			PickupZone:           "stare-miasto",
			DestZone:             "airport",
			Fare:                 50,
			ETAMinutes:           30,
			RecommendationAction: "TAKE",
			Feedback:             &fb,
			CreatedAtMs:          time.Date(2024, 3, 15, 18, 0, 0, 0, time.Local).UnixMilli(),
		},
		{ID: 2, Platform: model.PlatformBolt, DestZone: "kazimierz", Fare: 21.5},
	}

	var buf bytes.Buffer
	formatOffersList(&buf, offers)
	out := buf.String()

	assert.Contains(t, out, "FOLLOWED")
	assert.Contains(t, out, "50.00")
	assert.Contains(t, out, "2024-03-15 18:00")
	assert.Contains(t, out, "kazimierz")
}

func TestFormatEarningsList(t *testing.T) {
	logs := []model.EarningsLog{
		{ID: "aaaaaaaa-1111", Platform: model.PlatformUber, Amount: 45.5, Zone: "airport", DurationMin: 25, TimestampMs: time.Now().UnixMilli()},
		{ID: "bbbbbbbb-2222", Platform: model.PlatformBolt, Amount: 20, Zone: "kazimierz", TimestampMs: time.Now().UnixMilli()},
	}

	var buf bytes.Buffer
	formatEarningsList(&buf, logs)
	out := buf.String()

	assert.Contains(t, out, "aaaaaaaa")
	assert.NotContains(t, out, "aaaaaaaa-1111")
	assert.Contains(t, out, "Total: 65.50 PLN across 2 trips")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("123456789abc"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestResolveReceiptPlatform(t *testing.T) {
	p, err := resolveReceiptPlatform("bolt", "anything")
	require.NoError(t, err)
	assert.Equal(t, model.PlatformBolt, p)

	_, err = resolveReceiptPlatform("lyft", "anything")
	assert.Error(t, err)

	p, err = resolveReceiptPlatform("", "Thanks for riding with Uber!")
	require.NoError(t, err)
	assert.Equal(t, model.PlatformUber, p)

	_, err = resolveReceiptPlatform("", "unbranded text")
	assert.Error(t, err)
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveradar/driveradar/internal/model"
	"github.com/driveradar/driveradar/internal/receipt"
	"github.com/driveradar/driveradar/internal/zone"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func ptr[T any](v T) *T { return &v }

// --- Sessions ---

func TestSQLite_StartSession_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.StartSession(ctx, 1000)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, model.SessionActive, first.Status)

	// A second start while one is active returns the same session.
	second, err := st.StartSession(ctx, 2000)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1000), second.StartMs)
}

func TestSQLite_StopSession_ForceClosesOpenDwell(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sess, err := st.StartSession(ctx, 1000)
	require.NoError(t, err)

	dwell, err := st.OpenDwell(ctx, sess.ID, "stare-miasto", 1500, "morning-rush", "weekday")
	require.NoError(t, err)

	stopped, err := st.StopSession(ctx, 5000)
	require.NoError(t, err)
	require.NotNil(t, stopped)
	assert.Equal(t, model.SessionCompleted, stopped.Status)
	require.NotNil(t, stopped.EndMs)
	assert.Equal(t, int64(5000), *stopped.EndMs)

	dwells, err := st.DwellsForSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, dwells, 1)
	assert.Equal(t, dwell.ID, dwells[0].ID)
	require.NotNil(t, dwells[0].EndMs)
	assert.Equal(t, int64(5000), *dwells[0].EndMs)

	active, err := st.ActiveSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestSQLite_StopSession_NoActive(t *testing.T) {
	st := newTestSQLiteStore(t)

	stopped, err := st.StopSession(context.Background(), 1000)
	require.NoError(t, err)
	assert.Nil(t, stopped)
}

// --- Dwells ---

func TestSQLite_Dwell_OpenCloseRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sess, err := st.StartSession(ctx, 0)
	require.NoError(t, err)

	d, err := st.OpenDwell(ctx, sess.ID, "kazimierz", 100, "midday", "weekday")
	require.NoError(t, err)

	open, err := st.OpenDwellFor(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, d.ID, open.ID)
	assert.Equal(t, "kazimierz", open.ZoneID)
	assert.Nil(t, open.EndMs)

	require.NoError(t, st.CloseDwell(ctx, d.ID, 60_000, 2.5))

	open, err = st.OpenDwellFor(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, open)

	dwells, err := st.DwellsForSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, dwells, 1)
	assert.Equal(t, 2.5, dwells[0].DistanceEstKm)
	assert.Equal(t, "midday", dwells[0].TimeRegime)
	assert.Equal(t, "weekday", dwells[0].DayType)
}

func TestSQLite_CloseDwell_AlreadyClosed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sess, err := st.StartSession(ctx, 0)
	require.NoError(t, err)
	d, err := st.OpenDwell(ctx, sess.ID, "kazimierz", 100, "midday", "weekday")
	require.NoError(t, err)

	require.NoError(t, st.CloseDwell(ctx, d.ID, 500, 0))
	assert.Error(t, st.CloseDwell(ctx, d.ID, 600, 0))
}

// --- Offers ---

func testOffer(createdAtMs int64) *model.Offer {
	return &model.Offer{
		Platform:                 model.PlatformUber,
		PickupZone:               "stare-miasto",
		DestZone:                 "airport",
		Fare:                     50,
		ETAMinutes:               30,
		DistanceKm:               ptr(10.0),
		Surge:                    true,
		Note:                     "from app screenshot",
		CreatedAtMs:              createdAtMs,
		TimeRegime:               "evening-rush",
		DayType:                  "weekday",
		RecommendationAction:     "TAKE",
		RecommendationConfidence: "MEDIUM",
		ModelVersion:             "v1",
		ScoreComponents:          `{"netFare":43}`,
	}
}

func TestSQLite_SaveOffer_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	offer := testOffer(1000)
	require.NoError(t, st.SaveOffer(ctx, offer))
	assert.NotZero(t, offer.ID)

	offers, err := st.RecentOffers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, offers, 1)

	got := offers[0]
	assert.Equal(t, offer.ID, got.ID)
	assert.Nil(t, got.SessionID)
	assert.Equal(t, model.PlatformUber, got.Platform)
	assert.Equal(t, "airport", got.DestZone)
	require.NotNil(t, got.DistanceKm)
	assert.Equal(t, 10.0, *got.DistanceKm)
	assert.True(t, got.Surge)
	assert.Equal(t, "TAKE", got.RecommendationAction)
	assert.Equal(t, `{"netFare":43}`, got.ScoreComponents)
	assert.Nil(t, got.Feedback)
	assert.Nil(t, got.ActualFare)
}

func TestSQLite_GetOffer(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	offer := testOffer(1000)
	require.NoError(t, st.SaveOffer(ctx, offer))

	got, err := st.GetOffer(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.ID, got.ID)
	assert.Equal(t, "airport", got.DestZone)

	_, err = st.GetOffer(ctx, 9999)
	assert.Error(t, err)
}

func TestSQLite_RecentOffers_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, ms := range []int64{100, 300, 200} {
		require.NoError(t, st.SaveOffer(ctx, testOffer(ms)))
	}

	offers, err := st.RecentOffers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, int64(300), offers[0].CreatedAtMs)
	assert.Equal(t, int64(200), offers[1].CreatedAtMs)
}

func TestSQLite_ListOffers_Filter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	uber := testOffer(100)
	bolt := testOffer(200)
	bolt.Platform = model.PlatformBolt
	bolt.DestZone = "kazimierz"
	require.NoError(t, st.SaveOffer(ctx, uber))
	require.NoError(t, st.SaveOffer(ctx, bolt))

	all, err := st.ListOffers(ctx, OfferFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	// Export order is oldest first.
	assert.Equal(t, int64(100), all[0].CreatedAtMs)

	onlyBolt, err := st.ListOffers(ctx, OfferFilter{Platform: model.PlatformBolt})
	require.NoError(t, err)
	require.Len(t, onlyBolt, 1)
	assert.Equal(t, "kazimierz", onlyBolt[0].DestZone)
}

func TestSQLite_RecordFeedback(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	offer := testOffer(1000)
	require.NoError(t, st.SaveOffer(ctx, offer))

	err := st.RecordFeedback(ctx, offer.ID, model.FeedbackFollowed, ptr(55.0), ptr(28.0))
	require.NoError(t, err)

	offers, err := st.RecentOffers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.NotNil(t, offers[0].Feedback)
	assert.Equal(t, model.FeedbackFollowed, *offers[0].Feedback)
	require.NotNil(t, offers[0].ActualFare)
	assert.Equal(t, 55.0, *offers[0].ActualFare)
	require.NotNil(t, offers[0].ActualDuration)
	assert.Equal(t, 28.0, *offers[0].ActualDuration)
}

func TestSQLite_RecordFeedback_Invalid(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	offer := testOffer(1000)
	require.NoError(t, st.SaveOffer(ctx, offer))

	assert.Error(t, st.RecordFeedback(ctx, offer.ID, model.Feedback("MAYBE"), nil, nil))
	assert.Error(t, st.RecordFeedback(ctx, 9999, model.FeedbackIgnored, nil, nil))
}

// --- Bucket stats ---

func TestSQLite_StatsForBucket(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	// One long cheap trip and one short rich trip. The bucket rate
	// weights by time on the road: (10+60)/(60+30)*60 = 46.67 PLN/h,
	// not the 65 an average of per-trip rates would give.
	a := testOffer(now - 1000)
	a.Fare = 10
	a.ETAMinutes = 60
	require.NoError(t, st.SaveOffer(ctx, a))
	require.NoError(t, st.RecordFeedback(ctx, a.ID, model.FeedbackFollowed, nil, nil))

	b := testOffer(now - 2000)
	b.Fare = 60
	b.ETAMinutes = 30
	require.NoError(t, st.SaveOffer(ctx, b))
	require.NoError(t, st.RecordFeedback(ctx, b.ID, model.FeedbackIgnored, nil, nil))

	// Different bucket, must not leak in.
	c := testOffer(now - 3000)
	c.DestZone = "kazimierz"
	require.NoError(t, st.SaveOffer(ctx, c))

	stats, err := st.StatsForBucket(ctx, model.PlatformUber, "airport", "evening-rush", "weekday")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.SampleCount)
	assert.Equal(t, 2, stats.RecentSampleCount)
	assert.InDelta(t, 70.0/90.0*60, stats.AvgRevPerHour, 1e-9)
	assert.InDelta(t, 0.5, stats.AcceptanceRatio, 1e-9)
}

func TestSQLite_StatsForBucket_OldSamplesNotRecent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// A single offer from 100 days ago counts toward the sample total
	// but not toward the 30-day recent window.
	stale := testOffer(time.Now().UnixMilli() - 100*24*60*60*1000)
	require.NoError(t, st.SaveOffer(ctx, stale))

	stats, err := st.StatsForBucket(ctx, model.PlatformUber, "airport", "evening-rush", "weekday")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.SampleCount)
	assert.Equal(t, 0, stats.RecentSampleCount)
}

func TestSQLite_StatsForBucket_AcceptanceOverAllSamples(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	followed := testOffer(now - 1000)
	require.NoError(t, st.SaveOffer(ctx, followed))
	require.NoError(t, st.RecordFeedback(ctx, followed.ID, model.FeedbackFollowed, nil, nil))

	// Three offers without feedback still dilute the ratio.
	for i := int64(2); i <= 4; i++ {
		require.NoError(t, st.SaveOffer(ctx, testOffer(now-i*1000)))
	}

	stats, err := st.StatsForBucket(ctx, model.PlatformUber, "airport", "evening-rush", "weekday")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.InDelta(t, 0.25, stats.AcceptanceRatio, 1e-9)
}

func TestSQLite_StatsForBucket_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	stats, err := st.StatsForBucket(context.Background(), model.PlatformBolt, "airport", "midday", "weekend")
	require.NoError(t, err)
	assert.Nil(t, stats)
}

// --- Money proof ---

func TestSQLite_MoneyProof(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := int64(10 * 60 * 60 * 1000)

	// Followed: 60 PLN over 30 min (120 PLN/h).
	followed := testOffer(now - 1000)
	followed.Fare = 60
	followed.ETAMinutes = 30
	require.NoError(t, st.SaveOffer(ctx, followed))
	require.NoError(t, st.RecordFeedback(ctx, followed.ID, model.FeedbackFollowed, nil, nil))

	// Ignored: 20 PLN over 30 min, drags the baseline to 80 PLN/h.
	ignored := testOffer(now - 2000)
	ignored.Fare = 20
	ignored.ETAMinutes = 30
	require.NoError(t, st.SaveOffer(ctx, ignored))
	require.NoError(t, st.RecordFeedback(ctx, ignored.ID, model.FeedbackIgnored, nil, nil))

	// Outside the two hour window, must be excluded.
	stale := testOffer(now - 3*60*60*1000)
	stale.Fare = 500
	require.NoError(t, st.SaveOffer(ctx, stale))
	require.NoError(t, st.RecordFeedback(ctx, stale.ID, model.FeedbackFollowed, nil, nil))

	proof, err := st.MoneyProof(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, proof)
	assert.Equal(t, 2, proof.BaselineCount)
	assert.Equal(t, 1, proof.FollowedCount)
	assert.InDelta(t, 80.0, proof.BaselineHourly, 1e-9)
	assert.InDelta(t, 120.0, proof.FollowedHourly, 1e-9)
}

// --- Earnings ---

func TestSQLite_Earnings_CRUD(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	older := model.EarningsLog{ID: "log-1", Platform: model.PlatformBolt, Amount: 32.5, Zone: "kazimierz", DurationMin: 18, TimestampMs: 1000}
	newer := model.EarningsLog{ID: "log-2", Platform: model.PlatformUber, Amount: 45, Zone: "airport", TimestampMs: 2000}
	require.NoError(t, st.AddEarnings(ctx, older))
	require.NoError(t, st.AddEarnings(ctx, newer))

	logs, err := st.ListEarnings(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "log-2", logs[0].ID)
	assert.Equal(t, "log-1", logs[1].ID)
	assert.Equal(t, 18.0, logs[1].DurationMin)

	require.NoError(t, st.DeleteEarnings(ctx, "log-1"))
	assert.Error(t, st.DeleteEarnings(ctx, "log-1"))

	logs, err = st.ListEarnings(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "log-2", logs[0].ID)
}

// --- Preferences ---

func TestSQLite_Preferences_DefaultsThenSaved(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	prefs, err := st.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPreferences(), prefs)

	prefs.Name = "Marek"
	prefs.ScoringMode = "PERSONAL"
	prefs.PreferredZones = []string{"airport", "stare-miasto"}
	require.NoError(t, st.SavePreferences(ctx, prefs))

	got, err := st.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, prefs, got)

	// Save again to exercise the upsert path.
	prefs.Temperature = 0.8
	require.NoError(t, st.SavePreferences(ctx, prefs))
	got, err = st.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.8, got.Temperature)
}

// --- Detector state ---

func TestSQLite_DetectorState_ZeroThenSaved(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	state, err := st.DetectorState(ctx)
	require.NoError(t, err)
	assert.Equal(t, zone.State{}, state)

	saved := zone.State{Current: "stare-miasto", Pending: "kazimierz", PendingSinceMs: 5000}
	require.NoError(t, st.SaveDetectorState(ctx, saved))

	got, err := st.DetectorState(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	// Save again to exercise the upsert path.
	saved = zone.State{Current: "kazimierz"}
	require.NoError(t, st.SaveDetectorState(ctx, saved))
	got, err = st.DetectorState(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestSQLite_DetectorState_ClearedByDeleteAllData(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveDetectorState(ctx, zone.State{Current: "airport"}))
	require.NoError(t, st.DeleteAllData(ctx))

	state, err := st.DetectorState(ctx)
	require.NoError(t, err)
	assert.Equal(t, zone.State{}, state)
}

// --- Receipts ---

func TestSQLite_Receipts_PushAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	withDuration := receipt.Parsed{
		ID:          "receipt-1",
		Platform:    model.PlatformUber,
		TimestampMs: 2000,
		Amount:      45.5,
		DurationMin: ptr(25.0),
		Currency:    "PLN",
		RawText:     "Total: PLN 45.50",
		Confidence:  receipt.ConfidenceHigh,
	}
	withErrors := receipt.Parsed{
		ID:          "receipt-2",
		Platform:    model.PlatformBolt,
		TimestampMs: 1000,
		Currency:    "PLN",
		RawText:     "garbage",
		Confidence:  receipt.ConfidenceLow,
		Errors:      []string{"could not parse amount", "could not parse date/time"},
	}
	require.NoError(t, st.PushReceipt(ctx, withDuration))
	require.NoError(t, st.PushReceipt(ctx, withErrors))

	receipts, err := st.ListReceipts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, receipts, 2)

	assert.Equal(t, withDuration, receipts[0])
	assert.Equal(t, withErrors, receipts[1])
}

// --- EMA cache ---

func TestSQLite_EMA_FirstSampleThenSmoothing(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	got, err := st.GetEMA(ctx, model.PlatformUber, "airport", "weekday", "evening-rush")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, st.UpsertEMA(ctx, model.PlatformUber, "airport", "weekday", "evening-rush", 100, 1000))

	got, err = st.GetEMA(ctx, model.PlatformUber, "airport", "weekday", "evening-rush")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 100.0, got.EMARevPerHour)
	assert.Equal(t, 1, got.SampleCount)

	// 0.3*50 + 0.7*100 = 85.
	require.NoError(t, st.UpsertEMA(ctx, model.PlatformUber, "airport", "weekday", "evening-rush", 50, 2000))

	got, err = st.GetEMA(ctx, model.PlatformUber, "airport", "weekday", "evening-rush")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 85.0, got.EMARevPerHour, 1e-9)
	assert.Equal(t, 2, got.SampleCount)
	assert.Equal(t, int64(2000), got.UpdatedAtMs)
}

// --- Lifecycle ---

func TestSQLite_DeleteAllData(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sess, err := st.StartSession(ctx, 0)
	require.NoError(t, err)
	_, err = st.OpenDwell(ctx, sess.ID, "kazimierz", 0, "midday", "weekday")
	require.NoError(t, err)
	require.NoError(t, st.SaveOffer(ctx, testOffer(100)))
	require.NoError(t, st.AddEarnings(ctx, model.EarningsLog{ID: "log-1", Platform: model.PlatformUber, Amount: 10, Zone: "airport", TimestampMs: 100}))

	require.NoError(t, st.DeleteAllData(ctx))

	active, err := st.ActiveSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	offers, err := st.RecentOffers(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, offers)

	logs, err := st.ListEarnings(ctx)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/driveradar/driveradar/internal/model"
	"github.com/driveradar/driveradar/internal/receipt"
	"github.com/driveradar/driveradar/internal/zone"
)

// emaAlpha is the smoothing factor for the context revenue cache.
const emaAlpha = 0.3

// moneyProofWindowMs is how far back the money-proof comparison looks.
const moneyProofWindowMs = int64(2 * 60 * 60 * 1000)

// recentBucketWindowMs bounds the "recent" sample count in bucket stats.
const recentBucketWindowMs = int64(30 * 24 * 60 * 60 * 1000)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	start_ms INTEGER NOT NULL,
	end_ms   INTEGER,
	status   TEXT NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS zone_dwells (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id      INTEGER NOT NULL REFERENCES sessions(id),
	zone_id         TEXT NOT NULL,
	start_ms        INTEGER NOT NULL,
	end_ms          INTEGER,
	distance_est_km REAL NOT NULL DEFAULT 0,
	time_regime     TEXT NOT NULL,
	day_type        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS offers (
	id                        INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id                INTEGER REFERENCES sessions(id),
	platform                  TEXT NOT NULL,
	pickup_zone               TEXT NOT NULL,
	dest_zone                 TEXT NOT NULL,
	fare                      REAL NOT NULL,
	eta_minutes               REAL NOT NULL,
	distance_km               REAL,
	surge_flag                INTEGER NOT NULL DEFAULT 0,
	note                      TEXT NOT NULL DEFAULT '',
	created_at_ms             INTEGER NOT NULL,
	time_regime               TEXT NOT NULL,
	day_type                  TEXT NOT NULL,
	recommendation_action     TEXT NOT NULL DEFAULT '',
	recommendation_confidence TEXT NOT NULL DEFAULT '',
	model_version             TEXT NOT NULL DEFAULT '',
	score_components          TEXT NOT NULL DEFAULT '',
	feedback                  TEXT,
	actual_fare               REAL,
	actual_duration_min       REAL
);

CREATE TABLE IF NOT EXISTS earnings_logs (
	id           TEXT PRIMARY KEY,
	platform     TEXT NOT NULL,
	amount       REAL NOT NULL,
	zone         TEXT NOT NULL,
	duration_min REAL NOT NULL DEFAULT 0,
	timestamp_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS preferences (
	id    INTEGER PRIMARY KEY CHECK (id = 1),
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS detector_state (
	id    INTEGER PRIMARY KEY CHECK (id = 1),
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS receipts (
	id           TEXT PRIMARY KEY,
	platform     TEXT NOT NULL,
	timestamp_ms INTEGER NOT NULL,
	amount       REAL NOT NULL,
	duration_min REAL,
	currency     TEXT NOT NULL,
	raw_text     TEXT NOT NULL,
	confidence   TEXT NOT NULL,
	errors       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS ema_stats (
	platform         TEXT NOT NULL,
	zone             TEXT NOT NULL,
	day_type         TEXT NOT NULL,
	time_regime      TEXT NOT NULL,
	ema_rev_per_hour REAL NOT NULL,
	sample_count     INTEGER NOT NULL,
	updated_at_ms    INTEGER NOT NULL,
	PRIMARY KEY (platform, zone, day_type, time_regime)
);

CREATE INDEX IF NOT EXISTS idx_offers_created_at ON offers(created_at_ms);
CREATE INDEX IF NOT EXISTS idx_offers_bucket ON offers(dest_zone, time_regime, day_type, platform);
CREATE INDEX IF NOT EXISTS idx_zone_dwells_session ON zone_dwells(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_earnings_logs_timestamp ON earnings_logs(timestamp_ms);
CREATE INDEX IF NOT EXISTS idx_receipts_timestamp ON receipts(timestamp_ms);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// StartSession returns the already-active session when one exists,
// otherwise opens a new one.
func (s *SQLiteStore) StartSession(ctx context.Context, nowMs int64) (*model.Session, error) {
	active, err := s.ActiveSession(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return active, nil
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (start_ms, status) VALUES (?, ?)`,
		nowMs, string(model.SessionActive),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert session")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: session id")
	}
	return &model.Session{
		ID:      id,
		StartMs: nowMs,
		Status:  model.SessionActive,
	}, nil
}

// StopSession completes the active session, force-closing its open
// dwell. Returns nil when no session is active.
func (s *SQLiteStore) StopSession(ctx context.Context, nowMs int64) (*model.Session, error) {
	active, err := s.ActiveSession(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, nil
	}

	open, err := s.OpenDwellFor(ctx, active.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		if err := s.CloseDwell(ctx, open.ID, nowMs, open.DistanceEstKm); err != nil {
			return nil, err
		}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET end_ms = ?, status = ? WHERE id = ?`,
		nowMs, string(model.SessionCompleted), active.ID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: stop session %d", active.ID)
	}
	if err := checkRowsAffected(res, "session", active.ID); err != nil {
		return nil, err
	}

	active.EndMs = &nowMs
	active.Status = model.SessionCompleted
	return active, nil
}

func (s *SQLiteStore) ActiveSession(ctx context.Context) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, start_ms, end_ms, status FROM sessions
		 WHERE status = ? ORDER BY start_ms DESC LIMIT 1`,
		string(model.SessionActive),
	)

	var sess model.Session
	var endMs sql.NullInt64
	err := row.Scan(&sess.ID, &sess.StartMs, &endMs, &sess.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: active session")
	}
	if endMs.Valid {
		sess.EndMs = &endMs.Int64
	}
	return &sess, nil
}

func (s *SQLiteStore) OpenDwell(ctx context.Context, sessionID int64, zoneID string, startMs int64, timeRegime, dayType string) (*model.ZoneDwell, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO zone_dwells (session_id, zone_id, start_ms, time_regime, day_type)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, zoneID, startMs, timeRegime, dayType,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert dwell for session %d", sessionID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dwell id")
	}
	return &model.ZoneDwell{
		ID:         id,
		SessionID:  sessionID,
		ZoneID:     zoneID,
		StartMs:    startMs,
		TimeRegime: timeRegime,
		DayType:    dayType,
	}, nil
}

func (s *SQLiteStore) CloseDwell(ctx context.Context, dwellID int64, endMs int64, distanceEstKm float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE zone_dwells SET end_ms = ?, distance_est_km = ? WHERE id = ? AND end_ms IS NULL`,
		endMs, distanceEstKm, dwellID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: close dwell %d", dwellID)
	}
	return checkRowsAffected(res, "open dwell", dwellID)
}

// OpenDwellFor returns the session's open dwell, or nil when the
// driver is between zones.
func (s *SQLiteStore) OpenDwellFor(ctx context.Context, sessionID int64) (*model.ZoneDwell, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, zone_id, start_ms, end_ms, distance_est_km, time_regime, day_type
		 FROM zone_dwells WHERE session_id = ? AND end_ms IS NULL
		 ORDER BY start_ms DESC LIMIT 1`,
		sessionID,
	)
	d, err := scanDwell(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *SQLiteStore) DwellsForSession(ctx context.Context, sessionID int64) ([]model.ZoneDwell, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, zone_id, start_ms, end_ms, distance_est_km, time_regime, day_type
		 FROM zone_dwells WHERE session_id = ? ORDER BY start_ms ASC`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dwells")
	}
	defer rows.Close()

	var dwells []model.ZoneDwell
	for rows.Next() {
		d, err := scanDwell(rows)
		if err != nil {
			return nil, err
		}
		dwells = append(dwells, *d)
	}
	return dwells, eris.Wrap(rows.Err(), "sqlite: list dwells iterate")
}

// SaveOffer persists the offer and fills in its assigned ID.
func (s *SQLiteStore) SaveOffer(ctx context.Context, offer *model.Offer) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO offers (
			session_id, platform, pickup_zone, dest_zone, fare, eta_minutes,
			distance_km, surge_flag, note, created_at_ms, time_regime, day_type,
			recommendation_action, recommendation_confidence, model_version, score_components
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		offer.SessionID, string(offer.Platform), offer.PickupZone, offer.DestZone,
		offer.Fare, offer.ETAMinutes, offer.DistanceKm, boolToInt(offer.Surge),
		offer.Note, offer.CreatedAtMs, offer.TimeRegime, offer.DayType,
		offer.RecommendationAction, offer.RecommendationConfidence,
		offer.ModelVersion, offer.ScoreComponents,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert offer")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: offer id")
	}
	offer.ID = id
	return nil
}

func (s *SQLiteStore) RecordFeedback(ctx context.Context, offerID int64, fb model.Feedback, actualFare, actualDurationMin *float64) error {
	if fb != model.FeedbackFollowed && fb != model.FeedbackIgnored {
		return eris.Errorf("sqlite: invalid feedback %q", fb)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE offers SET feedback = ?, actual_fare = ?, actual_duration_min = ? WHERE id = ?`,
		string(fb), actualFare, actualDurationMin, offerID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record feedback %d", offerID)
	}
	return checkRowsAffected(res, "offer", offerID)
}

const offerColumns = `id, session_id, platform, pickup_zone, dest_zone, fare, eta_minutes,
	distance_km, surge_flag, note, created_at_ms, time_regime, day_type,
	recommendation_action, recommendation_confidence, model_version, score_components,
	feedback, actual_fare, actual_duration_min`

func (s *SQLiteStore) GetOffer(ctx context.Context, id int64) (*model.Offer, error) {
	offers, err := s.queryOffers(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		return nil, eris.Errorf("sqlite: offer %d not found", id)
	}
	return &offers[0], nil
}

func (s *SQLiteStore) RecentOffers(ctx context.Context, limit int) ([]model.Offer, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryOffers(ctx,
		`SELECT `+offerColumns+` FROM offers ORDER BY created_at_ms DESC LIMIT ?`,
		limit,
	)
}

func (s *SQLiteStore) ListOffers(ctx context.Context, filter OfferFilter) ([]model.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE 1=1`
	var args []any

	if filter.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, string(filter.Platform))
	}
	if filter.DestZone != "" {
		query += ` AND dest_zone = ?`
		args = append(args, filter.DestZone)
	}
	query += ` ORDER BY created_at_ms ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}
	return s.queryOffers(ctx, query, args...)
}

// StatsForBucket aggregates offers for one (platform, dest zone, time
// regime, day type) bucket. Returns nil when the bucket has no samples.
func (s *SQLiteStore) StatsForBucket(ctx context.Context, platform model.Platform, destZone, timeRegime, dayType string) (*model.BucketStats, error) {
	recentSinceMs := time.Now().UnixMilli() - recentBucketWindowMs
	row := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN created_at_ms >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(fare), 0),
			COALESCE(AVG(eta_minutes), 0),
			COALESCE(SUM(CASE WHEN feedback = 'FOLLOWED' THEN 1 ELSE 0 END), 0)
		 FROM offers
		 WHERE platform = ? AND dest_zone = ? AND time_regime = ? AND day_type = ?`,
		recentSinceMs, string(platform), destZone, timeRegime, dayType,
	)

	var total, recent, followed int
	var avgFare, avgETA float64
	if err := row.Scan(&total, &recent, &avgFare, &avgETA, &followed); err != nil {
		return nil, eris.Wrap(err, "sqlite: bucket stats")
	}
	if total == 0 {
		return nil, nil
	}

	stats := &model.BucketStats{
		Platform:          platform,
		DestZone:          destZone,
		TimeRegime:        timeRegime,
		DayType:           dayType,
		SampleCount:       total,
		RecentSampleCount: recent,
		AcceptanceRatio:   float64(followed) / float64(total),
	}
	// Rate of averages, not average of per-offer rates: long cheap trips
	// and short rich trips balance by time spent, not by trip count.
	if avgETA > 0 {
		stats.AvgRevPerHour = avgFare / avgETA * 60
	}
	return stats, nil
}

// MoneyProof compares hourly earnings over the last two hours for
// followed recommendations against all offers with feedback.
func (s *SQLiteStore) MoneyProof(ctx context.Context, nowMs int64) (*model.MoneyProof, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(COALESCE(actual_fare, fare)), 0),
			COALESCE(SUM(COALESCE(actual_duration_min, eta_minutes)), 0),
			COUNT(*),
			COALESCE(SUM(CASE WHEN feedback = 'FOLLOWED' THEN COALESCE(actual_fare, fare) ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN feedback = 'FOLLOWED' THEN COALESCE(actual_duration_min, eta_minutes) ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN feedback = 'FOLLOWED' THEN 1 ELSE 0 END), 0)
		 FROM offers
		 WHERE feedback IS NOT NULL AND created_at_ms >= ?`,
		nowMs-moneyProofWindowMs,
	)

	var baseFare, baseMin, followedFare, followedMin float64
	var baseCount, followedCount int
	err := row.Scan(&baseFare, &baseMin, &baseCount, &followedFare, &followedMin, &followedCount)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: money proof")
	}

	proof := &model.MoneyProof{
		BaselineCount: baseCount,
		FollowedCount: followedCount,
	}
	if baseMin > 0 {
		proof.BaselineHourly = baseFare / baseMin * 60
	}
	if followedMin > 0 {
		proof.FollowedHourly = followedFare / followedMin * 60
	}
	return proof, nil
}

func (s *SQLiteStore) AddEarnings(ctx context.Context, log model.EarningsLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO earnings_logs (id, platform, amount, zone, duration_min, timestamp_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		log.ID, string(log.Platform), log.Amount, log.Zone, log.DurationMin, log.TimestampMs,
	)
	return eris.Wrap(err, "sqlite: insert earnings log")
}

func (s *SQLiteStore) ListEarnings(ctx context.Context) ([]model.EarningsLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, platform, amount, zone, duration_min, timestamp_ms
		 FROM earnings_logs ORDER BY timestamp_ms DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list earnings")
	}
	defer rows.Close()

	var logs []model.EarningsLog
	for rows.Next() {
		var l model.EarningsLog
		if err := rows.Scan(&l.ID, &l.Platform, &l.Amount, &l.Zone, &l.DurationMin, &l.TimestampMs); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan earnings log")
		}
		logs = append(logs, l)
	}
	return logs, eris.Wrap(rows.Err(), "sqlite: list earnings iterate")
}

func (s *SQLiteStore) DeleteEarnings(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM earnings_logs WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete earnings log %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("earnings log not found: %s", id)
	}
	return nil
}

// Preferences returns stored settings, or the defaults when nothing
// has been saved yet.
func (s *SQLiteStore) Preferences(ctx context.Context) (model.Preferences, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE id = 1`)

	var raw string
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return model.DefaultPreferences(), nil
	}
	if err != nil {
		return model.Preferences{}, eris.Wrap(err, "sqlite: get preferences")
	}

	var prefs model.Preferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return model.Preferences{}, eris.Wrap(err, "sqlite: unmarshal preferences")
	}
	return prefs, nil
}

func (s *SQLiteStore) SavePreferences(ctx context.Context, prefs model.Preferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal preferences")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO preferences (id, value) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET value = excluded.value`,
		string(raw),
	)
	return eris.Wrap(err, "sqlite: save preferences")
}

// DetectorState returns the persisted zone detector state, or the zero
// state when no location sample has been processed yet.
func (s *SQLiteStore) DetectorState(ctx context.Context) (zone.State, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM detector_state WHERE id = 1`)

	var raw string
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return zone.State{}, nil
	}
	if err != nil {
		return zone.State{}, eris.Wrap(err, "sqlite: get detector state")
	}

	var state zone.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return zone.State{}, eris.Wrap(err, "sqlite: unmarshal detector state")
	}
	return state, nil
}

func (s *SQLiteStore) SaveDetectorState(ctx context.Context, state zone.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal detector state")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO detector_state (id, value) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET value = excluded.value`,
		string(raw),
	)
	return eris.Wrap(err, "sqlite: save detector state")
}

func (s *SQLiteStore) PushReceipt(ctx context.Context, parsed receipt.Parsed) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO receipts (id, platform, timestamp_ms, amount, duration_min, currency, raw_text, confidence, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		parsed.ID, string(parsed.Platform), parsed.TimestampMs, parsed.Amount,
		parsed.DurationMin, parsed.Currency, parsed.RawText, string(parsed.Confidence),
		strings.Join(parsed.Errors, "\n"),
	)
	return eris.Wrap(err, "sqlite: insert receipt")
}

func (s *SQLiteStore) ListReceipts(ctx context.Context, limit int) ([]receipt.Parsed, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, platform, timestamp_ms, amount, duration_min, currency, raw_text, confidence, errors
		 FROM receipts ORDER BY timestamp_ms DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list receipts")
	}
	defer rows.Close()

	var receipts []receipt.Parsed
	for rows.Next() {
		var p receipt.Parsed
		var duration sql.NullFloat64
		var errText string
		err := rows.Scan(&p.ID, &p.Platform, &p.TimestampMs, &p.Amount, &duration,
			&p.Currency, &p.RawText, &p.Confidence, &errText)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan receipt")
		}
		if duration.Valid {
			p.DurationMin = &duration.Float64
		}
		if errText != "" {
			p.Errors = strings.Split(errText, "\n")
		}
		receipts = append(receipts, p)
	}
	return receipts, eris.Wrap(rows.Err(), "sqlite: list receipts iterate")
}

// UpsertEMA folds a new revenue-per-hour sample into the bucket's
// running estimate.
func (s *SQLiteStore) UpsertEMA(ctx context.Context, platform model.Platform, zone, dayType, timeRegime string, sampleRevPerHour float64, nowMs int64) error {
	existing, err := s.GetEMA(ctx, platform, zone, dayType, timeRegime)
	if err != nil {
		return err
	}

	ema := sampleRevPerHour
	count := 1
	if existing != nil {
		ema = emaAlpha*sampleRevPerHour + (1-emaAlpha)*existing.EMARevPerHour
		count = existing.SampleCount + 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ema_stats (platform, zone, day_type, time_regime, ema_rev_per_hour, sample_count, updated_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(platform, zone, day_type, time_regime) DO UPDATE SET
			ema_rev_per_hour = excluded.ema_rev_per_hour,
			sample_count = excluded.sample_count,
			updated_at_ms = excluded.updated_at_ms`,
		string(platform), zone, dayType, timeRegime, ema, count, nowMs,
	)
	return eris.Wrap(err, "sqlite: upsert ema")
}

func (s *SQLiteStore) GetEMA(ctx context.Context, platform model.Platform, zone, dayType, timeRegime string) (*EMAStat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT platform, zone, day_type, time_regime, ema_rev_per_hour, sample_count, updated_at_ms
		 FROM ema_stats WHERE platform = ? AND zone = ? AND day_type = ? AND time_regime = ?`,
		string(platform), zone, dayType, timeRegime,
	)

	var e EMAStat
	err := row.Scan(&e.Platform, &e.Zone, &e.DayType, &e.TimeRegime,
		&e.EMARevPerHour, &e.SampleCount, &e.UpdatedAtMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get ema")
	}
	return &e, nil
}

// DeleteAllData wipes every table. Irreversible.
func (s *SQLiteStore) DeleteAllData(ctx context.Context) error {
	for _, table := range []string{
		"offers", "zone_dwells", "sessions",
		"earnings_logs", "preferences", "detector_state", "receipts", "ema_stats",
	} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return eris.Wrapf(err, "sqlite: delete all %s", table)
		}
	}
	return nil
}

// helpers

func (s *SQLiteStore) queryOffers(ctx context.Context, query string, args ...any) ([]model.Offer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query offers")
	}
	defer rows.Close()

	var offers []model.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *o)
	}
	return offers, eris.Wrap(rows.Err(), "sqlite: query offers iterate")
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDwell(row scannable) (*model.ZoneDwell, error) {
	var d model.ZoneDwell
	var endMs sql.NullInt64

	err := row.Scan(&d.ID, &d.SessionID, &d.ZoneID, &d.StartMs, &endMs,
		&d.DistanceEstKm, &d.TimeRegime, &d.DayType)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan dwell")
	}
	if endMs.Valid {
		d.EndMs = &endMs.Int64
	}
	return &d, nil
}

func scanOffer(row scannable) (*model.Offer, error) {
	var o model.Offer
	var sessionID sql.NullInt64
	var distanceKm, actualFare, actualDuration sql.NullFloat64
	var surge int
	var feedback sql.NullString

	err := row.Scan(&o.ID, &sessionID, &o.Platform, &o.PickupZone, &o.DestZone,
		&o.Fare, &o.ETAMinutes, &distanceKm, &surge, &o.Note, &o.CreatedAtMs,
		&o.TimeRegime, &o.DayType, &o.RecommendationAction, &o.RecommendationConfidence,
		&o.ModelVersion, &o.ScoreComponents, &feedback, &actualFare, &actualDuration)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan offer")
	}

	if sessionID.Valid {
		o.SessionID = &sessionID.Int64
	}
	if distanceKm.Valid {
		o.DistanceKm = &distanceKm.Float64
	}
	o.Surge = surge != 0
	if feedback.Valid {
		fb := model.Feedback(feedback.String)
		o.Feedback = &fb
	}
	if actualFare.Valid {
		o.ActualFare = &actualFare.Float64
	}
	if actualDuration.Valid {
		o.ActualDuration = &actualDuration.Float64
	}
	return &o, nil
}

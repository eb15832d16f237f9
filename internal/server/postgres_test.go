package server

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_SaveLocation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO visitor_locations`).
		WithArgs(pgxmock.AnyArg(), "visitor-1", 50.06, 19.94, "stare-miasto").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.SaveLocation(context.Background(), "visitor-1", 50.06, 19.94, "stare-miasto")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveLocation_EmptyZoneStoredAsNull(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO visitor_locations`).
		WithArgs(pgxmock.AnyArg(), "visitor-1", 50.06, 19.94, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, err := s.SaveLocation(context.Background(), "visitor-1", 50.06, 19.94, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecentLocations(t *testing.T) {
	s, mock := newMockStore(t)

	since := time.Date(2024, 3, 14, 18, 0, 0, 0, time.UTC)
	created := since.Add(time.Hour)

	mock.ExpectQuery(`SELECT id, visitor_id, latitude, longitude`).
		WithArgs(since, 500).
		WillReturnRows(pgxmock.NewRows([]string{"id", "visitor_id", "latitude", "longitude", "zone", "created_at"}).
			AddRow("loc-1", "visitor-1", 50.06, 19.94, "stare-miasto", created).
			AddRow("loc-2", "visitor-2", 50.07, 19.80, "", created.Add(-time.Minute)))

	locations, err := s.RecentLocations(context.Background(), since, 500)
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, "visitor-1", locations[0].VisitorID)
	assert.Equal(t, "stare-miasto", locations[0].Zone)
	assert.Empty(t, locations[1].Zone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Stats(t *testing.T) {
	s, mock := newMockStore(t)

	since := time.Date(2024, 3, 14, 18, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(DISTINCT visitor_id\)`).
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows([]string{"count", "distinct"}).AddRow(7, 3))
	mock.ExpectQuery(`GROUP BY 1`).
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows([]string{"zone", "count"}).
			AddRow("stare-miasto", 5).
			AddRow("unknown", 2))

	stats, err := s.Stats(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalLocations)
	assert.Equal(t, 3, stats.UniqueVisitors)
	assert.Equal(t, map[string]int{"stare-miasto": 5, "unknown": 2}, stats.ZoneStats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ValidToken(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT expires_at FROM admin_sessions`).
		WithArgs("live-token").
		WillReturnRows(pgxmock.NewRows([]string{"expires_at"}).AddRow(now.Add(time.Hour)))
	assert.True(t, s.ValidToken(context.Background(), "live-token", now))

	mock.ExpectQuery(`SELECT expires_at FROM admin_sessions`).
		WithArgs("stale-token").
		WillReturnRows(pgxmock.NewRows([]string{"expires_at"}).AddRow(now.Add(-time.Minute)))
	assert.False(t, s.ValidToken(context.Background(), "stale-token", now))

	mock.ExpectQuery(`SELECT expires_at FROM admin_sessions`).
		WithArgs("missing-token").
		WillReturnError(pgx.ErrNoRows)
	assert.False(t, s.ValidToken(context.Background(), "missing-token", now))

	// Empty tokens never hit the store.
	assert.False(t, s.ValidToken(context.Background(), "", now))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateAdminSession(t *testing.T) {
	s, mock := newMockStore(t)

	expires := time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO admin_sessions`).
		WithArgs("token-abc", expires).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.CreateAdminSession(context.Background(), "token-abc", expires))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package telemetry

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	require.NoError(t, err)

	require.NoError(t, InitTelemetrySchema(db))

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestSQLiteMetricsStore_QueryTypeCountsAccumulate(t *testing.T) {
	db := setupTestDB(t)
	store, err := NewSQLiteMetricsStore(db, 0)
	require.NoError(t, err)

	require.NoError(t, store.SaveQueryTypeCounts("2026-01-01", map[QueryType]int64{QueryTypeFilter: 3, QueryTypeBrowse: 1}))
	require.NoError(t, store.SaveQueryTypeCounts("2026-01-01", map[QueryType]int64{QueryTypeFilter: 2}))
	require.NoError(t, store.SaveQueryTypeCounts("2026-01-05", map[QueryType]int64{QueryTypeFilter: 10}))

	counts, err := store.GetQueryTypeCounts("2026-01-01", "2026-01-02")
	require.NoError(t, err)
	assert.Equal(t, map[QueryType]int64{QueryTypeFilter: 5, QueryTypeBrowse: 1}, counts)
}

func TestSQLiteMetricsStore_LatencyCounts(t *testing.T) {
	db := setupTestDB(t)
	store, err := NewSQLiteMetricsStore(db, 0)
	require.NoError(t, err)

	require.NoError(t, store.SaveLatencyCounts("2026-01-01", map[LatencyBucket]int64{BucketP1: 4}))
	require.NoError(t, store.SaveLatencyCounts("2026-01-02", map[LatencyBucket]int64{BucketP1: 1, BucketSlow: 2}))

	counts, err := store.GetLatencyCounts("2026-01-01", "2026-01-31")
	require.NoError(t, err)
	assert.Equal(t, map[LatencyBucket]int64{BucketP1: 5, BucketSlow: 2}, counts)
}

func TestSQLiteMetricsStore_TopTerms(t *testing.T) {
	db := setupTestDB(t)
	store, err := NewSQLiteMetricsStore(db, 0)
	require.NoError(t, err)

	require.NoError(t, store.UpsertTermCounts(map[string]int64{"dev": 2, "term": 5}))
	require.NoError(t, store.UpsertTermCounts(map[string]int64{"dev": 4, "clip": 1}))
	require.NoError(t, store.UpsertTermCounts(nil))

	terms, err := store.GetTopTerms(2)
	require.NoError(t, err)
	assert.Equal(t, []TermCount{{Term: "dev", Count: 6}, {Term: "term", Count: 5}}, terms)
}

func TestSQLiteMetricsStore_ZeroResultQueriesAreTrimmed(t *testing.T) {
	// Given: a store that keeps three zero-result queries
	db := setupTestDB(t)
	store, err := NewSQLiteMetricsStore(db, 3)
	require.NoError(t, err)

	// When: adding five
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AddZeroResultQuery(fmt.Sprintf("q%d", i), time.Now()))
	}

	// Then: only the newest three remain, newest first
	queries, err := store.GetZeroResultQueries(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"q4", "q3", "q2"}, queries)
}

func TestSQLiteMetricsStore_Report(t *testing.T) {
	db := setupTestDB(t)
	store, err := NewSQLiteMetricsStore(db, 0)
	require.NoError(t, err)

	// Given: metrics flushed by two separate collectors, as by two CLI runs
	for i := 0; i < 2; i++ {
		m := NewQueryMetrics(store)
		m.Record(QueryEvent{Query: "term", QueryType: QueryTypeFilter, ResultCount: 1, Timestamp: time.Now()})
		m.Record(QueryEvent{Query: "xyz", QueryType: QueryTypeFilter, ResultCount: 0, Timestamp: time.Now()})
		require.NoError(t, m.Close())
	}

	// When: building a report for today
	report, err := store.Report(1, 10)

	// Then: totals add up across collectors
	require.NoError(t, err)
	assert.Equal(t, int64(4), report.TotalQueries)
	assert.Equal(t, []TermCount{{Term: "term", Count: 2}, {Term: "xyz", Count: 2}}, report.TopTerms)
	assert.Equal(t, []string{"xyz", "xyz"}, report.ZeroResultQueries)
	assert.Equal(t, int64(4), report.LatencyDistribution[BucketP1])
}

func TestOpenSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "telemetry.db")

	store, err := OpenSQLiteStore(path, 0)
	require.NoError(t, err)
	require.NoError(t, store.UpsertTermCounts(map[string]int64{"dev": 1}))
	require.NoError(t, store.Close())

	// Reopening sees the persisted data.
	store, err = OpenSQLiteStore(path, 0)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	terms, err := store.GetTopTerms(5)
	require.NoError(t, err)
	assert.Equal(t, []TermCount{{Term: "dev", Count: 1}}, terms)
}

func TestNewSQLiteMetricsStore_RequiresDB(t *testing.T) {
	_, err := NewSQLiteMetricsStore(nil, 0)
	assert.Error(t, err)
}

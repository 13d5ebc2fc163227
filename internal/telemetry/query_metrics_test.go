package telemetry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want LatencyBucket
	}{
		{500 * time.Microsecond, BucketP1},
		{time.Millisecond, BucketP5},
		{7 * time.Millisecond, BucketP20},
		{20 * time.Millisecond, BucketP100},
		{250 * time.Millisecond, BucketSlow},
	}
	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, LatencyToBucket(tt.d))
		})
	}
}

func TestCircularBuffer_EvictsOldest(t *testing.T) {
	b := NewCircularBuffer[int](3)
	assert.Empty(t, b.Items())

	for i := 1; i <= 5; i++ {
		b.Add(i)
	}

	assert.Equal(t, []int{3, 4, 5}, b.Items())
	assert.Equal(t, 3, b.Size())
}

func TestExtractTerms(t *testing.T) {
	assert.Equal(t, []string{"open", "terminal"}, ExtractTerms("Open  Terminal!"))
	assert.Nil(t, ExtractTerms("a ?"))
	assert.Nil(t, ExtractTerms(""))
}

func TestQueryMetrics_Record(t *testing.T) {
	// Given: a collector without persistence
	m := NewQueryMetrics(nil)

	// When: recording a browse, two filters (one repeated) and a miss
	m.Record(QueryEvent{Query: "", QueryType: QueryTypeBrowse, ResultCount: 0, Latency: time.Millisecond})
	m.Record(QueryEvent{Query: "term", QueryType: QueryTypeFilter, ResultCount: 2, Latency: 2 * time.Millisecond})
	m.Record(QueryEvent{Query: "Term", QueryType: QueryTypeFilter, ResultCount: 2, Latency: 2 * time.Millisecond})
	m.Record(QueryEvent{Query: "xyz", QueryType: QueryTypeFilter, ResultCount: 0, Latency: 150 * time.Millisecond})

	// Then: the snapshot reflects every event
	snap := m.Snapshot()
	assert.Equal(t, int64(4), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.QueryTypeCounts[QueryTypeBrowse])
	assert.Equal(t, int64(3), snap.QueryTypeCounts[QueryTypeFilter])
	assert.Equal(t, []TermCount{{Term: "term", Count: 2}, {Term: "xyz", Count: 1}}, snap.TopTerms)
	assert.Equal(t, []string{"xyz"}, snap.ZeroResultQueries, "empty browse is not a miss")
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, int64(1), snap.ExactRepeatCount, "case-insensitive repeat")
	assert.Equal(t, int64(3), snap.UniqueQueryCount)
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketSlow])
	assert.InDelta(t, 25.0, snap.ZeroResultPercentage(), 0.001)
}

func TestQueryMetrics_ConcurrentRecord(t *testing.T) {
	m := NewQueryMetrics(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Record(QueryEvent{Query: "dev", QueryType: QueryTypeFilter, ResultCount: 1})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(400), m.Snapshot().TotalQueries)
}

// recordingStore captures flushed deltas.
type recordingStore struct {
	mu        sync.Mutex
	types     map[QueryType]int64
	terms     map[string]int64
	latencies map[LatencyBucket]int64
	zero      []string
	failTerms bool
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		types:     map[QueryType]int64{},
		terms:     map[string]int64{},
		latencies: map[LatencyBucket]int64{},
	}
}

func (s *recordingStore) SaveQueryTypeCounts(_ string, counts map[QueryType]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range counts {
		s.types[k] += v
	}
	return nil
}

func (s *recordingStore) GetQueryTypeCounts(_, _ string) (map[QueryType]int64, error) {
	return s.types, nil
}

func (s *recordingStore) UpsertTermCounts(terms map[string]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTerms {
		return errors.New("disk full")
	}
	for k, v := range terms {
		s.terms[k] += v
	}
	return nil
}

func (s *recordingStore) GetTopTerms(int) ([]TermCount, error) { return nil, nil }

func (s *recordingStore) AddZeroResultQuery(query string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zero = append(s.zero, query)
	return nil
}

func (s *recordingStore) GetZeroResultQueries(int) ([]string, error) { return s.zero, nil }

func (s *recordingStore) SaveLatencyCounts(_ string, counts map[LatencyBucket]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range counts {
		s.latencies[k] += v
	}
	return nil
}

func (s *recordingStore) GetLatencyCounts(_, _ string) (map[LatencyBucket]int64, error) {
	return s.latencies, nil
}

func (s *recordingStore) Close() error { return nil }

func TestQueryMetrics_FlushSendsOnlyDeltas(t *testing.T) {
	// Given: a collector with a store
	st := newRecordingStore()
	m := NewQueryMetrics(st)
	m.Record(QueryEvent{Query: "dev", QueryType: QueryTypeFilter, ResultCount: 1})
	m.Record(QueryEvent{Query: "nope", QueryType: QueryTypeFilter, ResultCount: 0})

	// When: flushing twice with one more event in between
	require.NoError(t, m.Flush())
	m.Record(QueryEvent{Query: "dev", QueryType: QueryTypeFilter, ResultCount: 1})
	require.NoError(t, m.Flush())

	// Then: the store holds exact totals
	assert.Equal(t, int64(3), st.types[QueryTypeFilter])
	assert.Equal(t, int64(2), st.terms["dev"])
	assert.Equal(t, []string{"nope"}, st.zero)
	assert.Equal(t, int64(3), st.latencies[BucketP1])
}

func TestQueryMetrics_FlushErrorPropagates(t *testing.T) {
	st := newRecordingStore()
	st.failTerms = true
	m := NewQueryMetrics(st)
	m.Record(QueryEvent{Query: "dev", QueryType: QueryTypeFilter, ResultCount: 1})

	assert.Error(t, m.Flush())
}

func TestQueryMetrics_CloseFlushesAndStopsRecording(t *testing.T) {
	st := newRecordingStore()
	m := NewQueryMetricsWithConfig(st, QueryMetricsConfig{FlushInterval: time.Hour})
	m.Record(QueryEvent{Query: "dev", QueryType: QueryTypeFilter, ResultCount: 1})

	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "close is idempotent")
	m.Record(QueryEvent{Query: "late", QueryType: QueryTypeFilter, ResultCount: 1})

	assert.Equal(t, int64(1), st.types[QueryTypeFilter])
	assert.Equal(t, int64(1), m.Snapshot().TotalQueries)
}

func TestQueryMetrics_FlushWithoutStore(t *testing.T) {
	m := NewQueryMetrics(nil)
	m.Record(QueryEvent{Query: "dev", QueryType: QueryTypeFilter})
	assert.NoError(t, m.Flush())
}

package models

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySummaryCache struct {
	mu          sync.Mutex
	generations map[string]int64
	entries     map[string][]byte
}

func newMemorySummaryCache() *memorySummaryCache {
	return &memorySummaryCache{generations: map[string]int64{}, entries: map[string][]byte{}}
}

func (m *memorySummaryCache) generation(date time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generations[summaryCacheGenerationKey(date)], nil
}

func (m *memorySummaryCache) bumpGeneration(date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[summaryCacheGenerationKey(date)]++
	return nil
}

func (m *memorySummaryCache) get(key string, dest interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (m *memorySummaryCache) set(_ time.Time, key string, summary *ReconciliationLedgerSummary) error {
	b, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = b
	return nil
}

func (m *memorySummaryCache) drop(date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := "ReconSummary:" + date.Format("2006-01-02") + ":"
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	return nil
}

func useMemorySummaryCache(t *testing.T) *memorySummaryCache {
	t.Helper()
	m := newMemorySummaryCache()
	prev := summaryCache
	summaryCache = m
	t.Cleanup(func() { summaryCache = prev })
	return m
}

func TestCachedSummary_ServesCachedUntilInvalidated(t *testing.T) {
	useMemorySummaryCache(t)
	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	computed := 0
	compute := func() (*ReconciliationLedgerSummary, error) {
		computed++
		return &ReconciliationLedgerSummary{Date: "2024-05-01", Total: int64(computed)}, nil
	}

	first, err := cachedSummary(date, "", compute)
	require.NoError(t, err)
	second, err := cachedSummary(date, "", compute)
	require.NoError(t, err)
	assert.Equal(t, 1, computed)
	assert.Equal(t, first.Total, second.Total)

	require.NoError(t, InvalidateSummaryCache(date))
	third, err := cachedSummary(date, "", compute)
	require.NoError(t, err)
	assert.Equal(t, 2, computed)
	assert.Equal(t, int64(2), third.Total)
}

func TestCachedSummary_RewriteDuringComputeIsNotServedStale(t *testing.T) {
	useMemorySummaryCache(t)
	date := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	// The ledger is rewritten and the cache invalidated after the reader has queried
	// but before it stores its result.
	stale, err := cachedSummary(date, "S1", func() (*ReconciliationLedgerSummary, error) {
		require.NoError(t, InvalidateSummaryCache(date))
		return &ReconciliationLedgerSummary{Date: "2024-05-02", StoreId: "S1", Total: 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stale.Total)

	fresh, err := cachedSummary(date, "S1", func() (*ReconciliationLedgerSummary, error) {
		return &ReconciliationLedgerSummary{Date: "2024-05-02", StoreId: "S1", Total: 5}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), fresh.Total)
}

func TestSummaryCacheKey_ChangesWithGeneration(t *testing.T) {
	date := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "ReconSummary:2024-05-03:0:*", summaryCacheKey(date, "", 0))
	assert.Equal(t, "ReconSummary:2024-05-03:1:S1", summaryCacheKey(date, "S1", 1))
	assert.NotEqual(t, summaryCacheKey(date, "S1", 1), summaryCacheKey(date, "S1", 2))
}

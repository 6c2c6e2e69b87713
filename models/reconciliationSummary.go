package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	summaryCacheTTL           = 10 * time.Minute
	summaryCacheGenerationTTL = 48 * time.Hour
)

// summaryCacheStore is the Redis surface the summary cache needs.
type summaryCacheStore interface {
	generation(date time.Time) (int64, error)
	bumpGeneration(date time.Time) error
	get(key string, dest interface{}) (bool, error)
	set(date time.Time, key string, summary *ReconciliationLedgerSummary) error
	drop(date time.Time) error
}

type redisSummaryCache struct{}

func (redisSummaryCache) generation(date time.Time) (int64, error) {
	return config.GetRedisInt(summaryCacheGenerationKey(date))
}

func (redisSummaryCache) bumpGeneration(date time.Time) error {
	_, err := config.IncrRedisKey(summaryCacheGenerationKey(date), summaryCacheGenerationTTL)
	return err
}

func (redisSummaryCache) get(key string, dest interface{}) (bool, error) {
	return config.GetRedisObject(key, dest)
}

func (redisSummaryCache) set(date time.Time, key string, summary *ReconciliationLedgerSummary) error {
	if err := config.SetRedisObject(key, summary, summaryCacheTTL); err != nil {
		return err
	}
	return config.AddRedisSet(summaryCacheSetKey(date), key)
}

func (redisSummaryCache) drop(date time.Time) error {
	setKey := summaryCacheSetKey(date)
	keys, err := config.GetRedisSetMembers(setKey)
	if err != nil {
		return err
	}
	return config.RemoveRedisKey(append(keys, setKey)...)
}

var summaryCache summaryCacheStore = redisSummaryCache{}

type StatusSummary struct {
	Status         ReconciliationStatus `json:"status"`
	Count          int64                `json:"count"`
	HighPriority   int64                `json:"high_priority"`
	ExpectedAmount decimal.Decimal      `json:"expected_amount"`
	ActualAmount   decimal.Decimal      `json:"actual_amount"`
	VarianceAmount decimal.Decimal      `json:"variance_amount"`
}

type ReconciliationLedgerSummary struct {
	Date           string           `json:"date"`
	StoreId        string           `json:"store_id,omitempty"`
	Total          int64            `json:"total"`
	HighPriority   int64            `json:"high_priority"`
	ExpectedAmount decimal.Decimal  `json:"expected_amount"`
	ActualAmount   decimal.Decimal  `json:"actual_amount"`
	VarianceAmount decimal.Decimal  `json:"variance_amount"`
	ByStatus       []*StatusSummary `json:"by_status"`
}

// SummarizeReconciliation aggregates the ledger for a date (and store) by status.
// Results are cached in Redis until the scope is reconciled again.
func SummarizeReconciliation(ctx context.Context, db *gorm.DB, date time.Time, storeId string) (*ReconciliationLedgerSummary, error) {
	return cachedSummary(date, storeId, func() (*ReconciliationLedgerSummary, error) {
		return summarizeLedger(ctx, db, date, storeId)
	})
}

// cachedSummary reads the generation before computing, so a summary computed while a
// rewrite commits lands under a generation no later reader looks up.
func cachedSummary(date time.Time, storeId string, compute func() (*ReconciliationLedgerSummary, error)) (*ReconciliationLedgerSummary, error) {
	gen, err := summaryCache.generation(date)
	if err != nil {
		return compute()
	}
	key := summaryCacheKey(date, storeId, gen)
	var cached ReconciliationLedgerSummary
	if ok, err := summaryCache.get(key, &cached); err == nil && ok {
		return &cached, nil
	}

	summary, err := compute()
	if err != nil {
		return nil, err
	}
	_ = summaryCache.set(date, key, summary)
	return summary, nil
}

func summarizeLedger(ctx context.Context, db *gorm.DB, date time.Time, storeId string) (*ReconciliationLedgerSummary, error) {
	q := db.WithContext(ctx).Model(&ReconciliationRecord{}).
		Select(`status,
			COUNT(*) AS count,
			SUM(CASE WHEN is_high_priority THEN 1 ELSE 0 END) AS high_priority,
			COALESCE(SUM(expected_amount), 0) AS expected_amount,
			COALESCE(SUM(actual_amount), 0) AS actual_amount,
			COALESCE(SUM(variance_amount), 0) AS variance_amount`).
		Where("reconciliation_date = ?", date)
	if storeId != "" {
		q = q.Where("store_id = ?", storeId)
	}
	var rows []*StatusSummary
	if err := q.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	byStatus := make(map[ReconciliationStatus]*StatusSummary, len(rows))
	for _, r := range rows {
		byStatus[r.Status] = r
	}
	summary := &ReconciliationLedgerSummary{
		Date:           date.Format("2006-01-02"),
		StoreId:        storeId,
		ExpectedAmount: decimal.Zero,
		ActualAmount:   decimal.Zero,
		VarianceAmount: decimal.Zero,
	}
	for _, status := range AllReconciliationStatuses {
		r, ok := byStatus[status]
		if !ok {
			r = &StatusSummary{Status: status}
		}
		summary.ByStatus = append(summary.ByStatus, r)
		summary.Total += r.Count
		summary.HighPriority += r.HighPriority
		summary.ExpectedAmount = summary.ExpectedAmount.Add(r.ExpectedAmount)
		summary.ActualAmount = summary.ActualAmount.Add(r.ActualAmount)
		summary.VarianceAmount = summary.VarianceAmount.Add(r.VarianceAmount)
	}
	return summary, nil
}

// InvalidateSummaryCache moves date to a new generation and drops the cached summaries
// of earlier ones. An unfiltered run changes every store's summary, so store-level keys go too.
func InvalidateSummaryCache(date time.Time) error {
	if err := summaryCache.bumpGeneration(date); err != nil {
		return err
	}
	return summaryCache.drop(date)
}

package models

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReconciliationRecordFilter struct {
	Date           time.Time
	StoreId        string
	Status         ReconciliationStatus
	HighPriority   *bool
	MinAbsVariance *decimal.Decimal
	Page           int
	Limit          int
}

func (f ReconciliationRecordFilter) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("reconciliation_date = ?", f.Date)
	if f.StoreId != "" {
		q = q.Where("store_id = ?", f.StoreId)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.HighPriority != nil {
		q = q.Where("is_high_priority = ?", *f.HighPriority)
	}
	if f.MinAbsVariance != nil {
		q = q.Where("(variance_amount >= ? OR variance_amount <= ?)", *f.MinAbsVariance, f.MinAbsVariance.Neg())
	}
	return q
}

// ListReconciliationRecords returns one page of ledger rows ordered by store then order id.
func ListReconciliationRecords(ctx context.Context, db *gorm.DB, f ReconciliationRecordFilter) ([]*ReconciliationRecord, PageInfo, error) {
	page, limit := NormalizePage(f.Page, f.Limit)

	var total int64
	if err := f.apply(db.WithContext(ctx).Model(&ReconciliationRecord{})).Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}

	var records []*ReconciliationRecord
	err := f.apply(db.WithContext(ctx).Model(&ReconciliationRecord{})).
		Order("store_id ASC").Order("order_id ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, PageInfo{}, err
	}
	return records, newPageInfo(page, limit, total), nil
}

// FetchAllReconciliationRecords returns every ledger row in scope (exports).
func FetchAllReconciliationRecords(ctx context.Context, db *gorm.DB, date time.Time, storeId string) ([]*ReconciliationRecord, error) {
	f := ReconciliationRecordFilter{Date: date, StoreId: storeId}
	var records []*ReconciliationRecord
	err := f.apply(db.WithContext(ctx).Model(&ReconciliationRecord{})).
		Order("store_id ASC").Order("order_id ASC").
		Find(&records).Error
	return records, err
}

func CountReconciliationRecords(ctx context.Context, db *gorm.DB, date time.Time, storeId string) (int64, error) {
	var n int64
	q := db.WithContext(ctx).Model(&ReconciliationRecord{}).Where("reconciliation_date = ?", date)
	if storeId != "" {
		q = q.Where("store_id = ?", storeId)
	}
	err := q.Count(&n).Error
	return n, err
}

// Cached summaries are keyed by the date's generation, which every ledger rewrite bumps.
func summaryCacheKey(date time.Time, storeId string, generation int64) string {
	if storeId == "" {
		storeId = "*"
	}
	return fmt.Sprintf("ReconSummary:%s:%d:%s", date.Format("2006-01-02"), generation, storeId)
}

func summaryCacheGenerationKey(date time.Time) string {
	return "ReconSummaryGen:" + date.Format("2006-01-02")
}

func summaryCacheSetKey(date time.Time) string {
	return "ReconSummaryKeys:" + date.Format("2006-01-02")
}

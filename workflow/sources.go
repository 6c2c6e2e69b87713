package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/cash_reconciliation/models"
	"gorm.io/gorm"
)

type OrderSource interface {
	OrdersForDate(ctx context.Context, date time.Time, storeId string) ([]models.Order, error)
}

// ReportSource must return reports in arrival order.
type ReportSource interface {
	ReportsForDate(ctx context.Context, date time.Time, storeId string) ([]models.CashReport, error)
}

// LedgerWriter atomically replaces the ledger rows of a date (and store, when given).
type LedgerWriter interface {
	ReplaceRecords(ctx context.Context, date time.Time, storeId string, records []*models.ReconciliationRecord) error
}

// GormSource reads orders and cash reports from the database.
type GormSource struct {
	DB *gorm.DB
}

func (s GormSource) OrdersForDate(ctx context.Context, date time.Time, storeId string) ([]models.Order, error) {
	return models.FetchOrdersForDate(ctx, s.DB, date, storeId)
}

func (s GormSource) ReportsForDate(ctx context.Context, date time.Time, storeId string) ([]models.CashReport, error) {
	return models.FetchReportsForDate(ctx, s.DB, date, storeId)
}

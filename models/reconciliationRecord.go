package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxVariancePercentage is the largest magnitude the decimal(30,4) percentage column holds.
// Amount columns are decimal(20,4), so any percentage derived from them fits; larger values saturate.
var MaxVariancePercentage = decimal.New(1, 26).Sub(decimal.New(1, -4))

// ReconciliationRecord is the outcome for one order on one reconciliation date.
// Exactly one live row exists per (order_id, reconciliation_date); rows are replaced
// wholesale when their date/store scope is reconciled again.
type ReconciliationRecord struct {
	ID                 string               `gorm:"primaryKey;size:36" json:"id"`
	OrderId            string               `gorm:"size:64;not null;uniqueIndex:uniq_recon_order_date,priority:1" json:"order_id"`
	ReportId           *string              `gorm:"size:64;index" json:"report_id"`
	StoreId            string               `gorm:"size:64;not null;index:idx_recon_date_store,priority:2" json:"store_id"`
	ReconciliationDate time.Time            `gorm:"type:date;not null;uniqueIndex:uniq_recon_order_date,priority:2;index:idx_recon_date_store,priority:1" json:"reconciliation_date"`
	ExpectedAmount     decimal.Decimal      `gorm:"type:decimal(20,4);not null;default:0" json:"expected_amount"`
	ActualAmount       *decimal.Decimal     `gorm:"type:decimal(20,4)" json:"actual_amount"`
	VarianceAmount     *decimal.Decimal     `gorm:"type:decimal(20,4)" json:"variance_amount"`
	VariancePercentage *decimal.Decimal     `gorm:"type:decimal(30,4)" json:"variance_percentage"`
	Status             ReconciliationStatus `gorm:"size:20;not null;index" json:"status"`
	IsHighPriority     bool                 `gorm:"not null;default:false;index" json:"is_high_priority"`
	RunId              string               `gorm:"size:64;index" json:"run_id"`
	ReconciledAt       time.Time            `gorm:"not null" json:"reconciled_at"`
}

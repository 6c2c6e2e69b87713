package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrMalformedClaimList = errors.New("malformed claimed order list")

// CashReport is a store's summary of the cash it collected for a day.
// It names the orders it covers but not how the total splits across them.
// ID follows arrival order, which is the claim tie-break order.
type CashReport struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ReportId        string          `gorm:"size:64;not null;uniqueIndex" json:"report_id"`
	StoreId         string          `gorm:"size:64;not null;index:idx_cash_reports_store_date,priority:1" json:"store_id"`
	ReportDate      time.Time       `gorm:"type:date;not null;index:idx_cash_reports_store_date,priority:2;index" json:"report_date"`
	TotalCollected  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_collected"`
	ClaimedOrderIds string          `gorm:"type:text" json:"claimed_order_ids"` // JSON array of order ids
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ClaimedOrders decodes the claimed order list. A blank list claims nothing.
func (r *CashReport) ClaimedOrders() ([]string, error) {
	raw := strings.TrimSpace(r.ClaimedOrderIds)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("%w: report %s: %v", ErrMalformedClaimList, r.ReportId, err)
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

// SetClaimedOrders encodes ids into ClaimedOrderIds.
func (r *CashReport) SetClaimedOrders(ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	r.ClaimedOrderIds = string(b)
	return nil
}

// FetchReportsForDate returns the reports for date in arrival order, optionally for one store.
func FetchReportsForDate(ctx context.Context, db *gorm.DB, date time.Time, storeId string) ([]CashReport, error) {
	var reports []CashReport
	q := db.WithContext(ctx).Where("report_date = ?", date)
	if storeId != "" {
		q = q.Where("store_id = ?", storeId)
	}
	if err := q.Order("id ASC").Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// MapReportsByReportId loads reports keyed by their business id.
func MapReportsByReportId(ctx context.Context, db *gorm.DB, reportIds []string) (map[string]*CashReport, error) {
	result := make(map[string]*CashReport, len(reportIds))
	if len(reportIds) == 0 {
		return result, nil
	}
	var reports []*CashReport
	if err := db.WithContext(ctx).Where("report_id IN ?", reportIds).Find(&reports).Error; err != nil {
		return nil, err
	}
	for _, r := range reports {
		result[r.ReportId] = r
	}
	return result, nil
}

package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is an expected cash collection. Written by ingestion; read-only here.
type Order struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrderId        string          `gorm:"size:64;not null;uniqueIndex" json:"order_id"`
	StoreId        string          `gorm:"size:64;not null;index:idx_orders_store_date,priority:1" json:"store_id"`
	CollectionDate time.Time       `gorm:"type:date;not null;index:idx_orders_store_date,priority:2;index" json:"collection_date"`
	ExpectedAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"expected_amount"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// FetchOrdersForDate returns the orders collected on date, optionally for one store.
func FetchOrdersForDate(ctx context.Context, db *gorm.DB, date time.Time, storeId string) ([]Order, error) {
	var orders []Order
	q := db.WithContext(ctx).Where("collection_date = ?", date)
	if storeId != "" {
		q = q.Where("store_id = ?", storeId)
	}
	if err := q.Order("id ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

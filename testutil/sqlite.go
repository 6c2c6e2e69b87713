// Package testutil opens throwaway databases for tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq int64

// OpenSQLite returns a migrated in-memory database private to t.
// A single connection keeps every statement on the same shared-cache database.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Use(config.NewStoreGuardPlugin()); err != nil {
		t.Fatalf("store guard plugin: %v", err)
	}
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func Date(t testing.TB, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return d.UTC()
}

func Amount(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func SeedOrder(t testing.TB, db *gorm.DB, orderId, storeId string, date time.Time, expected string) models.Order {
	t.Helper()
	o := models.Order{OrderId: orderId, StoreId: storeId, CollectionDate: date, ExpectedAmount: Amount(expected)}
	if err := db.Create(&o).Error; err != nil {
		t.Fatalf("seed order %s: %v", orderId, err)
	}
	return o
}

func SeedReport(t testing.TB, db *gorm.DB, reportId, storeId string, date time.Time, total string, orderIds ...string) models.CashReport {
	t.Helper()
	r := models.CashReport{ReportId: reportId, StoreId: storeId, ReportDate: date, TotalCollected: Amount(total)}
	if err := r.SetClaimedOrders(orderIds); err != nil {
		t.Fatalf("encode claims: %v", err)
	}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("seed report %s: %v", reportId, err)
	}
	return r
}

// SeedRawReport stores claims verbatim, for malformed-list cases.
func SeedRawReport(t testing.TB, db *gorm.DB, reportId, storeId string, date time.Time, total, rawClaims string) models.CashReport {
	t.Helper()
	r := models.CashReport{ReportId: reportId, StoreId: storeId, ReportDate: date, TotalCollected: Amount(total), ClaimedOrderIds: rawClaims}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("seed report %s: %v", reportId, err)
	}
	return r
}

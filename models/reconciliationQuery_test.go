package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/mmdatafocus/cash_reconciliation/testutil"
	"github.com/mmdatafocus/cash_reconciliation/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func seedRecord(t *testing.T, db *gorm.DB, id, orderId, storeId string, date time.Time, status models.ReconciliationStatus, expected string, actual, variance *decimal.Decimal, high bool) {
	t.Helper()
	rec := models.ReconciliationRecord{
		ID:                 id,
		OrderId:            orderId,
		StoreId:            storeId,
		ReconciliationDate: date,
		ExpectedAmount:     decimal.RequireFromString(expected),
		ActualAmount:       actual,
		VarianceAmount:     variance,
		Status:             status,
		IsHighPriority:     high,
		RunId:              "run-1",
		ReconciledAt:       time.Now().UTC(),
	}
	require.NoError(t, db.Create(&rec).Error)
}

func seedLedger(t *testing.T, db *gorm.DB, date time.Time) {
	seedRecord(t, db, "r1", "O-1", "S1", date, models.ReconciliationStatusMatched, "500", dec("500"), dec("0"), false)
	seedRecord(t, db, "r2", "O-2", "S1", date, models.ReconciliationStatusUnderCollection, "500", dec("400"), dec("-100"), true)
	seedRecord(t, db, "r3", "O-3", "S2", date, models.ReconciliationStatusUnaccounted, "120", nil, nil, false)
	seedRecord(t, db, "r4", "O-4", "S2", date, models.ReconciliationStatusOverCollection, "300", dec("330"), dec("30"), false)
	seedRecord(t, db, "r5", "O-1", "S1", date.AddDate(0, 0, 1), models.ReconciliationStatusMatched, "500", dec("500"), dec("0"), false)
}

func TestListReconciliationRecords_Filters(t *testing.T) {
	db := testutil.OpenSQLite(t)
	ctx := context.Background()
	date := testutil.Date(t, "2024-03-01")
	seedLedger(t, db, date)

	all, page, err := models.ListReconciliationRecords(ctx, db, models.ReconciliationRecordFilter{Date: date})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, int64(4), page.Total)
	assert.False(t, page.HasNextPage)
	assert.Equal(t, []string{"O-1", "O-2", "O-3", "O-4"}, orderIds(all))

	store, _, err := models.ListReconciliationRecords(ctx, db, models.ReconciliationRecordFilter{Date: date, StoreId: "S2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"O-3", "O-4"}, orderIds(store))

	high := true
	flagged, _, err := models.ListReconciliationRecords(ctx, db, models.ReconciliationRecordFilter{Date: date, HighPriority: &high})
	require.NoError(t, err)
	assert.Equal(t, []string{"O-2"}, orderIds(flagged))

	unaccounted, _, err := models.ListReconciliationRecords(ctx, db, models.ReconciliationRecordFilter{Date: date, Status: models.ReconciliationStatusUnaccounted})
	require.NoError(t, err)
	require.Len(t, unaccounted, 1)
	assert.Nil(t, unaccounted[0].ActualAmount)

	big, _, err := models.ListReconciliationRecords(ctx, db, models.ReconciliationRecordFilter{Date: date, MinAbsVariance: dec("50")})
	require.NoError(t, err)
	assert.Equal(t, []string{"O-2"}, orderIds(big))
}

func TestListReconciliationRecords_Paginates(t *testing.T) {
	db := testutil.OpenSQLite(t)
	date := testutil.Date(t, "2024-03-01")
	seedLedger(t, db, date)

	first, page, err := models.ListReconciliationRecords(context.Background(), db, models.ReconciliationRecordFilter{Date: date, Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"O-1", "O-2", "O-3"}, orderIds(first))
	assert.True(t, page.HasNextPage)

	second, page, err := models.ListReconciliationRecords(context.Background(), db, models.ReconciliationRecordFilter{Date: date, Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"O-4"}, orderIds(second))
	assert.False(t, page.HasNextPage)
}

func TestListReconciliationRecords_StoreScopedContext(t *testing.T) {
	db := testutil.OpenSQLite(t)
	date := testutil.Date(t, "2024-03-01")
	seedLedger(t, db, date)

	ctx := utils.SetStoreIdInContext(context.Background(), "S2")
	records, _, err := models.ListReconciliationRecords(ctx, db, models.ReconciliationRecordFilter{Date: date})
	require.NoError(t, err)
	assert.Equal(t, []string{"O-3", "O-4"}, orderIds(records))

	ctx = utils.SetSkipStoreScopeInContext(ctx, true)
	records, _, err = models.ListReconciliationRecords(ctx, db, models.ReconciliationRecordFilter{Date: date})
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestSummarizeReconciliation(t *testing.T) {
	db := testutil.OpenSQLite(t)
	date := testutil.Date(t, "2024-03-01")
	seedLedger(t, db, date)

	s, err := models.SummarizeReconciliation(context.Background(), db, date, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", s.Date)
	assert.Equal(t, int64(4), s.Total)
	assert.Equal(t, int64(1), s.HighPriority)
	assert.True(t, s.ExpectedAmount.Equal(decimal.NewFromInt(1420)), s.ExpectedAmount.String())
	assert.True(t, s.ActualAmount.Equal(decimal.NewFromInt(1230)), s.ActualAmount.String())
	assert.True(t, s.VarianceAmount.Equal(decimal.NewFromInt(-70)), s.VarianceAmount.String())
	require.Len(t, s.ByStatus, len(models.AllReconciliationStatuses))
	for i, status := range models.AllReconciliationStatuses {
		assert.Equal(t, status, s.ByStatus[i].Status)
		assert.Equal(t, int64(1), s.ByStatus[i].Count)
	}

	s1, err := models.SummarizeReconciliation(context.Background(), db, date, "S1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), s1.Total)
	assert.Equal(t, int64(0), s1.ByStatus[1].Count)
	assert.Equal(t, int64(1), s1.ByStatus[2].Count)

	empty, err := models.SummarizeReconciliation(context.Background(), db, date.AddDate(0, 0, 7), "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Total)
	assert.True(t, empty.ExpectedAmount.IsZero())
}

func TestCountReconciliationRecords(t *testing.T) {
	db := testutil.OpenSQLite(t)
	date := testutil.Date(t, "2024-03-01")
	seedLedger(t, db, date)

	n, err := models.CountReconciliationRecords(context.Background(), db, date, "S1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func orderIds(records []*models.ReconciliationRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.OrderId)
	}
	return out
}

package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/mmdatafocus/cash_reconciliation/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	recordsSheet = "Reconciliation"
	summarySheet = "Summary"
)

var recordHeadings = []string{
	"Order ID", "Store ID", "Report ID", "Date", "Expected", "Actual",
	"Variance", "Variance %", "Status", "High Priority", "Run ID", "Reconciled At",
}

// ExportReconciliation builds an xlsx workbook of the ledger for date (and store) with a summary sheet.
func ExportReconciliation(ctx context.Context, db *gorm.DB, date time.Time, storeId string) ([]byte, error) {
	started := time.Now()
	defer logSlowReport(ctx, "ExportReconciliation", started, map[string]any{"date": utils.FormatDate(date)})

	records, err := models.FetchAllReconciliationRecords(ctx, db, date, storeId)
	if err != nil {
		return nil, err
	}
	summary, err := models.SummarizeReconciliation(ctx, db, date, storeId)
	if err != nil {
		return nil, err
	}
	f, err := BuildReconciliationWorkbook(records, summary)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func BuildReconciliationWorkbook(records []*models.ReconciliationRecord, summary *models.ReconciliationLedgerSummary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", recordsSheet); err != nil {
		return nil, err
	}

	for i, h := range recordHeadings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(recordsSheet, cell, h); err != nil {
			return nil, err
		}
	}
	for i, rec := range records {
		row := []interface{}{
			rec.OrderId,
			rec.StoreId,
			utils.DereferencePtr(rec.ReportId, ""),
			utils.FormatDate(rec.ReconciliationDate),
			rec.ExpectedAmount.InexactFloat64(),
			optionalAmount(rec.ActualAmount),
			optionalAmount(rec.VarianceAmount),
			optionalAmount(rec.VariancePercentage),
			string(rec.Status),
			rec.IsHighPriority,
			rec.RunId,
			rec.ReconciledAt.UTC().Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(recordsSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	if summary != nil {
		if _, err := f.NewSheet(summarySheet); err != nil {
			return nil, err
		}
		rows := [][]interface{}{
			{"Date", summary.Date},
			{"Store ID", summary.StoreId},
			{"Status", "Count", "High Priority", "Expected", "Actual", "Variance"},
		}
		for _, s := range summary.ByStatus {
			rows = append(rows, []interface{}{
				string(s.Status), s.Count, s.HighPriority,
				s.ExpectedAmount.InexactFloat64(), s.ActualAmount.InexactFloat64(), s.VarianceAmount.InexactFloat64(),
			})
		}
		rows = append(rows, []interface{}{
			"Total", summary.Total, summary.HighPriority,
			summary.ExpectedAmount.InexactFloat64(), summary.ActualAmount.InexactFloat64(), summary.VarianceAmount.InexactFloat64(),
		})
		for i := range rows {
			if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &rows[i]); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// ExportObjectName is the storage path used when an export is uploaded.
func ExportObjectName(date time.Time, storeId string, now time.Time) string {
	scope := storeId
	if scope == "" {
		scope = "all"
	}
	return fmt.Sprintf("reconciliation/%s/%s-%s.xlsx", utils.FormatDate(date), scope, now.UTC().Format("20060102T150405Z"))
}

func optionalAmount(d *decimal.Decimal) interface{} {
	if d == nil {
		return ""
	}
	return d.InexactFloat64()
}

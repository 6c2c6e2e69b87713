package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/cash_reconciliation/models"
	"gorm.io/gorm"
)

type cashReportReader struct {
	db *gorm.DB
}

// Unknown report ids resolve to nil without an error.
func (r *cashReportReader) getCashReports(ctx context.Context, reportIds []string) []*dataloader.Result[*models.CashReport] {
	byId, err := models.MapReportsByReportId(ctx, r.db, reportIds)
	if err != nil {
		return handleError[*models.CashReport](len(reportIds), err)
	}
	loaderResults := make([]*dataloader.Result[*models.CashReport], 0, len(reportIds))
	for _, id := range reportIds {
		loaderResults = append(loaderResults, &dataloader.Result[*models.CashReport]{Data: byId[id]})
	}
	return loaderResults
}

func GetCashReport(ctx context.Context, reportId string) (*models.CashReport, error) {
	loaders := For(ctx)
	return loaders.CashReportLoader.Load(ctx, reportId)()
}

func GetCashReports(ctx context.Context, reportIds []string) ([]*models.CashReport, []error) {
	loaders := For(ctx)
	return loaders.CashReportLoader.LoadMany(ctx, reportIds)()
}

package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/mmdatafocus/cash_reconciliation/utils"
	"github.com/sirupsen/logrus"
)

type memSource struct {
	orders  []models.Order
	reports []models.CashReport
}

func (m *memSource) OrdersForDate(_ context.Context, date time.Time, storeId string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range m.orders {
		if o.CollectionDate.Equal(date) && (storeId == "" || o.StoreId == storeId) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memSource) ReportsForDate(_ context.Context, date time.Time, storeId string) ([]models.CashReport, error) {
	var out []models.CashReport
	for _, r := range m.reports {
		if r.ReportDate.Equal(date) && (storeId == "" || r.StoreId == storeId) {
			out = append(out, r)
		}
	}
	return out, nil
}

type memLedger struct {
	mu     sync.Mutex
	writes []string
	failOn map[string]error
}

func (l *memLedger) ReplaceRecords(_ context.Context, date time.Time, storeId string, records []*models.ReconciliationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	day := utils.FormatDate(date)
	if err := l.failOn[day]; err != nil {
		return err
	}
	l.writes = append(l.writes, fmt.Sprintf("%s|%s|%d", day, storeId, len(records)))
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newMemReconciler(src *memSource, ledger *memLedger, opts config.ReconciliationOptions) *Reconciler {
	return NewReconciler(src, src, ledger, quietLogger(), opts)
}

func recordContent(rec *models.ReconciliationRecord) string {
	str := func(p interface{ String() string }) string {
		if p == nil {
			return "<nil>"
		}
		return p.String()
	}
	reportId := "<nil>"
	if rec.ReportId != nil {
		reportId = *rec.ReportId
	}
	var actual, variance, pct interface{ String() string }
	if rec.ActualAmount != nil {
		actual = rec.ActualAmount
	}
	if rec.VarianceAmount != nil {
		variance = rec.VarianceAmount
	}
	if rec.VariancePercentage != nil {
		pct = rec.VariancePercentage
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s|%v",
		utils.FormatDate(rec.ReconciliationDate), rec.StoreId, rec.OrderId, reportId,
		rec.ExpectedAmount.String(), str(actual), str(variance), str(pct), rec.Status, rec.IsHighPriority)
}

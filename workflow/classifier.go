package workflow

import (
	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/shopspring/decimal"
)

var (
	varianceNoise = decimal.RequireFromString("0.005")
	hundred       = decimal.NewFromInt(100)
)

// PriorityThresholds flag a discrepancy as high priority when either is strictly exceeded.
type PriorityThresholds struct {
	Amount  decimal.Decimal
	Percent decimal.Decimal
}

type Classification struct {
	Status             models.ReconciliationStatus
	VarianceAmount     *decimal.Decimal
	VariancePercentage *decimal.Decimal
	IsHighPriority     bool
}

// Classify derives status, variance and priority for one order.
// A nil allocated amount means no report claimed the order.
// Priority is evaluated on the values left after noise clamping.
func Classify(expected decimal.Decimal, allocated *decimal.Decimal, th PriorityThresholds) Classification {
	if allocated == nil {
		return Classification{Status: models.ReconciliationStatusUnaccounted}
	}

	variance := allocated.Sub(expected).Round(2)
	pct := decimal.Zero
	if !expected.IsZero() {
		pct = variance.Mul(hundred).Div(expected).Round(2)
	}
	if pct.Abs().GreaterThan(models.MaxVariancePercentage) {
		pct = models.MaxVariancePercentage.Mul(decimal.NewFromInt(int64(pct.Sign())))
	}

	var status models.ReconciliationStatus
	switch {
	case variance.Abs().LessThan(varianceNoise):
		variance = decimal.Zero
		pct = decimal.Zero
		status = models.ReconciliationStatusMatched
	case variance.IsPositive():
		status = models.ReconciliationStatusOverCollection
	default:
		status = models.ReconciliationStatusUnderCollection
	}

	return Classification{
		Status:             status,
		VarianceAmount:     &variance,
		VariancePercentage: &pct,
		IsHighPriority:     variance.Abs().GreaterThan(th.Amount) || pct.Abs().GreaterThan(th.Percent),
	}
}

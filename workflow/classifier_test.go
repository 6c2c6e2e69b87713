package workflow

import (
	"testing"

	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/shopspring/decimal"
)

var defaultThresholds = PriorityThresholds{Amount: decimal.NewFromInt(100), Percent: decimal.NewFromInt(10)}

func amt(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func amtPtr(v string) *decimal.Decimal {
	d := amt(v)
	return &d
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		expected  string
		allocated *decimal.Decimal
		status    models.ReconciliationStatus
		variance  string
		pct       string
		high      bool
	}{
		{name: "perfect match", expected: "500", allocated: amtPtr("500"), status: models.ReconciliationStatusMatched, variance: "0", pct: "0"},
		{name: "under by 20 percent", expected: "500", allocated: amtPtr("400"), status: models.ReconciliationStatusUnderCollection, variance: "-100", pct: "-20", high: true},
		{name: "over at percent boundary", expected: "300", allocated: amtPtr("330"), status: models.ReconciliationStatusOverCollection, variance: "30", pct: "10"},
		{name: "over by amount only", expected: "5000", allocated: amtPtr("5100.01"), status: models.ReconciliationStatusOverCollection, variance: "100.01", pct: "2", high: true},
		{name: "amount boundary is not high", expected: "5000", allocated: amtPtr("5100"), status: models.ReconciliationStatusOverCollection, variance: "100", pct: "2"},
		{name: "one cent short", expected: "10", allocated: amtPtr("9.99"), status: models.ReconciliationStatusUnderCollection, variance: "-0.01", pct: "-0.1"},
		{name: "sub-cent noise rounds to match", expected: "10", allocated: amtPtr("10.004"), status: models.ReconciliationStatusMatched, variance: "0", pct: "0"},
		{name: "zero expected has zero percent", expected: "0", allocated: amtPtr("250"), status: models.ReconciliationStatusOverCollection, variance: "250", pct: "0", high: true},
		{name: "zero expected and zero collected", expected: "0", allocated: amtPtr("0"), status: models.ReconciliationStatusMatched, variance: "0", pct: "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Classify(amt(tc.expected), tc.allocated, defaultThresholds)
			if c.Status != tc.status {
				t.Fatalf("status: got %s want %s", c.Status, tc.status)
			}
			if c.VarianceAmount == nil || !c.VarianceAmount.Equal(amt(tc.variance)) {
				t.Fatalf("variance: got %v want %s", c.VarianceAmount, tc.variance)
			}
			if c.VariancePercentage == nil || !c.VariancePercentage.Equal(amt(tc.pct)) {
				t.Fatalf("percentage: got %v want %s", c.VariancePercentage, tc.pct)
			}
			if c.IsHighPriority != tc.high {
				t.Fatalf("high priority: got %v want %v", c.IsHighPriority, tc.high)
			}
		})
	}
}

func TestClassify_UnaccountedHasNoVariance(t *testing.T) {
	c := Classify(amt("500"), nil, defaultThresholds)
	if c.Status != models.ReconciliationStatusUnaccounted {
		t.Fatalf("expected unaccounted, got %s", c.Status)
	}
	if c.VarianceAmount != nil || c.VariancePercentage != nil {
		t.Fatalf("expected nil variance, got %v %v", c.VarianceAmount, c.VariancePercentage)
	}
	if c.IsHighPriority {
		t.Fatalf("unaccounted orders are never high priority")
	}
}

// Priority reads the clamped values: with thresholds of zero, any raw sub-cent noise
// would flag the order if priority were checked before clamping.
func TestClassify_PriorityUsesClampedValues(t *testing.T) {
	zero := PriorityThresholds{Amount: decimal.Zero, Percent: decimal.Zero}
	c := Classify(amt("0.01"), amtPtr("0.0149"), zero)
	if c.Status != models.ReconciliationStatusMatched {
		t.Fatalf("expected matched, got %s", c.Status)
	}
	if !c.VarianceAmount.IsZero() || !c.VariancePercentage.IsZero() {
		t.Fatalf("expected clamped zeros, got %s %s", c.VarianceAmount, c.VariancePercentage)
	}
	if c.IsHighPriority {
		t.Fatalf("clamped variance must not be high priority")
	}

	c = Classify(amt("0.01"), amtPtr("0.02"), zero)
	if !c.IsHighPriority {
		t.Fatalf("a one cent variance exceeds zero thresholds")
	}
}

func TestClassify_StatusFollowsVarianceSign(t *testing.T) {
	expected := amt("123.45")
	for cents := int64(-500); cents <= 500; cents += 7 {
		allocated := expected.Add(decimal.New(cents, -2))
		c := Classify(expected, &allocated, defaultThresholds)
		v := allocated.Sub(expected)
		switch {
		case v.Abs().LessThan(amt("0.005")):
			if c.Status != models.ReconciliationStatusMatched {
				t.Fatalf("variance %s: got %s", v, c.Status)
			}
		case v.IsPositive():
			if c.Status != models.ReconciliationStatusOverCollection {
				t.Fatalf("variance %s: got %s", v, c.Status)
			}
		default:
			if c.Status != models.ReconciliationStatusUnderCollection {
				t.Fatalf("variance %s: got %s", v, c.Status)
			}
		}
		if !c.VarianceAmount.Equal(v) {
			t.Fatalf("variance: got %s want %s", c.VarianceAmount, v)
		}
	}
}

func TestClassify_TinyClaimedSumPercentageFitsColumn(t *testing.T) {
	allocated := Allocate(amt("1.00"), amt("1.00"), amt("1000001"))
	c := Classify(amt("1.00"), &allocated, defaultThresholds)

	if !c.VariancePercentage.Equal(amt("100000000")) {
		t.Fatalf("pct: got %s want 100000000", c.VariancePercentage)
	}
	if c.VariancePercentage.Abs().GreaterThan(models.MaxVariancePercentage) {
		t.Fatalf("pct %s exceeds column limit %s", c.VariancePercentage, models.MaxVariancePercentage)
	}
	if c.Status != models.ReconciliationStatusOverCollection || !c.IsHighPriority {
		t.Fatalf("got status %s high %v", c.Status, c.IsHighPriority)
	}
}

func TestClassify_PercentageSaturatesAtColumnLimit(t *testing.T) {
	over := amt("1e30")
	c := Classify(amt("0.0001"), &over, defaultThresholds)
	if !c.VariancePercentage.Equal(models.MaxVariancePercentage) {
		t.Fatalf("pct: got %s want %s", c.VariancePercentage, models.MaxVariancePercentage)
	}

	under := amt("-1e30")
	c = Classify(amt("0.0001"), &under, defaultThresholds)
	if !c.VariancePercentage.Equal(models.MaxVariancePercentage.Neg()) {
		t.Fatalf("pct: got %s want -%s", c.VariancePercentage, models.MaxVariancePercentage)
	}
	if c.Status != models.ReconciliationStatusUnderCollection {
		t.Fatalf("status: got %s", c.Status)
	}
}

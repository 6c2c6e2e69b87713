package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAllocate(t *testing.T) {
	cases := []struct {
		name                      string
		expected, claimedSum, tot string
		want                      string
	}{
		{name: "sole order", expected: "500", claimedSum: "500", tot: "400", want: "400"},
		{name: "proportional 300 of 500", expected: "300", claimedSum: "500", tot: "550", want: "330"},
		{name: "proportional 200 of 500", expected: "200", claimedSum: "500", tot: "550", want: "220"},
		{name: "thirds round half away from zero", expected: "1", claimedSum: "3", tot: "100", want: "33.33"},
		{name: "half cent rounds up", expected: "1", claimedSum: "8", tot: "0.36", want: "0.05"},
		{name: "zero claimed sum takes the whole total", expected: "0", claimedSum: "0", tot: "75.5", want: "75.5"},
		{name: "zero total", expected: "120", claimedSum: "240", tot: "0", want: "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Allocate(amt(tc.expected), amt(tc.claimedSum), amt(tc.tot))
			if !got.Equal(amt(tc.want)) {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

// The allocations of a report add back up to its total within a cent per order.
func TestAllocate_ConservesReportTotal(t *testing.T) {
	groups := [][]string{
		{"300", "200"},
		{"1", "1", "1"},
		{"19.99", "0.01", "7.77", "123.45"},
		{"0.03", "0.03", "0.03", "0.03", "0.03", "0.03", "0.03"},
		{"1000000", "0.01"},
	}
	totals := []string{"550", "100", "0.07", "999.99", "12345.67"}
	for _, expected := range groups {
		sum := decimal.Zero
		for _, e := range expected {
			sum = sum.Add(amt(e))
		}
		for _, total := range totals {
			allocated := decimal.Zero
			for _, e := range expected {
				allocated = allocated.Add(Allocate(amt(e), sum, amt(total)))
			}
			tolerance := decimal.New(int64(len(expected)), -2)
			if allocated.Sub(amt(total)).Abs().GreaterThan(tolerance) {
				t.Fatalf("expected %v total %s: allocated %s", expected, total, allocated)
			}
		}
	}
}

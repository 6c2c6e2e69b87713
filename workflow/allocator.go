package workflow

import "github.com/shopspring/decimal"

// Allocate returns an order's share of a report total, proportional to its expected amount.
// claimedSum is the expected total of every order the report won. When it is zero the
// order receives the whole report total. Rounding to cents happens once, at the end.
func Allocate(expected, claimedSum, reportTotal decimal.Decimal) decimal.Decimal {
	if claimedSum.Sign() <= 0 {
		return reportTotal.Round(2)
	}
	return expected.Mul(reportTotal).Div(claimedSum).Round(2)
}

package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/mmdatafocus/cash_reconciliation/utils"
	"github.com/shopspring/decimal"
)

// ClaimIndex maps each in-scope order to the report that claims it.
// It lives for a single date run.
type ClaimIndex struct {
	claimant   map[string]*models.CashReport
	claimedSum map[string]decimal.Decimal

	// Ambiguous lists, per order id, every report id that claimed it in arrival order.
	Ambiguous map[string][]string
	// Malformed holds report ids whose claim list could not be parsed.
	Malformed []string
	// OutOfScope counts claims naming an order that is not part of the run.
	OutOfScope int
}

// Claimant returns the report that owns orderId's claim.
func (ix *ClaimIndex) Claimant(orderId string) (*models.CashReport, bool) {
	r, ok := ix.claimant[orderId]
	return r, ok
}

// ClaimedSum is the expected-amount total of the orders reportId actually won.
func (ix *ClaimIndex) ClaimedSum(reportId string) decimal.Decimal {
	return ix.claimedSum[reportId]
}

// AmbiguousOrderIds returns the ambiguous order ids sorted.
func (ix *ClaimIndex) AmbiguousOrderIds() []string {
	ids := make([]string, 0, len(ix.Ambiguous))
	for id := range ix.Ambiguous {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MatchClaims builds the claim index for one date.
// Reports must be in arrival order: when several reports claim an order, the last one wins,
// unless policy is ClaimPolicyReject.
func MatchClaims(orders []models.Order, reports []models.CashReport, policy config.ClaimPolicy, strictParsing bool) (*ClaimIndex, error) {
	ix := &ClaimIndex{
		claimant:   make(map[string]*models.CashReport, len(orders)),
		claimedSum: make(map[string]decimal.Decimal, len(reports)),
		Ambiguous:  map[string][]string{},
	}

	inScope := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		inScope[o.OrderId] = struct{}{}
	}

	for i := range reports {
		report := &reports[i]
		ids, err := report.ClaimedOrders()
		if err != nil {
			if strictParsing || !errors.Is(err, models.ErrMalformedClaimList) {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClaims, err)
			}
			ix.Malformed = append(ix.Malformed, report.ReportId)
			continue
		}
		for _, orderId := range utils.UniqueSlice(ids) {
			if _, ok := inScope[orderId]; !ok {
				ix.OutOfScope++
				continue
			}
			if prev, ok := ix.claimant[orderId]; ok && prev.ReportId != report.ReportId {
				if len(ix.Ambiguous[orderId]) == 0 {
					ix.Ambiguous[orderId] = []string{prev.ReportId}
				}
				ix.Ambiguous[orderId] = append(ix.Ambiguous[orderId], report.ReportId)
			}
			ix.claimant[orderId] = report
		}
	}

	if policy == config.ClaimPolicyReject && len(ix.Ambiguous) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousClaim, strings.Join(ix.AmbiguousOrderIds(), ","))
	}

	// Denominators are taken after tie-breaks so each order counts towards exactly one report.
	for _, o := range orders {
		if r, ok := ix.claimant[o.OrderId]; ok {
			ix.claimedSum[r.ReportId] = ix.claimedSum[r.ReportId].Add(o.ExpectedAmount)
		}
	}
	return ix, nil
}

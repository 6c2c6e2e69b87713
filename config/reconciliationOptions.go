package config

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// ClaimPolicy decides what happens when more than one cash report claims the same order.
type ClaimPolicy string

const (
	// ClaimPolicyLastWins keeps the latest-arriving report's claim and reports the ambiguity.
	ClaimPolicyLastWins ClaimPolicy = "last_wins"
	// ClaimPolicyReject fails the date's run before anything is written.
	ClaimPolicyReject ClaimPolicy = "reject"
)

type ReconciliationOptions struct {
	ClaimPolicy ClaimPolicy
	// StrictClaimParsing turns an unparseable claimed-order list into a run failure
	// instead of treating the report as claiming nothing.
	StrictClaimParsing bool

	HighPriorityAmount  decimal.Decimal
	HighPriorityPercent decimal.Decimal

	// RangeConcurrency is the number of dates a range run may process at once (<=1 is sequential).
	RangeConcurrency int
	MaxRangeDays     int
	InsertBatchSize  int
}

func DefaultReconciliationOptions() ReconciliationOptions {
	return ReconciliationOptions{
		ClaimPolicy:         ClaimPolicyLastWins,
		StrictClaimParsing:  false,
		HighPriorityAmount:  decimal.NewFromInt(100),
		HighPriorityPercent: decimal.NewFromInt(10),
		RangeConcurrency:    1,
		MaxRangeDays:        366,
		InsertBatchSize:     500,
	}
}

// ReconciliationOptionsFromEnv reads engine options.
//
// Env:
// - RECON_CLAIM_POLICY=last_wins|reject
// - RECON_STRICT_CLAIM_PARSING=true
// - RECON_HIGH_PRIORITY_AMOUNT=100
// - RECON_HIGH_PRIORITY_PERCENT=10
// - RECON_RANGE_CONCURRENCY=1
// - RECON_MAX_RANGE_DAYS=366
// - RECON_INSERT_BATCH_SIZE=500
func ReconciliationOptionsFromEnv() ReconciliationOptions {
	opts := DefaultReconciliationOptions()

	switch ClaimPolicy(strings.ToLower(strings.TrimSpace(os.Getenv("RECON_CLAIM_POLICY")))) {
	case ClaimPolicyReject:
		opts.ClaimPolicy = ClaimPolicyReject
	case ClaimPolicyLastWins:
		opts.ClaimPolicy = ClaimPolicyLastWins
	}
	opts.StrictClaimParsing = envBool("RECON_STRICT_CLAIM_PARSING", opts.StrictClaimParsing)
	opts.HighPriorityAmount = decimalFromEnv("RECON_HIGH_PRIORITY_AMOUNT", opts.HighPriorityAmount)
	opts.HighPriorityPercent = decimalFromEnv("RECON_HIGH_PRIORITY_PERCENT", opts.HighPriorityPercent)
	if n := intFromEnv("RECON_RANGE_CONCURRENCY", opts.RangeConcurrency); n > 0 {
		opts.RangeConcurrency = n
	}
	if n := intFromEnv("RECON_MAX_RANGE_DAYS", opts.MaxRangeDays); n > 0 {
		opts.MaxRangeDays = n
	}
	if n := intFromEnv("RECON_INSERT_BATCH_SIZE", opts.InsertBatchSize); n > 0 {
		opts.InsertBatchSize = n
	}
	return opts
}

func decimalFromEnv(key string, def decimal.Decimal) decimal.Decimal {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return def
	}
	return d
}

package workflow

import (
	"time"

	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/shopspring/decimal"
)

// RunSummary holds the counts surfaced alongside a run's records.
type RunSummary struct {
	Reconciled       int             `json:"reconciled"`
	Matched          int             `json:"matched"`
	OverCollection   int             `json:"over_collection"`
	UnderCollection  int             `json:"under_collection"`
	Unaccounted      int             `json:"unaccounted"`
	HighPriority     int             `json:"high_priority"`
	AmbiguousClaims  int             `json:"ambiguous_claims"`
	MalformedReports int             `json:"malformed_reports"`
	OutOfScopeClaims int             `json:"out_of_scope_claims"`
	TotalExpected    decimal.Decimal `json:"total_expected"`
	TotalAllocated   decimal.Decimal `json:"total_allocated"`
}

func (s *RunSummary) add(rec *models.ReconciliationRecord) {
	s.Reconciled++
	switch rec.Status {
	case models.ReconciliationStatusMatched:
		s.Matched++
	case models.ReconciliationStatusOverCollection:
		s.OverCollection++
	case models.ReconciliationStatusUnderCollection:
		s.UnderCollection++
	case models.ReconciliationStatusUnaccounted:
		s.Unaccounted++
	}
	if rec.IsHighPriority {
		s.HighPriority++
	}
	s.TotalExpected = s.TotalExpected.Add(rec.ExpectedAmount)
	if rec.ActualAmount != nil {
		s.TotalAllocated = s.TotalAllocated.Add(*rec.ActualAmount)
	}
}

func (s *RunSummary) merge(o RunSummary) {
	s.Reconciled += o.Reconciled
	s.Matched += o.Matched
	s.OverCollection += o.OverCollection
	s.UnderCollection += o.UnderCollection
	s.Unaccounted += o.Unaccounted
	s.HighPriority += o.HighPriority
	s.AmbiguousClaims += o.AmbiguousClaims
	s.MalformedReports += o.MalformedReports
	s.OutOfScopeClaims += o.OutOfScopeClaims
	s.TotalExpected = s.TotalExpected.Add(o.TotalExpected)
	s.TotalAllocated = s.TotalAllocated.Add(o.TotalAllocated)
}

// DateResult is the outcome of reconciling one date (and optional store).
type DateResult struct {
	Date    time.Time                      `json:"date"`
	StoreId string                         `json:"store_id,omitempty"`
	RunId   string                         `json:"run_id"`
	Records []*models.ReconciliationRecord `json:"records"`
	Summary RunSummary                     `json:"summary"`
	// AmbiguousClaims maps order id to the report ids that claimed it, last one winning.
	AmbiguousClaims  map[string][]string `json:"ambiguous_claims,omitempty"`
	MalformedReports []string            `json:"malformed_reports,omitempty"`
}

type DaySummary struct {
	Date    time.Time  `json:"date"`
	RunId   string     `json:"run_id"`
	Summary RunSummary `json:"summary"`
}

// RangeResult concatenates date results in date order.
type RangeResult struct {
	From    time.Time                      `json:"from"`
	To      time.Time                      `json:"to"`
	StoreId string                         `json:"store_id,omitempty"`
	Records []*models.ReconciliationRecord `json:"records"`
	Days    []DaySummary                   `json:"days"`
	Summary RunSummary                     `json:"summary"`
}

func (r *RangeResult) append(d *DateResult) {
	r.Records = append(r.Records, d.Records...)
	r.Days = append(r.Days, DaySummary{Date: d.Date, RunId: d.RunId, Summary: d.Summary})
	r.Summary.merge(d.Summary)
}

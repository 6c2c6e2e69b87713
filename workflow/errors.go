package workflow

import "errors"

var (
	ErrInvalidRange    = errors.New("invalid date range: from is after to")
	ErrRangeTooLarge   = errors.New("date range exceeds the maximum number of days")
	ErrAmbiguousClaim  = errors.New("order claimed by more than one cash report")
	ErrMalformedClaims = errors.New("cash report has a malformed claimed order list")
	ErrScopeLocked     = errors.New("reconciliation scope is locked by another run")
	ErrInvalidRequest  = errors.New("invalid reconcile request")
)

package models

import (
	"errors"
	"strings"
)

type ReconciliationStatus string

const (
	ReconciliationStatusMatched         ReconciliationStatus = "matched"
	ReconciliationStatusOverCollection  ReconciliationStatus = "over_collection"
	ReconciliationStatusUnderCollection ReconciliationStatus = "under_collection"
	ReconciliationStatusUnaccounted     ReconciliationStatus = "unaccounted"
)

var AllReconciliationStatuses = []ReconciliationStatus{
	ReconciliationStatusMatched,
	ReconciliationStatusOverCollection,
	ReconciliationStatusUnderCollection,
	ReconciliationStatusUnaccounted,
}

func (s ReconciliationStatus) IsValid() bool {
	switch s {
	case ReconciliationStatusMatched,
		ReconciliationStatusOverCollection,
		ReconciliationStatusUnderCollection,
		ReconciliationStatusUnaccounted:
		return true
	}
	return false
}

func ParseReconciliationStatus(s string) (ReconciliationStatus, error) {
	status := ReconciliationStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", errors.New("invalid reconciliation status")
	}
	return status, nil
}

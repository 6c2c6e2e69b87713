package workflow

import (
	"context"

	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/mmdatafocus/cash_reconciliation/utils"
	"github.com/sirupsen/logrus"
)

const EventTypeReconciliationCompleted = "reconciliation.completed"

// ReconciliationCompletedEvent is published after a date's ledger rewrite commits.
type ReconciliationCompletedEvent struct {
	Type          string     `json:"type"`
	Date          string     `json:"date"`
	StoreId       string     `json:"store_id,omitempty"`
	RunId         string     `json:"run_id"`
	CorrelationId string     `json:"correlation_id,omitempty"`
	Summary       RunSummary `json:"summary"`
}

func NewReconciliationCompletedEvent(ctx context.Context, result *DateResult) ReconciliationCompletedEvent {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	return ReconciliationCompletedEvent{
		Type:          EventTypeReconciliationCompleted,
		Date:          utils.FormatDate(result.Date),
		StoreId:       result.StoreId,
		RunId:         result.RunId,
		CorrelationId: correlationId,
		Summary:       result.Summary,
	}
}

func invalidateSummaryCacheHook(logger *logrus.Logger) CommitHook {
	return func(ctx context.Context, result *DateResult) {
		if err := models.InvalidateSummaryCache(result.Date); err != nil {
			config.LogError(logger, "Events.go", "invalidateSummaryCacheHook", "Dropping cached summaries", utils.FormatDate(result.Date), err)
		}
	}
}

func publishCompletedEventHook(logger *logrus.Logger) CommitHook {
	return func(ctx context.Context, result *DateResult) {
		event := NewReconciliationCompletedEvent(ctx, result)
		messageId, err := config.PublishReconciliationEvent(ctx, event)
		if err != nil {
			config.LogError(logger, "Events.go", "publishCompletedEventHook", "Publishing reconciliation event", event, err)
			return
		}
		if messageId != "" {
			logger.WithFields(logrus.Fields{
				"field":      "publishCompletedEventHook",
				"run_id":     result.RunId,
				"message_id": messageId,
			}).Info("reconciliation event published")
		}
	}
}

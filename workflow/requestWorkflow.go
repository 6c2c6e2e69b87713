package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/mmdatafocus/cash_reconciliation/utils"
	"gorm.io/gorm"
)

const HandlerReconcileRequest = "ReconcileRequest"

// RequestRange resolves a queued request to an inclusive date range.
func RequestRange(m config.ReconcileRequestMessage) (from, to time.Time, err error) {
	if d := strings.TrimSpace(m.Date); d != "" {
		from, err = utils.ParseDate(d)
		if err != nil {
			return from, to, fmt.Errorf("%w: date: %v", ErrInvalidRequest, err)
		}
		return from, from, nil
	}
	if strings.TrimSpace(m.From) == "" || strings.TrimSpace(m.To) == "" {
		return from, to, fmt.Errorf("%w: date or from/to required", ErrInvalidRequest)
	}
	if from, err = utils.ParseDate(m.From); err != nil {
		return from, to, fmt.Errorf("%w: from: %v", ErrInvalidRequest, err)
	}
	if to, err = utils.ParseDate(m.To); err != nil {
		return from, to, fmt.Errorf("%w: to: %v", ErrInvalidRequest, err)
	}
	return from, to, nil
}

// ProcessReconcileRequest runs a queued request at most once per message id.
// skipped is true when the message already succeeded.
func ProcessReconcileRequest(ctx context.Context, db *gorm.DB, r *Reconciler, messageId string, m config.ReconcileRequestMessage) (result *RangeResult, skipped bool, err error) {
	from, to, err := RequestRange(m)
	if err != nil {
		return nil, false, err
	}
	if err := ValidateRange(from, to, r.Options.MaxRangeDays); err != nil {
		return nil, false, err
	}

	idem := db.WithContext(ctx)
	skip, err := BeginIdempotency(idem, HandlerReconcileRequest, messageId)
	if err != nil {
		return nil, false, err
	}
	if skip {
		return nil, true, nil
	}

	result, err = r.ReconcileRange(ctx, from, to, strings.TrimSpace(m.StoreId))
	if err != nil {
		_ = MarkIdempotencyFailed(idem, HandlerReconcileRequest, messageId, err)
		return result, false, err
	}
	if err := MarkIdempotencySucceeded(idem, HandlerReconcileRequest, messageId); err != nil {
		return result, false, err
	}
	return result, false, nil
}

package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/cash_reconciliation/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ValidateRange rejects from > to and ranges longer than maxDays (maxDays <= 0 means unlimited).
func ValidateRange(from, to time.Time, maxDays int) error {
	from, to = utils.DateOnlyUTC(from), utils.DateOnlyUTC(to)
	if from.After(to) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, utils.FormatDate(from), utils.FormatDate(to))
	}
	if days := int(to.Sub(from).Hours()/24) + 1; maxDays > 0 && days > maxDays {
		return fmt.Errorf("%w: limit is %d", ErrRangeTooLarge, maxDays)
	}
	return nil
}

// ReconcileRange reconciles every calendar day in [from, to] and concatenates the records in date order.
// Each date commits on its own. On failure the result holds the dates that committed before the
// first failing date, and the error names that date.
func (r *Reconciler) ReconcileRange(ctx context.Context, from, to time.Time, storeId string) (*RangeResult, error) {
	if err := ValidateRange(from, to, r.Options.MaxRangeDays); err != nil {
		return nil, err
	}
	from, to = utils.DateOnlyUTC(from), utils.DateOnlyUTC(to)
	days := utils.DaysInRange(from, to)

	ctx, span := r.Tracer.Start(ctx, "workflow.ReconcileRange", trace.WithAttributes(
		attribute.String("from", utils.FormatDate(from)),
		attribute.String("to", utils.FormatDate(to)),
		attribute.String("store_id", storeId),
		attribute.Int("days", len(days)),
	))
	defer span.End()

	results, err := r.reconcileDays(ctx, days, storeId)

	out := &RangeResult{
		From:    from,
		To:      to,
		StoreId: storeId,
		Records: nil,
		Days:    make([]DaySummary, 0, len(days)),
	}
	out.Summary.TotalExpected = decimal.Zero
	out.Summary.TotalAllocated = decimal.Zero
	for _, res := range results {
		if res == nil {
			break
		}
		out.append(res)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	return out, nil
}

func (r *Reconciler) reconcileDays(ctx context.Context, days []time.Time, storeId string) ([]*DateResult, error) {
	results := make([]*DateResult, len(days))
	if r.Options.RangeConcurrency <= 1 {
		for i, day := range days {
			res, err := r.ReconcileDate(ctx, day, storeId)
			if err != nil {
				return results, fmt.Errorf("reconcile %s: %w", utils.FormatDate(day), err)
			}
			results[i] = res
		}
		return results, nil
	}

	errs := make([]error, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Options.RangeConcurrency)
	for i, day := range days {
		i, day := i, day
		g.Go(func() error {
			res, err := r.ReconcileDate(gctx, day, storeId)
			if err != nil {
				errs[i] = fmt.Errorf("reconcile %s: %w", utils.FormatDate(day), err)
				return errs[i]
			}
			results[i] = res
			return nil
		})
	}
	werr := g.Wait()
	if werr == nil {
		return results, nil
	}
	// werr is the first failure; dates cancelled after it also land in errs.
	for i, err := range errs {
		if err != nil {
			return results[:i], werr
		}
	}
	return results, werr
}

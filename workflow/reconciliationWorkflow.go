package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/mmdatafocus/cash_reconciliation/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const redisLockTTL = 2 * time.Minute

// CommitHook runs after a date's ledger rewrite committed. Hooks must not fail the run.
type CommitHook func(ctx context.Context, result *DateResult)

// Reconciler runs the single-date flow: match, allocate, classify, replace the ledger.
type Reconciler struct {
	Orders  OrderSource
	Reports ReportSource
	Ledger  LedgerWriter
	Options config.ReconciliationOptions
	Logger  *logrus.Logger
	Tracer  trace.Tracer
	// Locker, when set, is used for a best-effort cross-instance lock before each date run.
	Locker *redislock.Client

	hooks []CommitHook
}

func NewReconciler(orders OrderSource, reports ReportSource, ledger LedgerWriter, logger *logrus.Logger, opts config.ReconciliationOptions) *Reconciler {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Reconciler{
		Orders:  orders,
		Reports: reports,
		Ledger:  ledger,
		Options: opts,
		Logger:  logger,
		Tracer:  otel.Tracer("cash-reconciliation"),
	}
}

// NewGormReconciler reads from and writes to db, and after each commit drops cached
// summaries and announces the run.
func NewGormReconciler(db *gorm.DB, logger *logrus.Logger, opts config.ReconciliationOptions) *Reconciler {
	src := GormSource{DB: db}
	r := NewReconciler(src, src, NewGormLedgerWriter(db, opts.InsertBatchSize), logger, opts)
	r.Locker = config.GetRedisLock()
	r.OnCommit(invalidateSummaryCacheHook(r.Logger), publishCompletedEventHook(r.Logger))
	return r
}

func (r *Reconciler) OnCommit(hooks ...CommitHook) {
	r.hooks = append(r.hooks, hooks...)
}

func (r *Reconciler) thresholds() PriorityThresholds {
	return PriorityThresholds{Amount: r.Options.HighPriorityAmount, Percent: r.Options.HighPriorityPercent}
}

// ReconcileDate reconciles every order collected on date, limited to storeId when set.
// An empty scope is not an error; it still clears stale ledger rows.
func (r *Reconciler) ReconcileDate(ctx context.Context, date time.Time, storeId string) (*DateResult, error) {
	date = utils.DateOnlyUTC(date)
	ctx, span := r.Tracer.Start(ctx, "workflow.ReconcileDate", trace.WithAttributes(
		attribute.String("date", utils.FormatDate(date)),
		attribute.String("store_id", storeId),
	))
	defer span.End()

	result, err := r.reconcileDate(ctx, date, storeId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("reconciled", result.Summary.Reconciled))
	return result, nil
}

func (r *Reconciler) reconcileDate(ctx context.Context, date time.Time, storeId string) (*DateResult, error) {
	fields := logrus.Fields{
		"field":    "ReconcileDate",
		"date":     utils.FormatDate(date),
		"store_id": storeId,
	}
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = correlationId
	}

	if lock := r.obtainRedisLock(ctx, date, fields); lock != nil {
		defer func() {
			if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				r.Logger.WithFields(fields).Warn("failed to release redis lock: " + err.Error())
			}
		}()
	}

	orders, err := r.Orders.OrdersForDate(ctx, date, storeId)
	if err != nil {
		config.LogError(r.Logger, "ReconciliationWorkflow.go", "ReconcileDate", "Reading orders", fields, err)
		return nil, fmt.Errorf("read orders: %w", err)
	}
	reports, err := r.Reports.ReportsForDate(ctx, date, storeId)
	if err != nil {
		config.LogError(r.Logger, "ReconciliationWorkflow.go", "ReconcileDate", "Reading cash reports", fields, err)
		return nil, fmt.Errorf("read cash reports: %w", err)
	}

	ix, err := MatchClaims(orders, reports, r.Options.ClaimPolicy, r.Options.StrictClaimParsing)
	if err != nil {
		config.LogError(r.Logger, "ReconciliationWorkflow.go", "ReconcileDate", "Matching claims", fields, err)
		return nil, err
	}
	for _, orderId := range ix.AmbiguousOrderIds() {
		r.Logger.WithFields(fields).WithFields(logrus.Fields{
			"order_id":   orderId,
			"report_ids": ix.Ambiguous[orderId],
		}).Warn("order claimed by more than one cash report; latest report wins")
	}
	for _, reportId := range ix.Malformed {
		r.Logger.WithFields(fields).WithField("report_id", reportId).
			Warn("malformed claimed order list; report treated as claiming no orders")
	}

	result := &DateResult{
		Date:             date,
		StoreId:          storeId,
		RunId:            uuid.NewString(),
		Records:          BuildRecords(date, orders, ix, r.thresholds()),
		MalformedReports: ix.Malformed,
	}
	if len(ix.Ambiguous) > 0 {
		result.AmbiguousClaims = ix.Ambiguous
	}
	result.Summary.TotalExpected = decimal.Zero
	result.Summary.TotalAllocated = decimal.Zero
	for _, rec := range result.Records {
		rec.RunId = result.RunId
		result.Summary.add(rec)
	}
	result.Summary.AmbiguousClaims = len(ix.Ambiguous)
	result.Summary.MalformedReports = len(ix.Malformed)
	result.Summary.OutOfScopeClaims = ix.OutOfScope

	if err := r.Ledger.ReplaceRecords(ctx, date, storeId, result.Records); err != nil {
		config.LogError(r.Logger, "ReconciliationWorkflow.go", "ReconcileDate", "Replacing ledger records", fields, err)
		return nil, fmt.Errorf("replace ledger for %s: %w", utils.FormatDate(date), err)
	}

	for _, hook := range r.hooks {
		hook(ctx, result)
	}
	r.Logger.WithFields(fields).WithFields(logrus.Fields{
		"run_id":     result.RunId,
		"reconciled": result.Summary.Reconciled,
	}).Info("reconciliation committed")
	return result, nil
}

// BuildRecords allocates and classifies every order against the claim index, in input order.
func BuildRecords(date time.Time, orders []models.Order, ix *ClaimIndex, th PriorityThresholds) []*models.ReconciliationRecord {
	records := make([]*models.ReconciliationRecord, 0, len(orders))
	for _, o := range orders {
		rec := &models.ReconciliationRecord{
			OrderId:            o.OrderId,
			StoreId:            o.StoreId,
			ReconciliationDate: date,
			ExpectedAmount:     o.ExpectedAmount,
		}
		var allocated *decimal.Decimal
		if report, ok := ix.Claimant(o.OrderId); ok {
			amount := Allocate(o.ExpectedAmount, ix.ClaimedSum(report.ReportId), report.TotalCollected)
			allocated = &amount
			reportId := report.ReportId
			rec.ReportId = &reportId
		}
		c := Classify(o.ExpectedAmount, allocated, th)
		rec.ActualAmount = allocated
		rec.VarianceAmount = c.VarianceAmount
		rec.VariancePercentage = c.VariancePercentage
		rec.Status = c.Status
		rec.IsHighPriority = c.IsHighPriority
		records = append(records, rec)
	}
	return records
}

// obtainRedisLock returns nil when the lock is unavailable; the ledger writer still
// serializes the rewrite itself.
func (r *Reconciler) obtainRedisLock(ctx context.Context, date time.Time, fields logrus.Fields) *redislock.Lock {
	if r.Locker == nil {
		return nil
	}
	lock, err := r.Locker.Obtain(ctx, "lock:"+scopeLockName(date), redisLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(250*time.Millisecond), 40),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		r.Logger.WithFields(fields).Warn("could not obtain redis lock; proceeding without redis lock")
		return nil
	} else if err != nil {
		r.Logger.WithFields(fields).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
		return nil
	}
	return lock
}

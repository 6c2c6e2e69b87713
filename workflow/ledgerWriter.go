package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultInsertBatchSize = 500

// GormLedgerWriter replaces ledger rows with delete-then-insert inside one transaction.
type GormLedgerWriter struct {
	db        *gorm.DB
	logger    *logrus.Logger
	batchSize int
	locks     *keyedMutex
	now       func() time.Time
}

func NewGormLedgerWriter(db *gorm.DB, batchSize int) *GormLedgerWriter {
	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}
	return &GormLedgerWriter{
		db:        db,
		logger:    config.GetLogger(),
		batchSize: batchSize,
		locks:     newKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ReplaceRecords deletes every ledger row of date (and storeId, if set) and inserts records.
// Each record gets a fresh id and computation timestamp. On failure the previous rows stay.
func (w *GormLedgerWriter) ReplaceRecords(ctx context.Context, date time.Time, storeId string, records []*models.ReconciliationRecord) error {
	unlock := w.locks.lock(scopeLockName(date))
	defer unlock()

	now := w.now()
	for _, rec := range records {
		rec.ID = uuid.NewString()
		rec.ReconciledAt = now
	}

	db := w.db.WithContext(ctx)
	if db.Dialector.Name() != "mysql" {
		return w.replaceInTx(db, date, storeId, records)
	}
	return db.Connection(func(conn *gorm.DB) error {
		if err := AcquireScopeLock(conn, date); err != nil {
			return err
		}
		defer w.releaseScopeLock(conn, date)
		return w.replaceInTx(conn, date, storeId, records)
	})
}

func (w *GormLedgerWriter) releaseScopeLock(conn *gorm.DB, date time.Time) {
	if err := ReleaseScopeLock(conn, date); err != nil {
		config.LogError(w.logger, "ledgerWriter.go", "ReplaceRecords", "RELEASE_LOCK", scopeLockName(date), err)
	}
}

func (w *GormLedgerWriter) replaceInTx(db *gorm.DB, date time.Time, storeId string, records []*models.ReconciliationRecord) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	del := tx.Where("reconciliation_date = ?", date)
	if storeId != "" {
		del = del.Where("store_id = ?", storeId)
	}
	if err := del.Delete(&models.ReconciliationRecord{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if len(records) > 0 {
		if err := tx.CreateInBatches(records, w.batchSize).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

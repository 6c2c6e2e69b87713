package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/mmdatafocus/cash_reconciliation/utils"
	"gorm.io/gorm"
)

const scopeLockTimeoutSeconds = 30

// Locks are per date: a store-filtered run and an all-stores run of the same date overlap.
func scopeLockName(date time.Time) string {
	return "recon:" + utils.FormatDate(date)
}

// AcquireScopeLock serializes ledger rewrites of a date across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so conn must be the pinned connection that runs the rewrite.
func AcquireScopeLock(conn *gorm.DB, date time.Time) error {
	lockName := scopeLockName(date)
	var ok int
	if err := conn.Raw("SELECT GET_LOCK(?, ?)", lockName, scopeLockTimeoutSeconds).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("%w: %s", ErrScopeLocked, lockName)
	}
	return nil
}

// ReleaseScopeLock ignores cancellation of the caller's context: the lock outlives a
// cancelled request on the pooled connection otherwise.
func ReleaseScopeLock(conn *gorm.DB, date time.Time) error {
	ctx := context.Background()
	if conn.Statement != nil && conn.Statement.Context != nil {
		ctx = context.WithoutCancel(conn.Statement.Context)
	}
	var released sql.NullInt64
	return conn.WithContext(ctx).Raw("SELECT RELEASE_LOCK(?)", scopeLockName(date)).Scan(&released).Error
}

// keyedMutex serializes work per key within this process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// lock blocks until key is free and returns the unlock func.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, exists := k.locks[key]
	if !exists {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrLockTimeout is returned when lock acquisition times out because another
// instance is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

const createLockTableSQL = `
CREATE TABLE IF NOT EXISTS scheduler_lock (
	lock_name TEXT PRIMARY KEY,
	holder TEXT NOT NULL,
	acquired_at DATETIME NOT NULL,
	heartbeat_at DATETIME NOT NULL
);
`

// staleAfter is how long a heartbeat may go unrefreshed before a lock row is
// considered abandoned by a crashed holder and eligible for takeover.
const staleAfter = 30 * time.Second

// AdvisoryLock is a single-instance reservation over the ledger's database
// file. SQLite has no server-side named-lock primitive equivalent to MySQL's
// GET_LOCK(), so this reproduces the same guarantee with a dedicated row:
// the read-then-insert-or-steal runs in one SQLite transaction, so SQLite's
// own write locking lets only one concurrent holder commit it, and a
// heartbeat timestamp lets a new instance detect and take over from a
// holder that crashed without releasing.
type AdvisoryLock struct {
	db       *sql.DB
	lockName string
	holder   string
	held     bool

	stopHeartbeat chan struct{}
}

// NewAdvisoryLock creates a lock over lockName. The lock is not acquired
// until AcquireOrFail or WithLock is called.
func NewAdvisoryLock(db *sql.DB, lockName, holder string) *AdvisoryLock {
	return &AdvisoryLock{db: db, lockName: lockName, holder: holder}
}

// EnsureSchema creates the lock table if absent. Safe to call repeatedly.
func (a *AdvisoryLock) EnsureSchema(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, createLockTableSQL)
	return err
}

// AcquireOrFail attempts to take the lock, retrying with backoff until
// timeout elapses. Returns ErrLockTimeout if another instance holds a live
// (non-stale) lock for the whole window.
func (a *AdvisoryLock) AcquireOrFail(ctx context.Context, timeout time.Duration) error {
	if a.held {
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = timeout

	operation := func() error {
		ok, err := a.tryAcquire(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return fmt.Errorf("lock %q held by another instance", a.lockName)
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("%w: %s", ErrLockTimeout, a.lockName)
	}

	a.held = true
	a.stopHeartbeat = make(chan struct{})
	go a.heartbeatLoop()
	return nil
}

// tryAcquire inserts the lock row if absent, or steals it if the existing
// holder's heartbeat is stale. The check-then-act runs in a single deferred
// transaction: the write lock is taken at the INSERT or UPDATE, not up front.
func (a *AdvisoryLock) tryAcquire(ctx context.Context) (bool, error) {
	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		// SQLite rejects a BEGIN inside the transaction BeginTx already
		// opened; the error is discarded and the transaction stays deferred.
		_ = err
	}

	var heartbeatAt time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT heartbeat_at FROM scheduler_lock WHERE lock_name = ?`, a.lockName,
	).Scan(&heartbeatAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scheduler_lock (lock_name, holder, acquired_at, heartbeat_at) VALUES (?, ?, ?, ?)`,
			a.lockName, a.holder, now(), now(),
		); err != nil {
			return false, fmt.Errorf("insert lock row: %w", err)
		}
		return true, tx.Commit()
	case err != nil:
		return false, fmt.Errorf("read lock row: %w", err)
	}

	if time.Since(heartbeatAt) <= staleAfter {
		return false, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE scheduler_lock SET holder = ?, acquired_at = ?, heartbeat_at = ? WHERE lock_name = ?`,
		a.holder, now(), now(), a.lockName,
	); err != nil {
		return false, fmt.Errorf("steal stale lock row: %w", err)
	}
	return true, tx.Commit()
}

func (a *AdvisoryLock) heartbeatLoop() {
	ticker := time.NewTicker(staleAfter / 3)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopHeartbeat:
			return
		case <-ticker.C:
			_, _ = a.db.Exec(
				`UPDATE scheduler_lock SET heartbeat_at = ? WHERE lock_name = ? AND holder = ?`,
				now(), a.lockName, a.holder,
			)
		}
	}
}

// Release drops this instance's hold on the lock.
func (a *AdvisoryLock) Release(ctx context.Context) error {
	if !a.held {
		return nil
	}
	close(a.stopHeartbeat)
	a.held = false

	_, err := a.db.ExecContext(ctx,
		`DELETE FROM scheduler_lock WHERE lock_name = ? AND holder = ?`, a.lockName, a.holder)
	return err
}

// WithLock acquires the lock, runs fn, and releases the lock even if fn
// panics.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeout time.Duration, fn func() error) error {
	if err := a.AcquireOrFail(ctx, timeout); err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Release(releaseCtx)
	}()
	return fn()
}

// now is a seam so tests can avoid relying on wall-clock time where needed.
func now() time.Time { return time.Now() }

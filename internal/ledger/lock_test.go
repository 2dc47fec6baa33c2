package ledger

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLockDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestAdvisoryLock_AcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	db := openLockDB(t)

	l := NewAdvisoryLock(db, "scheduler", "holder-1")
	require.NoError(t, l.EnsureSchema(ctx))

	require.NoError(t, l.AcquireOrFail(ctx, time.Second))
	assert.True(t, l.held)

	require.NoError(t, l.Release(ctx))
	assert.False(t, l.held)
}

func TestAdvisoryLock_SecondHolderBlockedUntilStale(t *testing.T) {
	ctx := context.Background()
	db := openLockDB(t)

	first := NewAdvisoryLock(db, "scheduler", "holder-1")
	require.NoError(t, first.EnsureSchema(ctx))
	require.NoError(t, first.AcquireOrFail(ctx, time.Second))
	defer first.Release(ctx)

	second := NewAdvisoryLock(db, "scheduler", "holder-2")
	err := second.AcquireOrFail(ctx, 200*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestAdvisoryLock_StealsStaleLock(t *testing.T) {
	ctx := context.Background()
	db := openLockDB(t)

	first := NewAdvisoryLock(db, "scheduler", "holder-1")
	require.NoError(t, first.EnsureSchema(ctx))

	_, err := db.ExecContext(ctx,
		`INSERT INTO scheduler_lock (lock_name, holder, acquired_at, heartbeat_at) VALUES (?, ?, ?, ?)`,
		"scheduler", "dead-holder", time.Now().Add(-time.Hour), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	require.NoError(t, first.AcquireOrFail(ctx, time.Second), "a lock whose heartbeat is long stale must be stealable")
}

func TestAdvisoryLock_WithLockReleasesOnError(t *testing.T) {
	ctx := context.Background()
	db := openLockDB(t)

	l := NewAdvisoryLock(db, "scheduler", "holder-1")
	require.NoError(t, l.EnsureSchema(ctx))

	boom := assert.AnError
	err := l.WithLock(ctx, time.Second, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, l.held)

	second := NewAdvisoryLock(db, "scheduler", "holder-2")
	assert.NoError(t, second.AcquireOrFail(ctx, time.Second), "lock must be released after WithLock even when fn errors")
}

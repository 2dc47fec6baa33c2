// Package ledger provides the durable status store for pipeline items.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/dbsmedya/pipelinectl/internal/logger"
)

const createItemsTableSQL = `
CREATE TABLE IF NOT EXISTS items (
	target_id TEXT NOT NULL,
	target_url TEXT NOT NULL,
	status INTEGER NOT NULL,
	source_batch_id INTEGER NOT NULL,
	source_batch_name TEXT,
	source_extra_info TEXT,
	proc_batch_id INTEGER,
	proc_id TEXT,
	proc_status_msg TEXT,
	proc_error_code INTEGER,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (target_id, target_url)
);
`

const createIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_items_proc_batch ON items(proc_batch_id);
CREATE INDEX IF NOT EXISTS idx_items_source_batch ON items(source_batch_id);
CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);
`

// Config configures the reference SQLite ledger.
type Config struct {
	DBFile       string
	MaxOpenConns int
	MaxIdleConns int
}

// SQLiteLedger is the reference embedded-file implementation of Ledger.
type SQLiteLedger struct {
	db     *sql.DB
	logger *logger.Logger

	mu                 sync.Mutex
	currentSourceBatch []*Item
}

// NewSQLiteLedger opens (creating if absent) the SQLite-backed ledger and
// initializes its schema. The schema creation is idempotent and safe to run
// on every startup.
func NewSQLiteLedger(ctx context.Context, cfg Config, log *logger.Logger) (*SQLiteLedger, error) {
	if cfg.DBFile == "" {
		return nil, fmt.Errorf("ledger: DBFile is required")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	db, err := connectWithRetry(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open status ledger: %w", err)
	}

	l := &SQLiteLedger{db: db, logger: log}
	if err := l.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize status ledger schema: %w", err)
	}
	return l, nil
}

func dsn(dbFile string) string {
	return dbFile
}

func connectWithRetry(ctx context.Context, cfg Config) (*sql.DB, error) {
	var db *sql.DB
	var err error

	const maxRetries = 3
	backoff := 200 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		db, err = sql.Open("sqlite", dsn(cfg.DBFile))
		if err == nil {
			db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer connection avoids SQLITE_BUSY under our own advisory lock
			if cfg.MaxIdleConns > 0 {
				db.SetMaxIdleConns(cfg.MaxIdleConns)
			}
			if pingErr := db.PingContext(ctx); pingErr == nil {
				return db, nil
			} else {
				db.Close()
				err = pingErr
			}
		}

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", maxRetries, err)
}

func (l *SQLiteLedger) initSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, createItemsTableSQL); err != nil {
		return fmt.Errorf("create items table: %w", err)
	}
	for _, stmt := range strings.Split(strings.TrimSpace(createIndexesSQL), "\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Lock returns an AdvisoryLock over this ledger's database file, named
// lockName and identified as holder. Acquiring it stops a second scheduler
// process from driving the same ledger concurrently.
func (l *SQLiteLedger) Lock(ctx context.Context, lockName, holder string) (*AdvisoryLock, error) {
	lock := NewAdvisoryLock(l.db, lockName, holder)
	if err := lock.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure lock schema: %w", err)
	}
	return lock, nil
}

// Close releases the underlying database handle.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// Persist upserts items keyed by (target_id, target_url) in one transaction.
func (l *SQLiteLedger) Persist(ctx context.Context, items []*Item) bool {
	if err := l.persist(ctx, items); err != nil {
		l.logger.Errorf("persist failed: %v", err)
		return false
	}
	return true
}

// PersistOrDie upserts items and terminates the process on failure.
func (l *SQLiteLedger) PersistOrDie(ctx context.Context, items []*Item) {
	if err := l.persist(ctx, items); err != nil {
		l.logger.Fatalf("fatal ledger write failure, cannot guarantee data integrity: %v", err)
	}
}

const upsertItemSQL = `
INSERT INTO items (
	target_id, target_url, status, source_batch_id, source_batch_name,
	source_extra_info, proc_batch_id, proc_id, proc_status_msg, proc_error_code,
	created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
ON CONFLICT(target_id, target_url) DO UPDATE SET
	status = excluded.status,
	source_batch_id = excluded.source_batch_id,
	source_batch_name = excluded.source_batch_name,
	source_extra_info = excluded.source_extra_info,
	proc_batch_id = excluded.proc_batch_id,
	proc_id = excluded.proc_id,
	proc_status_msg = excluded.proc_status_msg,
	proc_error_code = excluded.proc_error_code,
	updated_at = CURRENT_TIMESTAMP;
`

func (l *SQLiteLedger) persist(ctx context.Context, items []*Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertItemSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range items {
		if _, err := stmt.ExecContext(ctx,
			row.TargetID, row.TargetURL, int(row.Status), row.SourceBatchID,
			nullString(row.SourceBatchName), nullString(row.SourceExtraInfo),
			nullInt64FromPtr(row.ProcBatchID), nullStringFromPtr(row.ProcID),
			nullStringFromPtr(row.ProcStatusMsg), nullErrorCodeFromPtr(row.ProcErrorCode),
		); err != nil {
			return fmt.Errorf("upsert item %s/%s: %w", row.TargetID, row.TargetURL, err)
		}
	}

	return tx.Commit()
}

const selectItemColumns = `target_id, target_url, status, source_batch_id, source_batch_name,
	source_extra_info, proc_batch_id, proc_id, proc_status_msg, proc_error_code, created_at, updated_at`

func (l *SQLiteLedger) queryItems(ctx context.Context, query string, args ...interface{}) ([]*Item, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Item
	for rows.Next() {
		row, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanItem(rows *sql.Rows) (*Item, error) {
	var row Item
	var status int
	var sourceBatchName, sourceExtraInfo sql.NullString
	var procBatchID sql.NullInt64
	var procID, procStatusMsg sql.NullString
	var procErrorCode sql.NullInt64

	if err := rows.Scan(
		&row.TargetID, &row.TargetURL, &status, &row.SourceBatchID,
		&sourceBatchName, &sourceExtraInfo, &procBatchID, &procID,
		&procStatusMsg, &procErrorCode, &row.CreatedAt, &row.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}

	row.Status = Status(status)
	row.SourceBatchName = sourceBatchName.String
	row.SourceExtraInfo = sourceExtraInfo.String
	if procBatchID.Valid {
		v := procBatchID.Int64
		row.ProcBatchID = &v
	}
	if procID.Valid {
		row.ProcID = StrPtr(procID.String)
	}
	if procStatusMsg.Valid {
		row.ProcStatusMsg = StrPtr(procStatusMsg.String)
	}
	if procErrorCode.Valid {
		row.ProcErrorCode = ErrPtr(ErrorCode(procErrorCode.Int64))
	}
	return &row, nil
}

// GetByProcBatch returns every item assigned to the given proc batch.
func (l *SQLiteLedger) GetByProcBatch(ctx context.Context, id int64) ([]*Item, error) {
	return l.queryItems(ctx, `SELECT `+selectItemColumns+` FROM items WHERE proc_batch_id = ?`, id)
}

// GetBySourceBatch returns every item produced by the given source batch.
func (l *SQLiteLedger) GetBySourceBatch(ctx context.Context, id int64) ([]*Item, error) {
	return l.queryItems(ctx, `SELECT `+selectItemColumns+` FROM items WHERE source_batch_id = ?`, id)
}

// LastProcBatchID returns the highest assigned proc_batch_id, or -1 if none.
func (l *SQLiteLedger) LastProcBatchID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := l.db.QueryRowContext(ctx, `SELECT MAX(proc_batch_id) FROM items`).Scan(&id)
	if err != nil {
		return -1, fmt.Errorf("last proc batch id: %w", err)
	}
	if !id.Valid {
		return -1, nil
	}
	return id.Int64, nil
}

// LastSourceBatchID returns the highest source_batch_id, or -1 if the ledger
// is empty.
func (l *SQLiteLedger) LastSourceBatchID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := l.db.QueryRowContext(ctx, `SELECT MAX(source_batch_id) FROM items`).Scan(&id)
	if err != nil {
		return -1, fmt.Errorf("last source batch id: %w", err)
	}
	if !id.Valid {
		return -1, nil
	}
	return id.Int64, nil
}

func (l *SQLiteLedger) countsByStatus(ctx context.Context, where string, args ...interface{}) (*StatusCounts, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM items `+where+` GROUP BY status ORDER BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("counts by status: %w", err)
	}
	defer rows.Close()

	out := newStatusCounts()
	for rows.Next() {
		var status, count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out.Set(Status(status), count)
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) countsByErrorCode(ctx context.Context, where string, args ...interface{}) (*ErrorCounts, error) {
	// COUNT(proc_error_code), not COUNT(*): the null group's count must
	// reflect non-null error codes only, matching the reference
	// aggregation's treatment of a null group.
	rows, err := l.db.QueryContext(ctx, `SELECT proc_error_code, COUNT(proc_error_code) FROM items `+where+` GROUP BY proc_error_code ORDER BY proc_error_code`, args...)
	if err != nil {
		return nil, fmt.Errorf("counts by error code: %w", err)
	}
	defer rows.Close()

	out := newErrorCounts()
	for rows.Next() {
		var code sql.NullInt64
		var count int
		if err := rows.Scan(&code, &count); err != nil {
			return nil, fmt.Errorf("scan error count: %w", err)
		}
		if code.Valid {
			out.Set(ErrorCode(code.Int64), count)
		} else {
			out.Set(ErrNone, count)
		}
	}
	return out, rows.Err()
}

// CountsByStatus groups every item in the ledger by status.
func (l *SQLiteLedger) CountsByStatus(ctx context.Context) (*StatusCounts, error) {
	return l.countsByStatus(ctx, "")
}

// CountsByErrorCode groups every item in the ledger by error code.
func (l *SQLiteLedger) CountsByErrorCode(ctx context.Context) (*ErrorCounts, error) {
	return l.countsByErrorCode(ctx, "")
}

// CountsByStatusForProcBatch groups a single proc batch's items by status.
func (l *SQLiteLedger) CountsByStatusForProcBatch(ctx context.Context, procBatchID int64) (*StatusCounts, error) {
	return l.countsByStatus(ctx, "WHERE proc_batch_id = ?", procBatchID)
}

// CountsByStatusForSourceBatch groups a single source batch's items by status.
func (l *SQLiteLedger) CountsByStatusForSourceBatch(ctx context.Context, sourceBatchID int64) (*StatusCounts, error) {
	return l.countsByStatus(ctx, "WHERE source_batch_id = ?", sourceBatchID)
}

// CountsByErrorCodeForProcBatch groups a single proc batch's items by error code.
func (l *SQLiteLedger) CountsByErrorCodeForProcBatch(ctx context.Context, procBatchID int64) (*ErrorCounts, error) {
	return l.countsByErrorCode(ctx, "WHERE proc_batch_id = ?", procBatchID)
}

// CountsByErrorCodeForSourceBatch groups a single source batch's items by error code.
func (l *SQLiteLedger) CountsByErrorCodeForSourceBatch(ctx context.Context, sourceBatchID int64) (*ErrorCounts, error) {
	return l.countsByErrorCode(ctx, "WHERE source_batch_id = ?", sourceBatchID)
}

// CountsByStatusPerExtraInfo groups every item first by source_extra_info,
// then by status within each group. Both levels preserve first-seen order.
func (l *SQLiteLedger) CountsByStatusPerExtraInfo(ctx context.Context) (*ExtraInfoStatusCounts, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT source_extra_info, status, COUNT(*) FROM items GROUP BY source_extra_info, status ORDER BY source_extra_info, status`)
	if err != nil {
		return nil, fmt.Errorf("counts by status per extra info: %w", err)
	}
	defer rows.Close()

	out := newExtraInfoStatusCounts()
	for rows.Next() {
		var extraInfo sql.NullString
		var status, count int
		if err := rows.Scan(&extraInfo, &status, &count); err != nil {
			return nil, fmt.Errorf("scan extra info status count: %w", err)
		}
		key := extraInfo.String
		inner, ok := out.Get(key)
		if !ok {
			inner = newStatusCounts()
			out.Set(key, inner)
		}
		inner.Set(Status(status), count)
	}
	return out, rows.Err()
}

// CompletedSourceBatchNames partitions every distinct, non-empty
// source_batch_name by whether all its items' statuses lie in the Completed
// set.
func (l *SQLiteLedger) CompletedSourceBatchNames(ctx context.Context) (completed, uncompleted []string, err error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT source_batch_name, SUM(CASE WHEN status IN (?, ?) THEN 0 ELSE 1 END) AS running
		 FROM items WHERE source_batch_name IS NOT NULL AND source_batch_name != ''
		 GROUP BY source_batch_name ORDER BY source_batch_name`,
		int(StatusError), int(StatusFinished))
	if err != nil {
		return nil, nil, fmt.Errorf("completed source batch names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var running int
		if err := rows.Scan(&name, &running); err != nil {
			return nil, nil, fmt.Errorf("scan completed source batch names: %w", err)
		}
		if running == 0 {
			completed = append(completed, name)
		} else {
			uncompleted = append(uncompleted, name)
		}
	}
	return completed, uncompleted, rows.Err()
}

// RecoverCurrentSourceBatch loads the rows of the highest source_batch_id and
// caches them as the scheduler's "current source batch" pointer.
func (l *SQLiteLedger) RecoverCurrentSourceBatch(ctx context.Context) ([]*Item, bool, error) {
	lastID, err := l.LastSourceBatchID(ctx)
	if err != nil {
		return nil, false, err
	}
	if lastID < 0 {
		return nil, false, nil
	}

	items, err := l.GetBySourceBatch(ctx, lastID)
	if err != nil {
		return nil, false, err
	}

	l.mu.Lock()
	l.currentSourceBatch = items
	l.mu.Unlock()
	return items, true, nil
}

// RecoverLastProcBatch returns every item assigned to the highest
// proc_batch_id, or nil if no item has ever been assigned a proc batch.
func (l *SQLiteLedger) RecoverLastProcBatch(ctx context.Context) ([]*Item, error) {
	lastID, err := l.LastProcBatchID(ctx)
	if err != nil {
		return nil, err
	}
	if lastID < 0 {
		return nil, nil
	}
	return l.GetByProcBatch(ctx, lastID)
}

// SetCurrentSourceBatch persists items and records them as the in-memory
// current source batch pointer.
func (l *SQLiteLedger) SetCurrentSourceBatch(ctx context.Context, items []*Item) error {
	if err := l.persist(ctx, items); err != nil {
		return err
	}
	l.mu.Lock()
	l.currentSourceBatch = items
	l.mu.Unlock()
	return nil
}

// CurrentSourceBatch returns the cached current-source-batch pointer without
// touching the database.
func (l *SQLiteLedger) CurrentSourceBatch() []*Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentSourceBatch
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullStringFromPtr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt64FromPtr(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullErrorCodeFromPtr(v *ErrorCode) interface{} {
	if v == nil {
		return nil
	}
	return int(*v)
}

var _ Ledger = (*SQLiteLedger)(nil)

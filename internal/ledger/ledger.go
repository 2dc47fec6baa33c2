package ledger

import "context"

// Ledger is the durable status store contract. Concrete collaborators (the
// reference SQLite implementation, or a mock for tests) satisfy this
// interface; the scheduler and monitor depend on it, never on a concrete
// type.
type Ledger interface {
	// Persist upserts items keyed by (TargetID, TargetURL) in one atomic
	// commit. It reports false on any write error rather than returning an
	// error, matching the advisory-persist semantics used during recovery
	// probing; pipeline code should prefer PersistOrDie.
	Persist(ctx context.Context, items []*Item) bool

	// PersistOrDie upserts items and terminates the process on failure.
	// Every per-batch pipeline step uses this: a ledger write failure mid
	// pipeline means data integrity can no longer be guaranteed.
	PersistOrDie(ctx context.Context, items []*Item)

	GetByProcBatch(ctx context.Context, id int64) ([]*Item, error)
	GetBySourceBatch(ctx context.Context, id int64) ([]*Item, error)

	LastProcBatchID(ctx context.Context) (int64, error)
	LastSourceBatchID(ctx context.Context) (int64, error)

	CountsByStatus(ctx context.Context) (*StatusCounts, error)
	CountsByErrorCode(ctx context.Context) (*ErrorCounts, error)
	CountsByStatusForProcBatch(ctx context.Context, procBatchID int64) (*StatusCounts, error)
	CountsByStatusForSourceBatch(ctx context.Context, sourceBatchID int64) (*StatusCounts, error)
	CountsByErrorCodeForProcBatch(ctx context.Context, procBatchID int64) (*ErrorCounts, error)
	CountsByErrorCodeForSourceBatch(ctx context.Context, sourceBatchID int64) (*ErrorCounts, error)
	CountsByStatusPerExtraInfo(ctx context.Context) (*ExtraInfoStatusCounts, error)

	// CompletedSourceBatchNames partitions every distinct source_batch_name
	// by whether all of its items' statuses lie in the Completed set.
	CompletedSourceBatchNames(ctx context.Context) (completed, uncompleted []string, err error)

	// RecoverCurrentSourceBatch loads the rows of the highest source_batch_id
	// and reports whether the ledger held any rows at all.
	RecoverCurrentSourceBatch(ctx context.Context) (items []*Item, ok bool, err error)

	// RecoverLastProcBatch returns the rows of the highest proc_batch_id, or
	// nil if no item has ever been assigned a proc batch.
	RecoverLastProcBatch(ctx context.Context) ([]*Item, error)

	// SetCurrentSourceBatch persists items and records them as the current
	// source batch pointer used by the source adapter for pagination.
	SetCurrentSourceBatch(ctx context.Context, items []*Item) error

	Close() error
}

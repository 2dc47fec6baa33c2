package ledger

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/pipelinectl/internal/logger"
)

// TestPersist_WriteErrorReturnsFalse forces a driver-level write failure
// (the mocked BeginTx errors) to exercise the ledger write error path
// without touching a real file: Persist reports false rather than
// panicking, matching the advisory-persist semantics used during recovery
// probing.
func TestPersist_WriteErrorReturnsFalse(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(assert.AnError)

	l := &SQLiteLedger{db: db, logger: logger.NewDefault()}
	items := []*Item{{TargetID: "t1", TargetURL: "u1", Status: StatusNew, SourceBatchID: 0}}

	ok := l.Persist(context.Background(), items)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestPersist_PartialUpsertErrorReturnsFalse forces the prepared statement's
// exec to fail mid-batch; the whole call must report failure (atomic
// per-invocation persist), not a partial commit.
func TestPersist_PartialUpsertErrorReturnsFalse(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectPrepare(upsertItemSQL)
	mock.ExpectExec(upsertItemSQL).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	l := &SQLiteLedger{db: db, logger: logger.NewDefault()}
	items := []*Item{{TargetID: "t1", TargetURL: "u1", Status: StatusNew, SourceBatchID: 0}}

	ok := l.Persist(context.Background(), items)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

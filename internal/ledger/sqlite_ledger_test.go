package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := NewSQLiteLedger(context.Background(), Config{DBFile: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleItems() []*Item {
	return []*Item{
		{TargetID: "a", TargetURL: "http://a", Status: StatusNew, SourceBatchID: 0, SourceBatchName: "batch-0", SourceExtraInfo: "news"},
		{TargetID: "b", TargetURL: "http://b", Status: StatusNew, SourceBatchID: 0, SourceBatchName: "batch-0", SourceExtraInfo: "news"},
		{TargetID: "c", TargetURL: "http://c", Status: StatusNew, SourceBatchID: 0, SourceBatchName: "batch-0", SourceExtraInfo: "sports"},
	}
}

func TestSQLiteLedger_PersistAndGetByProcBatch(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	items := sampleItems()
	Update(items, UpdateFields{Status: StatusPtr(StatusBatchAssigned), ProcBatchID: 0})
	assert.True(t, l.Persist(ctx, items))

	got, err := l.GetByProcBatch(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	for _, row := range got {
		assert.Equal(t, StatusBatchAssigned, row.Status)
		require.NotNil(t, row.ProcBatchID)
		assert.Equal(t, int64(0), *row.ProcBatchID)
	}
}

func TestSQLiteLedger_PersistIsUpsert(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	items := sampleItems()
	require.True(t, l.Persist(ctx, items))

	Update(items, UpdateFields{Status: StatusPtr(StatusFinished), ProcBatchID: NoBatchSentinel})
	require.True(t, l.Persist(ctx, items))

	got, err := l.GetBySourceBatch(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3, "re-persisting the same keys must update rows in place, not duplicate them")
	for _, row := range got {
		assert.Equal(t, StatusFinished, row.Status)
	}
}

func TestSQLiteLedger_LastBatchIDs_EmptyLedger(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	procID, err := l.LastProcBatchID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), procID)

	sourceID, err := l.LastSourceBatchID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), sourceID)
}

func TestSQLiteLedger_CountsByStatus(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	items := sampleItems()
	Update(items[:2], UpdateFields{Status: StatusPtr(StatusFinished), ProcBatchID: NoBatchSentinel})
	Update(items[2:], UpdateFields{Status: StatusPtr(StatusError), ProcErrorCode: ErrPtr(ErrProcessingFailed), ProcBatchID: NoBatchSentinel})
	require.True(t, l.Persist(ctx, items))

	counts, err := l.CountsByStatus(ctx)
	require.NoError(t, err)

	finished, ok := counts.Get(StatusFinished)
	require.True(t, ok)
	assert.Equal(t, 2, finished)

	errored, ok := counts.Get(StatusError)
	require.True(t, ok)
	assert.Equal(t, 1, errored)

	var total int
	for _, k := range counts.Keys() {
		v, _ := counts.Get(k)
		total += v
	}
	assert.Equal(t, len(items), total, "sum of counts_by_status must equal total items")
}

func TestSQLiteLedger_CountsByStatusPerExtraInfo(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	require.True(t, l.Persist(ctx, sampleItems()))

	grouped, err := l.CountsByStatusPerExtraInfo(ctx)
	require.NoError(t, err)

	news, ok := grouped.Get("news")
	require.True(t, ok)
	newCount, _ := news.Get(StatusNew)
	assert.Equal(t, 2, newCount)

	sports, ok := grouped.Get("sports")
	require.True(t, ok)
	sportsCount, _ := sports.Get(StatusNew)
	assert.Equal(t, 1, sportsCount)
}

func TestSQLiteLedger_CompletedSourceBatchNames(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	done := []*Item{
		{TargetID: "a", TargetURL: "http://a", Status: StatusFinished, SourceBatchID: 0, SourceBatchName: "done-batch"},
	}
	running := []*Item{
		{TargetID: "b", TargetURL: "http://b", Status: StatusProcessing, SourceBatchID: 1, SourceBatchName: "running-batch"},
	}
	require.True(t, l.Persist(ctx, done))
	require.True(t, l.Persist(ctx, running))

	completed, uncompleted, err := l.CompletedSourceBatchNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, completed, "done-batch")
	assert.Contains(t, uncompleted, "running-batch")
	assert.NotContains(t, completed, "running-batch")
}

func TestSQLiteLedger_RecoverCurrentSourceBatch(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	batch0 := []*Item{{TargetID: "a", TargetURL: "http://a", SourceBatchID: 0}}
	batch1 := []*Item{{TargetID: "b", TargetURL: "http://b", SourceBatchID: 1}}
	require.True(t, l.Persist(ctx, batch0))
	require.True(t, l.Persist(ctx, batch1))

	rows, ok, err := l.RecoverCurrentSourceBatch(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].TargetID)
	assert.Len(t, l.CurrentSourceBatch(), 1)
}

func TestSQLiteLedger_RecoverCurrentSourceBatch_Empty(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	rows, ok, err := l.RecoverCurrentSourceBatch(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, rows)
}

func TestSQLiteLedger_RecoverLastProcBatch(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	early := []*Item{{TargetID: "a", TargetURL: "http://a", ProcBatchID: func() *int64 { v := int64(0); return &v }()}}
	late := []*Item{{TargetID: "b", TargetURL: "http://b", ProcBatchID: func() *int64 { v := int64(1); return &v }()}}
	require.True(t, l.Persist(ctx, early))
	require.True(t, l.Persist(ctx, late))

	rows, err := l.RecoverLastProcBatch(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].TargetID)
}

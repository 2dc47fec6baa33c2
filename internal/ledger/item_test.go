package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_RunningAndCompletedPartition(t *testing.T) {
	running := RunningStatuses()
	completed := CompletedStatuses()

	seen := map[Status]bool{}
	for _, s := range running {
		assert.False(t, seen[s], "status %v duplicated across running set", s)
		seen[s] = true
		assert.False(t, s.IsCompleted())
	}
	for _, s := range completed {
		assert.False(t, seen[s], "status %v appears in both running and completed", s)
		seen[s] = true
		assert.True(t, s.IsCompleted())
	}
	assert.Len(t, seen, 8, "every status must fall in exactly one of the two sets")
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "NEW", StatusNew.String())
	assert.Equal(t, "FINISHED", StatusFinished.String())
	assert.Equal(t, "UNKNOWN", Status(99).String())
}

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "BATCH_REGISTER_FAILED", ErrBatchRegisterFailed.String())
	assert.Equal(t, "UNKNOWN", ErrorCode(99).String())
}

func TestUpdate_LeavesUnspecifiedFieldsUntouched(t *testing.T) {
	original := &Item{
		TargetID: "a", TargetURL: "http://a", Status: StatusNew,
		ProcStatusMsg: StrPtr("old message"),
	}
	items := []*Item{original}

	Update(items, UpdateFields{Status: StatusPtr(StatusBatchAssigned), ProcBatchID: NoBatchSentinel})

	assert.Equal(t, StatusBatchAssigned, original.Status)
	assert.Equal(t, "old message", *original.ProcStatusMsg, "update without proc_status_msg must leave it unchanged")
	assert.Nil(t, original.ProcBatchID, "NoBatchSentinel must not touch ProcBatchID")
}

func TestUpdate_ProcBatchIDSentinel(t *testing.T) {
	row := &Item{TargetID: "a", TargetURL: "http://a"}
	items := []*Item{row}

	Update(items, UpdateFields{ProcBatchID: 7})
	if assert.NotNil(t, row.ProcBatchID) {
		assert.Equal(t, int64(7), *row.ProcBatchID)
	}

	Update(items, UpdateFields{ProcBatchID: NoBatchSentinel})
	if assert.NotNil(t, row.ProcBatchID) {
		assert.Equal(t, int64(7), *row.ProcBatchID, "sentinel must leave the previously set batch id alone")
	}
}

func TestItem_Key(t *testing.T) {
	row := &Item{TargetID: "a", TargetURL: "http://a"}
	id, url := row.Key()
	assert.Equal(t, "a", id)
	assert.Equal(t, "http://a", url)
}

// Package ledger provides the durable status store for pipeline items.
package ledger

import "time"

// Status is the pipeline state of an Item. Its integer values define the
// total order used by the scheduler's recovery skip-step arithmetic.
type Status int

const (
	StatusNew             Status = 1
	StatusBatchAssigned   Status = 2
	StatusBatchRegistered Status = 3
	StatusProcessing      Status = 4
	StatusProcessed       Status = 5
	StatusExported        Status = 6
	StatusError           Status = 7
	StatusFinished        Status = 8
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusBatchAssigned:
		return "BATCH_ASSIGNED"
	case StatusBatchRegistered:
		return "BATCH_REGISTERED"
	case StatusProcessing:
		return "PROCESSING"
	case StatusProcessed:
		return "PROCESSED"
	case StatusExported:
		return "EXPORTED"
	case StatusError:
		return "ERROR"
	case StatusFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// RunningStatuses returns the statuses that indicate a pipeline is still in flight.
func RunningStatuses() []Status {
	return []Status{
		StatusNew,
		StatusBatchAssigned,
		StatusBatchRegistered,
		StatusProcessing,
		StatusProcessed,
		StatusExported,
	}
}

// CompletedStatuses returns the statuses that indicate a pipeline has terminated.
func CompletedStatuses() []Status {
	return []Status{StatusError, StatusFinished}
}

// IsCompleted reports whether s is in the Completed set.
func (s Status) IsCompleted() bool {
	return s == StatusError || s == StatusFinished
}

// ErrorCode discriminates why an Item ended up in StatusError.
type ErrorCode int

// ErrNone is the zero value, used as the aggregate-query group key for
// items with no error code set (proc_error_code IS NULL).
const ErrNone ErrorCode = 0

const (
	ErrBatchAssignFailed                      ErrorCode = 1
	ErrBatchRegisterFailed                    ErrorCode = 2
	ErrBatchProcessingNotStarted              ErrorCode = 3
	ErrProcessingFailed                       ErrorCode = 4
	ErrExportFailedSourceDocNotFound          ErrorCode = 5
	ErrExportFailedSourceDBConnectionFailure  ErrorCode = 6
	ErrExportFailedProcEnvOutputUnsuitable    ErrorCode = 7
	ErrImpossible                             ErrorCode = 8
)

func (e ErrorCode) String() string {
	switch e {
	case ErrNone:
		return "NONE"
	case ErrBatchAssignFailed:
		return "BATCH_ASSIGN_FAILED"
	case ErrBatchRegisterFailed:
		return "BATCH_REGISTER_FAILED"
	case ErrBatchProcessingNotStarted:
		return "BATCH_PROCESSING_NOT_STARTED"
	case ErrProcessingFailed:
		return "PROCESSING_FAILED"
	case ErrExportFailedSourceDocNotFound:
		return "EXPORT_FAILED_SOURCE_DOC_NOT_FOUND"
	case ErrExportFailedSourceDBConnectionFailure:
		return "EXPORT_FAILED_SOURCE_DB_CONNECTION_FAILURE"
	case ErrExportFailedProcEnvOutputUnsuitable:
		return "EXPORT_FAILED_PROC_ENV_OUTPUT_UNSUITABLE"
	case ErrImpossible:
		return "IMPOSSIBLE"
	default:
		return "UNKNOWN"
	}
}

// Item is the unit of work flowing through the pipeline. Items are uniquely
// keyed by (TargetID, TargetURL); persistence is an upsert on that key.
type Item struct {
	TargetID        string
	TargetURL       string
	Status          Status
	SourceBatchID   int64
	SourceBatchName string
	SourceExtraInfo string
	ProcBatchID     *int64
	ProcID          *string
	ProcStatusMsg   *string
	ProcErrorCode   *ErrorCode
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Key returns the identity tuple an Item is upserted on.
func (i *Item) Key() (string, string) {
	return i.TargetID, i.TargetURL
}

// ProcessingResult is the transient envelope passed from the ProcessingDriver
// to the Exporter.
type ProcessingResult struct {
	Item              *Item
	ResultPayload     map[string]interface{}
	GeneratorMetadata map[string]interface{}
}

// NoBatchSentinel is the update() sentinel meaning "do not change ProcBatchID".
const NoBatchSentinel int64 = -1

// UpdateFields names the optional fields update() may mutate. A nil pointer
// field means "leave unchanged"; Go's zero value for int64 is a valid batch
// id, so ProcBatchID uses the NoBatchSentinel convention from spec instead of
// a pointer, matching update(..., proc_batch_id=-1) in the reference design.
type UpdateFields struct {
	Status        *Status
	ProcBatchID   int64 // NoBatchSentinel means unchanged
	ProcStatusMsg *string
	ProcErrorCode *ErrorCode
}

// Update mutates items in memory only; it does not persist. Callers must
// subsequently call Persist/PersistOrDie for the change to become durable.
func Update(items []*Item, fields UpdateFields) []*Item {
	for _, row := range items {
		if fields.Status != nil {
			row.Status = *fields.Status
		}
		if fields.ProcStatusMsg != nil {
			row.ProcStatusMsg = fields.ProcStatusMsg
		}
		if fields.ProcBatchID != NoBatchSentinel {
			id := fields.ProcBatchID
			row.ProcBatchID = &id
		}
		if fields.ProcErrorCode != nil {
			row.ProcErrorCode = fields.ProcErrorCode
		}
	}
	return items
}

// StrPtr and ErrPtr are small helpers for building UpdateFields literals.
func StrPtr(s string) *string       { return &s }
func ErrPtr(e ErrorCode) *ErrorCode { return &e }
func StatusPtr(s Status) *Status    { return &s }

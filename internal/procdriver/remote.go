// Package procdriver implements the Processing Driver: it translates local
// batch state transitions to and from a remote processing service that
// exposes its own task-lifecycle semantics.
package procdriver

// RemoteTaskState is the remote service's task lifecycle state, carried
// verbatim from its API responses.
type RemoteTaskState string

const (
	RemoteTaskQueued               RemoteTaskState = "102"
	RemoteTaskSuccess              RemoteTaskState = "200"
	RemoteTaskCreated              RemoteTaskState = "201"
	RemoteTaskReset                RemoteTaskState = "205"
	RemoteTaskBadRequest           RemoteTaskState = "400"
	RemoteTaskAccessDenied         RemoteTaskState = "403"
	RemoteTaskNotFound             RemoteTaskState = "404"
	RemoteTaskUnfinishedDependency RemoteTaskState = "412"
	RemoteTaskNoRouteToQueue       RemoteTaskState = "422"
	RemoteTaskError                RemoteTaskState = "500"
	RemoteTaskErrorInvalidInput    RemoteTaskState = "502"
	RemoteTaskErrorProxy           RemoteTaskState = "503"
)

// IsQueued reports whether the remote task is still in flight.
func (s RemoteTaskState) IsQueued() bool { return s == RemoteTaskQueued }

// IsSuccess reports whether the remote task completed successfully.
func (s RemoteTaskState) IsSuccess() bool { return s == RemoteTaskSuccess }

// RemoteTask is one task as reported by the remote service's task index.
type RemoteTask struct {
	ID        string          `json:"id"`
	Message   string          `json:"msg"`
	State     RemoteTaskState `json:"state"`
	Key       string          `json:"key"`
	DocID     string          `json:"doc_id"` // the remote document id this task belongs to
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// RemoteResult is one result payload as reported by the remote service's
// result index. DocID joins the result back to the item that was registered
// under that doc id, the same join key applyMonitorResult uses for RemoteTask.
type RemoteResult struct {
	ID        string                 `json:"id"`
	Generator map[string]interface{} `json:"generator"`
	Payload   map[string]interface{} `json:"payload"`
	DocID     string                 `json:"doc_id"`
}

// registerDocument is the per-item payload sent to the remote register
// endpoint. Creator.ID MUST equal BatchPrefix_procBatchID so the driver can
// later find its own batches without colliding with other deployments.
type registerDocument struct {
	Target  registerTarget  `json:"target"`
	Creator registerCreator `json:"creator"`
}

type registerTarget struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type registerCreator struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// registerResponse mirrors the remote register reply: separate id-matched
// success/failure lists, tolerating partial registration.
type registerResponse struct {
	Success []registeredDoc `json:"success"`
	Failed  []registeredDoc `json:"failed"`
}

type registeredDoc struct {
	ID     string         `json:"_id"`
	Target registerTarget `json:"target"`
	Error  string         `json:"error,omitempty"`
}

type processRequest struct {
	DocumentID []string `json:"document_id"`
	Key        string   `json:"key"`
}

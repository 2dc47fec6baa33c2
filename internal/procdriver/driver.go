package procdriver

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/dbsmedya/pipelinectl/internal/ledger"
	"github.com/dbsmedya/pipelinectl/internal/logger"
)

// Config configures an HTTPProcessingDriver.
type Config struct {
	RemoteHost      string
	RemoteTaskID    string // the remote task type this driver registers/monitors
	StatusDir       string
	MonitorInterval time.Duration
	IndexHost       string
	IndexPort       int
	IndexName       string
	QueryTimeout    time.Duration
	BatchPrefix     string
	PageSize        int
}

// HTTPProcessingDriver implements scheduler.ProcessingDriver against a
// remote HTTP processing service and its content index.
type HTTPProcessingDriver struct {
	cfg     Config
	ledger  ledger.Ledger
	logger  *logger.Logger
	http    *resty.Client
	index   *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
}

// New builds an HTTPProcessingDriver. client may be nil, in which case a
// default resty.Client is created pointed at cfg.RemoteHost. indexClient may
// also be nil, in which case a default resty.Client is created pointed at
// cfg.IndexHost/IndexPort/IndexName, the separate content index that
// MonitorBatch/FetchResultsOfBatch query.
func New(cfg Config, l ledger.Ledger, log *logger.Logger, client *resty.Client, indexClient *resty.Client) *HTTPProcessingDriver {
	if log == nil {
		log = logger.NewDefault()
	}
	if client == nil {
		client = resty.New().SetBaseURL(cfg.RemoteHost).SetTimeout(cfg.QueryTimeout)
	}
	index := indexClient
	if index == nil {
		index = resty.New().SetBaseURL(indexBaseURL(cfg)).SetTimeout(cfg.QueryTimeout)
	}

	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "procdriver-remote",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("%s circuit breaker %s -> %s", name, from, to)
		},
	})

	return &HTTPProcessingDriver{cfg: cfg, ledger: l, logger: log, http: client, index: index, breaker: breaker}
}

// indexBaseURL builds the content index's base URL from its own
// host/port/name, kept separate from RemoteHost because the index is
// typically a different service (e.g. a search index fronting the same
// processing environment) than the task-registration endpoint.
func indexBaseURL(cfg Config) string {
	return fmt.Sprintf("http://%s:%d/%s", cfg.IndexHost, cfg.IndexPort, cfg.IndexName)
}

func (d *HTTPProcessingDriver) creatorID(procBatchID int64) string {
	return fmt.Sprintf("%s_%d", d.cfg.BatchPrefix, procBatchID)
}

// do executes req through the circuit breaker with exponential backoff
// retry on transport-level errors; a non-nil *resty.Response with a non-2xx
// status is returned as-is (the caller inspects it), not retried, since
// that is a remote-reported terminal outcome rather than a transient one.
func (d *HTTPProcessingDriver) do(ctx context.Context, req func() (*resty.Response, error)) (*resty.Response, error) {
	b := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	var resp *resty.Response
	err := backoff.Retry(func() error {
		var opErr error
		resp, opErr = d.breaker.Execute(req)
		if opErr != nil {
			return opErr
		}
		return nil
	}, backoff.WithMaxRetries(b, 4))
	return resp, err
}

// RegisterBatch uploads items as documents for this proc batch, tolerating
// a partial success/failure split from the remote service. The registration
// artifact is written whenever the remote service replies with a 2xx status,
// including a partial split, so a subsequent call can resume from it instead
// of re-registering already-accepted items. A transport error or non-2xx
// reply marks every item ERROR and writes no artifact.
func (d *HTTPProcessingDriver) RegisterBatch(ctx context.Context, procBatchID int64, items []*ledger.Item) error {
	if artifact, err := readArtifact(d.cfg.StatusDir, d.cfg.BatchPrefix, procBatchID); err != nil {
		return err
	} else if artifact != nil {
		d.logger.Infof("proc_batch %d already has a registration artifact, replaying it", procBatchID)
		return d.applyRegisterResponse(ctx, procBatchID, items, artifact.Response)
	}

	creator := d.creatorID(procBatchID)
	docs := make([]registerDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, registerDocument{
			Target:  registerTarget{ID: item.TargetID, URL: item.TargetURL},
			Creator: registerCreator{ID: creator, Type: d.cfg.RemoteTaskID},
		})
	}

	var result registerResponse
	resp, err := d.do(ctx, func() (*resty.Response, error) {
		return d.http.R().
			SetContext(ctx).
			SetHeader("Idempotency-Key", uuid.NewString()).
			SetBody(docs).
			SetResult(&result).
			Post("/documents")
	})
	if err != nil || resp.IsError() {
		d.ledger.PersistOrDie(ctx, ledger.Update(items, ledger.UpdateFields{
			Status:        ledger.StatusPtr(ledger.StatusError),
			ProcBatchID:   procBatchID,
			ProcErrorCode: ledger.ErrPtr(ledger.ErrBatchRegisterFailed),
			ProcStatusMsg: ledger.StrPtr(fmt.Sprintf("Could not register batch %d", procBatchID)),
		}))
		return fmt.Errorf("register batch %d: %w", procBatchID, firstNonNil(err, fmt.Errorf("remote returned %s", statusOf(resp))))
	}

	if err := writeArtifact(d.cfg.StatusDir, d.cfg.BatchPrefix, procBatchID, result); err != nil {
		return err
	}
	return d.applyRegisterResponse(ctx, procBatchID, items, result)
}

func (d *HTTPProcessingDriver) applyRegisterResponse(ctx context.Context, procBatchID int64, items []*ledger.Item, result registerResponse) error {
	byTarget := make(map[string]*ledger.Item, len(items))
	for _, item := range items {
		byTarget[item.TargetID] = item
	}

	var registered, failed []*ledger.Item
	for _, doc := range result.Success {
		if item, ok := byTarget[doc.Target.ID]; ok {
			registered = append(registered, ledger.Update([]*ledger.Item{item}, ledger.UpdateFields{
				Status:      ledger.StatusPtr(ledger.StatusBatchRegistered),
				ProcBatchID: procBatchID,
			})[0])
			registered[len(registered)-1].ProcID = ledger.StrPtr(doc.ID)
		}
	}
	for _, doc := range result.Failed {
		if item, ok := byTarget[doc.Target.ID]; ok {
			failed = append(failed, ledger.Update([]*ledger.Item{item}, ledger.UpdateFields{
				Status:        ledger.StatusPtr(ledger.StatusError),
				ProcBatchID:   procBatchID,
				ProcErrorCode: ledger.ErrPtr(ledger.ErrBatchRegisterFailed),
				ProcStatusMsg: ledger.StrPtr(doc.Error),
			})[0])
		}
	}

	all := append(registered, failed...)
	if len(all) == 0 {
		return fmt.Errorf("register batch %d: remote reply matched no items", procBatchID)
	}
	d.ledger.PersistOrDie(ctx, all)

	if len(registered) == 0 {
		return fmt.Errorf("register batch %d: every item was rejected by the remote service", procBatchID)
	}
	return nil
}

// ProcessBatch requests the remote service start processing every
// registered item in the batch.
func (d *HTTPProcessingDriver) ProcessBatch(ctx context.Context, procBatchID int64) error {
	batch, err := d.ledger.GetByProcBatch(ctx, procBatchID)
	if err != nil {
		return fmt.Errorf("process batch %d: %w", procBatchID, err)
	}
	var items []*ledger.Item
	for _, item := range batch {
		if item.Status == ledger.StatusBatchRegistered {
			items = append(items, item)
		}
	}

	resp, err := d.do(ctx, func() (*resty.Response, error) {
		return d.http.R().
			SetContext(ctx).
			SetBody(processRequest{Key: d.cfg.RemoteTaskID, DocumentID: procIDs(items)}).
			Post("/tasks")
	})
	if err != nil || resp.IsError() {
		d.ledger.PersistOrDie(ctx, ledger.Update(items, ledger.UpdateFields{
			Status:        ledger.StatusPtr(ledger.StatusError),
			ProcBatchID:   ledger.NoBatchSentinel,
			ProcErrorCode: ledger.ErrPtr(ledger.ErrBatchProcessingNotStarted),
			ProcStatusMsg: ledger.StrPtr(errOrStatus(err, resp)),
		}))
		return fmt.Errorf("process batch %d: %w", procBatchID, firstNonNil(err, fmt.Errorf("remote returned %s", statusOf(resp))))
	}

	d.ledger.PersistOrDie(ctx, ledger.Update(items, ledger.UpdateFields{
		Status:      ledger.StatusPtr(ledger.StatusProcessing),
		ProcBatchID: ledger.NoBatchSentinel,
	}))
	return nil
}

// MonitorBatch polls the remote index at MonitorInterval until no task
// belonging to this proc batch remains in the queued state, then maps the
// remaining terminal states onto local item status.
func (d *HTTPProcessingDriver) MonitorBatch(ctx context.Context, procBatchID int64) error {
	creator := d.creatorID(procBatchID)
	ticker := time.NewTicker(d.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		tasks, err := CollectAll(ctx, d.cfg.PageSize, func(ctx context.Context, offset, size int) ([]RemoteTask, error) {
			return d.fetchTaskPage(ctx, creator, offset, size)
		})
		if err != nil {
			return fmt.Errorf("monitor batch %d: %w", procBatchID, err)
		}

		counts := map[RemoteTaskState]int{}
		stillQueued := false
		for _, t := range tasks {
			counts[t.State]++
			if t.State.IsQueued() {
				stillQueued = true
			}
		}
		d.logger.Infof("proc_batch %d monitor: %d tasks, state counts %v", procBatchID, len(tasks), counts)

		if !stillQueued {
			return d.applyMonitorResult(ctx, procBatchID, tasks)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *HTTPProcessingDriver) applyMonitorResult(ctx context.Context, procBatchID int64, tasks []RemoteTask) error {
	items, err := d.ledger.GetByProcBatch(ctx, procBatchID)
	if err != nil {
		return err
	}
	byProcID := make(map[string]*ledger.Item, len(items))
	for _, item := range items {
		if item.ProcID != nil {
			byProcID[*item.ProcID] = item
		}
	}

	var updated []*ledger.Item
	for _, task := range tasks {
		item, ok := byProcID[task.DocID]
		if !ok {
			continue
		}
		if task.State.IsSuccess() {
			updated = append(updated, ledger.Update([]*ledger.Item{item}, ledger.UpdateFields{
				Status:      ledger.StatusPtr(ledger.StatusProcessed),
				ProcBatchID: ledger.NoBatchSentinel,
			})[0])
			continue
		}
		updated = append(updated, ledger.Update([]*ledger.Item{item}, ledger.UpdateFields{
			Status:        ledger.StatusPtr(ledger.StatusError),
			ProcBatchID:   ledger.NoBatchSentinel,
			ProcErrorCode: ledger.ErrPtr(ledger.ErrProcessingFailed),
			ProcStatusMsg: ledger.StrPtr(task.Message),
		})[0])
	}
	if len(updated) > 0 {
		d.ledger.PersistOrDie(ctx, updated)
	}
	return nil
}

// FetchResultsOfBatch retrieves result payloads for every PROCESSED item in
// the batch and joins them to a ProcessingResult list for the exporter.
func (d *HTTPProcessingDriver) FetchResultsOfBatch(ctx context.Context, procBatchID int64) ([]*ledger.ProcessingResult, error) {
	creator := d.creatorID(procBatchID)
	items, err := d.ledger.GetByProcBatch(ctx, procBatchID)
	if err != nil {
		return nil, fmt.Errorf("fetch results for batch %d: %w", procBatchID, err)
	}

	results, err := CollectAll(ctx, d.cfg.PageSize, func(ctx context.Context, offset, size int) ([]RemoteResult, error) {
		return d.fetchResultPage(ctx, creator, offset, size)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch results for batch %d: %w", procBatchID, err)
	}

	byProcID := make(map[string]*ledger.Item, len(items))
	for _, item := range items {
		if item.ProcID != nil {
			byProcID[*item.ProcID] = item
		}
	}

	var out []*ledger.ProcessingResult
	for _, r := range results {
		item, ok := byProcID[r.DocID]
		if !ok || item.Status != ledger.StatusProcessed {
			continue
		}
		out = append(out, &ledger.ProcessingResult{
			Item:              item,
			ResultPayload:     r.Payload,
			GeneratorMetadata: r.Generator,
		})
	}
	return out, nil
}

// fetchTaskPage queries the content index (not the registration/processing
// endpoint) for a page of tasks belonging to creatorID.
func (d *HTTPProcessingDriver) fetchTaskPage(ctx context.Context, creatorID string, offset, size int) ([]RemoteTask, error) {
	var page []RemoteTask
	resp, err := d.do(ctx, func() (*resty.Response, error) {
		return d.index.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"creator_id": creatorID,
				"key":        d.cfg.RemoteTaskID,
				"offset":     fmt.Sprint(offset),
				"size":       fmt.Sprint(size),
			}).
			SetResult(&page).
			Get("/tasks")
	})
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("remote returned %s", resp.Status())
	}
	return page, nil
}

// fetchResultPage queries the content index (not the registration/processing
// endpoint) for a page of results belonging to creatorID.
func (d *HTTPProcessingDriver) fetchResultPage(ctx context.Context, creatorID string, offset, size int) ([]RemoteResult, error) {
	var page []RemoteResult
	resp, err := d.do(ctx, func() (*resty.Response, error) {
		return d.index.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"creator_id": creatorID,
				"offset":     fmt.Sprint(offset),
				"size":       fmt.Sprint(size),
			}).
			SetResult(&page).
			Get("/results")
	})
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("remote returned %s", resp.Status())
	}
	return page, nil
}

func procIDs(items []*ledger.Item) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ProcID != nil {
			ids = append(ids, *item.ProcID)
		}
	}
	return ids
}

func statusOf(resp *resty.Response) string {
	if resp == nil {
		return "no response"
	}
	return resp.Status()
}

func errOrStatus(err error, resp *resty.Response) string {
	if err != nil {
		return err.Error()
	}
	return statusOf(resp)
}

func firstNonNil(err error, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}

// Package monitor provides a read-only projection over the ledger: status
// snapshots and detailed reports, rendered through a pluggable sink.
package monitor

import (
	"context"
	"fmt"

	"github.com/dbsmedya/pipelinectl/internal/ledger"
)

// StatusSnapshot is the terse report shape, suited for a health-check poll.
type StatusSnapshot struct {
	LastProcBatchID                int64
	LastSourceBatchID              int64
	StatusCountsForLastProcBatch   *ledger.StatusCounts
	ErrorCountsForLastProcBatch    *ledger.ErrorCounts
	StatusCountsForLastSourceBatch *ledger.StatusCounts
	ErrorCountsForLastSourceBatch  *ledger.ErrorCounts
}

// DetailedReport is the full report shape, suited for an operator dashboard.
type DetailedReport struct {
	CompletedSourceBatchNames   []string
	UncompletedSourceBatchNames []string
	CurrentSourceBatchName      string
	StatusCounts                *ledger.StatusCounts
	ErrorCounts                 *ledger.ErrorCounts
	StatusCountsPerExtraInfo    *ledger.ExtraInfoStatusCounts
}

// Sink renders a report somewhere: a terminal, a log, a chat webhook.
// Sinks are a strategy plugged into the monitor, not part of its contract.
type Sink interface {
	RenderSnapshot(ctx context.Context, snapshot StatusSnapshot) error
	RenderDetailedReport(ctx context.Context, report DetailedReport) error
}

// Monitor is a read-only projection over the ledger; it never mutates.
type Monitor struct {
	ledger ledger.Ledger
}

// New builds a Monitor over l.
func New(l ledger.Ledger) *Monitor {
	return &Monitor{ledger: l}
}

// Snapshot builds the terse status report.
func (m *Monitor) Snapshot(ctx context.Context) (StatusSnapshot, error) {
	lastProcBatchID, err := m.ledger.LastProcBatchID(ctx)
	if err != nil {
		return StatusSnapshot{}, fmt.Errorf("last proc batch id: %w", err)
	}
	lastSourceBatchID, err := m.ledger.LastSourceBatchID(ctx)
	if err != nil {
		return StatusSnapshot{}, fmt.Errorf("last source batch id: %w", err)
	}

	snapshot := StatusSnapshot{
		LastProcBatchID:   lastProcBatchID,
		LastSourceBatchID: lastSourceBatchID,
	}

	if lastProcBatchID >= 0 {
		snapshot.StatusCountsForLastProcBatch, err = m.ledger.CountsByStatusForProcBatch(ctx, lastProcBatchID)
		if err != nil {
			return StatusSnapshot{}, fmt.Errorf("status counts for proc batch %d: %w", lastProcBatchID, err)
		}
		snapshot.ErrorCountsForLastProcBatch, err = m.ledger.CountsByErrorCodeForProcBatch(ctx, lastProcBatchID)
		if err != nil {
			return StatusSnapshot{}, fmt.Errorf("error counts for proc batch %d: %w", lastProcBatchID, err)
		}
	}
	if lastSourceBatchID >= 0 {
		snapshot.StatusCountsForLastSourceBatch, err = m.ledger.CountsByStatusForSourceBatch(ctx, lastSourceBatchID)
		if err != nil {
			return StatusSnapshot{}, fmt.Errorf("status counts for source batch %d: %w", lastSourceBatchID, err)
		}
		snapshot.ErrorCountsForLastSourceBatch, err = m.ledger.CountsByErrorCodeForSourceBatch(ctx, lastSourceBatchID)
		if err != nil {
			return StatusSnapshot{}, fmt.Errorf("error counts for source batch %d: %w", lastSourceBatchID, err)
		}
	}
	return snapshot, nil
}

// DetailedReport builds the full operator-facing report, including the
// optional per-extra-info status breakdown.
func (m *Monitor) DetailedReport(ctx context.Context) (DetailedReport, error) {
	completed, uncompleted, err := m.ledger.CompletedSourceBatchNames(ctx)
	if err != nil {
		return DetailedReport{}, fmt.Errorf("completed source batch names: %w", err)
	}

	var currentName string
	if items, ok, err := m.ledger.RecoverCurrentSourceBatch(ctx); err != nil {
		return DetailedReport{}, fmt.Errorf("recover current source batch: %w", err)
	} else if ok && len(items) > 0 {
		currentName = items[0].SourceBatchName
	}

	statusCounts, err := m.ledger.CountsByStatus(ctx)
	if err != nil {
		return DetailedReport{}, fmt.Errorf("status counts: %w", err)
	}
	errorCounts, err := m.ledger.CountsByErrorCode(ctx)
	if err != nil {
		return DetailedReport{}, fmt.Errorf("error counts: %w", err)
	}
	perExtraInfo, err := m.ledger.CountsByStatusPerExtraInfo(ctx)
	if err != nil {
		return DetailedReport{}, fmt.Errorf("status counts per extra info: %w", err)
	}

	return DetailedReport{
		CompletedSourceBatchNames:   completed,
		UncompletedSourceBatchNames: uncompleted,
		CurrentSourceBatchName:      currentName,
		StatusCounts:                statusCounts,
		ErrorCounts:                 errorCounts,
		StatusCountsPerExtraInfo:    perExtraInfo,
	}, nil
}

// Report runs snapshot and detailed-report generation and hands both to
// sink.
func (m *Monitor) Report(ctx context.Context, sink Sink) error {
	snapshot, err := m.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := sink.RenderSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("render snapshot: %w", err)
	}

	detailed, err := m.DetailedReport(ctx)
	if err != nil {
		return err
	}
	if err := sink.RenderDetailedReport(ctx, detailed); err != nil {
		return fmt.Errorf("render detailed report: %w", err)
	}
	return nil
}

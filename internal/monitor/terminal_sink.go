package monitor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/pipelinectl/internal/ledger"
)

// TerminalSink renders reports as a colored, column-aligned table on an
// io.Writer (typically stdout).
type TerminalSink struct {
	out io.Writer
}

// NewTerminalSink builds a TerminalSink writing to out. A nil out defaults
// to os.Stdout.
func NewTerminalSink(out io.Writer) *TerminalSink {
	if out == nil {
		out = os.Stdout
	}
	return &TerminalSink{out: out}
}

func (s *TerminalSink) RenderSnapshot(_ context.Context, snapshot StatusSnapshot) error {
	fmt.Fprintln(s.out, color.Bold.Sprint("Status snapshot"))
	fmt.Fprintf(s.out, "  last_proc_batch_id:   %d\n", snapshot.LastProcBatchID)
	fmt.Fprintf(s.out, "  last_source_batch_id: %d\n", snapshot.LastSourceBatchID)

	if snapshot.StatusCountsForLastProcBatch != nil {
		fmt.Fprintln(s.out, "  status counts (last proc batch):")
		s.renderStatusCounts(snapshot.StatusCountsForLastProcBatch, "    ")
	}
	if ledger.HasErrors(snapshot.ErrorCountsForLastProcBatch) {
		fmt.Fprintln(s.out, "  error counts (last proc batch):")
		s.renderErrorCounts(snapshot.ErrorCountsForLastProcBatch, "    ")
	}
	if snapshot.StatusCountsForLastSourceBatch != nil {
		fmt.Fprintln(s.out, "  status counts (last source batch):")
		s.renderStatusCounts(snapshot.StatusCountsForLastSourceBatch, "    ")
	}
	if ledger.HasErrors(snapshot.ErrorCountsForLastSourceBatch) {
		fmt.Fprintln(s.out, "  error counts (last source batch):")
		s.renderErrorCounts(snapshot.ErrorCountsForLastSourceBatch, "    ")
	}
	return nil
}

func (s *TerminalSink) RenderDetailedReport(_ context.Context, report DetailedReport) error {
	fmt.Fprintln(s.out, color.Bold.Sprint("Detailed report"))
	fmt.Fprintf(s.out, "  current source batch: %s\n", report.CurrentSourceBatchName)
	fmt.Fprintf(s.out, "  completed source batches (%d): %s\n", len(report.CompletedSourceBatchNames), joinPadded(report.CompletedSourceBatchNames))
	fmt.Fprintf(s.out, "  uncompleted source batches (%d): %s\n", len(report.UncompletedSourceBatchNames), joinPadded(report.UncompletedSourceBatchNames))

	fmt.Fprintln(s.out, "  status counts:")
	s.renderStatusCounts(report.StatusCounts, "    ")

	if ledger.HasErrors(report.ErrorCounts) {
		fmt.Fprintln(s.out, "  error counts:")
		s.renderErrorCounts(report.ErrorCounts, "    ")
	}

	if report.StatusCountsPerExtraInfo != nil && report.StatusCountsPerExtraInfo.Len() > 0 {
		fmt.Fprintln(s.out, "  status counts per extra info:")
		for el := report.StatusCountsPerExtraInfo.Front(); el != nil; el = el.Next() {
			fmt.Fprintf(s.out, "    %s:\n", padRight(el.Key, labelWidth(report.StatusCountsPerExtraInfo)))
			s.renderStatusCounts(el.Value, "      ")
		}
	}
	return nil
}

func (s *TerminalSink) renderStatusCounts(counts *ledger.StatusCounts, indent string) {
	for el := counts.Front(); el != nil; el = el.Next() {
		fmt.Fprintf(s.out, "%s%s %d\n", indent, padRight(el.Key.String(), 20), el.Value)
	}
}

func (s *TerminalSink) renderErrorCounts(counts *ledger.ErrorCounts, indent string) {
	for el := counts.Front(); el != nil; el = el.Next() {
		if el.Key == ledger.ErrNone {
			continue
		}
		fmt.Fprintf(s.out, "%s%s %d\n", indent, color.FgRed.Render(padRight(el.Key.String(), 44)), el.Value)
	}
}

func padRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + spaces(width-w)
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

func joinPadded(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

func labelWidth(m *ledger.ExtraInfoStatusCounts) int {
	width := 0
	for el := m.Front(); el != nil; el = el.Next() {
		if w := runewidth.StringWidth(el.Key); w > width {
			width = w
		}
	}
	return width + 1
}

package monitor

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/dbsmedya/pipelinectl/internal/ledger"
)

// SlackSink posts reports to a Slack incoming webhook. Named but
// unspecified by the status-monitor contract: "chat-webhook" is one of the
// pluggable sink strategies, this is the reference implementation.
type SlackSink struct {
	webhookURL string
	post       func(url string, msg *slack.WebhookMessage) error
}

// NewSlackSink builds a SlackSink posting to webhookURL.
func NewSlackSink(webhookURL string) *SlackSink {
	return &SlackSink{webhookURL: webhookURL, post: slack.PostWebhook}
}

func (s *SlackSink) RenderSnapshot(_ context.Context, snapshot StatusSnapshot) error {
	fields := []slack.AttachmentField{
		{Title: "last_proc_batch_id", Value: fmt.Sprint(snapshot.LastProcBatchID), Short: true},
		{Title: "last_source_batch_id", Value: fmt.Sprint(snapshot.LastSourceBatchID), Short: true},
	}
	if snapshot.StatusCountsForLastProcBatch != nil {
		fields = append(fields, slack.AttachmentField{
			Title: "status counts (last proc batch)",
			Value: formatStatusCounts(snapshot.StatusCountsForLastProcBatch),
		})
	}
	if ledger.HasErrors(snapshot.ErrorCountsForLastProcBatch) {
		fields = append(fields, slack.AttachmentField{
			Title: "error counts (last proc batch)",
			Value: formatErrorCounts(snapshot.ErrorCountsForLastProcBatch),
		})
	}

	return s.post(s.webhookURL, &slack.WebhookMessage{
		Attachments: []slack.Attachment{{
			Color:  attachmentColor(snapshot.ErrorCountsForLastProcBatch),
			Title:  "Status snapshot",
			Fields: fields,
		}},
	})
}

func (s *SlackSink) RenderDetailedReport(_ context.Context, report DetailedReport) error {
	fields := []slack.AttachmentField{
		{Title: "current source batch", Value: report.CurrentSourceBatchName, Short: true},
		{Title: "completed source batches", Value: fmt.Sprint(len(report.CompletedSourceBatchNames)), Short: true},
		{Title: "uncompleted source batches", Value: fmt.Sprint(len(report.UncompletedSourceBatchNames)), Short: true},
		{Title: "status counts", Value: formatStatusCounts(report.StatusCounts)},
	}
	if ledger.HasErrors(report.ErrorCounts) {
		fields = append(fields, slack.AttachmentField{Title: "error counts", Value: formatErrorCounts(report.ErrorCounts)})
	}

	return s.post(s.webhookURL, &slack.WebhookMessage{
		Attachments: []slack.Attachment{{
			Color:  attachmentColor(report.ErrorCounts),
			Title:  "Detailed report",
			Fields: fields,
		}},
	})
}

func formatStatusCounts(counts *ledger.StatusCounts) string {
	out := ""
	for el := counts.Front(); el != nil; el = el.Next() {
		if out != "" {
			out += "\n"
		}
		out += fmt.Sprintf("%s: %d", el.Key.String(), el.Value)
	}
	return out
}

func formatErrorCounts(counts *ledger.ErrorCounts) string {
	out := ""
	for el := counts.Front(); el != nil; el = el.Next() {
		if el.Key == ledger.ErrNone {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += fmt.Sprintf("%s: %d", el.Key.String(), el.Value)
	}
	return out
}

func attachmentColor(errorCounts *ledger.ErrorCounts) string {
	if ledger.HasErrors(errorCounts) {
		return "danger"
	}
	return "good"
}

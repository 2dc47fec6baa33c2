package monitor

import (
	"context"
	"testing"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/pipelinectl/internal/ledger"
)

func TestSlackSink_RenderSnapshot_ColorsByErrorPresence(t *testing.T) {
	var posted *slack.WebhookMessage
	sink := NewSlackSink("https://hooks.example/test")
	sink.post = func(url string, msg *slack.WebhookMessage) error {
		posted = msg
		return nil
	}

	errCounts := orderedmap.NewOrderedMap[ledger.ErrorCode, int]()
	errCounts.Set(ledger.ErrProcessingFailed, 2)

	err := sink.RenderSnapshot(context.Background(), StatusSnapshot{
		LastProcBatchID:             1,
		LastSourceBatchID:           0,
		ErrorCountsForLastProcBatch: errCounts,
	})
	require.NoError(t, err)
	require.Len(t, posted.Attachments, 1)
	assert.Equal(t, "danger", posted.Attachments[0].Color)
	assert.Equal(t, "Status snapshot", posted.Attachments[0].Title)
}

func TestSlackSink_RenderDetailedReport_GoodColorWithoutErrors(t *testing.T) {
	var posted *slack.WebhookMessage
	sink := NewSlackSink("https://hooks.example/test")
	sink.post = func(url string, msg *slack.WebhookMessage) error {
		posted = msg
		return nil
	}

	statusCounts := orderedmap.NewOrderedMap[ledger.Status, int]()
	statusCounts.Set(ledger.StatusFinished, 5)

	err := sink.RenderDetailedReport(context.Background(), DetailedReport{
		CurrentSourceBatchName: "batch-3",
		StatusCounts:           statusCounts,
	})
	require.NoError(t, err)
	require.Len(t, posted.Attachments, 1)
	assert.Equal(t, "good", posted.Attachments[0].Color)
}

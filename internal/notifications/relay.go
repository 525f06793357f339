package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"streamnotify/internal/types"
)

// relayPublisher is the subset of Publisher the relay needs.
type relayPublisher interface {
	Publish(ctx context.Context, topicARN string, payload any, humanText string) error
}

// Relay is the fire-time hop between a one-shot rule and the post topic.
// EventBridge invokes it with the DeferredPost captured at arm time; it
// republishes the payload unchanged to the post fan-out topic, adding the
// human-readable variants for email/SMS subscribers. Validation against
// the ledger happens downstream in the post worker, not here.
type Relay struct {
	publisher relayPublisher
	topicARN  string
	logger    *slog.Logger
}

// NewRelay creates a Relay targeting the post topic.
func NewRelay(publisher relayPublisher, topicARN string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{publisher: publisher, topicARN: topicARN, logger: logger}
}

// Handle republishes one fired deferred post.
func (r *Relay) Handle(ctx context.Context, post types.DeferredPost) error {
	r.logger.Info("one-shot rule fired",
		"video_id", post.VideoID,
		"version", post.Version,
		"purpose", string(post.Purpose),
		"rule_name", post.RuleName,
		"trace_id", post.TraceID,
	)

	humanText := fmt.Sprintf("%s: %s [%s]", post.Status, post.Title, post.ScheduledStartTime)
	return r.publisher.Publish(ctx, r.topicARN, post, humanText)
}

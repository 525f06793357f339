// Package external provides the anti-corruption layer between the
// streamnotify core and third-party APIs: the YouTube Data API (schedule
// source) and the Twitter API (social post sink). Outbound HTTP calls are
// routed through a circuit breaker; failed calls are never retried
// in-process, because retry belongs to the trigger layer's redelivery.
package external

import (
	"context"
	"time"
)

// ScheduleSource is the upstream video platform as the change detector
// sees it: channel search plus per-video schedule lookup.
type ScheduleSource interface {
	// Search returns recent entries for a channel published after the
	// given instant.
	Search(ctx context.Context, channelID string, publishedAfter time.Time) ([]SearchItem, error)

	// ScheduledStartTime returns the raw scheduledStartTime string for an
	// upcoming broadcast.
	ScheduledStartTime(ctx context.Context, videoID string) (string, error)
}

// StatusPoster is the social post sink: plain text in, success or failure
// out.
type StatusPoster interface {
	Post(ctx context.Context, text string) error
}

// Package scheduler implements the change detector: the poll-driven stage
// that compares freshly fetched schedule data against the version ledger
// and fans out a notification for every schedule state it has not seen
// before.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"streamnotify/internal/external"
	"streamnotify/internal/ledger"
	"streamnotify/internal/notifications"
	"streamnotify/internal/types"
)

// defaultWindowDays is the trailing publishedAfter window when none is
// configured.
const defaultWindowDays = 7.0

// LedgerStore is the subset of the ledger the detector needs.
type LedgerStore interface {
	IsKnown(ctx context.Context, videoID, version string) (bool, error)
	Record(ctx context.Context, rec ledger.VersionRecord) error
}

// ChannelRegistry lists the channels registered for polling.
type ChannelRegistry interface {
	Channels(ctx context.Context, category string) ([]string, error)
}

// FanoutPublisher publishes the multi-format fan-out notification.
type FanoutPublisher interface {
	Publish(ctx context.Context, topicARN string, payload any, humanText string) error
}

// DetectorConfig holds the dependencies and tuning for a Detector.
type DetectorConfig struct {
	Registry  ChannelRegistry
	Ledger    LedgerStore
	Source    external.ScheduleSource
	Publisher FanoutPublisher
	Metrics   *notifications.Metrics

	// TopicARN is the schedule fan-out topic.
	TopicARN string
	// WindowDays is the trailing search window; <= 0 uses the default.
	WindowDays float64

	Logger *slog.Logger
	// Now overrides the clock for tests.
	Now func() time.Time
}

// Detector polls registered channels and emits one notification per
// previously unseen (title, scheduled start) pair per video. It holds no
// state across runs: everything it knows is in the ledger.
type Detector struct {
	registry   ChannelRegistry
	ledger     LedgerStore
	source     external.ScheduleSource
	publisher  FanoutPublisher
	metrics    *notifications.Metrics
	topicARN   string
	windowDays float64
	logger     *slog.Logger
	now        func() time.Time
}

// NewDetector creates a Detector.
func NewDetector(cfg DetectorConfig) *Detector {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	windowDays := cfg.WindowDays
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	return &Detector{
		registry:   cfg.Registry,
		ledger:     cfg.Ledger,
		source:     cfg.Source,
		publisher:  cfg.Publisher,
		metrics:    cfg.Metrics,
		topicARN:   cfg.TopicARN,
		windowDays: windowDays,
		logger:     logger,
		now:        now,
	}
}

// Run executes one poll cycle over all registered channels and returns the
// number of notifications published.
//
// Ordering inside the cycle is deliberate: publish first, record second.
// If the publish fails the ledger is untouched and the next cycle retries
// from scratch; if the record fails after a successful publish, the next
// cycle re-publishes and downstream consumers dedupe on the version tag.
// Any upstream error aborts the whole run and surfaces to the trigger,
// which redelivers on its own policy.
//
// TODO: an upstream error on one channel currently skips the remaining
// channels too; per-channel continuation needs a decision on partial
// failure reporting first.
func (d *Detector) Run(ctx context.Context) (int, error) {
	channels, err := d.registry.Channels(ctx, ledger.CategoryYouTube)
	if err != nil {
		return 0, err
	}

	publishedAfter := d.now().Add(-time.Duration(d.windowDays * 24 * float64(time.Hour)))
	published := 0

	for _, channelID := range channels {
		d.logger.Info("polling channel", "channel_id", channelID)

		items, err := d.source.Search(ctx, channelID, publishedAfter)
		if err != nil {
			return published, err
		}

		for _, item := range items {
			videoID := item.ID.VideoID
			if !item.IsUpcoming() || videoID == "" {
				continue
			}

			n, err := d.processUpcoming(ctx, channelID, videoID, item.Snippet.Title)
			if err != nil {
				return published, err
			}
			published += n
		}
	}

	return published, nil
}

// processUpcoming handles one upcoming broadcast: lookup, version check,
// publish, record. Returns 1 if a notification was published.
func (d *Detector) processUpcoming(ctx context.Context, channelID, videoID, title string) (int, error) {
	startTime, err := d.source.ScheduledStartTime(ctx, videoID)
	if err != nil {
		return 0, err
	}

	version := ledger.ComputeVersion(title, startTime)

	known, err := d.ledger.IsKnown(ctx, videoID, version)
	if err != nil {
		return 0, err
	}
	if known {
		d.logger.Debug("schedule version already processed",
			"video_id", videoID,
			"version", version,
		)
		d.metrics.Count(ctx, notifications.MetricSchedulesSkipped)
		return 0, nil
	}

	detected := types.ScheduleDetected{
		ChannelID:          channelID,
		VideoID:            videoID,
		Version:            version,
		Title:              title,
		ScheduledStartTime: startTime,
		TraceID:            uuid.NewString(),
	}
	if _, err := detected.StartTime(); err != nil {
		// An unparseable start time would poison every downstream stage;
		// leave the ledger untouched so a fixed upstream value re-detects.
		d.logger.Warn("skipping schedule with unparseable start time",
			"video_id", videoID,
			"scheduled_start_time", startTime,
		)
		return 0, nil
	}

	d.metrics.Count(ctx, notifications.MetricSchedulesDetected)

	humanText := fmt.Sprintf("stream scheduled: %s [%s]", title, startTime)
	if err := d.publisher.Publish(ctx, d.topicARN, detected, humanText); err != nil {
		return 0, err
	}
	d.metrics.Count(ctx, notifications.MetricNotificationsPublished)

	rec := ledger.VersionRecord{
		VideoID:            videoID,
		Version:            version,
		Title:              title,
		ScheduledStartTime: startTime,
		RecordedAt:         ledger.Timestamp(d.now()),
	}
	if err := d.ledger.Record(ctx, rec); err != nil {
		return 0, err
	}

	d.logger.Info("new schedule version recorded",
		"channel_id", channelID,
		"video_id", videoID,
		"version", version,
		"title", title,
		"scheduled_start_time", startTime,
		"trace_id", detected.TraceID,
	)
	return 1, nil
}

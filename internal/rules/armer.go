package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"streamnotify/internal/notifications"
	"streamnotify/internal/types"
)

// Status texts composed into the eventual social post.
const (
	StatusStarted      = "stream started"
	StatusStartingSoon = "starting soon"
)

// RuleManager is the subset of Manager the armer needs.
type RuleManager interface {
	Arm(ctx context.Context, in ArmInput) error
}

// ArmerConfig holds the dependencies for an Armer.
type ArmerConfig struct {
	Rules     RuleManager
	TargetARN string
	// Lead is the pre-roll reminder offset; zero disables the reminder.
	Lead    time.Duration
	Metrics *notifications.Metrics
	Logger  *slog.Logger
	// Now overrides the clock for tests.
	Now func() time.Time
}

// Armer consumes schedule-detected notifications and arms the one-shot
// rules that will deliver deferred posts back at fire time.
//
// Two patterns, per detection:
//   - a pre-roll reminder at (start - Lead), armed only while that instant
//     is still in the future; past-due reminders are silently skipped,
//     never armed retroactively;
//   - the live-start rule at the scheduled start, armed unconditionally.
type Armer struct {
	rules     RuleManager
	targetARN string
	lead      time.Duration
	metrics   *notifications.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewArmer creates an Armer.
func NewArmer(cfg ArmerConfig) *Armer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Armer{
		rules:     cfg.Rules,
		targetARN: cfg.TargetARN,
		lead:      cfg.Lead,
		metrics:   cfg.Metrics,
		logger:    logger,
		now:       now,
	}
}

// HandleEvent processes an SNS event from the schedule fan-out topic.
// Records are processed independently; a failed record does not block the
// rest, and the joined error is surfaced so the trigger layer redelivers.
// Redelivery is safe: arming is an overwrite by deterministic name.
func (a *Armer) HandleEvent(ctx context.Context, event events.SNSEvent) error {
	var errs []error
	for _, record := range event.Records {
		var detected types.ScheduleDetected
		if err := json.Unmarshal([]byte(record.SNS.Message), &detected); err != nil {
			// Malformed message: redelivery cannot fix it, drop it.
			a.logger.Error("dropping malformed schedule notification",
				"message_id", record.SNS.MessageID,
				"error", err.Error(),
			)
			continue
		}
		if err := a.ArmSchedule(ctx, detected); err != nil {
			errs = append(errs, fmt.Errorf("arm rules for video %s: %w", detected.VideoID, err))
		}
	}
	return errors.Join(errs...)
}

// ArmSchedule arms the deferred-post rules for one detected schedule.
func (a *Armer) ArmSchedule(ctx context.Context, detected types.ScheduleDetected) error {
	start, err := detected.StartTime()
	if err != nil {
		// The detector validates the format before publishing; a parse
		// failure here means a malformed producer, not a transient fault.
		a.logger.Error("dropping schedule with unparseable start time",
			"video_id", detected.VideoID,
			"scheduled_start_time", detected.ScheduledStartTime,
		)
		return nil
	}

	logger := a.logger.With(
		"channel_id", detected.ChannelID,
		"video_id", detected.VideoID,
		"version", detected.Version,
		"trace_id", detected.TraceID,
	)

	if a.lead > 0 {
		preRollAt := start.Add(-a.lead)
		if preRollAt.After(a.now()) {
			if err := a.arm(ctx, detected, types.PurposePreRoll, StatusStartingSoon, preRollAt); err != nil {
				return err
			}
			logger.Info("pre-roll reminder armed", "fire_at", preRollAt.UTC().Format(time.RFC3339))
		} else {
			logger.Info("pre-roll reminder already past, skipped",
				"fire_at", preRollAt.UTC().Format(time.RFC3339))
		}
	}

	if err := a.arm(ctx, detected, types.PurposeStart, StatusStarted, start); err != nil {
		return err
	}
	logger.Info("live-start rule armed", "fire_at", start.UTC().Format(time.RFC3339))
	return nil
}

func (a *Armer) arm(ctx context.Context, detected types.ScheduleDetected, purpose types.PostPurpose, status string, fireAt time.Time) error {
	name := types.RuleName(detected.ChannelID, detected.VideoID, purpose)
	payload := types.DeferredPost{
		ScheduleDetected: detected,
		Purpose:          purpose,
		Status:           status,
		RuleName:         name,
	}

	err := a.rules.Arm(ctx, ArmInput{
		Name:        name,
		FireAt:      fireAt,
		TargetARN:   a.targetARN,
		Payload:     payload,
		Description: detected.Title,
	})
	if err != nil {
		return err
	}

	a.metrics.Count(ctx, notifications.MetricRulesArmed)
	return nil
}

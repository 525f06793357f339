// Package social implements the deferred action validator: the fire-time
// stage that decides whether a post captured at arm time is still worth
// making, makes it, and tears down its own timer.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"streamnotify/internal/external"
	"streamnotify/internal/notifications"
	"streamnotify/internal/types"
)

// LedgerReader is the subset of the ledger the validator needs.
type LedgerReader interface {
	CurrentVersion(ctx context.Context, videoID string) (string, error)
}

// RuleDisarmer tears down a one-shot rule by name.
type RuleDisarmer interface {
	Disarm(ctx context.Context, name string) error
}

// ValidatorConfig holds the dependencies for a Validator.
type ValidatorConfig struct {
	Ledger  LedgerReader
	Poster  external.StatusPoster
	Rules   RuleDisarmer
	Metrics *notifications.Metrics
	Logger  *slog.Logger
}

// Validator consumes deferred posts at fire time. For each one it re-reads
// the ledger master pointer and only posts if the payload's embedded
// version is still the authoritative one; a mismatch means the schedule
// changed or was superseded after the rule was armed, so the action is
// silently discarded. Either way the rule is disarmed: a fired one-shot
// rule never fires again, so leaving it armed only leaks the resource.
type Validator struct {
	ledger  LedgerReader
	poster  external.StatusPoster
	rules   RuleDisarmer
	metrics *notifications.Metrics
	logger  *slog.Logger
}

// NewValidator creates a Validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		ledger:  cfg.Ledger,
		poster:  cfg.Poster,
		rules:   cfg.Rules,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// HandleEvent processes an SNS event from the post topic. Records are
// processed independently; failures are joined and surfaced so the trigger
// layer redelivers. Redelivery is safe: a post that already went out moved
// the action into the stale path on the ledger side only when the version
// changed, but a duplicate delivery of the same version posts again only
// if the master pointer still matches — the dedup contract is the version
// check, not delivery-at-most-once.
func (v *Validator) HandleEvent(ctx context.Context, event events.SNSEvent) error {
	var errs []error
	for _, record := range event.Records {
		var post types.DeferredPost
		if err := json.Unmarshal([]byte(record.SNS.Message), &post); err != nil {
			v.logger.Error("dropping malformed deferred post",
				"message_id", record.SNS.MessageID,
				"error", err.Error(),
			)
			continue
		}
		if err := v.Process(ctx, post); err != nil {
			errs = append(errs, fmt.Errorf("process deferred post for video %s: %w", post.VideoID, err))
		}
	}
	return errors.Join(errs...)
}

// Process validates and executes one deferred post.
func (v *Validator) Process(ctx context.Context, post types.DeferredPost) error {
	logger := v.logger.With(
		"video_id", post.VideoID,
		"version", post.Version,
		"purpose", string(post.Purpose),
		"rule_name", post.RuleName,
		"trace_id", post.TraceID,
	)

	current, err := v.ledger.CurrentVersion(ctx, post.VideoID)
	if err != nil && !types.IsNotFound(err) {
		return err
	}

	// NotFound counts as stale too: a vanished master row means the entity
	// was reset and will be re-detected on the next poll cycle.
	if err != nil || current != post.Version {
		logger.Info("deferred post is stale, discarding",
			"current_version", current,
		)
		v.metrics.Count(ctx, notifications.MetricStaleActionsDiscarded)
		return v.disarm(ctx, post, logger)
	}

	postErr := v.poster.Post(ctx, fmt.Sprintf("%s\n%s", post.Status, post.Title))
	if postErr == nil {
		v.metrics.Count(ctx, notifications.MetricPostsSent)
		logger.Info("social post sent")
	}

	// Disarm before surfacing any post failure; the rule is spent either way.
	if err := v.disarm(ctx, post, logger); err != nil {
		if postErr != nil {
			return errors.Join(postErr, err)
		}
		return err
	}
	return postErr
}

func (v *Validator) disarm(ctx context.Context, post types.DeferredPost, logger *slog.Logger) error {
	if post.RuleName == "" {
		logger.Warn("deferred post carries no rule name, nothing to disarm")
		return nil
	}
	if err := v.rules.Disarm(ctx, post.RuleName); err != nil {
		return err
	}
	return nil
}

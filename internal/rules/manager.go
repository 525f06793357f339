// Package rules manages one-shot timed rules on EventBridge: named,
// single-fire wall-clock triggers bound to a payload and a delivery
// target. Using named rules instead of a delay queue keeps every pending
// action independently inspectable, cancelable, and deterministically
// named from business keys, which is what lets the fire-time consumer tear
// down its own rule after acting.
package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"streamnotify/internal/types"
)

// targetID names the single target binding on every one-shot rule.
const targetID = "to-lambda"

// EventBridgeAPI is the subset of the EventBridge client the manager uses.
type EventBridgeAPI interface {
	PutRule(ctx context.Context, params *eventbridge.PutRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutRuleOutput, error)
	PutTargets(ctx context.Context, params *eventbridge.PutTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutTargetsOutput, error)
	RemoveTargets(ctx context.Context, params *eventbridge.RemoveTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.RemoveTargetsOutput, error)
	DeleteRule(ctx context.Context, params *eventbridge.DeleteRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.DeleteRuleOutput, error)
}

// ArmInput describes one timed rule: at FireAt (minute granularity, UTC),
// deliver Payload as JSON input to TargetARN.
type ArmInput struct {
	Name        string
	FireAt      time.Time
	TargetARN   string
	Payload     any
	Description string
}

// Manager arms and disarms one-shot EventBridge rules.
type Manager struct {
	client EventBridgeAPI
	logger *slog.Logger
}

// NewManager creates a rule Manager.
func NewManager(client EventBridgeAPI, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{client: client, logger: logger}
}

// CronExpression renders a single-fire cron spec for the given instant.
// EventBridge cron fields are UTC; the year field makes the schedule fire
// exactly once and never recur.
func CronExpression(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("cron(%d %d %d %d ? %d)",
		u.Minute(), u.Hour(), u.Day(), int(u.Month()), u.Year())
}

// Arm creates or replaces the named rule and binds its target with the
// payload captured as the rule input. Arming an existing name overwrites
// it, which makes re-arming for the same logical event idempotent.
func (m *Manager) Arm(ctx context.Context, in ArmInput) error {
	input, err := json.Marshal(in.Payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal,
			fmt.Sprintf("marshal payload for rule %s", in.Name), err)
	}

	_, err = m.client.PutRule(ctx, &eventbridge.PutRuleInput{
		Name:               aws.String(in.Name),
		ScheduleExpression: aws.String(CronExpression(in.FireAt)),
		State:              ebtypes.RuleStateEnabled,
		Description:        aws.String(in.Description),
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamEvents,
			fmt.Sprintf("put rule %s", in.Name), err)
	}

	_, err = m.client.PutTargets(ctx, &eventbridge.PutTargetsInput{
		Rule: aws.String(in.Name),
		Targets: []ebtypes.Target{
			{
				Id:    aws.String(targetID),
				Arn:   aws.String(in.TargetARN),
				Input: aws.String(string(input)),
			},
		},
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamEvents,
			fmt.Sprintf("put targets for rule %s", in.Name), err)
	}

	m.logger.Info("one-shot rule armed",
		"rule_name", in.Name,
		"fire_at", in.FireAt.UTC().Format(time.RFC3339),
	)
	return nil
}

// Disarm removes the target binding and deletes the rule. Disarming a
// name that does not exist is a no-op, not an error: the common caller is
// a fire-time consumer cleaning up after itself, and redelivered messages
// disarm the same rule twice.
func (m *Manager) Disarm(ctx context.Context, name string) error {
	_, err := m.client.RemoveTargets(ctx, &eventbridge.RemoveTargetsInput{
		Rule: aws.String(name),
		Ids:  []string{targetID},
	})
	if err != nil && !isRuleNotFound(err) {
		return types.NewAppError(types.ErrCodeUpstreamEvents,
			fmt.Sprintf("remove targets for rule %s", name), err)
	}

	_, err = m.client.DeleteRule(ctx, &eventbridge.DeleteRuleInput{
		Name: aws.String(name),
	})
	if err != nil && !isRuleNotFound(err) {
		return types.NewAppError(types.ErrCodeUpstreamEvents,
			fmt.Sprintf("delete rule %s", name), err)
	}

	m.logger.Info("one-shot rule disarmed", "rule_name", name)
	return nil
}

func isRuleNotFound(err error) bool {
	var notFound *ebtypes.ResourceNotFoundException
	return errors.As(err, &notFound)
}

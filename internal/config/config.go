// Package config defines the configuration surface of the streamnotify
// Lambdas. Configuration is loaded once at cold start and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails the invocation
// immediately on startup; there is no recovery path for bad configuration.
package config

import (
	"time"

	"streamnotify/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used for API credentials.
type SecretString = types.SecretString

// Config is the top-level configuration struct shared by all entrypoints.
// Each Lambda only reads the subsets it needs; unused sections stay at their
// zero/default values in entrypoints that do not require them.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	AWS      AWSConfig
	YouTube  YouTubeConfig
	Twitter  TwitterConfig
	Reminder ReminderConfig
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LedgerTable is the DynamoDB table holding version and master rows.
	LedgerTable string `envconfig:"LEDGER_TABLE" validate:"required"`
	// RegistryTable is the DynamoDB table holding channel registrations.
	RegistryTable string `envconfig:"REGISTRY_TABLE" validate:"required"`

	// ScheduleTopicARN receives the detector's fan-out notifications.
	ScheduleTopicARN string `envconfig:"SCHEDULE_TOPIC_ARN" validate:"required"`
	// PostTopicARN receives fire-time payloads for the post worker.
	PostTopicARN string `envconfig:"POST_TOPIC_ARN" validate:"required"`
	// NotifyFunctionARN is the target of one-shot EventBridge rules.
	NotifyFunctionARN string `envconfig:"NOTIFY_FUNCTION_ARN" validate:"required"`

	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"StreamNotify"`
}

// YouTubeConfig holds YouTube Data API credentials and polling tuning.
type YouTubeConfig struct {
	APIKey SecretString `envconfig:"YOUTUBE_API_KEY" validate:"required"`

	// WindowDays is the trailing publishedAfter window for channel search.
	WindowDays float64 `envconfig:"WINDOW_DAYS" default:"7"`
}

// TwitterConfig holds the social post sink credentials.
type TwitterConfig struct {
	BearerToken SecretString `envconfig:"TWITTER_BEARER_TOKEN" validate:"required"`
}

// ReminderConfig tunes the pre-roll reminder rule.
type ReminderConfig struct {
	// Lead is how far ahead of the scheduled start the reminder fires.
	// Zero disables the reminder rule entirely; only the start rule is armed.
	Lead time.Duration `envconfig:"REMINDER_LEAD" default:"30m"`
}

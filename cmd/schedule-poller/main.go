// Package main is the entrypoint for the Schedule Poller Lambda function.
//
// The Schedule Poller runs hourly via an EventBridge rule. It polls every
// registered YouTube channel for upcoming live broadcasts, computes a
// version tag for each schedule, and — for versions the ledger has not
// seen — publishes a fan-out notification and records the version. The
// version check is the core deduplication guarantee: at most one
// notification per distinct (title, scheduled start) pair per video.
//
// This file handles dependency wiring (cold start) and delegates all
// business logic to internal/scheduler (Detector.Run).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"streamnotify/internal/config"
	"streamnotify/internal/external"
	"streamnotify/internal/ledger"
	"streamnotify/internal/notifications"
	"streamnotify/internal/scheduler"
)

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	bootLogger.Info("Schedule Poller Lambda initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	ddbClient := dynamodb.NewFromConfig(awsCfg)
	snsClient := sns.NewFromConfig(awsCfg)
	cwClient := cloudwatch.NewFromConfig(awsCfg)

	source := external.NewYouTubeClient(cfg.YouTube.APIKey,
		&http.Client{Timeout: 15 * time.Second}, logger)

	detector := scheduler.NewDetector(scheduler.DetectorConfig{
		Registry:   ledger.NewRegistry(ddbClient, cfg.AWS.RegistryTable),
		Ledger:     ledger.NewStore(ddbClient, cfg.AWS.LedgerTable, logger),
		Source:     source,
		Publisher:  notifications.NewPublisher(snsClient, logger),
		Metrics:    notifications.NewMetrics(cwClient, cfg.AWS.MetricNamespace, logger),
		TopicARN:   cfg.AWS.ScheduleTopicARN,
		WindowDays: cfg.YouTube.WindowDays,
		Logger:     logger,
	})

	logger.Info("Schedule Poller Lambda initialized",
		"ledger_table", cfg.AWS.LedgerTable,
		"registry_table", cfg.AWS.RegistryTable,
		"schedule_topic", cfg.AWS.ScheduleTopicARN,
		"window_days", cfg.YouTube.WindowDays,
	)

	lambda.Start(newHandler(detector, logger))
}

// newHandler wraps Detector.Run with logging and error surfacing. The
// returned error is the failure signal to the invoking trigger; the
// trigger's own redelivery policy is the only retry mechanism.
func newHandler(detector *scheduler.Detector, logger *slog.Logger) func(ctx context.Context) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context) (string, error) {
		logger.InfoContext(ctx, "Schedule Poller handler invoked")

		published, err := detector.Run(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "poll cycle failed",
				"error", err,
				"published_before_error", published,
			)
			return "", fmt.Errorf("schedule poller failed: %w", err)
		}

		result := fmt.Sprintf("poll complete: %d notifications published", published)
		logger.InfoContext(ctx, result, "published", published)
		return result, nil
	}
}

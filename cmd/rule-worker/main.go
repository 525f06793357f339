// Package main is the entrypoint for the Rule Worker Lambda function.
//
// The Rule Worker is subscribed to the schedule fan-out SNS topic. For
// every detected schedule it arms one-shot EventBridge rules that deliver
// the captured payload back to the Notify Worker at fire time: an optional
// pre-roll reminder at (start - lead), skipped when that instant is
// already past, and the live-start rule at the scheduled start.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"

	"streamnotify/internal/config"
	"streamnotify/internal/notifications"
	"streamnotify/internal/rules"
)

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	bootLogger.Info("Rule Worker Lambda initializing (cold start)")

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

	ebClient := eventbridge.NewFromConfig(awsCfg)
	cwClient := cloudwatch.NewFromConfig(awsCfg)

	armer := rules.NewArmer(rules.ArmerConfig{
		Rules:     rules.NewManager(ebClient, logger),
		TargetARN: cfg.AWS.NotifyFunctionARN,
		Lead:      cfg.Reminder.Lead,
		Metrics:   notifications.NewMetrics(cwClient, cfg.AWS.MetricNamespace, logger),
		Logger:    logger,
	})

	logger.Info("Rule Worker Lambda initialized",
		"notify_function", cfg.AWS.NotifyFunctionARN,
		"reminder_lead", cfg.Reminder.Lead.String(),
	)

	lambda.Start(armer.HandleEvent)
}

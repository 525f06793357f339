// Package main is the entrypoint for the Post Worker Lambda function.
//
// The Post Worker is subscribed to the post fan-out SNS topic. For each
// delivered deferred post it re-reads the ledger master pointer and only
// posts to Twitter if the payload's version is still the authoritative
// one; otherwise the action is discarded as stale. In both cases the
// one-shot rule named in the payload is disarmed.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"

	"streamnotify/internal/config"
	"streamnotify/internal/external"
	"streamnotify/internal/ledger"
	"streamnotify/internal/notifications"
	"streamnotify/internal/rules"
	"streamnotify/internal/social"
)

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	bootLogger.Info("Post Worker Lambda initializing (cold start)")

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
	ebClient := eventbridge.NewFromConfig(awsCfg)
	cwClient := cloudwatch.NewFromConfig(awsCfg)

	validator := social.NewValidator(social.ValidatorConfig{
		Ledger:  ledger.NewStore(ddbClient, cfg.AWS.LedgerTable, logger),
		Poster:  external.NewTwitterClient(cfg.Twitter.BearerToken, logger),
		Rules:   rules.NewManager(ebClient, logger),
		Metrics: notifications.NewMetrics(cwClient, cfg.AWS.MetricNamespace, logger),
		Logger:  logger,
	})

	logger.Info("Post Worker Lambda initialized",
		"ledger_table", cfg.AWS.LedgerTable,
	)

	lambda.Start(validator.HandleEvent)
}

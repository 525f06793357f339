// Package main is the entrypoint for the Notify Worker Lambda function.
//
// The Notify Worker is the target of the one-shot EventBridge rules. At
// fire time it is invoked with the DeferredPost captured at arm time and
// republishes it, unmodified, to the post fan-out topic with short
// human-readable variants. Ledger validation is deliberately left to the
// Post Worker so the decision to act uses the freshest possible state.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"streamnotify/internal/config"
	"streamnotify/internal/notifications"
)

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	bootLogger.Info("Notify Worker Lambda initializing (cold start)")

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

	publisher := notifications.NewPublisher(sns.NewFromConfig(awsCfg), logger)
	relay := notifications.NewRelay(publisher, cfg.AWS.PostTopicARN, logger)

	logger.Info("Notify Worker Lambda initialized",
		"post_topic", cfg.AWS.PostTopicARN,
	)

	lambda.Start(relay.Handle)
}

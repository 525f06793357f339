// Package notifications implements the fan-out side of the pipeline: SNS
// publishing with per-protocol message variants, and CloudWatch counters
// for pipeline observability.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"streamnotify/internal/types"
)

// defaultSubject is the SNS subject line on fan-out messages.
const defaultSubject = "youtube_schedule"

// SNSPublisher abstracts the SNS Publish operation for testability.
// Production code uses *sns.Client from aws-sdk-go-v2.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// fanoutMessage is the MessageStructure=json envelope: protocol-keyed
// variants of one logical notification. Lambda subscribers receive the
// structured JSON payload; email and SMS subscribers receive the short
// human-readable text.
type fanoutMessage struct {
	Default string `json:"default"`
	Email   string `json:"email,omitempty"`
	Lambda  string `json:"lambda,omitempty"`
	SMS     string `json:"sms,omitempty"`
}

// Publisher publishes structured multi-format payloads to an SNS topic.
type Publisher struct {
	client SNSPublisher
	logger *slog.Logger
}

// NewPublisher creates a Publisher over the given SNS client.
func NewPublisher(client SNSPublisher, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, logger: logger}
}

// Publish sends payload to topicARN as a multi-format message: the JSON
// encoding of payload under the "default" and "lambda" keys, humanText
// under "email" and "sms".
func (p *Publisher) Publish(ctx context.Context, topicARN string, payload any, humanText string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "marshal fan-out payload", err)
	}

	envelope, err := json.Marshal(fanoutMessage{
		Default: string(body),
		Email:   humanText,
		Lambda:  string(body),
		SMS:     humanText,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "marshal fan-out envelope", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn:         aws.String(topicARN),
		Subject:          aws.String(defaultSubject),
		Message:          aws.String(string(envelope)),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamSNS,
			fmt.Sprintf("publish to %s", topicARN), err)
	}

	p.logger.Info("fan-out notification published", "topic_arn", topicARN)
	return nil
}

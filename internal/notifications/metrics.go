package notifications

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names emitted by the pipeline.
const (
	MetricSchedulesDetected      = "SchedulesDetected"
	MetricSchedulesSkipped       = "SchedulesSkipped"
	MetricNotificationsPublished = "NotificationsPublished"
	MetricRulesArmed             = "RulesArmed"
	MetricStaleActionsDiscarded  = "StaleActionsDiscarded"
	MetricPostsSent              = "PostsSent"
)

// CloudWatchClient abstracts the PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics emits pipeline counters to CloudWatch. Emission is best-effort:
// a metric failure is logged and swallowed, never surfaced to the caller.
type Metrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewMetrics creates a Metrics publisher for the given namespace.
func NewMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Metrics{client: client, namespace: namespace, logger: logger}
}

// Count emits a single count datum for the named metric.
func (m *Metrics) Count(ctx context.Context, name string) {
	if m == nil || m.client == nil {
		return
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
			},
		},
	})
	if err != nil {
		m.logger.Error("failed to record metric",
			"metric", name,
			"error", err.Error(),
		)
	}
}

package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestCount_EmitsSingleCountDatum(t *testing.T) {
	m := &mockCloudWatch{}
	metrics := NewMetrics(m, "StreamNotify", discardLogger())

	metrics.Count(context.Background(), MetricSchedulesDetected)

	if len(m.inputs) != 1 {
		t.Fatalf("emissions = %d, want 1", len(m.inputs))
	}
	in := m.inputs[0]
	if *in.Namespace != "StreamNotify" {
		t.Fatalf("namespace = %s", *in.Namespace)
	}
	if len(in.MetricData) != 1 {
		t.Fatalf("data points = %d, want 1", len(in.MetricData))
	}
	datum := in.MetricData[0]
	if *datum.MetricName != MetricSchedulesDetected || *datum.Value != 1 {
		t.Fatalf("datum = %+v", datum)
	}
}

func TestCount_FailureIsSwallowed(t *testing.T) {
	m := &mockCloudWatch{err: errors.New("throttled")}
	metrics := NewMetrics(m, "StreamNotify", discardLogger())

	// Must not panic or propagate; metrics are best-effort.
	metrics.Count(context.Background(), MetricPostsSent)
}

func TestCount_NilReceiverAndNilClientAreNoOps(t *testing.T) {
	var nilMetrics *Metrics
	nilMetrics.Count(context.Background(), MetricPostsSent)

	noClient := NewMetrics(nil, "StreamNotify", discardLogger())
	noClient.Count(context.Background(), MetricPostsSent)
}

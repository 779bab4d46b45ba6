package push

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"pantrywatch/internal/notify"
	"pantrywatch/internal/types"
)

// MetricNamespace is the CloudWatch namespace for delivery metrics.
const MetricNamespace = "PantryWatch/Notifications"

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// DeliveryMetrics emits delivery outcome and latency metrics to CloudWatch.
// Metric failures are logged and swallowed; observability must never block a
// delivery.
type DeliveryMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewDeliveryMetrics creates a DeliveryMetrics publishing to MetricNamespace.
func NewDeliveryMetrics(client CloudWatchClient, logger types.Logger) *DeliveryMetrics {
	return &DeliveryMetrics{
		client:    client,
		namespace: MetricNamespace,
		logger:    logger,
	}
}

// RecordDelivery emits a DeliveryAttempt metric with Transport and Result
// dimensions.
func (m *DeliveryMetrics) RecordDelivery(ctx context.Context, transport, result string) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String("DeliveryAttempt"),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String("Transport"), Value: aws.String(transport)},
					{Name: aws.String("Result"), Value: aws.String(result)},
				},
			},
		},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record delivery metric",
			"error", err.Error(), "transport", transport, "result", result)
	}
}

// RecordLatency emits the delivery attempt latency in milliseconds.
func (m *DeliveryMetrics) RecordLatency(ctx context.Context, transport string, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String("DeliveryLatency"),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String("Transport"), Value: aws.String(transport)},
				},
			},
		},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record latency metric",
			"error", err.Error(), "transport", transport, "duration_ms", duration.Milliseconds())
	}
}

// InstrumentedNotifier decorates a Notifier with delivery metrics.
type InstrumentedNotifier struct {
	inner     notify.Notifier
	metrics   *DeliveryMetrics
	transport string
	clock     types.Clock
}

// NewInstrumentedNotifier wraps inner, tagging metrics with transport.
func NewInstrumentedNotifier(inner notify.Notifier, metrics *DeliveryMetrics, transport string, clock types.Clock) *InstrumentedNotifier {
	return &InstrumentedNotifier{
		inner:     inner,
		metrics:   metrics,
		transport: transport,
		clock:     clock,
	}
}

// Send delegates to the wrapped notifier and records the outcome.
func (n *InstrumentedNotifier) Send(ctx context.Context, p notify.Payload) (bool, error) {
	start := n.clock.Now()
	shown, err := n.inner.Send(ctx, p)
	n.metrics.RecordLatency(ctx, n.transport, n.clock.Now().Sub(start))

	switch {
	case err != nil:
		n.metrics.RecordDelivery(ctx, n.transport, "error")
	case !shown:
		n.metrics.RecordDelivery(ctx, n.transport, "declined")
	default:
		n.metrics.RecordDelivery(ctx, n.transport, "success")
	}
	return shown, err
}

var _ notify.Notifier = (*InstrumentedNotifier)(nil)

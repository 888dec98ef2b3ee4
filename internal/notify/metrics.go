package notify

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"wardalert/internal/types"
)

// MetricResult is the Result dimension value.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
)

// Metrics records push-flow telemetry. Implementations must not fail the
// caller; emission errors are logged and dropped.
type Metrics interface {
	RecordAttempt(ctx context.Context, stage types.Stage, result MetricResult)
	RecordLatency(ctx context.Context, stage types.Stage, d time.Duration)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics emits:
//   - DispatchAttempt: Dims {Stage, Result}
//   - DispatchLatency: Dims {Stage}, milliseconds
//   - VideosExpired: no dims, count per cleanup run
//   - APIRequestCount / APILatency: Dims {Method, Route, Status}
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchMetrics publishes to namespace, or types.MetricNamespace when empty.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

func (m *CloudWatchMetrics) RecordAttempt(ctx context.Context, stage types.Stage, result MetricResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDispatchAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimStage), Value: aws.String(string(stage))},
			{Name: aws.String(types.DimResult), Value: aws.String(string(result))},
		},
	})
}

func (m *CloudWatchMetrics) RecordLatency(ctx context.Context, stage types.Stage, d time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDispatchLatency),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimStage), Value: aws.String(string(stage))},
		},
	})
}

// RecordVideosExpired reports how many videos one cleanup run removed.
func (m *CloudWatchMetrics) RecordVideosExpired(ctx context.Context, n int) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricVideosExpired),
		Value:      aws.Float64(float64(n)),
		Unit:       cwtypes.StandardUnitCount,
	})
}

// RecordRequest reports one HTTP request. It satisfies core.MetricsCollector.
func (m *CloudWatchMetrics) RecordRequest(ctx context.Context, method, route, status string, d time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(types.DimMethod), Value: aws.String(method)},
		{Name: aws.String(types.DimRoute), Value: aws.String(route)},
		{Name: aws.String(types.DimStatus), Value: aws.String(status)},
	}
	m.put(ctx,
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(d.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	)
}

func (m *CloudWatchMetrics) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"metric", aws.ToString(data[0].MetricName),
			"error", err.Error(),
		)
	}
}

// NoopMetrics discards everything. Used when METRICS_ENABLED is false.
type NoopMetrics struct{}

func (NoopMetrics) RecordAttempt(context.Context, types.Stage, MetricResult)             {}
func (NoopMetrics) RecordLatency(context.Context, types.Stage, time.Duration)            {}
func (NoopMetrics) RecordVideosExpired(context.Context, int)                             {}
func (NoopMetrics) RecordRequest(context.Context, string, string, string, time.Duration) {}

var (
	_ Metrics = (*CloudWatchMetrics)(nil)
	_ Metrics = NoopMetrics{}
)

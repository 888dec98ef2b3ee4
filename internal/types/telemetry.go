package types

// Telemetry metric names for CloudWatch.
const (
	MetricDispatchAttempt = "DispatchAttempt"
	MetricDispatchLatency = "DispatchLatency"
	MetricVideosExpired   = "VideosExpired"
	MetricAPIRequestCount = "APIRequestCount"
	MetricAPILatency      = "APILatency"

	DimStage  = "Stage"
	DimResult = "Result"
	DimMethod = "Method"
	DimRoute  = "Route"
	DimStatus = "Status"

	MetricNamespace = "WardAlert"
)

// Stage names the step of the notify flow an error came from. It is logged
// with every failure and used as a metric dimension.
type Stage string

const (
	StageValidate Stage = "validate"
	StageToken    Stage = "token"
	StageDispatch Stage = "dispatch"
	StageEnqueue  Stage = "enqueue"
)

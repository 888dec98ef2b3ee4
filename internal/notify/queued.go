package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"wardalert/internal/types"
)

// Enqueuer hands a post to the push worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, post types.Post, reason string) (string, error)
}

// QueuedNotifier validates the post and enqueues it for the push worker
// instead of dispatching inline.
type QueuedNotifier struct {
	queue    Enqueuer
	metrics  Metrics
	logger   *slog.Logger
	validate *validator.Validate
}

// NewQueuedNotifier creates a QueuedNotifier. A nil Metrics disables emission.
func NewQueuedNotifier(queue Enqueuer, metrics Metrics, logger *slog.Logger) *QueuedNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &QueuedNotifier{queue: queue, metrics: metrics, logger: logger, validate: validator.New()}
}

type queuedReceipt struct {
	Queued bool   `json:"queued"`
	JobID  string `json:"job_id"`
}

// NotifyPost enqueues post. The returned result carries 202 and the job ID.
func (n *QueuedNotifier) NotifyPost(ctx context.Context, post types.Post) (*types.DispatchResult, error) {
	logger := n.logger.With("post_id", post.ID, "ward_no", post.Ward())

	if err := ValidatePost(n.validate, post); err != nil {
		n.metrics.RecordAttempt(ctx, types.StageValidate, MetricFailed)
		logger.ErrorContext(ctx, "notify failed", "stage", string(types.StageValidate), "error", err.Error())
		return nil, err
	}

	jobID, err := n.queue.Enqueue(ctx, post, "db_webhook")
	if err != nil {
		n.metrics.RecordAttempt(ctx, types.StageEnqueue, MetricFailed)
		logger.ErrorContext(ctx, "notify failed", "stage", string(types.StageEnqueue), "error", err.Error())
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "failed to enqueue push job", err)
	}
	n.metrics.RecordAttempt(ctx, types.StageEnqueue, MetricSuccess)

	body, _ := json.Marshal(queuedReceipt{Queued: true, JobID: jobID})
	return &types.DispatchResult{StatusCode: http.StatusAccepted, Body: body}, nil
}

var _ Notifier = (*QueuedNotifier)(nil)

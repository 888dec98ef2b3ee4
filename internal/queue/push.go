// Package queue provides the SQS producer that hands new posts to the push
// worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"wardalert/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// PushQueue serializes PushJobs onto a single SQS queue.
type PushQueue struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
	now      func() time.Time
}

// NewPushQueue creates a PushQueue for queueURL.
func NewPushQueue(client SQSSender, queueURL string, logger *slog.Logger) *PushQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushQueue{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      time.Now,
	}
}

// Enqueue sends post as a PushJob and returns the job ID. The request ID on
// ctx, when present, becomes the job's trace ID.
func (q *PushQueue) Enqueue(ctx context.Context, post types.Post, reason string) (string, error) {
	traceID := types.GetRequestID(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
	}

	job := types.PushJob{
		JobID:      uuid.New().String(),
		TraceID:    traceID,
		Post:       post,
		EnqueuedAt: q.now().UTC(),
	}

	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("queue: failed to marshal PushJob: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			types.PushJobAttrReason: {
				DataType:    aws.String("String"),
				StringValue: aws.String(reason),
			},
		},
	}

	if _, err := q.client.SendMessage(ctx, input); err != nil {
		return "", fmt.Errorf("queue: failed to send PushJob to %s: %w", q.queueURL, err)
	}

	q.logger.InfoContext(ctx, "push job enqueued",
		"job_id", job.JobID,
		"trace_id", job.TraceID,
		"post_id", post.ID,
		"ward_no", post.Ward(),
		"reason", reason,
	)

	return job.JobID, nil
}

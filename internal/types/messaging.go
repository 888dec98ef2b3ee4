package types

import "time"

// PushJob is the SQS message body consumed by the push worker. It carries the
// post itself so the worker never reads the database.
type PushJob struct {
	JobID      string    `json:"job_id"`
	TraceID    string    `json:"trace_id"`
	Post       Post      `json:"post"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// PushJobAttrReason is the SQS message attribute naming what enqueued the job.
const PushJobAttrReason = "reason"

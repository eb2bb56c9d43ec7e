package queue

import (
	"encoding/json"
	"time"
)

// State is a job's lifecycle state. Jobs move waiting -> active ->
// completed|failed, with delayed as the retry-backoff parking state. An
// active job whose claim lease expires (the worker died mid-processing)
// is stalled; the promotion sweep returns it to waiting, or fails it
// once the attempt budget is spent.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateDelayed   State = "delayed"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether the state is completed or failed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is one unit of asynchronous work tracked by a queue.
type Job struct {
	ID       string          `json:"id"`
	Queue    string          `json:"queue"`
	State    State           `json:"state"`
	Payload  json.RawMessage `json:"payload"`
	Progress int             `json:"progress"`
	// Attempts counts processing starts, including the one in flight.
	Attempts     int             `json:"attempts"`
	ReturnValue  json.RawMessage `json:"returnValue,omitempty"`
	FailedReason string          `json:"failedReason,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	ProcessedAt  time.Time       `json:"processedAt,omitzero"`
	FinishedAt   time.Time       `json:"finishedAt,omitzero"`
	// NextRunAt is set while the job sits in delayed.
	NextRunAt time.Time `json:"nextRunAt,omitzero"`
}

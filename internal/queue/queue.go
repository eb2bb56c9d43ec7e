package queue

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound indicates the job ID is unknown to the queue: it either
// never existed or was evicted by the retention bound. Callers must not
// conflate this with a job that ran and failed.
var ErrJobNotFound = errors.New("job not found")

// Options controls retry and retention policy for a queue.
type Options struct {
	// MaxAttempts is the total processing budget per job.
	MaxAttempts int
	// BackoffBase is the first retry delay; each retry doubles it.
	BackoffBase time.Duration
	// KeepCompleted and KeepFailed bound how many terminal jobs are
	// retained, most recent first. Evicted jobs read as not found.
	KeepCompleted int
	KeepFailed    int
	// StallTimeout is the claim lease. An active job whose worker has
	// neither settled it nor reported progress within this window is
	// considered stalled and is swept back to waiting (or failed, once
	// the attempt budget is spent). It must exceed the longest single
	// pipeline step between progress checkpoints.
	StallTimeout time.Duration
}

// DefaultOptions returns the standard policy: 3 attempts, 5 second base
// backoff, last 10 completed and 50 failed jobs retained, 60 second
// stall lease.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:   3,
		BackoffBase:   5 * time.Second,
		KeepCompleted: 10,
		KeepFailed:    50,
		StallTimeout:  60 * time.Second,
	}
}

func (o Options) normalized() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 5 * time.Second
	}
	if o.KeepCompleted <= 0 {
		o.KeepCompleted = 10
	}
	if o.KeepFailed <= 0 {
		o.KeepFailed = 50
	}
	if o.StallTimeout <= 0 {
		o.StallTimeout = 60 * time.Second
	}
	return o
}

// Backoff returns the delay before retry number attempts (1-based first
// failure): base, 2*base, 4*base, ...
func (o Options) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return o.BackoffBase << (attempts - 1)
}

// Queue is a durable queue of jobs with progress reporting, bounded
// retention, and retry with exponential backoff.
type Queue interface {
	// Name identifies the queue (e.g. "parse-resume").
	Name() string
	// Enqueue creates a job in waiting and returns it.
	Enqueue(ctx context.Context, payload []byte) (*Job, error)
	// Claim blocks up to the given duration for a waiting job, moves it to
	// active, and increments its attempt counter. Returns (nil, nil) when
	// nothing became available.
	Claim(ctx context.Context, block time.Duration) (*Job, error)
	// SetProgress records a progress checkpoint and renews the claim
	// lease. Values below the current progress are ignored; checkpoints
	// are monotonically non-decreasing. Returns ErrJobNotFound for an
	// unknown or evicted job.
	SetProgress(ctx context.Context, jobID string, progress int) error
	// Complete settles the job as completed with the given return value.
	Complete(ctx context.Context, jobID string, result []byte) error
	// Fail records a processing failure. While the attempt budget lasts the
	// job parks in delayed for backoff; otherwise it settles as failed with
	// the reason. The resulting state is returned.
	Fail(ctx context.Context, jobID string, reason string) (State, error)
	// PromoteDelayed moves delayed jobs whose backoff has elapsed back to
	// waiting, sweeps stalled jobs whose lease expired (requeued, or
	// failed once the attempt budget is spent), and returns how many jobs
	// were made runnable again.
	PromoteDelayed(ctx context.Context, now time.Time) (int, error)
	// Job returns a job by ID, or ErrJobNotFound.
	Job(ctx context.Context, jobID string) (*Job, error)
}

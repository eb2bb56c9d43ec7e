package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process Queue with the same state machine and
// retention semantics as RedisQueue. Used by tests and redis-less dev.
type MemoryQueue struct {
	name string
	opts Options

	mu        sync.Mutex
	jobs      map[string]*Job
	waiting   []string
	completed []string
	failed    []string
	// leases holds the last claim or progress time per active job.
	leases map[string]time.Time

	wake chan struct{}
	now  func() time.Time
}

// NewMemoryQueue constructs a MemoryQueue.
func NewMemoryQueue(name string, opts Options) *MemoryQueue {
	return &MemoryQueue{
		name:   name,
		opts:   opts.normalized(),
		jobs:   make(map[string]*Job),
		leases: make(map[string]time.Time),
		wake:   make(chan struct{}, 1),
		now:    time.Now,
	}
}

// Name identifies the queue.
func (q *MemoryQueue) Name() string { return q.name }

// SetClock overrides the time source. Test hook for backoff promotion.
func (q *MemoryQueue) SetClock(now func() time.Time) {
	q.mu.Lock()
	q.now = now
	q.mu.Unlock()
}

// Enqueue creates a job in waiting.
func (q *MemoryQueue) Enqueue(ctx context.Context, payload []byte) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	job := &Job{
		ID:        uuid.NewString(),
		Queue:     q.name,
		State:     StateWaiting,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: q.now().UTC(),
	}
	q.jobs[job.ID] = job
	q.waiting = append(q.waiting, job.ID)
	q.mu.Unlock()

	q.signal()
	out := *job
	return &out, nil
}

// Claim blocks up to the given duration for a waiting job.
func (q *MemoryQueue) Claim(ctx context.Context, block time.Duration) (*Job, error) {
	deadline := time.NewTimer(block)
	defer deadline.Stop()

	for {
		if job := q.tryClaim(); job != nil {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-q.wake:
		}
	}
}

func (q *MemoryQueue) tryClaim() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) == 0 {
		return nil
	}
	jobID := q.waiting[0]
	q.waiting = q.waiting[1:]
	job := q.jobs[jobID]
	if job == nil {
		return nil
	}
	job.State = StateActive
	job.Attempts++
	job.ProcessedAt = q.now().UTC()
	q.leases[job.ID] = job.ProcessedAt
	out := *job
	return &out
}

// SetProgress records a checkpoint, ignoring regressions.
func (q *MemoryQueue) SetProgress(ctx context.Context, jobID string, progress int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if progress > 100 {
		progress = 100
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	if job.State == StateActive {
		q.leases[jobID] = q.now().UTC()
	}
	return nil
}

// Complete settles the job as completed and applies completed retention.
func (q *MemoryQueue) Complete(ctx context.Context, jobID string, result []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.State = StateCompleted
	job.Progress = 100
	job.ReturnValue = append([]byte(nil), result...)
	job.FinishedAt = q.now().UTC()
	delete(q.leases, jobID)
	q.completed = append([]string{jobID}, q.completed...)
	q.completed = q.evict(q.completed, q.opts.KeepCompleted)
	return nil
}

// Fail retries within the attempt budget, else settles as failed.
func (q *MemoryQueue) Fail(ctx context.Context, jobID string, reason string) (State, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return "", ErrJobNotFound
	}

	delete(q.leases, jobID)
	if job.Attempts < q.opts.MaxAttempts {
		job.State = StateDelayed
		job.NextRunAt = q.now().UTC().Add(q.opts.Backoff(job.Attempts))
		return StateDelayed, nil
	}

	job.State = StateFailed
	job.FailedReason = reason
	job.FinishedAt = q.now().UTC()
	q.failed = append([]string{jobID}, q.failed...)
	q.failed = q.evict(q.failed, q.opts.KeepFailed)
	return StateFailed, nil
}

// PromoteDelayed moves due jobs back to waiting and recovers stalled
// jobs whose claim lease expired.
func (q *MemoryQueue) PromoteDelayed(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q.mu.Lock()
	promoted := 0
	for _, job := range q.jobs {
		switch {
		case job.State == StateDelayed && !job.NextRunAt.After(now):
			job.State = StateWaiting
			job.NextRunAt = time.Time{}
			q.waiting = append(q.waiting, job.ID)
			promoted++
		case job.State == StateActive && q.stalled(job.ID, now):
			delete(q.leases, job.ID)
			if job.Attempts >= q.opts.MaxAttempts {
				job.State = StateFailed
				job.FailedReason = "job stalled"
				job.FinishedAt = now.UTC()
				q.failed = append([]string{job.ID}, q.failed...)
				q.failed = q.evict(q.failed, q.opts.KeepFailed)
				continue
			}
			job.State = StateWaiting
			q.waiting = append(q.waiting, job.ID)
			promoted++
		}
	}
	q.mu.Unlock()

	if promoted > 0 {
		q.signal()
	}
	return promoted, nil
}

func (q *MemoryQueue) stalled(jobID string, now time.Time) bool {
	lease, ok := q.leases[jobID]
	if !ok {
		return false
	}
	return !lease.Add(q.opts.StallTimeout).After(now)
}

// Job returns a job by ID, or ErrJobNotFound.
func (q *MemoryQueue) Job(ctx context.Context, jobID string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	out := *job
	return &out, nil
}

var _ Queue = (*MemoryQueue)(nil)

// evict trims a terminal list to the retention bound, dropping evicted
// jobs entirely so later lookups read as not found.
func (q *MemoryQueue) evict(list []string, keep int) []string {
	if len(list) <= keep {
		return list
	}
	for _, jobID := range list[keep:] {
		delete(q.jobs, jobID)
	}
	return list[:keep]
}

func (q *MemoryQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"resumeflow-backend/internal/queue"
	"resumeflow-backend/internal/shared/metrics"
)

const (
	claimBlock      = 2 * time.Second
	promoteInterval = time.Second
)

// Handler processes one claimed job and returns its result payload.
type Handler interface {
	Handle(ctx context.Context, job *queue.Job) ([]byte, error)
}

// Pool claims jobs from one queue and runs them through a handler with
// bounded concurrency. It also promotes delayed jobs whose retry backoff
// has elapsed.
type Pool struct {
	Queue       queue.Queue
	Handler     Handler
	Concurrency int
	Log         *zap.Logger
}

func NewPool(q queue.Queue, h Handler, concurrency int, log *zap.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{Queue: q, Handler: h, Concurrency: concurrency, Log: log}
}

// Run claims and processes jobs until ctx is cancelled, then waits for
// in-flight jobs to finish.
func (p *Pool) Run(ctx context.Context) {
	log := p.Log.With(zap.String("queue", p.Queue.Name()))
	log.Info("worker pool started", zap.Int("concurrency", p.Concurrency))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.promoteLoop(ctx, log)
	}()

	sem := make(chan struct{}, p.Concurrency)

claimLoop:
	for {
		select {
		case <-ctx.Done():
			break claimLoop
		case sem <- struct{}{}:
		}

		job, err := p.Queue.Claim(ctx, claimBlock)
		if err != nil {
			<-sem
			if ctx.Err() != nil {
				break claimLoop
			}
			log.Error("claim job", zap.Error(err))
			continue
		}
		if job == nil {
			<-sem
			continue
		}

		wg.Add(1)
		go func(job *queue.Job) {
			defer wg.Done()
			defer func() { <-sem }()
			p.process(ctx, log, job)
		}(job)
	}

	log.Info("worker pool draining")
	wg.Wait()
	log.Info("worker pool stopped")
}

func (p *Pool) process(ctx context.Context, log *zap.Logger, job *queue.Job) {
	start := time.Now()
	log.Info("job started", zap.String("jobId", job.ID), zap.Int("attempt", job.Attempts))

	result, err := p.Handler.Handle(ctx, job)
	if err != nil {
		state, failErr := p.Queue.Fail(ctx, job.ID, err.Error())
		if failErr != nil {
			log.Error("record job failure", zap.String("jobId", job.ID), zap.Error(failErr))
			return
		}
		if state == queue.StateFailed {
			metrics.IncJobsFailed()
			log.Error("job failed", zap.String("jobId", job.ID), zap.Int("attempt", job.Attempts), zap.Error(err))
		} else {
			log.Warn("job retry scheduled", zap.String("jobId", job.ID), zap.Int("attempt", job.Attempts), zap.Error(err))
		}
		return
	}

	if err := p.Queue.Complete(ctx, job.ID, result); err != nil {
		log.Error("record job completion", zap.String("jobId", job.ID), zap.Error(err))
		return
	}
	metrics.IncJobsCompleted()
	metrics.ObserveJobDurationMs(metrics.SinceMillis(start))
	log.Info("job completed", zap.String("jobId", job.ID), zap.Duration("took", time.Since(start)))
}

func (p *Pool) promoteLoop(ctx context.Context, log *zap.Logger) {
	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := p.Queue.PromoteDelayed(ctx, now)
			if err != nil {
				if ctx.Err() == nil {
					log.Error("promote delayed jobs", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				log.Debug("promoted delayed jobs", zap.Int("count", n))
			}
		}
	}
}

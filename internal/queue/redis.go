package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue on redis primitives: a waiting list, a
// delayed zset scored by ready time, an active zset scored by lease
// time, per-job hashes, and bounded completed/failed lists whose
// eviction also drops the job hash.
type RedisQueue struct {
	client *redis.Client
	name   string
	opts   Options
}

// NewRedisQueue constructs a redis-backed queue.
func NewRedisQueue(client *redis.Client, name string, opts Options) *RedisQueue {
	return &RedisQueue{client: client, name: name, opts: opts.normalized()}
}

// Name identifies the queue.
func (q *RedisQueue) Name() string { return q.name }

func (q *RedisQueue) key(parts ...string) string {
	out := "q:" + q.name
	for _, p := range parts {
		out += ":" + p
	}
	return out
}

func (q *RedisQueue) jobKey(jobID string) string { return q.key("job", jobID) }

// Enqueue creates a job in waiting.
func (q *RedisQueue) Enqueue(ctx context.Context, payload []byte) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		Queue:     q.name,
		State:     StateWaiting,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(job.ID), map[string]any{
		"state":      string(job.State),
		"payload":    string(payload),
		"progress":   0,
		"attempts":   0,
		"created_at": job.CreatedAt.Format(time.RFC3339Nano),
	})
	pipe.LPush(ctx, q.key("waiting"), job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", q.name, err)
	}
	return job, nil
}

// Claim blocks for a waiting job and moves it to active.
func (q *RedisQueue) Claim(ctx context.Context, block time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, block, q.key("waiting")).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim %s: %w", q.name, err)
	}
	// BRPop returns [key, value].
	jobID := res[1]

	now := time.Now().UTC()
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(jobID), map[string]any{
		"state":        string(StateActive),
		"processed_at": now.Format(time.RFC3339Nano),
	})
	pipe.HIncrBy(ctx, q.jobKey(jobID), "attempts", 1)
	pipe.ZAdd(ctx, q.key("active"), redis.Z{Score: float64(now.UnixMilli()), Member: jobID})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("claim %s: activate %s: %w", q.name, jobID, err)
	}
	return q.Job(ctx, jobID)
}

// SetProgress records a checkpoint, ignoring regressions, and renews the
// claim lease.
func (q *RedisQueue) SetProgress(ctx context.Context, jobID string, progress int) error {
	current, err := q.client.HGet(ctx, q.jobKey(jobID), "progress").Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrJobNotFound
		}
		return fmt.Errorf("progress %s/%s: %w", q.name, jobID, err)
	}
	renew := q.client.ZAddXX(ctx, q.key("active"), redis.Z{
		Score:  float64(time.Now().UTC().UnixMilli()),
		Member: jobID,
	})
	if err := renew.Err(); err != nil {
		return fmt.Errorf("progress %s/%s: renew lease: %w", q.name, jobID, err)
	}
	if progress <= current {
		return nil
	}
	if progress > 100 {
		progress = 100
	}
	if err := q.client.HSet(ctx, q.jobKey(jobID), "progress", progress).Err(); err != nil {
		return fmt.Errorf("progress %s/%s: %w", q.name, jobID, err)
	}
	return nil
}

// Complete settles the job as completed and applies completed retention.
func (q *RedisQueue) Complete(ctx context.Context, jobID string, result []byte) error {
	now := time.Now().UTC()
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(jobID), map[string]any{
		"state":        string(StateCompleted),
		"progress":     100,
		"return_value": string(result),
		"finished_at":  now.Format(time.RFC3339Nano),
	})
	pipe.ZRem(ctx, q.key("active"), jobID)
	pipe.LPush(ctx, q.key("completed"), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("complete %s/%s: %w", q.name, jobID, err)
	}
	return q.trim(ctx, q.key("completed"), q.opts.KeepCompleted)
}

// Fail retries within the attempt budget, else settles as failed.
func (q *RedisQueue) Fail(ctx context.Context, jobID string, reason string) (State, error) {
	attempts, err := q.client.HGet(ctx, q.jobKey(jobID), "attempts").Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrJobNotFound
		}
		return "", fmt.Errorf("fail %s/%s: %w", q.name, jobID, err)
	}

	if attempts < q.opts.MaxAttempts {
		readyAt := time.Now().UTC().Add(q.opts.Backoff(attempts))
		pipe := q.client.TxPipeline()
		pipe.HSet(ctx, q.jobKey(jobID), map[string]any{
			"state":       string(StateDelayed),
			"next_run_at": readyAt.Format(time.RFC3339Nano),
		})
		pipe.ZRem(ctx, q.key("active"), jobID)
		pipe.ZAdd(ctx, q.key("delayed"), redis.Z{Score: float64(readyAt.UnixMilli()), Member: jobID})
		if _, err := pipe.Exec(ctx); err != nil {
			return "", fmt.Errorf("fail %s/%s: delay: %w", q.name, jobID, err)
		}
		return StateDelayed, nil
	}

	now := time.Now().UTC()
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(jobID), map[string]any{
		"state":         string(StateFailed),
		"failed_reason": reason,
		"finished_at":   now.Format(time.RFC3339Nano),
	})
	pipe.ZRem(ctx, q.key("active"), jobID)
	pipe.LPush(ctx, q.key("failed"), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("fail %s/%s: %w", q.name, jobID, err)
	}
	if err := q.trim(ctx, q.key("failed"), q.opts.KeepFailed); err != nil {
		return StateFailed, err
	}
	return StateFailed, nil
}

// PromoteDelayed moves due jobs back to waiting and recovers stalled
// jobs whose claim lease expired.
func (q *RedisQueue) PromoteDelayed(ctx context.Context, now time.Time) (int, error) {
	due, err := q.client.ZRangeByScore(ctx, q.key("delayed"), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UTC().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("promote %s: %w", q.name, err)
	}

	promoted := 0
	for _, jobID := range due {
		removed, err := q.client.ZRem(ctx, q.key("delayed"), jobID).Result()
		if err != nil {
			return promoted, fmt.Errorf("promote %s/%s: %w", q.name, jobID, err)
		}
		if removed == 0 {
			// Another promoter won the race for this job.
			continue
		}
		pipe := q.client.TxPipeline()
		pipe.HSet(ctx, q.jobKey(jobID), "state", string(StateWaiting))
		pipe.HDel(ctx, q.jobKey(jobID), "next_run_at")
		pipe.LPush(ctx, q.key("waiting"), jobID)
		if _, err := pipe.Exec(ctx); err != nil {
			return promoted, fmt.Errorf("promote %s/%s: %w", q.name, jobID, err)
		}
		promoted++
	}

	recovered, err := q.recoverStalled(ctx, now)
	if err != nil {
		return promoted, err
	}
	return promoted + recovered, nil
}

// recoverStalled requeues active jobs whose lease expired before now.
// The job's claiming worker is presumed dead; a job whose attempt budget
// is already spent settles as failed instead.
func (q *RedisQueue) recoverStalled(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.UTC().Add(-q.opts.StallTimeout)
	expired, err := q.client.ZRangeByScore(ctx, q.key("active"), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("recover %s: %w", q.name, err)
	}

	recovered := 0
	for _, jobID := range expired {
		removed, err := q.client.ZRem(ctx, q.key("active"), jobID).Result()
		if err != nil {
			return recovered, fmt.Errorf("recover %s/%s: %w", q.name, jobID, err)
		}
		if removed == 0 {
			// The worker settled or renewed the job in the meantime.
			continue
		}

		attempts, err := q.client.HGet(ctx, q.jobKey(jobID), "attempts").Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return recovered, fmt.Errorf("recover %s/%s: %w", q.name, jobID, err)
		}
		if attempts >= q.opts.MaxAttempts {
			pipe := q.client.TxPipeline()
			pipe.HSet(ctx, q.jobKey(jobID), map[string]any{
				"state":         string(StateFailed),
				"failed_reason": "job stalled",
				"finished_at":   now.UTC().Format(time.RFC3339Nano),
			})
			pipe.LPush(ctx, q.key("failed"), jobID)
			if _, err := pipe.Exec(ctx); err != nil {
				return recovered, fmt.Errorf("recover %s/%s: %w", q.name, jobID, err)
			}
			if err := q.trim(ctx, q.key("failed"), q.opts.KeepFailed); err != nil {
				return recovered, err
			}
			continue
		}

		pipe := q.client.TxPipeline()
		pipe.HSet(ctx, q.jobKey(jobID), "state", string(StateWaiting))
		pipe.LPush(ctx, q.key("waiting"), jobID)
		if _, err := pipe.Exec(ctx); err != nil {
			return recovered, fmt.Errorf("recover %s/%s: %w", q.name, jobID, err)
		}
		recovered++
	}
	return recovered, nil
}

// Job loads a job by ID.
func (q *RedisQueue) Job(ctx context.Context, jobID string) (*Job, error) {
	fields, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s/%s: %w", q.name, jobID, err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	job := &Job{
		ID:           jobID,
		Queue:        q.name,
		State:        State(fields["state"]),
		Payload:      json.RawMessage(fields["payload"]),
		FailedReason: fields["failed_reason"],
	}
	if raw := fields["return_value"]; raw != "" {
		job.ReturnValue = json.RawMessage(raw)
	}
	job.Progress, _ = strconv.Atoi(fields["progress"])
	job.Attempts, _ = strconv.Atoi(fields["attempts"])
	job.CreatedAt = parseTime(fields["created_at"])
	job.ProcessedAt = parseTime(fields["processed_at"])
	job.FinishedAt = parseTime(fields["finished_at"])
	job.NextRunAt = parseTime(fields["next_run_at"])
	return job, nil
}

var _ Queue = (*RedisQueue)(nil)

// trim applies the retention bound to a terminal list and drops the hashes
// of evicted jobs.
func (q *RedisQueue) trim(ctx context.Context, listKey string, keep int) error {
	evicted, err := q.client.LRange(ctx, listKey, int64(keep), -1).Result()
	if err != nil {
		return fmt.Errorf("trim %s: %w", listKey, err)
	}
	if len(evicted) == 0 {
		return nil
	}
	pipe := q.client.TxPipeline()
	pipe.LTrim(ctx, listKey, 0, int64(keep-1))
	for _, jobID := range evicted {
		pipe.Del(ctx, q.jobKey(jobID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("trim %s: %w", listKey, err)
	}
	return nil
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

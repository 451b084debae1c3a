// Package jobqueue is the Job Queue abstraction (C3): a FIFO of job ids
// with side storage for job payloads and pending-cluster hints. Queue is
// the Redis-backed adapter (LPUSH/BRPOP, as the original's redis_client.py
// does it); Memory is an in-process fake used by unit tests for C4/C5.
package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/zyrak/simdoc/internal/models"
)

const (
	jobTTL     = time.Hour
	pendingTTL = 5 * time.Minute

	jobPrefix     = "similarity_job:"
	pendingPrefix = "cluster_pending:"
)

// Queue is the interface C4/C5/C7 depend on.
type Queue interface {
	Enqueue(ctx context.Context, job *models.Job) (string, error)
	Dequeue(ctx context.Context, timeout time.Duration) (string, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, jobID, status string) error
	DeleteJob(ctx context.Context, jobID string) error

	SetPendingHint(ctx context.Context, articleID string, clusterID *string, etaMillis int) error
	GetPendingHint(ctx context.Context, articleID string) (*models.PendingHint, error)
	ClearPendingHint(ctx context.Context, articleID string) error

	QueueLength(ctx context.Context) (int64, error)
	// SweepExpiredJobs is the every-10-jobs TTL scan spec §4.3 calls for and
	// returns how many expired job entries it found. The in-memory fake
	// deletes its expired entries; with Redis TTLs the keys expire on their
	// own, so RedisQueue only counts them and deletes nothing.
	SweepExpiredJobs(ctx context.Context) (int, error)
	ClearAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

// RedisQueue is the production adapter, modeled on redis_client.py.
type RedisQueue struct {
	rdb       *redis.Client
	queueName string
}

// New creates a Redis-backed Queue.
func New(rdb *redis.Client, queueName string) *RedisQueue {
	if queueName == "" {
		queueName = "similarity_jobs"
	}
	return &RedisQueue{rdb: rdb, queueName: queueName}
}

// Enqueue assigns a job id, writes the payload with a 1-hour TTL, and
// LPUSHes the id onto the queue list.
func (q *RedisQueue) Enqueue(ctx context.Context, job *models.Job) (string, error) {
	job.JobID = newJobID()
	job.Status = models.JobPending
	job.CreatedAt = job.CreatedAt.UTC()

	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshalling job %s: %w", job.JobID, err)
	}

	if err := q.rdb.Set(ctx, jobPrefix+job.JobID, raw, jobTTL).Err(); err != nil {
		return "", fmt.Errorf("storing job %s: %w", job.JobID, err)
	}
	if err := q.rdb.LPush(ctx, q.queueName, job.JobID).Err(); err != nil {
		return "", fmt.Errorf("pushing job %s: %w", job.JobID, err)
	}
	return job.JobID, nil
}

// Dequeue blocks up to timeout for a job id (BRPOP). Empty string with no
// error means the wait elapsed with no job — a normal loop iteration.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.queueName).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	// BRPop returns [key, value].
	if len(res) != 2 {
		return "", fmt.Errorf("unexpected brpop reply: %v", res)
	}
	return res[1], nil
}

func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	raw, err := q.rdb.Get(ctx, jobPrefix+jobID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var job models.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("unmarshalling job %s: %w", jobID, err)
	}
	return &job, nil
}

func (q *RedisQueue) UpdateJobStatus(ctx context.Context, jobID, status string) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshalling job %s: %w", jobID, err)
	}
	return q.rdb.Set(ctx, jobPrefix+jobID, raw, jobTTL).Err()
}

func (q *RedisQueue) DeleteJob(ctx context.Context, jobID string) error {
	return q.rdb.Del(ctx, jobPrefix+jobID).Err()
}

func (q *RedisQueue) SetPendingHint(ctx context.Context, articleID string, clusterID *string, etaMillis int) error {
	hint := models.PendingHint{ClusterID: clusterID, ETAMillis: etaMillis, Timestamp: time.Now().UTC()}
	raw, err := json.Marshal(hint)
	if err != nil {
		return fmt.Errorf("marshalling pending hint for %s: %w", articleID, err)
	}
	return q.rdb.Set(ctx, pendingPrefix+articleID, raw, pendingTTL).Err()
}

func (q *RedisQueue) GetPendingHint(ctx context.Context, articleID string) (*models.PendingHint, error) {
	raw, err := q.rdb.Get(ctx, pendingPrefix+articleID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var hint models.PendingHint
	if err := json.Unmarshal([]byte(raw), &hint); err != nil {
		return nil, err
	}
	return &hint, nil
}

func (q *RedisQueue) ClearPendingHint(ctx context.Context, articleID string) error {
	return q.rdb.Del(ctx, pendingPrefix+articleID).Err()
}

func (q *RedisQueue) QueueLength(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.queueName).Result()
}

// SweepExpiredJobs scans job keys and counts any whose TTL has already
// lapsed between the SCAN cursor and the existence check (Redis expires
// keys lazily between accesses); it deletes nothing itself. Mirrors
// redis_client.py's cleanup_expired_jobs.
func (q *RedisQueue) SweepExpiredJobs(ctx context.Context) (int, error) {
	var cursor uint64
	dropped := 0
	for {
		keys, next, err := q.rdb.Scan(ctx, cursor, jobPrefix+"*", 100).Result()
		if err != nil {
			return dropped, err
		}
		for _, key := range keys {
			exists, err := q.rdb.Exists(ctx, key).Result()
			if err != nil {
				return dropped, err
			}
			if exists == 0 {
				dropped++
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return dropped, nil
}

// ClearAll drops the queue list, every job payload, and every pending hint.
func (q *RedisQueue) ClearAll(ctx context.Context) error {
	if err := q.rdb.Del(ctx, q.queueName).Err(); err != nil {
		return err
	}
	for _, prefix := range []string{jobPrefix, pendingPrefix} {
		var cursor uint64
		for {
			keys, next, err := q.rdb.Scan(ctx, cursor, prefix+"*", 100).Result()
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				if err := q.rdb.Del(ctx, keys...).Err(); err != nil {
					return err
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	return nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

// newJobID mirrors the original's `job_<utc_timestamp>_<random8>` format,
// using a uuid prefix instead of Python's uuid4()[:8] slice for the random
// suffix since Go's uuid package has no short-form equivalent.
func newJobID() string {
	return fmt.Sprintf("job_%s_%s", time.Now().UTC().Format("20060102_150405"), uuid.NewString()[:8])
}

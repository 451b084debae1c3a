package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zyrak/simdoc/internal/models"
)

func TestMemoryEnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	job := &models.Job{ArticleID: "a1", Shingles: []string{"ab", "bc"}}
	jobID, err := q.Enqueue(ctx, job)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, jobID, got)

	stored, err := q.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "a1", stored.ArticleID)
	assert.Equal(t, models.JobPending, stored.Status)
}

func TestMemoryDequeueTimeout(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	jobID, err := q.Dequeue(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, jobID)
}

func TestMemoryPendingHintRoundTrip(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	clusterID := "cluster_x"
	require.NoError(t, q.SetPendingHint(ctx, "a1", &clusterID, 150))

	hint, err := q.GetPendingHint(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, hint)
	assert.Equal(t, clusterID, *hint.ClusterID)
	assert.Equal(t, 150, hint.ETAMillis)

	require.NoError(t, q.ClearPendingHint(ctx, "a1"))
	hint, err = q.GetPendingHint(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, hint)
}

func TestMemoryClearPendingHintTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	require.NoError(t, q.ClearPendingHint(ctx, "missing"))
	require.NoError(t, q.ClearPendingHint(ctx, "missing"))
}

func TestMemoryUpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	jobID, err := q.Enqueue(ctx, &models.Job{ArticleID: "a1"})
	require.NoError(t, err)

	require.NoError(t, q.UpdateJobStatus(ctx, jobID, models.JobCompleted))
	job, err := q.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
}

func TestMemoryQueueLength(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	n, err := q.QueueLength(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	_, err = q.Enqueue(ctx, &models.Job{ArticleID: "a1"})
	require.NoError(t, err)

	n, err = q.QueueLength(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMemoryClearAll(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	_, err := q.Enqueue(ctx, &models.Job{ArticleID: "a1"})
	require.NoError(t, err)
	require.NoError(t, q.SetPendingHint(ctx, "a1", nil, 100))

	require.NoError(t, q.ClearAll(ctx))

	n, err := q.QueueLength(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	hint, err := q.GetPendingHint(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, hint)
}

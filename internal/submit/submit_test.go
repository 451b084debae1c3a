package submit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zyrak/simdoc/internal/cluster"
	"github.com/zyrak/simdoc/internal/docstore"
	"github.com/zyrak/simdoc/internal/features"
	"github.com/zyrak/simdoc/internal/jobqueue"
	"github.com/zyrak/simdoc/internal/models"
)

func newTestSubmitter() (*Submitter, docstore.Store, jobqueue.Queue) {
	store := docstore.NewMemory()
	q := jobqueue.NewMemory()
	extractor := features.New(features.Config{})
	registry := cluster.New(store, nil)
	s := New(store, q, extractor, registry, nil, 0.5)
	return s, store, q
}

func TestSubmitFastPathExactDuplicate(t *testing.T) {
	ctx := context.Background()
	s, store, q := newTestSubmitter()

	now := time.Now().UTC()
	a := &models.Article{ArticleID: "a1", Title: "Fire", Content: "Fire in Tai Po", PublishTime: now}
	require.NoError(t, s.Submit(ctx, a))

	got, err := store.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.ClusterStatus)

	b := &models.Article{ArticleID: "a2", Title: "Fire", Content: "Fire in Tai Po", PublishTime: now}
	require.NoError(t, s.Submit(ctx, b))

	gotB, err := store.GetArticle(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusMatched, gotB.ClusterStatus)
	require.NotNil(t, gotB.ClusterID)
	assert.Equal(t, cluster.ID("a1"), *gotB.ClusterID)
	require.NotNil(t, gotB.SimilarityScore)
	assert.Equal(t, 1.0, *gotB.SimilarityScore)

	// A's own cluster document must have been founded retroactively.
	gotA, err := store.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusMatched, gotA.ClusterStatus)
	c, err := store.GetCluster(ctx, cluster.ID("a1"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "a2"}, c.ArticleIDs)

	// Only A's slow-path job is queued; the fast path enqueued none for B.
	n, err := q.QueueLength(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSubmitSlowPathEnqueuesJobAndPendingHint(t *testing.T) {
	ctx := context.Background()
	s, store, q := newTestSubmitter()

	a := &models.Article{ArticleID: "a1", Title: "Quarterly export figures", Content: "Robotics export statistics for the quarter.", PublishTime: time.Now().UTC()}
	require.NoError(t, s.Submit(ctx, a))

	got, err := store.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.ClusterStatus)
	assert.Nil(t, got.ClusterID)
	assert.NotEmpty(t, got.Shingles)

	n, err := q.QueueLength(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	hint, err := q.GetPendingHint(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, hint)
	assert.Nil(t, hint.ClusterID) // no prior candidates to advise from
}

func TestSubmitIsIdempotentOnReSubmission(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestSubmitter()

	now := time.Now().UTC()
	a := &models.Article{ArticleID: "a1", Title: "Fire", Content: "Fire in Tai Po", PublishTime: now, Source: "feed-1"}
	require.NoError(t, s.Submit(ctx, a))

	updated := &models.Article{ArticleID: "a1", Title: "Fire (updated)", Content: "Fire in Tai Po", PublishTime: now, Source: "feed-2"}
	require.NoError(t, s.Submit(ctx, updated))

	got, err := store.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Fire (updated)", got.Title)
	assert.Equal(t, "feed-2", got.Source)
	// Re-submission must not rerun clustering — status is whatever it was.
	assert.Equal(t, models.StatusPending, got.ClusterStatus)
}

func TestBestAdvisoryClusterPicksHighestAverageJaccard(t *testing.T) {
	shingles := []string{"aa", "bb", "cc", "dd"}
	clusterA := "cluster_a"
	clusterB := "cluster_b"
	candidates := []models.CandidateRef{
		{ArticleID: "x", ClusterID: &clusterA, Shingles: []string{"aa", "bb", "cc", "dd"}},
		{ArticleID: "y", ClusterID: &clusterB, Shingles: []string{"aa", "zz", "yy", "ww"}},
	}

	best := bestAdvisoryCluster(shingles, candidates, 0.1)
	require.NotNil(t, best)
	assert.Equal(t, clusterA, *best)
}

func TestBestAdvisoryClusterNoneMeetThreshold(t *testing.T) {
	shingles := []string{"aa", "bb"}
	clusterA := "cluster_a"
	candidates := []models.CandidateRef{
		{ArticleID: "x", ClusterID: &clusterA, Shingles: []string{"zz", "yy"}},
	}
	assert.Nil(t, bestAdvisoryCluster(shingles, candidates, 0.5))
}

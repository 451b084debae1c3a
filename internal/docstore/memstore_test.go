package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zyrak/simdoc/internal/models"
)

func TestMemoryGetPutArticleRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a := &models.Article{ArticleID: "a1", Title: "Fire", SimHash: "abc123"}
	require.NoError(t, m.PutArticle(ctx, a))

	got, err := m.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Fire", got.Title)
	assert.Equal(t, "abc123", got.SimHash)

	// Mutating the returned clone must not affect the stored copy.
	got.Title = "mutated"
	again, err := m.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Fire", again.Title)
}

func TestMemoryGetArticleNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.GetArticle(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryPatchArticle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "a1", ClusterStatus: models.StatusPending}))

	clusterID := "cluster_x"
	patched, err := m.PatchArticle(ctx, "a1", func(a *models.Article) {
		a.ClusterID = &clusterID
		a.ClusterStatus = models.StatusMatched
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusMatched, patched.ClusterStatus)
	require.NotNil(t, patched.ClusterID)
	assert.Equal(t, clusterID, *patched.ClusterID)

	stored, err := m.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusMatched, stored.ClusterStatus)
}

func TestMemoryPatchArticleNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.PatchArticle(context.Background(), "missing", func(a *models.Article) {})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryFindBySimHash(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "a1", SimHash: "hash1"}))
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "a2", SimHash: "hash2"}))

	got, err := m.FindBySimHash(ctx, "hash2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a2", got.ArticleID)

	none, err := m.FindBySimHash(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMemoryFindByMinHashBandsTruncatesAt20(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	// a1 shares only its 21st band with the query signature; since queries
	// are truncated to the first 20 bands, a1 must not match.
	bands := make([]string, 21)
	for i := range bands {
		bands[i] = "b" + string(rune('a'+i))
	}
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "a1", MinHashSignature: []string{bands[20]}}))
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "a2", MinHashSignature: []string{bands[0]}}))

	out, err := m.FindByMinHashBands(ctx, bands, "", 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a2", out[0].ArticleID)
}

func TestMemoryFindByMinHashBandsExcludesSelf(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "a1", MinHashSignature: []string{"b0"}}))
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "a2", MinHashSignature: []string{"b0"}}))

	out, err := m.FindByMinHashBands(ctx, []string{"b0"}, "a1", 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a2", out[0].ArticleID)
}

func TestMemoryFindByMinHashBandsRespectsLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: id, MinHashSignature: []string{"b0"}}))
	}

	out, err := m.FindByMinHashBands(ctx, []string{"b0"}, "", 2)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestMemoryFindByClusterSortedByPublishTimeDesc(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	clusterID := "cluster_x"
	other := "cluster_y"

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "old", ClusterID: &clusterID, PublishTime: base}))
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "new", ClusterID: &clusterID, PublishTime: base.Add(time.Hour)}))
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "elsewhere", ClusterID: &other, PublishTime: base.Add(2 * time.Hour)}))

	out, err := m.FindByCluster(ctx, clusterID)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "new", out[0].ArticleID)
	assert.Equal(t, "old", out[1].ArticleID)
}

func TestMemorySearchFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		require.NoError(t, m.PutArticle(ctx, &models.Article{
			ArticleID:   "p" + string(rune('a'+i)),
			Title:       "integration test article",
			PublishTime: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	// A non-matching article must not appear in the title-filtered results.
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "other", Title: "unrelated", PublishTime: base}))

	res, err := m.Search(ctx, ArticleSearchParams{Page: 2, PageSize: 10, Title: "integration"})
	require.NoError(t, err)
	assert.Equal(t, 25, res.Total)
	assert.Len(t, res.Articles, 10)
}

func TestMemorySearchStateAndTopFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "a1", State: 1, Top: 1}))
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "a2", State: 0, Top: 0}))

	state := 1
	res, err := m.Search(ctx, ArticleSearchParams{Page: 1, PageSize: 20, State: &state})
	require.NoError(t, err)
	require.Len(t, res.Articles, 1)
	assert.Equal(t, "a1", res.Articles[0].ArticleID)

	top := 1
	res, err = m.Search(ctx, ArticleSearchParams{Page: 1, PageSize: 20, Top: &top})
	require.NoError(t, err)
	require.Len(t, res.Articles, 1)
	assert.Equal(t, "a1", res.Articles[0].ArticleID)
}

func TestMemorySearchSortAscending(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "later", PublishTime: base.Add(time.Hour)}))
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "earlier", PublishTime: base}))

	res, err := m.Search(ctx, ArticleSearchParams{Page: 1, PageSize: 20, SortField: "publish_time", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, res.Articles, 2)
	assert.Equal(t, "earlier", res.Articles[0].ArticleID)
	assert.Equal(t, "later", res.Articles[1].ArticleID)
}

func TestMemoryGetPutDeleteCluster(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	c := &models.Cluster{ClusterID: "cluster_x", Size: 2, ArticleIDs: []string{"a1", "a2"}}
	require.NoError(t, m.PutCluster(ctx, c))

	got, err := m.GetCluster(ctx, "cluster_x")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Size)

	require.NoError(t, m.DeleteCluster(ctx, "cluster_x"))
	_, err = m.GetCluster(ctx, "cluster_x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStats(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "a1"}))
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "a2"}))
	require.NoError(t, m.PutCluster(ctx, &models.Cluster{ClusterID: "c1", Size: 3}))
	require.NoError(t, m.PutCluster(ctx, &models.Cluster{ClusterID: "c2", Size: 1}))

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalClusters)
	assert.Equal(t, 2, stats.TotalArticles)
	assert.Equal(t, 3, stats.LargestSize)
	assert.Equal(t, 2.0, stats.AvgSize)
}

func TestMemoryClearAll(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.PutArticle(ctx, &models.Article{ArticleID: "a1"}))
	require.NoError(t, m.PutCluster(ctx, &models.Cluster{ClusterID: "c1"}))

	require.NoError(t, m.ClearAll(ctx))

	_, err := m.GetArticle(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetCluster(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

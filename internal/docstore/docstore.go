// Package docstore is the Candidate Index (C2): an abstraction over a
// key/term-indexed document store exposing get-by-id, put/patch, term
// lookup on simhash, "shares ≥1 MinHash band", articles-in-cluster, and a
// filtered/paginated article search. The real adapter (Store) talks to
// Elasticsearch; Memory is an in-memory fake with identical semantics used
// by unit tests for C4-C7.
package docstore

import (
	"context"
	"time"

	"github.com/zyrak/simdoc/internal/models"
)

// ArticleSearchParams is the filter/sort/pagination surface for
// GET /clusters/ (which, per spec §6, searches articles and groups the
// result by cluster).
type ArticleSearchParams struct {
	Page      int
	PageSize  int
	SortField string // publish_time | created_at | updated_at
	SortOrder string // asc | desc

	State     *int
	Top       *int
	Title     string
	Source    string
	StartTime *time.Time
	EndTime   *time.Time
	TagID     string
	TopicIDs  []string
}

// SearchResult is one page of a filtered article search.
type SearchResult struct {
	Articles []*models.Article
	Total    int
}

// ClusterStats summarizes cluster-size distribution for diagnostics.
type ClusterStats struct {
	TotalClusters int
	TotalArticles int
	LargestSize   int
	AvgSize       float64
}

// ArticleStore is the article half of the Candidate Index.
type ArticleStore interface {
	GetArticle(ctx context.Context, articleID string) (*models.Article, error)
	PutArticle(ctx context.Context, article *models.Article) error
	// PatchArticle applies fields onto the stored article and writes it
	// back with synchronous-refresh semantics (visible to the very next
	// read, required by the fast path to observe its own patch).
	PatchArticle(ctx context.Context, articleID string, patch func(*models.Article)) (*models.Article, error)

	// FindBySimHash returns the first article (if any) with an exact
	// simhash term match. limit is always 1 per spec §4.2.
	FindBySimHash(ctx context.Context, simhash string) (*models.Article, error)

	// FindByMinHashBands returns articles sharing at least one MinHash
	// band with bands, excluding excludeArticleID, up to limit results.
	// Per spec §9, only the first 20 bands are queried regardless of the
	// configured band count — callers should pass the full signature and
	// let the store enforce the truncation.
	FindByMinHashBands(ctx context.Context, bands []string, excludeArticleID string, limit int) ([]*models.Article, error)

	// FindByCluster returns every article with cluster_id = clusterID,
	// sorted by publish_time descending.
	FindByCluster(ctx context.Context, clusterID string) ([]*models.Article, error)

	Search(ctx context.Context, params ArticleSearchParams) (SearchResult, error)
}

// ClusterStore is the cluster half of the Candidate Index.
type ClusterStore interface {
	GetCluster(ctx context.Context, clusterID string) (*models.Cluster, error)
	PutCluster(ctx context.Context, cluster *models.Cluster) error
	DeleteCluster(ctx context.Context, clusterID string) error
	Stats(ctx context.Context) (ClusterStats, error)
}

// Store is the full Candidate Index surface plus lifecycle operations
// (Init creates indices; ClearAll empties them; Ping checks connectivity).
type Store interface {
	ArticleStore
	ClusterStore

	Init(ctx context.Context) error
	ClearAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

// ErrNotFound is returned by Get* methods when no document exists. Callers
// distinguish it from other errors to produce ARTICLE_NOT_FOUND /
// CLUSTER_NOT_FOUND rather than INTERNAL_ERROR.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "document not found" }

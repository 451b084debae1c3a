// Package query is the read path (C7): get_article, get_similar,
// get_cluster, recheck. Grounded on original_source/src/services.py's
// ArticleService/ClusterService, translated to explicit (T, *apperr.Error)
// returns instead of Optional/None and FastAPI exceptions.
package query

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zyrak/simdoc/internal/apperr"
	"github.com/zyrak/simdoc/internal/docstore"
	"github.com/zyrak/simdoc/internal/features"
	"github.com/zyrak/simdoc/internal/jobqueue"
	"github.com/zyrak/simdoc/internal/models"
)

// ArticleWithCluster is the acyclic wire shape for get_article: the cluster
// is embedded inline rather than referenced, per spec §9's redesign note.
type ArticleWithCluster struct {
	Article *models.Article
	Cluster *models.Cluster // nil if article.cluster_id is unset
}

// SimilarArticle is one entry of get_similar's article list.
type SimilarArticle struct {
	ArticleID       string
	Title           string
	SimilarityScore float64
}

// ClusterWithArticles is the wire shape for get_cluster.
type ClusterWithArticles struct {
	Cluster  *models.Cluster
	Articles []*models.Article // nil unless include_articles was requested
}

// API is the read-path query service.
type API struct {
	store     docstore.Store
	queue     jobqueue.Queue
	extractor *features.Extractor
}

// New creates a query API.
func New(store docstore.Store, q jobqueue.Queue, extractor *features.Extractor) *API {
	return &API{store: store, queue: q, extractor: extractor}
}

// GetArticle returns an article and, if assigned, its cluster.
func (a *API) GetArticle(ctx context.Context, articleID string) (*ArticleWithCluster, *apperr.Error) {
	article, err := a.store.GetArticle(ctx, articleID)
	if err == docstore.ErrNotFound {
		return nil, apperr.New(apperr.ArticleNotFound, "article not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	result := &ArticleWithCluster{Article: article}
	if article.ClusterID != nil {
		cluster, err := a.store.GetCluster(ctx, *article.ClusterID)
		if err != nil && err != docstore.ErrNotFound {
			return nil, apperr.Internal(err)
		}
		result.Cluster = cluster
	}
	return result, nil
}

// GetSimilar returns every other article in the same cluster. Per spec
// §4.4, a pending article (or one with no cluster_id) yields 404
// CLUSTER_PENDING — including the "unique" case, since a unique article
// also has cluster_id = null (scenario 3, spec §8: tests must accept this).
func (a *API) GetSimilar(ctx context.Context, articleID string) ([]SimilarArticle, *apperr.Error) {
	article, err := a.store.GetArticle(ctx, articleID)
	if err == docstore.ErrNotFound {
		return nil, apperr.New(apperr.ArticleNotFound, "article not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if article.ClusterStatus == models.StatusPending || article.ClusterID == nil {
		return nil, apperr.New(apperr.ClusterPending, "cluster assignment not finalized")
	}

	members, err := a.store.FindByCluster(ctx, *article.ClusterID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	out := make([]SimilarArticle, 0, len(members))
	for _, m := range members {
		if m.ArticleID == articleID {
			continue
		}
		score := 0.0
		if m.SimilarityScore != nil {
			score = *m.SimilarityScore
		}
		out = append(out, SimilarArticle{ArticleID: m.ArticleID, Title: m.Title, SimilarityScore: score})
	}
	return out, nil
}

// GetCluster returns a cluster and, optionally, its member articles sorted
// by publish_time descending.
func (a *API) GetCluster(ctx context.Context, clusterID string, includeArticles bool) (*ClusterWithArticles, *apperr.Error) {
	cluster, err := a.store.GetCluster(ctx, clusterID)
	if err == docstore.ErrNotFound {
		return nil, apperr.New(apperr.ClusterNotFound, "cluster not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	result := &ClusterWithArticles{Cluster: cluster}
	if includeArticles {
		articles, err := a.store.FindByCluster(ctx, clusterID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		result.Articles = articles
	}
	return result, nil
}

// SearchItem is one entry of Search's result page: an article plus the ids
// of its cluster-mates, per spec §6's `GET /clusters/` response shape.
type SearchItem struct {
	ArticleID        string
	SimilarArticleID []string
}

// SearchResult is one page of Search.
type SearchResult struct {
	Items      []SearchItem
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// Search runs the filtered/paginated article search behind `GET /clusters/`
// (named for clusters in spec §6 but, per the original's search_articles,
// it searches articles and reports each one's cluster-mates). Validation of
// params (page_size ≤ 100, sort field, enum ranges) is the HTTP layer's job.
func (a *API) Search(ctx context.Context, params docstore.ArticleSearchParams) (SearchResult, *apperr.Error) {
	res, err := a.store.Search(ctx, params)
	if err != nil {
		return SearchResult{}, apperr.Internal(err)
	}

	items := make([]SearchItem, 0, len(res.Articles))
	for _, article := range res.Articles {
		var mates []string
		if article.ClusterID != nil {
			members, err := a.store.FindByCluster(ctx, *article.ClusterID)
			if err != nil {
				return SearchResult{}, apperr.Internal(err)
			}
			for _, m := range members {
				if m.ArticleID != article.ArticleID {
					mates = append(mates, m.ArticleID)
				}
			}
		}
		items = append(items, SearchItem{ArticleID: article.ArticleID, SimilarArticleID: mates})
	}

	totalPages := (res.Total + params.PageSize - 1) / params.PageSize
	if params.PageSize <= 0 {
		totalPages = 0
	}
	return SearchResult{Items: items, Total: res.Total, Page: params.Page, PageSize: params.PageSize, TotalPages: totalPages}, nil
}

// Recheck resets each existing article to pending, re-extracts features,
// re-queries candidates, and re-enqueues a job. Missing ids are skipped
// silently (spec §4.4). reason is accepted for API compatibility and
// logged but otherwise unused by the core (no audit trail is specified).
func (a *API) Recheck(ctx context.Context, articleIDs []string, reason string) (string, *apperr.Error) {
	batchID := fmt.Sprintf("recheck_%s", time.Now().UTC().Format("20060102_150405"))
	logCtx := log.WithFields(log.Fields{"batch_id": batchID, "reason": reason})

	for _, articleID := range articleIDs {
		article, err := a.store.GetArticle(ctx, articleID)
		if err == docstore.ErrNotFound {
			continue
		}
		if err != nil {
			return "", apperr.Internal(err)
		}

		if _, err := a.store.PatchArticle(ctx, articleID, func(art *models.Article) {
			art.ClusterStatus = models.StatusPending
			art.ClusterID = nil
			art.SimilarityScore = nil
			art.UpdatedAt = time.Now().UTC()
		}); err != nil {
			return "", apperr.Internal(err)
		}

		feat := a.extractor.Extract(article.Title + " " + article.Content)
		if _, err := a.store.PatchArticle(ctx, articleID, func(art *models.Article) {
			art.SimHash = feat.SimHash
			art.MinHashSignature = feat.MinHashSignature
			art.Shingles = feat.Shingles
		}); err != nil {
			return "", apperr.Internal(err)
		}

		candidates, err := a.store.FindByMinHashBands(ctx, feat.MinHashSignature, articleID, 50)
		if err != nil {
			return "", apperr.Internal(err)
		}
		refs := make([]models.CandidateRef, 0, len(candidates))
		for _, c := range candidates {
			refs = append(refs, models.CandidateRef{ArticleID: c.ArticleID, ClusterID: c.ClusterID, Shingles: c.Shingles, SimHash: c.SimHash})
		}

		job := &models.Job{ArticleID: articleID, Shingles: feat.Shingles, Candidates: refs, CreatedAt: time.Now().UTC()}
		if _, err := a.queue.Enqueue(ctx, job); err != nil {
			return "", apperr.Internal(err)
		}
		logCtx.WithField("article_id", articleID).Info("recheck enqueued")
	}

	return batchID, nil
}

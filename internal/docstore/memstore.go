package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/zyrak/simdoc/internal/models"
)

// Memory is an in-process fake Store with the same query semantics as the
// Elasticsearch adapter (term match on simhash/minhash bands/cluster_id,
// range filter on publish_time, full-text AND match on title), used by
// unit tests for C4-C7 without a live Elasticsearch.
type Memory struct {
	mu       sync.RWMutex
	articles map[string]*models.Article
	clusters map[string]*models.Cluster
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		articles: make(map[string]*models.Article),
		clusters: make(map[string]*models.Cluster),
	}
}

func cloneArticle(a *models.Article) *models.Article {
	cp := *a
	cp.Tags = append([]models.Tag(nil), a.Tags...)
	cp.Topic = append([]models.Topic(nil), a.Topic...)
	cp.TagIDs = append([]string(nil), a.TagIDs...)
	cp.TopicIDs = append([]string(nil), a.TopicIDs...)
	cp.MinHashSignature = append([]string(nil), a.MinHashSignature...)
	cp.Shingles = append([]string(nil), a.Shingles...)
	if a.ClusterID != nil {
		id := *a.ClusterID
		cp.ClusterID = &id
	}
	if a.SimilarityScore != nil {
		s := *a.SimilarityScore
		cp.SimilarityScore = &s
	}
	return &cp
}

func cloneCluster(c *models.Cluster) *models.Cluster {
	cp := *c
	cp.ArticleIDs = append([]string(nil), c.ArticleIDs...)
	cp.TopTerms = append([]models.Term(nil), c.TopTerms...)
	return &cp
}

func (m *Memory) GetArticle(_ context.Context, articleID string) (*models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.articles[articleID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneArticle(a), nil
}

func (m *Memory) PutArticle(_ context.Context, article *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles[article.ArticleID] = cloneArticle(article)
	return nil
}

func (m *Memory) PatchArticle(_ context.Context, articleID string, patch func(*models.Article)) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[articleID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneArticle(a)
	patch(cp)
	m.articles[articleID] = cp
	return cloneArticle(cp), nil
}

func (m *Memory) FindBySimHash(_ context.Context, simhash string) (*models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Stable iteration order so tests are deterministic.
	ids := make([]string, 0, len(m.articles))
	for id := range m.articles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := m.articles[id]
		if a.SimHash == simhash {
			return cloneArticle(a), nil
		}
	}
	return nil, nil
}

func (m *Memory) FindByMinHashBands(_ context.Context, bands []string, excludeArticleID string, limit int) ([]*models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Only the first 20 bands participate, matching the ES adapter's
	// bool-should query truncation (spec §9 open question).
	if len(bands) > 20 {
		bands = bands[:20]
	}
	wanted := make(map[string]struct{}, len(bands))
	for _, b := range bands {
		wanted[b] = struct{}{}
	}

	ids := make([]string, 0, len(m.articles))
	for id := range m.articles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*models.Article
	for _, id := range ids {
		if id == excludeArticleID {
			continue
		}
		a := m.articles[id]
		if shareAnyBand(a.MinHashSignature, wanted) {
			out = append(out, cloneArticle(a))
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func shareAnyBand(signature []string, wanted map[string]struct{}) bool {
	for _, b := range signature {
		if _, ok := wanted[b]; ok {
			return true
		}
	}
	return false
}

func (m *Memory) FindByCluster(_ context.Context, clusterID string) ([]*models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Article
	for _, a := range m.articles {
		if a.ClusterID != nil && *a.ClusterID == clusterID {
			out = append(out, cloneArticle(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishTime.After(out[j].PublishTime) })
	return out, nil
}

func (m *Memory) Search(_ context.Context, params ArticleSearchParams) (SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.Article
	for _, a := range m.articles {
		if !matchesSearch(a, params) {
			continue
		}
		matched = append(matched, a)
	}

	sortField := params.SortField
	if sortField == "" {
		sortField = "publish_time"
	}
	asc := params.SortOrder == "asc"
	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch sortField {
		case "created_at":
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		case "updated_at":
			less = matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
		default:
			less = matched[i].PublishTime.Before(matched[j].PublishTime)
		}
		if asc {
			return less
		}
		return !less && matched[i].ArticleID != matched[j].ArticleID
	})

	total := len(matched)
	page, pageSize := params.Page, params.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	items := make([]*models.Article, 0, end-start)
	for _, a := range matched[start:end] {
		items = append(items, cloneArticle(a))
	}
	return SearchResult{Articles: items, Total: total}, nil
}

func matchesSearch(a *models.Article, p ArticleSearchParams) bool {
	if p.State != nil && a.State != *p.State {
		return false
	}
	if p.Top != nil && a.Top != *p.Top {
		return false
	}
	if p.Source != "" && a.Source != p.Source {
		return false
	}
	if p.TagID != "" && !contains(a.TagIDs, p.TagID) {
		return false
	}
	if len(p.TopicIDs) > 0 && !intersects(a.TopicIDs, p.TopicIDs) {
		return false
	}
	if p.StartTime != nil && a.PublishTime.Before(*p.StartTime) {
		return false
	}
	if p.EndTime != nil && a.PublishTime.After(*p.EndTime) {
		return false
	}
	if p.Title != "" {
		want := strings.Fields(strings.ToLower(p.Title))
		haveTitle := strings.ToLower(a.Title)
		for _, w := range want {
			if !strings.Contains(haveTitle, w) {
				return false
			}
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(list, wanted []string) bool {
	for _, w := range wanted {
		if contains(list, w) {
			return true
		}
	}
	return false
}

func (m *Memory) GetCluster(_ context.Context, clusterID string) (*models.Cluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clusters[clusterID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCluster(c), nil
}

func (m *Memory) PutCluster(_ context.Context, cluster *models.Cluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters[cluster.ClusterID] = cloneCluster(cluster)
	return nil
}

func (m *Memory) DeleteCluster(_ context.Context, clusterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clusters, clusterID)
	return nil
}

func (m *Memory) Stats(_ context.Context) (ClusterStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ClusterStats{TotalClusters: len(m.clusters), TotalArticles: len(m.articles)}
	var total int
	for _, c := range m.clusters {
		total += c.Size
		if c.Size > stats.LargestSize {
			stats.LargestSize = c.Size
		}
	}
	if len(m.clusters) > 0 {
		stats.AvgSize = float64(total) / float64(len(m.clusters))
	}
	return stats, nil
}

func (m *Memory) Init(_ context.Context) error { return nil }

func (m *Memory) ClearAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles = make(map[string]*models.Article)
	m.clusters = make(map[string]*models.Cluster)
	return nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }

package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	log "github.com/sirupsen/logrus"

	"github.com/zyrak/simdoc/internal/models"
)

// ESConfig configures the Elasticsearch adapter.
type ESConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	IndexPrefix   string
	ArticlesIndex string
	ClustersIndex string
}

// ES is the Elasticsearch-backed Store, modeled on
// original_source/src/es_client.py: one document per article/cluster id,
// synchronous-refresh writes (refresh=wait_for), and lazy index creation
// when a write hits a missing index.
type ES struct {
	client        *elasticsearch.Client
	articlesIndex string
	clustersIndex string
}

// NewES dials Elasticsearch and returns a Store. Connectivity is not
// verified here; call Ping or Init after construction.
func NewES(cfg ESConfig) (*ES, error) {
	addr := fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	esCfg := elasticsearch.Config{
		Addresses: []string{addr},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	prefix := cfg.IndexPrefix
	if prefix == "" {
		prefix = "sim_doc"
	}
	articles := cfg.ArticlesIndex
	if articles == "" {
		articles = "articles"
	}
	clusters := cfg.ClustersIndex
	if clusters == "" {
		clusters = "clusters"
	}

	return &ES{
		client:        client,
		articlesIndex: prefix + "_" + articles,
		clustersIndex: prefix + "_" + clusters,
	}, nil
}

func (s *ES) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.String())
	}
	return nil
}

// Init creates both indices with the field mappings es_client.py's
// create_indices defines (keyword/text/date), if they don't already exist.
func (s *ES) Init(ctx context.Context) error {
	if err := s.createIndexIfMissing(ctx, s.articlesIndex, articlesMapping); err != nil {
		return err
	}
	return s.createIndexIfMissing(ctx, s.clustersIndex, clustersMapping)
}

const articlesMapping = `{
  "mappings": {
    "properties": {
      "article_id": {"type": "keyword"},
      "title": {"type": "text"},
      "content": {"type": "text"},
      "publish_time": {"type": "date"},
      "source": {"type": "keyword"},
      "state": {"type": "integer"},
      "top": {"type": "integer"},
      "tag_ids": {"type": "keyword"},
      "topic_ids": {"type": "keyword"},
      "simhash": {"type": "keyword"},
      "minhash_signature": {"type": "keyword"},
      "cluster_id": {"type": "keyword"},
      "cluster_status": {"type": "keyword"},
      "similarity_score": {"type": "float"},
      "created_at": {"type": "date"},
      "updated_at": {"type": "date"}
    }
  },
  "settings": {"number_of_shards": 1, "number_of_replicas": 0}
}`

const clustersMapping = `{
  "mappings": {
    "properties": {
      "cluster_id": {"type": "keyword"},
      "article_ids": {"type": "keyword"},
      "size": {"type": "integer"},
      "representative_article_id": {"type": "keyword"},
      "top_terms": {"type": "object", "enabled": false},
      "last_updated": {"type": "date"},
      "created_at": {"type": "date"}
    }
  },
  "settings": {"number_of_shards": 1, "number_of_replicas": 0}
}`

func (s *ES) createIndexIfMissing(ctx context.Context, index, mapping string) error {
	exists, err := s.client.Indices.Exists([]string{index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	defer exists.Body.Close()
	if exists.StatusCode == 200 {
		return nil
	}

	res, err := s.client.Indices.Create(index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("creating index %s: %s", index, res.String())
	}
	return nil
}

// ClearAll deletes both indices (ignoring 404) and recreates them empty,
// mirroring es_client.py's clear_all_documents.
func (s *ES) ClearAll(ctx context.Context) error {
	for _, index := range []string{s.articlesIndex, s.clustersIndex} {
		res, err := s.client.Indices.Delete([]string{index}, s.client.Indices.Delete.WithContext(ctx))
		if err != nil {
			return err
		}
		res.Body.Close()
	}
	return s.Init(ctx)
}

func (s *ES) indexDoc(ctx context.Context, index, id string, body interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling document %s: %w", id, err)
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(raw),
		Refresh:    "wait_for",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		// Lazy index creation, matching es_client.py's NotFoundError fallback.
		mapping := articlesMapping
		if index == s.clustersIndex {
			mapping = clustersMapping
		}
		if err := s.createIndexIfMissing(ctx, index, mapping); err != nil {
			return err
		}
		req2 := esapi.IndexRequest{Index: index, DocumentID: id, Body: bytes.NewReader(raw), Refresh: "wait_for"}
		res2, err := req2.Do(ctx, s.client)
		if err != nil {
			return err
		}
		defer res2.Body.Close()
		if res2.IsError() {
			return fmt.Errorf("indexing document %s: %s", id, res2.String())
		}
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("indexing document %s: %s", id, res.String())
	}
	return nil
}

func (s *ES) getDoc(ctx context.Context, index, id string, out interface{}) (bool, error) {
	res, err := s.client.Get(index, id, s.client.Get.WithContext(ctx))
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return false, nil
	}
	if res.IsError() {
		return false, fmt.Errorf("getting document %s: %s", id, res.String())
	}

	var envelope struct {
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return false, fmt.Errorf("decoding document %s: %w", id, err)
	}
	if err := json.Unmarshal(envelope.Source, out); err != nil {
		return false, fmt.Errorf("unmarshalling document %s: %w", id, err)
	}
	return true, nil
}

func (s *ES) GetArticle(ctx context.Context, articleID string) (*models.Article, error) {
	var a models.Article
	found, err := s.getDoc(ctx, s.articlesIndex, articleID, &a)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *ES) PutArticle(ctx context.Context, article *models.Article) error {
	return s.indexDoc(ctx, s.articlesIndex, article.ArticleID, article)
}

// PatchArticle reads, applies patch, and writes the full document back
// (the ES adapter round-trips the doc rather than using ES's partial
// `update` API, which keeps the read-modify-write path identical for the
// Memory fake and this adapter).
func (s *ES) PatchArticle(ctx context.Context, articleID string, patch func(*models.Article)) (*models.Article, error) {
	a, err := s.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	patch(a)
	if err := s.PutArticle(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *ES) search(ctx context.Context, index string, body map[string]interface{}) (*searchResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(bytes.NewReader(raw)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", index, res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return &parsed, nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *ES) decodeArticles(resp *searchResponse) ([]*models.Article, error) {
	out := make([]*models.Article, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var a models.Article
		if err := json.Unmarshal(hit.Source, &a); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, nil
}

// FindBySimHash issues the term-match query from es_client.py::search_simhash.
func (s *ES) FindBySimHash(ctx context.Context, simhash string) (*models.Article, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{"term": map[string]interface{}{"simhash": simhash}},
		"size":  1,
	}
	resp, err := s.search(ctx, s.articlesIndex, body)
	if err != nil {
		return nil, err
	}
	articles, err := s.decodeArticles(resp)
	if err != nil || len(articles) == 0 {
		return nil, err
	}
	return articles[0], nil
}

// FindByMinHashBands mirrors search_minhash_candidates: a bool-should query
// over the first 20 bands regardless of the configured band count.
func (s *ES) FindByMinHashBands(ctx context.Context, bands []string, excludeArticleID string, limit int) ([]*models.Article, error) {
	if len(bands) > 20 {
		bands = bands[:20]
	}
	should := make([]map[string]interface{}, 0, len(bands))
	for _, b := range bands {
		should = append(should, map[string]interface{}{"term": map[string]interface{}{"minhash_signature": b}})
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               should,
				"minimum_should_match": 1,
			},
		},
		"size": limit,
	}
	resp, err := s.search(ctx, s.articlesIndex, body)
	if err != nil {
		return nil, err
	}
	articles, err := s.decodeArticles(resp)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Article, 0, len(articles))
	for _, a := range articles {
		if a.ArticleID == excludeArticleID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *ES) FindByCluster(ctx context.Context, clusterID string) ([]*models.Article, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{"term": map[string]interface{}{"cluster_id": clusterID}},
		"size":  100,
		"sort":  []map[string]interface{}{{"publish_time": map[string]interface{}{"order": "desc"}}},
	}
	resp, err := s.search(ctx, s.articlesIndex, body)
	if err != nil {
		return nil, err
	}
	return s.decodeArticles(resp)
}

var validSortFields = map[string]bool{"publish_time": true, "created_at": true, "updated_at": true}

func (s *ES) Search(ctx context.Context, p ArticleSearchParams) (SearchResult, error) {
	sortField := p.SortField
	if sortField == "" || !validSortFields[sortField] {
		sortField = "publish_time"
	}
	sortOrder := p.SortOrder
	if sortOrder != "asc" {
		sortOrder = "desc"
	}

	var filter []map[string]interface{}
	if p.State != nil {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"state": *p.State}})
	}
	if p.Top != nil {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"top": *p.Top}})
	}
	if p.Source != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"source": p.Source}})
	}
	if p.TagID != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"tag_ids": p.TagID}})
	}
	if len(p.TopicIDs) > 0 {
		filter = append(filter, map[string]interface{}{"terms": map[string]interface{}{"topic_ids": p.TopicIDs}})
	}
	if p.StartTime != nil || p.EndTime != nil {
		rng := map[string]interface{}{}
		if p.StartTime != nil {
			rng["gte"] = p.StartTime.Format(time.RFC3339)
		}
		if p.EndTime != nil {
			rng["lte"] = p.EndTime.Format(time.RFC3339)
		}
		filter = append(filter, map[string]interface{}{"range": map[string]interface{}{"publish_time": rng}})
	}

	boolQuery := map[string]interface{}{"filter": filter}
	if p.Title != "" {
		boolQuery["must"] = []map[string]interface{}{
			{"match": map[string]interface{}{"title": map[string]interface{}{"query": p.Title, "operator": "and"}}},
		}
	}

	page, pageSize := p.Page, p.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"from":  (page - 1) * pageSize,
		"size":  pageSize,
		"sort":  []map[string]interface{}{{sortField: map[string]interface{}{"order": sortOrder}}},
	}

	resp, err := s.search(ctx, s.articlesIndex, body)
	if err != nil {
		return SearchResult{}, err
	}
	articles, err := s.decodeArticles(resp)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Articles: articles, Total: resp.Hits.Total.Value}, nil
}

func (s *ES) GetCluster(ctx context.Context, clusterID string) (*models.Cluster, error) {
	var c models.Cluster
	found, err := s.getDoc(ctx, s.clustersIndex, clusterID, &c)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *ES) PutCluster(ctx context.Context, cluster *models.Cluster) error {
	return s.indexDoc(ctx, s.clustersIndex, cluster.ClusterID, cluster)
}

func (s *ES) DeleteCluster(ctx context.Context, clusterID string) error {
	res, err := s.client.Delete(s.clustersIndex, clusterID,
		s.client.Delete.WithContext(ctx),
		s.client.Delete.WithRefresh("wait_for"),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("deleting cluster %s: %s", clusterID, res.String())
	}
	return nil
}

// Stats mirrors es_client.py::get_cluster_stats; the size-distribution
// terms aggregation over the clusters index supplies LargestSize and
// AvgSize.
func (s *ES) Stats(ctx context.Context) (ClusterStats, error) {
	articleCount, err := s.count(ctx, s.articlesIndex)
	if err != nil {
		return ClusterStats{}, err
	}
	clusterCount, err := s.count(ctx, s.clustersIndex)
	if err != nil {
		return ClusterStats{}, err
	}

	body := map[string]interface{}{
		"size": 0,
		"aggs": map[string]interface{}{
			"size_distribution": map[string]interface{}{
				"terms": map[string]interface{}{"field": "size", "size": 20},
			},
		},
	}
	raw, _ := json.Marshal(body)
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.clustersIndex),
		s.client.Search.WithBody(bytes.NewReader(raw)),
	)
	if err != nil {
		return ClusterStats{}, err
	}
	defer res.Body.Close()

	var parsed struct {
		Aggregations struct {
			SizeDistribution struct {
				Buckets []struct {
					Key      int `json:"key"`
					DocCount int `json:"doc_count"`
				} `json:"buckets"`
			} `json:"size_distribution"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		log.WithError(err).Warn("decoding cluster size distribution")
	}

	var total, largest int
	for _, b := range parsed.Aggregations.SizeDistribution.Buckets {
		total += b.Key * b.DocCount
		if b.Key > largest {
			largest = b.Key
		}
	}
	avg := 0.0
	if clusterCount > 0 {
		avg = float64(total) / float64(clusterCount)
	}

	return ClusterStats{
		TotalClusters: clusterCount,
		TotalArticles: articleCount,
		LargestSize:   largest,
		AvgSize:       avg,
	}, nil
}

func (s *ES) count(ctx context.Context, index string) (int, error) {
	res, err := s.client.Count(s.client.Count.WithContext(ctx), s.client.Count.WithIndex(index))
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("counting %s: %s", index, res.String())
	}
	var parsed struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	return parsed.Count, nil
}

package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zyrak/simdoc/internal/cluster"
	"github.com/zyrak/simdoc/internal/docstore"
	"github.com/zyrak/simdoc/internal/features"
	"github.com/zyrak/simdoc/internal/jobqueue"
	"github.com/zyrak/simdoc/internal/models"
	"github.com/zyrak/simdoc/internal/query"
	"github.com/zyrak/simdoc/internal/submit"
)

func newTestServer() (http.Handler, docstore.Store, jobqueue.Queue) {
	store := docstore.NewMemory()
	q := jobqueue.NewMemory()
	extractor := features.New(features.Config{})
	registry := cluster.New(store, nil)
	submitter := submit.New(store, q, extractor, registry, nil, 0.5)
	queryAPI := query.New(store, q, extractor)
	srv := New(submitter, queryAPI, store, q, "/api/v1", "*")
	return srv.Router(), store, q
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestSubmitArticleThenGetArticle(t *testing.T) {
	handler, _, _ := newTestServer()

	body := map[string]interface{}{
		"article_id":   "a1",
		"title":        "Fire",
		"content":      "Fire in Tai Po",
		"publish_time": time.Now().UTC().Format(time.RFC3339),
	}
	rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/articles/", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, decoded := doJSON(t, handler, http.MethodGet, "/api/v1/articles/a1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	article, ok := decoded["article"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Fire", article["title"])
}

func TestSubmitArticleRejectsOversizedContent(t *testing.T) {
	handler, _, _ := newTestServer()

	oversized := make([]byte, 200001)
	for i := range oversized {
		oversized[i] = 'x'
	}
	body := map[string]interface{}{"article_id": "a1", "content": string(oversized)}
	rec, decoded := doJSON(t, handler, http.MethodPost, "/api/v1/articles/", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errObj, _ := decoded["error"].(map[string]interface{})
	assert.Equal(t, "INVALID_ARGUMENT", errObj["code"])
}

func TestSubmitArticleRejectsInvalidState(t *testing.T) {
	handler, _, _ := newTestServer()
	body := map[string]interface{}{"article_id": "a1", "state": 5}
	rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/articles/", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetArticleNotFoundReturns404Envelope(t *testing.T) {
	handler, _, _ := newTestServer()
	rec, decoded := doJSON(t, handler, http.MethodGet, "/api/v1/articles/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	errObj, _ := decoded["error"].(map[string]interface{})
	assert.Equal(t, "ARTICLE_NOT_FOUND", errObj["code"])
	assert.NotEmpty(t, decoded["trace_id"])
}

func TestGetSimilarPendingArticleReturns404(t *testing.T) {
	handler, store, _ := newTestServer()
	require.NoError(t, store.PutArticle(nil, &models.Article{ArticleID: "a1", ClusterStatus: models.StatusPending}))

	rec, decoded := doJSON(t, handler, http.MethodGet, "/api/v1/articles/a1/similar", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	errObj, _ := decoded["error"].(map[string]interface{})
	assert.Equal(t, "CLUSTER_PENDING", errObj["code"])
}

func TestRecheckValidatesArticleIDsBounds(t *testing.T) {
	handler, _, _ := newTestServer()

	rec, _ := doJSON(t, handler, http.MethodPost, "/api/v1/articles/recheck", map[string]interface{}{"article_ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ids := make([]string, 101)
	for i := range ids {
		ids[i] = "a"
	}
	rec, _ = doJSON(t, handler, http.MethodPost, "/api/v1/articles/recheck", map[string]interface{}{"article_ids": ids})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecheckAcceptsValidBatch(t *testing.T) {
	handler, store, _ := newTestServer()
	require.NoError(t, store.PutArticle(nil, &models.Article{ArticleID: "a1", Title: "Fire", Content: "Fire in Tai Po"}))

	rec, decoded := doJSON(t, handler, http.MethodPost, "/api/v1/articles/recheck", map[string]interface{}{"article_ids": []string{"a1"}, "reason": "manual"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decoded["accepted"])
	assert.NotEmpty(t, decoded["job_id"])
}

func TestGetClusterRejectsMalformedID(t *testing.T) {
	handler, _, _ := newTestServer()
	rec, decoded := doJSON(t, handler, http.MethodGet, "/api/v1/clusters/not-a-cluster-id", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errObj, _ := decoded["error"].(map[string]interface{})
	assert.Equal(t, "INVALID_ARGUMENT", errObj["code"])
}

func TestGetClusterNotFound(t *testing.T) {
	handler, _, _ := newTestServer()
	rec, decoded := doJSON(t, handler, http.MethodGet, "/api/v1/clusters/cluster_missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	errObj, _ := decoded["error"].(map[string]interface{})
	assert.Equal(t, "CLUSTER_NOT_FOUND", errObj["code"])
}

func TestSearchArticlesRejectsOversizedPageSize(t *testing.T) {
	handler, _, _ := newTestServer()
	rec, _ := doJSON(t, handler, http.MethodGet, "/api/v1/clusters/?page_size=101", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchArticlesReturnsPage(t *testing.T) {
	handler, store, _ := newTestServer()
	require.NoError(t, store.PutArticle(nil, &models.Article{ArticleID: "a1", Title: "integration test"}))

	rec, decoded := doJSON(t, handler, http.MethodGet, "/api/v1/clusters/?title=integration", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decoded["total"])
}

func TestHealthEndpoint(t *testing.T) {
	handler, _, _ := newTestServer()
	rec, decoded := doJSON(t, handler, http.MethodGet, "/system/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pass", decoded["status"])
}

func TestClusterStatsEndpoint(t *testing.T) {
	handler, store, _ := newTestServer()
	require.NoError(t, store.PutCluster(nil, &models.Cluster{ClusterID: "cluster_a1", Size: 2}))

	rec, decoded := doJSON(t, handler, http.MethodGet, "/api/v1/clusters/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decoded["TotalClusters"])
}

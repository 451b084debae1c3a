package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/zyrak/simdoc/internal/apperr"
	"github.com/zyrak/simdoc/internal/docstore"
	"github.com/zyrak/simdoc/internal/models"
)

type tagWire struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type topicWire struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// articleCreateRequest is spec §6's ArticleCreate JSON.
type articleCreateRequest struct {
	ArticleID   string      `json:"article_id"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	PublishTime time.Time   `json:"publish_time"`
	Source      string      `json:"source"`
	State       int         `json:"state"`
	Top         int         `json:"top"`
	Tags        []tagWire   `json:"tags"`
	Topic       []topicWire `json:"topic"`
	TagIDs      []string    `json:"tag_ids"`
	TopicIDs    []string    `json:"topic_ids"`
}

func (s *Server) submitArticle(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	var req articleCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, traceID, "malformed request body")
		return
	}

	if !validArticleID(req.ArticleID) {
		badRequest(w, traceID, "invalid article_id: "+req.ArticleID)
		return
	}
	if utf8.RuneCountInString(req.Content) > maxContentLength {
		badRequest(w, traceID, "article content exceeds maximum length of 200,000 characters")
		return
	}
	if req.State < 0 || req.State > 2 {
		badRequest(w, traceID, "state must be in 0..2")
		return
	}
	if req.Top < 0 || req.Top > 1 {
		badRequest(w, traceID, "top must be 0 or 1")
		return
	}

	tags := make([]models.Tag, 0, len(req.Tags))
	for _, t := range req.Tags {
		tags = append(tags, models.Tag{ID: t.ID, Name: t.Name})
	}
	topics := make([]models.Topic, 0, len(req.Topic))
	for _, t := range req.Topic {
		topics = append(topics, models.Topic{ID: t.ID, Name: t.Name})
	}

	article := &models.Article{
		ArticleID:   req.ArticleID,
		Title:       req.Title,
		Content:     req.Content,
		PublishTime: req.PublishTime,
		Source:      req.Source,
		State:       req.State,
		Top:         req.Top,
		Tags:        tags,
		Topic:       topics,
		TagIDs:      req.TagIDs,
		TopicIDs:    req.TopicIDs,
	}

	if err := s.submitter.Submit(r.Context(), article); err != nil {
		writeError(w, traceID, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{})
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()
	id := chi.URLParam(r, "id")
	if !validArticleID(id) {
		badRequest(w, traceID, "invalid article_id: "+id)
		return
	}

	result, aerr := s.query.GetArticle(r.Context(), id)
	if aerr != nil {
		writeError(w, traceID, aerr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"article": result.Article,
		"cluster": result.Cluster,
	})
}

func (s *Server) getSimilar(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()
	id := chi.URLParam(r, "id")
	if !validArticleID(id) {
		badRequest(w, traceID, "invalid article_id: "+id)
		return
	}

	similar, aerr := s.query.GetSimilar(r.Context(), id)
	if aerr != nil {
		writeError(w, traceID, aerr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"similar_articles": similar})
}

type recheckRequest struct {
	ArticleIDs []string `json:"article_ids"`
	Reason     string   `json:"reason"`
}

func (s *Server) recheckArticles(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()

	var req recheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, traceID, "malformed request body")
		return
	}
	if len(req.ArticleIDs) == 0 || len(req.ArticleIDs) > 100 {
		badRequest(w, traceID, "article_ids must contain between 1 and 100 entries")
		return
	}
	for _, id := range req.ArticleIDs {
		if !validArticleID(id) {
			badRequest(w, traceID, "invalid article_id: "+id)
			return
		}
	}

	batchID, aerr := s.query.Recheck(r.Context(), req.ArticleIDs, req.Reason)
	if aerr != nil {
		writeError(w, traceID, aerr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accepted": len(req.ArticleIDs),
		"job_id":   batchID,
	})
}

func (s *Server) getCluster(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()
	id := chi.URLParam(r, "id")
	if !validClusterID(id) {
		badRequest(w, traceID, "invalid cluster_id: "+id)
		return
	}
	includeArticles := r.URL.Query().Get("include_articles") == "true"

	result, aerr := s.query.GetCluster(r.Context(), id, includeArticles)
	if aerr != nil {
		writeError(w, traceID, aerr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cluster":  result.Cluster,
		"articles": result.Articles,
	})
}

func (s *Server) searchArticles(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()
	q := r.URL.Query()

	page, ok := parseIntParam(q.Get("page"), 1)
	if !ok || page < 1 {
		badRequest(w, traceID, "invalid page")
		return
	}
	pageSize, ok := parseIntParam(q.Get("page_size"), 20)
	if !ok || pageSize < 1 || pageSize > maxPageSize {
		badRequest(w, traceID, "page_size must be between 1 and 100")
		return
	}
	sortField, sortOrder, ok := parseSort(q.Get("sort"))
	if !ok {
		badRequest(w, traceID, "invalid sort spec: "+q.Get("sort"))
		return
	}
	state, ok := parseEnumParam(q.Get("state"), 0, 2)
	if !ok {
		badRequest(w, traceID, "state must be in 0..2")
		return
	}
	top, ok := parseEnumParam(q.Get("top"), 0, 1)
	if !ok {
		badRequest(w, traceID, "top must be 0 or 1")
		return
	}
	startTime, ok := parseTimeParam(q.Get("start_time"))
	if !ok {
		badRequest(w, traceID, "invalid start_time")
		return
	}
	endTime, ok := parseTimeParam(q.Get("end_time"))
	if !ok {
		badRequest(w, traceID, "invalid end_time")
		return
	}

	params := docstore.ArticleSearchParams{
		Page:      page,
		PageSize:  pageSize,
		SortField: sortField,
		SortOrder: sortOrder,
		State:     state,
		Top:       top,
		Title:     q.Get("title"),
		Source:    q.Get("source"),
		StartTime: startTime,
		EndTime:   endTime,
		TagID:     q.Get("tag_id"),
		TopicIDs:  q["topic"],
	}

	result, aerr := s.query.Search(r.Context(), params)
	if aerr != nil {
		writeError(w, traceID, aerr)
		return
	}

	items := make([]map[string]interface{}, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, map[string]interface{}{
			"article_id":         item.ArticleID,
			"similar_article_ids": item.SimilarArticleID,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":       items,
		"total":       result.Total,
		"page":        result.Page,
		"page_size":   result.PageSize,
		"total_pages": result.TotalPages,
	})
}

// clusterStats is the supplemented diagnostic endpoint (SPEC_FULL §12.4).
func (s *Server) clusterStats(w http.ResponseWriter, r *http.Request) {
	traceID := newTraceID()
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, traceID, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	components := map[string]string{}
	overall := "pass"

	if err := s.store.Ping(ctx); err != nil {
		components["elasticsearch"] = "fail"
		overall = "fail"
	} else {
		components["elasticsearch"] = "pass"
	}

	if err := s.queue.Ping(ctx); err != nil {
		components["redis"] = "fail"
		overall = "fail"
	} else {
		components["redis"] = "pass"
	}

	workerStatus := "pass"
	if n, err := s.queue.QueueLength(ctx); err != nil {
		workerStatus = "fail"
		if overall == "pass" {
			overall = "fail"
		}
	} else if n > 1000 {
		workerStatus = "warn"
		if overall == "pass" {
			overall = "warn"
		}
	}
	components["worker"] = workerStatus

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     overall,
		"components": components,
		"timestamp":  time.Now().UTC(),
	})
}

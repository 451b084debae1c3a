// Package ingesttest drives the concrete end-to-end scenarios of spec §8
// against a running simdoc server, and optionally seeds extra real-world
// text via RSS fixtures (mmcdole/gofeed + go-shiori/go-readability) rather
// than canned strings alone. Grounded on original_source/scripts's
// integration-duplicates ancestor and the teacher's cmd/worker-rss feed
// fetching idiom.
package ingesttest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a thin wrapper over a running server's HTTP API.
type Client struct {
	baseURL string
	prefix  string
	http    *http.Client
}

// NewClient creates a Client. baseURL is the server root (e.g.
// http://localhost:8000); prefix is the API_V1_PREFIX (default /api/v1).
func NewClient(baseURL, prefix string, timeout time.Duration) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), prefix: prefix, http: &http.Client{Timeout: timeout}}
}

type apiError struct {
	StatusCode int
	Body       map[string]interface{}
}

func (e *apiError) Error() string {
	return fmt.Sprintf("status %d: %v", e.StatusCode, e.Body)
}

func (c *Client) do(method, path string, body interface{}) (int, map[string]interface{}, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out, nil
}

// ArticleFixture is the minimal shape SubmitArticle needs.
type ArticleFixture struct {
	ArticleID   string
	Title       string
	Content     string
	PublishTime time.Time
	Source      string
}

// SubmitArticle calls POST {prefix}/articles/.
func (c *Client) SubmitArticle(a ArticleFixture) (int, map[string]interface{}, error) {
	body := map[string]interface{}{
		"article_id":   a.ArticleID,
		"title":        a.Title,
		"content":      a.Content,
		"publish_time": a.PublishTime.Format(time.RFC3339),
		"source":       a.Source,
		"state":        0,
		"top":          0,
		"tags":         []interface{}{},
		"topic":        []interface{}{},
	}
	return c.do(http.MethodPost, c.prefix+"/articles/", body)
}

// GetArticle calls GET {prefix}/articles/{id}.
func (c *Client) GetArticle(id string) (int, map[string]interface{}, error) {
	return c.do(http.MethodGet, c.prefix+"/articles/"+url.PathEscape(id), nil)
}

// GetSimilar calls GET {prefix}/articles/{id}/similar.
func (c *Client) GetSimilar(id string) (int, map[string]interface{}, error) {
	return c.do(http.MethodGet, c.prefix+"/articles/"+url.PathEscape(id)+"/similar", nil)
}

// GetCluster calls GET {prefix}/clusters/{id}.
func (c *Client) GetCluster(id string, includeArticles bool) (int, map[string]interface{}, error) {
	path := c.prefix + "/clusters/" + url.PathEscape(id)
	if includeArticles {
		path += "?include_articles=true"
	}
	return c.do(http.MethodGet, path, nil)
}

// Recheck calls POST {prefix}/articles/recheck.
func (c *Client) Recheck(articleIDs []string, reason string) (int, map[string]interface{}, error) {
	return c.do(http.MethodPost, c.prefix+"/articles/recheck", map[string]interface{}{
		"article_ids": articleIDs,
		"reason":      reason,
	})
}

// Search calls GET {prefix}/clusters/ with the given query params.
func (c *Client) Search(params map[string]string) (int, map[string]interface{}, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	path := c.prefix + "/clusters/?" + q.Encode()
	return c.do(http.MethodGet, path, nil)
}

func formatInt(n int) string { return strconv.Itoa(n) }

// Package models holds the wire and storage shapes for articles, clusters,
// and jobs (spec §3). Dynamic JSON documents from the source are replaced
// with tagged structs carrying explicit optional fields, validated on read
// by the docstore adapter.
package models

import "time"

// Cluster status values for Article.ClusterStatus.
const (
	StatusPending = "pending"
	StatusMatched = "matched"
	StatusUnique  = "unique"
)

// Job status values.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Tag is a user-facing category tag.
type Tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Topic is a user-facing topic label.
type Topic struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Article is the persisted document for one ingested piece of text.
type Article struct {
	ArticleID string `json:"article_id"`

	Title       string    `json:"title"`
	Content     string    `json:"content"`
	PublishTime time.Time `json:"publish_time"`
	Source      string    `json:"source"`
	State       int       `json:"state"`
	Top         int       `json:"top"`
	Tags        []Tag     `json:"tags"`
	Topic       []Topic   `json:"topic"`

	TagIDs   []string `json:"tag_ids"`
	TopicIDs []string `json:"topic_ids"`

	SimHash          string   `json:"simhash,omitempty"`
	MinHashSignature []string `json:"minhash_signature,omitempty"`
	Shingles         []string `json:"shingles,omitempty"`

	ClusterID       *string  `json:"cluster_id"`
	ClusterStatus   string   `json:"cluster_status"`
	SimilarityScore *float64 `json:"similarity_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cluster is the persisted document grouping near-duplicate articles.
type Cluster struct {
	ClusterID               string    `json:"cluster_id"`
	ArticleIDs              []string  `json:"article_ids"`
	Size                    int       `json:"size"`
	RepresentativeArticleID string    `json:"representative_article_id"`
	TopTerms                []Term    `json:"top_terms"`
	LastUpdated             time.Time `json:"last_updated"`
	CreatedAt               time.Time `json:"created_at"`
}

// Term is a weighted keyword/phrase, advisory only.
type Term struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// CandidateRef is a lightweight snapshot of a candidate article carried
// inside a Job so the worker can re-score without an extra round trip when
// the candidate is still in the store (fallback re-fetches by ID).
type CandidateRef struct {
	ArticleID string   `json:"article_id"`
	ClusterID *string  `json:"cluster_id,omitempty"`
	Shingles  []string `json:"shingles,omitempty"`
	SimHash   string   `json:"simhash,omitempty"`
}

// Job is a queued re-score request.
type Job struct {
	JobID      string         `json:"job_id"`
	ArticleID  string         `json:"article_id"`
	Shingles   []string       `json:"shingles"`
	Candidates []CandidateRef `json:"candidates"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty"`
	Status     string         `json:"status"`
}

// PendingHint is the short-TTL advisory cluster guess written by the
// Submitter and cleared by the Worker.
type PendingHint struct {
	ClusterID *string   `json:"cluster_id,omitempty"`
	ETAMillis int       `json:"eta_ms"`
	Timestamp time.Time `json:"timestamp"`
}

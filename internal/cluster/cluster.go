// Package cluster is the Cluster Registry (C6): a small facade over the
// Candidate Index for cluster documents, holding the invariants on
// article_ids/size/representative_article_id/last_updated and the merge
// protocol that lets concurrent workers converge without locks (spec §4.5,
// §5). The winner-selection and append shape follow the teacher's
// dedup.SemanticClusterer (primary selection, cluster-id reuse across a
// member set), repurposed from cosine-similarity clustering to the
// deterministic lex-min rule spec §4.5 requires.
package cluster

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/zyrak/simdoc/internal/docstore"
	"github.com/zyrak/simdoc/internal/models"
)

// Labeler produces advisory top-terms for a cluster's founding text. The
// default is frequency-based (Registry.defaultTopTerms); TOPTERMS_MODE=llm
// swaps in internal/llm's Labeler instead. Either way this never feeds back
// into cluster_id/cluster_status assignment.
type Labeler interface {
	Label(ctx context.Context, text string) ([]models.Term, error)
}

// Registry is the Cluster Registry.
type Registry struct {
	store   docstore.ClusterStore
	labeler Labeler // optional
}

// New creates a Registry. labeler may be nil, in which case top_terms are
// always computed with the frequency-based extractor.
func New(store docstore.ClusterStore, labeler Labeler) *Registry {
	return &Registry{store: store, labeler: labeler}
}

// ID returns the deterministic cluster id for a founding article, per
// spec §4.5: "cluster_" + founder's article_id.
func ID(founderArticleID string) string {
	return "cluster_" + founderArticleID
}

// EnsureFounded creates a cluster document with article_ids = [founder] if
// one does not already exist. Used by the fast path when the matched hit
// was itself unclustered (spec §4.2 step 3).
func (r *Registry) EnsureFounded(ctx context.Context, clusterID, founderArticleID, founderTitle, founderContent string) error {
	existing, err := r.store.GetCluster(ctx, clusterID)
	if err != nil && err != docstore.ErrNotFound {
		return err
	}
	if existing != nil {
		return nil
	}
	return r.create(ctx, clusterID, founderArticleID, founderTitle, founderContent)
}

func (r *Registry) create(ctx context.Context, clusterID, founderArticleID, founderTitle, founderContent string) error {
	now := time.Now().UTC()
	terms := r.topTerms(ctx, founderTitle+" "+founderContent)

	c := &models.Cluster{
		ClusterID:               clusterID,
		ArticleIDs:              []string{founderArticleID},
		Size:                    1,
		RepresentativeArticleID: founderArticleID,
		TopTerms:                terms,
		LastUpdated:             now,
		CreatedAt:               now,
	}
	return r.store.PutCluster(ctx, c)
}

// Append adds articleID to cluster clusterID if not already present
// (idempotent), recomputing size and last_updated. If the cluster document
// is missing (Invariant 1 violation — a crashed writer left a dangling
// reference), it is recreated with articleID as founder.
func (r *Registry) Append(ctx context.Context, clusterID, articleID, founderTitle, founderContent string) error {
	c, err := r.store.GetCluster(ctx, clusterID)
	if err == docstore.ErrNotFound {
		log.WithField("cluster_id", clusterID).Warn("missing cluster on append, recovering from referring article")
		return r.create(ctx, clusterID, articleID, founderTitle, founderContent)
	}
	if err != nil {
		return err
	}

	if containsID(c.ArticleIDs, articleID) {
		return nil
	}
	c.ArticleIDs = append(c.ArticleIDs, articleID)
	c.Size = len(c.ArticleIDs)
	c.LastUpdated = time.Now().UTC()
	return r.store.PutCluster(ctx, c)
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// Merge resolves a set of cluster ids down to a single winner: the
// lexicographically smallest id (spec §4.5 — deterministic, independent of
// call order so concurrent workers converge on the same result). Every
// losing cluster's articles are re-pointed at the winner and the losing
// documents are deleted. The winner's representative_article_id is
// preserved. Returns the winner id.
func (r *Registry) Merge(ctx context.Context, articleStore docstore.ArticleStore, clusterIDs map[string]struct{}) (string, error) {
	if len(clusterIDs) == 0 {
		return "", fmt.Errorf("merge requires at least one cluster id")
	}

	ids := make([]string, 0, len(clusterIDs))
	for id := range clusterIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	winner := ids[0]

	if len(ids) == 1 {
		return winner, nil
	}

	winnerDoc, err := r.store.GetCluster(ctx, winner)
	if err == docstore.ErrNotFound {
		return "", fmt.Errorf("merge winner %s vanished mid-merge", winner)
	}
	if err != nil {
		return "", err
	}

	members := make(map[string]struct{}, len(winnerDoc.ArticleIDs))
	for _, id := range winnerDoc.ArticleIDs {
		members[id] = struct{}{}
	}

	for _, loser := range ids[1:] {
		loserDoc, err := r.store.GetCluster(ctx, loser)
		if err == docstore.ErrNotFound {
			continue // already absorbed by a concurrent merge
		}
		if err != nil {
			return "", err
		}

		for _, articleID := range loserDoc.ArticleIDs {
			members[articleID] = struct{}{}
			if _, err := articleStore.PatchArticle(ctx, articleID, func(a *models.Article) {
				winnerCopy := winner
				a.ClusterID = &winnerCopy
				a.UpdatedAt = time.Now().UTC()
			}); err != nil {
				return "", fmt.Errorf("repointing article %s to %s: %w", articleID, winner, err)
			}
		}

		if err := r.store.DeleteCluster(ctx, loser); err != nil {
			return "", fmt.Errorf("deleting absorbed cluster %s: %w", loser, err)
		}
	}

	winnerDoc.ArticleIDs = setToSortedSlice(members)
	winnerDoc.Size = len(winnerDoc.ArticleIDs)
	winnerDoc.LastUpdated = time.Now().UTC()
	if err := r.store.PutCluster(ctx, winnerDoc); err != nil {
		return "", err
	}
	return winner, nil
}

func setToSortedSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) topTerms(ctx context.Context, text string) []models.Term {
	if r.labeler != nil {
		terms, err := r.labeler.Label(ctx, text)
		if err == nil && len(terms) > 0 {
			return terms
		}
		log.WithError(err).Warn("llm top-term labeling failed, falling back to frequency extractor")
	}
	return defaultTopTerms(text, 10)
}

// defaultTopTerms is a direct port of original_source/src/utils.py's
// extract_top_terms: lowercase whitespace tokenization, frequency count
// (skipping single-character tokens), weight = frequency / total.
func defaultTopTerms(text string, maxTerms int) []models.Term {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	words := strings.Fields(strings.ToLower(text))
	freq := make(map[string]int)
	order := make([]string, 0)
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 1 {
			continue
		}
		if _, seen := freq[w]; !seen {
			order = append(order, w)
		}
		freq[w]++
	}

	sort.SliceStable(order, func(i, j int) bool { return freq[order[i]] > freq[order[j]] })
	if len(order) > maxTerms {
		order = order[:maxTerms]
	}

	total := 0
	for _, w := range order {
		total += freq[w]
	}
	if total == 0 {
		total = 1
	}

	terms := make([]models.Term, 0, len(order))
	for _, w := range order {
		terms = append(terms, models.Term{Term: w, Weight: round3(float64(freq[w]) / float64(total))})
	}
	return terms
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}

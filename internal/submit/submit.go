// Package submit is the Submitter (C4): synchronous admission. On
// submit_article it extracts features, short-circuits exact duplicates onto
// an existing cluster, and otherwise persists the article pending and
// enqueues a re-score job (spec §4.2). Validation of the inbound payload is
// the HTTP layer's job (spec §1 Non-goals); Submit assumes article is
// already well-formed.
package submit

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zyrak/simdoc/internal/cluster"
	"github.com/zyrak/simdoc/internal/docstore"
	"github.com/zyrak/simdoc/internal/features"
	"github.com/zyrak/simdoc/internal/jobqueue"
	"github.com/zyrak/simdoc/internal/models"
	"github.com/zyrak/simdoc/internal/queue"
)

// Submitter performs synchronous admission.
type Submitter struct {
	store      docstore.Store
	queue      jobqueue.Queue
	extractor  *features.Extractor
	registry   *cluster.Registry
	notifier   *queue.Notifier // optional, nil-safe
	threshold  float64
	etaPerItem int // ms, for the pending-hint eta estimate
}

// New creates a Submitter. notifier may be nil (no cluster events emitted).
func New(store docstore.Store, q jobqueue.Queue, extractor *features.Extractor, registry *cluster.Registry, notifier *queue.Notifier, similarityThreshold float64) *Submitter {
	return &Submitter{
		store:      store,
		queue:      q,
		extractor:  extractor,
		registry:   registry,
		notifier:   notifier,
		threshold:  similarityThreshold,
		etaPerItem: 100,
	}
}

// Submit performs submit_article. Idempotent upsert keyed on article.ArticleID.
func (s *Submitter) Submit(ctx context.Context, article *models.Article) error {
	existing, err := s.store.GetArticle(ctx, article.ArticleID)
	if err != nil && err != docstore.ErrNotFound {
		return fmt.Errorf("looking up article %s: %w", article.ArticleID, err)
	}

	if existing != nil {
		_, err := s.store.PatchArticle(ctx, article.ArticleID, func(a *models.Article) {
			a.Title = article.Title
			a.Content = article.Content
			a.PublishTime = article.PublishTime
			a.Source = article.Source
			a.State = article.State
			a.Top = article.Top
			a.Tags = article.Tags
			a.Topic = article.Topic
			a.TagIDs = article.TagIDs
			a.TopicIDs = article.TopicIDs
			a.UpdatedAt = time.Now().UTC()
		})
		return err
	}

	fullText := article.Title + " " + article.Content
	feat := s.extractor.Extract(fullText)

	if hit, err := s.store.FindBySimHash(ctx, feat.SimHash); err != nil {
		return fmt.Errorf("simhash lookup: %w", err)
	} else if hit != nil {
		return s.fastPath(ctx, article, feat, hit)
	}

	return s.slowPath(ctx, article, feat)
}

// fastPath assigns article to hit's cluster (creating one if hit was itself
// unclustered), per spec §4.2 step 3.
func (s *Submitter) fastPath(ctx context.Context, article *models.Article, feat features.Features, hit *models.Article) error {
	clusterID := hit.ClusterID
	if clusterID == nil {
		id := cluster.ID(hit.ArticleID)
		clusterID = &id

		if _, err := s.store.PatchArticle(ctx, hit.ArticleID, func(a *models.Article) {
			a.ClusterID = clusterID
			a.ClusterStatus = models.StatusMatched
			score := 1.0
			a.SimilarityScore = &score
			a.UpdatedAt = time.Now().UTC()
		}); err != nil {
			return fmt.Errorf("patching fast-path founder %s: %w", hit.ArticleID, err)
		}
		if err := s.registry.EnsureFounded(ctx, *clusterID, hit.ArticleID, hit.Title, hit.Content); err != nil {
			return fmt.Errorf("founding cluster for %s: %w", hit.ArticleID, err)
		}
	}

	now := time.Now().UTC()
	score := 1.0
	article.SimHash = feat.SimHash
	article.MinHashSignature = feat.MinHashSignature
	article.Shingles = feat.Shingles
	article.ClusterID = clusterID
	article.ClusterStatus = models.StatusMatched
	article.SimilarityScore = &score
	article.CreatedAt = now
	article.UpdatedAt = now

	if err := s.store.PutArticle(ctx, article); err != nil {
		return fmt.Errorf("indexing fast-path article %s: %w", article.ArticleID, err)
	}
	if err := s.registry.Append(ctx, *clusterID, article.ArticleID, article.Title, article.Content); err != nil {
		return fmt.Errorf("appending %s to %s: %w", article.ArticleID, *clusterID, err)
	}

	s.notify(queue.Event{Type: queue.SubjectClusterAssigned, ArticleID: article.ArticleID, ClusterID: *clusterID})
	log.WithFields(log.Fields{"article_id": article.ArticleID, "cluster_id": *clusterID}).Info("fast-path exact duplicate matched")
	return nil
}

// slowPath indexes the article pending, computes an advisory cluster hint,
// and enqueues the re-score job. No job is enqueued by the fast path.
func (s *Submitter) slowPath(ctx context.Context, article *models.Article, feat features.Features) error {
	candidates, err := s.store.FindByMinHashBands(ctx, feat.MinHashSignature, article.ArticleID, 50)
	if err != nil {
		return fmt.Errorf("minhash candidate search: %w", err)
	}

	now := time.Now().UTC()
	article.SimHash = feat.SimHash
	article.MinHashSignature = feat.MinHashSignature
	article.Shingles = feat.Shingles
	article.ClusterID = nil
	article.ClusterStatus = models.StatusPending
	article.SimilarityScore = nil
	article.CreatedAt = now
	article.UpdatedAt = now

	if err := s.store.PutArticle(ctx, article); err != nil {
		return fmt.Errorf("indexing pending article %s: %w", article.ArticleID, err)
	}

	candidateRefs := make([]models.CandidateRef, 0, len(candidates))
	for _, c := range candidates {
		candidateRefs = append(candidateRefs, models.CandidateRef{
			ArticleID: c.ArticleID,
			ClusterID: c.ClusterID,
			Shingles:  c.Shingles,
			SimHash:   c.SimHash,
		})
	}

	advisory := bestAdvisoryCluster(feat.Shingles, candidateRefs, s.threshold)

	etaMillis := len(candidateRefs)*s.etaPerItem + 50
	if err := s.queue.SetPendingHint(ctx, article.ArticleID, advisory, etaMillis); err != nil {
		return fmt.Errorf("setting pending hint for %s: %w", article.ArticleID, err)
	}

	job := &models.Job{
		ArticleID:  article.ArticleID,
		Shingles:   feat.Shingles,
		Candidates: candidateRefs,
		CreatedAt:  now,
	}
	jobID, err := s.queue.Enqueue(ctx, job)
	if err != nil {
		return fmt.Errorf("enqueueing re-score job for %s: %w", article.ArticleID, err)
	}

	log.WithFields(log.Fields{"article_id": article.ArticleID, "job_id": jobID, "candidates": len(candidateRefs)}).Info("submitted for async re-score")
	return nil
}

// bestAdvisoryCluster picks the highest-average-Jaccard cluster among
// candidates meeting threshold, for the pending-cluster hint only — never
// authoritative cluster assignment (that's the Worker's job). Grounded on
// original_source/src/similarity.py::find_best_cluster.
func bestAdvisoryCluster(shingles []string, candidates []models.CandidateRef, threshold float64) *string {
	scores := make(map[string][]float64)
	for _, c := range candidates {
		if c.ClusterID == nil || len(c.Shingles) == 0 {
			continue
		}
		score := features.Jaccard(shingles, c.Shingles)
		if score >= threshold {
			scores[*c.ClusterID] = append(scores[*c.ClusterID], score)
		}
	}

	var best string
	var bestAvg float64
	for clusterID, ss := range scores {
		sum := 0.0
		for _, v := range ss {
			sum += v
		}
		avg := sum / float64(len(ss))
		if avg > bestAvg {
			bestAvg = avg
			best = clusterID
		}
	}
	if best == "" {
		return nil
	}
	return &best
}

func (s *Submitter) notify(ev queue.Event) {
	if s.notifier == nil {
		return
	}
	ev.Timestamp = time.Now().UTC()
	if err := s.notifier.Publish(ev.Type, ev); err != nil {
		log.WithError(err).Warn("publishing cluster event")
	}
}

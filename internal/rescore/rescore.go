// Package rescore is the Re-score Worker (C5): dequeues jobs, recomputes
// Jaccard against candidates, decides cluster assignment including
// multi-cluster merge, and writes back (spec §4.3). Modeled on the
// teacher's owned-struct-with-Stop() worker shape (spec §9 redesign note)
// rather than original_source/src/worker.py's module-level `running` flag.
package rescore

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zyrak/simdoc/internal/cluster"
	"github.com/zyrak/simdoc/internal/docstore"
	"github.com/zyrak/simdoc/internal/features"
	"github.com/zyrak/simdoc/internal/jobqueue"
	"github.com/zyrak/simdoc/internal/models"
	"github.com/zyrak/simdoc/internal/queue"
)

// Worker is one re-score worker goroutine. Multiple Workers may run
// concurrently against the same store/queue (spec §5) — correctness relies
// on deterministic merge-winner selection and idempotent append, not on
// in-process coordination.
type Worker struct {
	store     docstore.Store
	queue     jobqueue.Queue
	registry  *cluster.Registry
	notifier  *queue.Notifier
	threshold float64

	stopped atomic.Bool
	id      string
}

// New creates a Worker. id is used only for logging (distinguishing
// concurrent workers in structured log output).
func New(store docstore.Store, q jobqueue.Queue, registry *cluster.Registry, notifier *queue.Notifier, similarityThreshold float64, id string) *Worker {
	return &Worker{store: store, queue: q, registry: registry, notifier: notifier, threshold: similarityThreshold, id: id}
}

// Stop requests the run loop to exit after the current job, per spec §5's
// "SIGINT cleanly sets running = false" contract.
func (w *Worker) Stop() { w.stopped.Store(true) }

// Run loops: blocking dequeue with the given timeout, process one job at a
// time, until Stop is called, ctx is cancelled, or maxJobs is reached (0 =
// unbounded). Every 10 completed jobs it runs the queue's TTL sweep.
func (w *Worker) Run(ctx context.Context, dequeueTimeout time.Duration, maxJobs int) {
	processed := 0
	log.WithField("worker_id", w.id).Info("re-score worker starting")

	for !w.stopped.Load() {
		if ctx.Err() != nil {
			break
		}
		if maxJobs > 0 && processed >= maxJobs {
			break
		}

		jobID, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.WithError(err).Error("dequeue failed")
			continue
		}
		if jobID == "" {
			continue // timed out with no job, normal loop iteration
		}

		if err := w.ProcessJob(ctx, jobID); err != nil {
			log.WithFields(log.Fields{"worker_id": w.id, "job_id": jobID}).WithError(err).Warn("job processing failed")
		} else {
			processed++
		}

		if processed > 0 && processed%10 == 0 {
			if dropped, err := w.queue.SweepExpiredJobs(ctx); err != nil {
				log.WithError(err).Warn("ttl sweep failed")
			} else if dropped > 0 {
				log.WithField("dropped", dropped).Info("ttl sweep dropped stale job entries")
			}
		}
	}

	log.WithFields(log.Fields{"worker_id": w.id, "processed": processed}).Info("re-score worker stopped")
}

type similar struct {
	articleID string
	score     float64
	clusterID *string
}

// ProcessJob runs one job to completion, per spec §4.3 steps 1-7.
func (w *Worker) ProcessJob(ctx context.Context, jobID string) error {
	if err := w.queue.UpdateJobStatus(ctx, jobID, models.JobProcessing); err != nil {
		log.WithError(err).Warn("marking job processing")
	}

	job, err := w.queue.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", jobID, err)
	}
	if job == nil {
		log.WithField("job_id", jobID).Warn("job not found, skipping")
		return nil
	}
	logCtx := log.WithFields(log.Fields{"job_id": jobID, "article_id": job.ArticleID})

	article, err := w.store.GetArticle(ctx, job.ArticleID)
	if err == docstore.ErrNotFound {
		logCtx.Warn("article not found, marking job failed")
		return w.queue.UpdateJobStatus(ctx, jobID, models.JobFailed)
	}
	if err != nil {
		_ = w.queue.UpdateJobStatus(ctx, jobID, models.JobFailed)
		return fmt.Errorf("loading article %s: %w", job.ArticleID, err)
	}

	similars, clusterIDsHit := w.scoreCandidates(ctx, job)

	final := w.decideFinal(job.ArticleID, similars, clusterIDsHit)

	// Reconcile with external changes (spec §4.3 step 5): another
	// Submitter's fast path may have matched this article while we worked.
	reloaded, err := w.store.GetArticle(ctx, job.ArticleID)
	if err != nil {
		_ = w.queue.UpdateJobStatus(ctx, jobID, models.JobFailed)
		return fmt.Errorf("reloading article %s: %w", job.ArticleID, err)
	}
	mergeSet := map[string]struct{}{}
	for id := range clusterIDsHit {
		mergeSet[id] = struct{}{}
	}
	if reloaded.ClusterStatus == models.StatusMatched && reloaded.ClusterID != nil {
		external := *reloaded.ClusterID
		if final == nil {
			final = &external
		} else if *final != external {
			mergeSet[external] = struct{}{}
		}
	}
	if final != nil && len(mergeSet) > 1 {
		// Merge keeps the lex-min id of mergeSet; the article must point
		// at that same winner, which the external id may have changed.
		ids := make([]string, 0, len(mergeSet))
		for id := range mergeSet {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		final = &ids[0]
	}

	var maxScore float64
	for _, s := range similars {
		if s.score > maxScore {
			maxScore = s.score
		}
	}

	if final != nil {
		if err := w.writeBack(ctx, article, *final, similars, mergeSet); err != nil {
			_ = w.queue.UpdateJobStatus(ctx, jobID, models.JobFailed)
			return fmt.Errorf("writing back cluster assignment: %w", err)
		}
	}

	status := models.StatusUnique
	var score *float64
	if final != nil {
		status = models.StatusMatched
		score = &maxScore
	}
	if _, err := w.store.PatchArticle(ctx, job.ArticleID, func(a *models.Article) {
		a.ClusterStatus = status
		a.ClusterID = final
		a.SimilarityScore = score
		a.UpdatedAt = time.Now().UTC()
	}); err != nil {
		_ = w.queue.UpdateJobStatus(ctx, jobID, models.JobFailed)
		return fmt.Errorf("patching article %s terminal state: %w", job.ArticleID, err)
	}

	if err := w.queue.ClearPendingHint(ctx, job.ArticleID); err != nil {
		logCtx.WithError(err).Warn("clearing pending hint")
	}
	if err := w.queue.UpdateJobStatus(ctx, jobID, models.JobCompleted); err != nil {
		logCtx.WithError(err).Warn("marking job completed")
	}

	w.notifyFinal(job.ArticleID, final)
	logCtx.WithField("final_cluster_id", derefOr(final, "")).Info("re-score complete")
	return nil
}

// scoreCandidates computes Jaccard between job.Shingles and every
// candidate's shingles (falling back to a re-fetch when the job snapshot
// lacks them), keeping those meeting threshold.
func (w *Worker) scoreCandidates(ctx context.Context, job *models.Job) ([]similar, map[string]struct{}) {
	var out []similar
	clusterIDsHit := map[string]struct{}{}

	for _, c := range job.Candidates {
		shingles := c.Shingles
		clusterID := c.ClusterID

		if len(shingles) == 0 {
			candidate, err := w.store.GetArticle(ctx, c.ArticleID)
			if err != nil || candidate == nil {
				continue
			}
			shingles = candidate.Shingles
			clusterID = candidate.ClusterID
		}
		if len(shingles) == 0 {
			continue
		}

		score := features.Jaccard(job.Shingles, shingles)
		if score < w.threshold {
			continue
		}

		out = append(out, similar{articleID: c.ArticleID, score: score, clusterID: clusterID})
		if clusterID != nil {
			clusterIDsHit[*clusterID] = struct{}{}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out, clusterIDsHit
}

// decideFinal implements spec §4.3 step 4.
func (w *Worker) decideFinal(articleID string, similars []similar, clusterIDsHit map[string]struct{}) *string {
	if len(similars) == 0 {
		return nil
	}
	if len(clusterIDsHit) == 0 {
		id := cluster.ID(articleID)
		return &id
	}
	// Merge is resolved during write-back, where the article store is
	// available; here we only need the deterministic winner for the
	// article's own cluster_id, which Merge also computes as ids[0].
	ids := make([]string, 0, len(clusterIDsHit))
	for id := range clusterIDsHit {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &ids[0]
}

// writeBack applies spec §4.3 step 6: append the job article and every
// similar peer to the final cluster, patch peers whose cluster_id differs,
// and resolve any multi-cluster merge.
func (w *Worker) writeBack(ctx context.Context, article *models.Article, final string, similars []similar, mergeSet map[string]struct{}) error {
	if len(mergeSet) > 1 {
		winner, err := w.registry.Merge(ctx, w.store, mergeSet)
		if err != nil {
			return fmt.Errorf("merging clusters: %w", err)
		}
		final = winner
		w.notifyMerge(article.ArticleID, winner, mergeSet)
	} else {
		if err := w.registry.EnsureFounded(ctx, final, article.ArticleID, article.Title, article.Content); err != nil {
			return err
		}
	}

	if err := w.registry.Append(ctx, final, article.ArticleID, article.Title, article.Content); err != nil {
		return fmt.Errorf("appending %s to %s: %w", article.ArticleID, final, err)
	}

	for _, s := range similars {
		if s.articleID == article.ArticleID {
			continue
		}
		if s.clusterID != nil && *s.clusterID == final {
			continue
		}

		score := s.score
		if _, err := w.store.PatchArticle(ctx, s.articleID, func(a *models.Article) {
			a.ClusterStatus = models.StatusMatched
			id := final
			a.ClusterID = &id
			a.SimilarityScore = &score
			a.UpdatedAt = time.Now().UTC()
		}); err != nil {
			return fmt.Errorf("patching peer %s: %w", s.articleID, err)
		}
		if err := w.registry.Append(ctx, final, s.articleID, "", ""); err != nil {
			return fmt.Errorf("appending peer %s to %s: %w", s.articleID, final, err)
		}
	}

	return nil
}

func (w *Worker) notifyFinal(articleID string, final *string) {
	if w.notifier == nil {
		return
	}
	ev := queue.Event{ArticleID: articleID, Timestamp: time.Now().UTC()}
	if final == nil {
		ev.Type = queue.SubjectArticleUnique
	} else {
		ev.Type = queue.SubjectClusterAssigned
		ev.ClusterID = *final
	}
	if err := w.notifier.Publish(ev.Type, ev); err != nil {
		log.WithError(err).Warn("publishing cluster event")
	}
}

func (w *Worker) notifyMerge(articleID, winner string, mergeSet map[string]struct{}) {
	if w.notifier == nil {
		return
	}
	losers := make([]string, 0, len(mergeSet)-1)
	for id := range mergeSet {
		if id != winner {
			losers = append(losers, id)
		}
	}
	ev := queue.Event{Type: queue.SubjectClusterMerged, ArticleID: articleID, ClusterID: winner, MergedFrom: losers, Timestamp: time.Now().UTC()}
	if err := w.notifier.Publish(ev.Type, ev); err != nil {
		log.WithError(err).Warn("publishing merge event")
	}
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

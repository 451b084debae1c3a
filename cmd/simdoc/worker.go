package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zyrak/simdoc/internal/config"
	"github.com/zyrak/simdoc/internal/jobqueue"
	"github.com/zyrak/simdoc/internal/rescore"
)

func newWorkerCmd() *cobra.Command {
	var count int
	var timeoutSeconds int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run one or more re-score worker goroutines",
		Run: func(cmd *cobra.Command, args []string) {
			runWorker(count, time.Duration(timeoutSeconds)*time.Second)
		},
	}

	cmd.Flags().IntVar(&count, "count", 1, "number of concurrent worker goroutines")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 5, "blocking dequeue timeout, in seconds")

	return cmd
}

func runWorker(count int, dequeueTimeout time.Duration) {
	cfg := config.Load()
	setupLogging(cfg.Debug)
	log.WithField("count", count).Info("starting simdoc re-score workers")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to build document store")
	}

	rdb := buildRedis(cfg)
	defer rdb.Close()
	q := buildQueue(cfg, rdb)

	notifier := buildNotifier(cfg)
	registry := buildClusterRegistry(ctx, cfg, store)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 5m", func() { sweepStaleJobs(ctx, q) }); err != nil {
		log.WithError(err).Warn("failed to schedule backup TTL sweep")
	} else {
		sweeper.Start()
		defer sweeper.Stop()
	}

	var wg sync.WaitGroup
	workers := make([]*rescore.Worker, 0, count)
	for i := 0; i < count; i++ {
		w := rescore.New(store, q, registry, notifier, cfg.SimilarityThreshold, workerID(i))
		workers = append(workers, w)
		wg.Add(1)
		go func(w *rescore.Worker) {
			defer wg.Done()
			w.Run(ctx, dequeueTimeout, 0)
		}(w)
	}

	<-ctx.Done()
	log.Info("stopping re-score workers...")
	for _, w := range workers {
		w.Stop()
	}
	wg.Wait()
	log.Info("all re-score workers stopped")
}

// sweepStaleJobs is the backup TTL sweep (SPEC_FULL §11): a cron-scheduled
// safety net alongside the Worker's own every-10-jobs counter sweep, for
// deployments where a single worker processes fewer than 10 jobs in a long
// while.
func sweepStaleJobs(ctx context.Context, q jobqueue.Queue) {
	dropped, err := q.SweepExpiredJobs(ctx)
	if err != nil {
		log.WithError(err).Warn("backup ttl sweep failed")
		return
	}
	if dropped > 0 {
		log.WithField("dropped", dropped).Info("backup ttl sweep dropped stale job entries")
	}
}

func workerID(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return "worker-" + string(letters[i])
	}
	return "worker-extra"
}

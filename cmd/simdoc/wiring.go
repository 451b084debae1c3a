package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/zyrak/simdoc/internal/cluster"
	"github.com/zyrak/simdoc/internal/config"
	"github.com/zyrak/simdoc/internal/docstore"
	"github.com/zyrak/simdoc/internal/features"
	"github.com/zyrak/simdoc/internal/jobqueue"
	"github.com/zyrak/simdoc/internal/llm"
	"github.com/zyrak/simdoc/internal/queue"
)

func setupLogging(debug bool) {
	log.SetFormatter(&log.JSONFormatter{})
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func buildStore(cfg *config.Config) (docstore.Store, error) {
	es, err := docstore.NewES(docstore.ESConfig{
		Host:          cfg.ESHost,
		Port:          cfg.ESPort,
		Username:      cfg.ESUsername,
		Password:      cfg.ESPassword,
		IndexPrefix:   cfg.ESIndexPrefix,
		ArticlesIndex: cfg.ESArticlesIndex,
		ClustersIndex: cfg.ESClustersIndex,
	})
	if err != nil {
		return nil, fmt.Errorf("building elasticsearch client: %w", err)
	}
	return es, nil
}

func buildRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func buildQueue(cfg *config.Config, rdb *redis.Client) jobqueue.Queue {
	return jobqueue.New(rdb, cfg.RedisQueueName)
}

func buildFeatureExtractor(cfg *config.Config) *features.Extractor {
	return features.New(features.Config{
		SimHashBitSize:      cfg.SimHashBitSize,
		MinHashPermutations: cfg.MinHashPermutations,
		MinHashBands:        cfg.MinHashBands,
		MinHashRowsPerBand:  cfg.MinHashRowsPerBand,
		ShingleSize:         cfg.ShingleSize,
	})
}

func buildNotifier(cfg *config.Config) *queue.Notifier {
	notifier, err := queue.New(cfg.NatsURL)
	if err != nil {
		log.WithError(err).Warn("cluster-event notifier disabled")
		notifier, _ = queue.New("")
	}
	return notifier
}

func buildClusterRegistry(ctx context.Context, cfg *config.Config, store docstore.Store) *cluster.Registry {
	var labeler cluster.Labeler
	if cfg.TopTermsMode == "llm" {
		inner, err := llm.NewLabeler(cfg.LLMProvider, cfg.LLMEndpoint, cfg.LLMModel, cfg.LLMAPIKey)
		if err != nil {
			log.WithError(err).Warn("llm top-term labeler unavailable, falling back to frequency extractor")
		} else {
			labeler = cluster.NewLLMLabeler(inner, 10)
		}
	}
	return cluster.New(store, labeler)
}

// Package config loads simdoc's configuration from environment variables,
// following the teacher's getEnv/getEnvInt/getEnvFloat helper idiom.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds every tunable named in spec.md §6.
type Config struct {
	AppName    string
	AppVersion string
	Debug      bool
	Host       string
	Port       int

	ESHost          string
	ESPort          int
	ESUsername      string
	ESPassword      string
	ESIndexPrefix   string
	ESArticlesIndex string
	ESClustersIndex string

	RedisHost      string
	RedisPort      int
	RedisDB        int
	RedisPassword  string
	RedisQueueName string

	SimHashBitSize      int
	MinHashPermutations int
	MinHashBands        int
	MinHashRowsPerBand  int
	ShingleSize         int
	SimilarityThreshold float64

	APIV1Prefix string
	CORSOrigins string

	// NATS_URL optional; empty disables the cluster-event notifier (§11).
	NatsURL string

	// Optional LLM-assisted cluster top-term labeling (§11). Default mode
	// is "frequency" (internal/cluster's built-in extractor).
	TopTermsMode string
	LLMProvider  string
	LLMEndpoint  string
	LLMModel     string
	LLMAPIKey    string
}

// Load reads configuration from environment variables, applying spec.md
// §6's documented defaults.
func Load() *Config {
	return &Config{
		AppName:    getEnv("APP_NAME", "simdoc"),
		AppVersion: getEnv("APP_VERSION", "0.1.0"),
		Debug:      getEnvBool("DEBUG", false),
		Host:       getEnv("HOST", "0.0.0.0"),
		Port:       getEnvInt("PORT", 8000),

		ESHost:          getEnv("ES_HOST", "localhost"),
		ESPort:          getEnvInt("ES_PORT", 9200),
		ESUsername:      getEnv("ES_USERNAME", ""),
		ESPassword:      getEnv("ES_PASSWORD", ""),
		ESIndexPrefix:   getEnv("ES_INDEX_PREFIX", "sim_doc"),
		ESArticlesIndex: getEnv("ES_ARTICLES_INDEX", "articles"),
		ESClustersIndex: getEnv("ES_CLUSTERS_INDEX", "clusters"),

		RedisHost:      getEnv("REDIS_HOST", "localhost"),
		RedisPort:      getEnvInt("REDIS_PORT", 6379),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisQueueName: getEnv("REDIS_QUEUE_NAME", "similarity_jobs"),

		SimHashBitSize:      getEnvInt("SIMHASH_BIT_SIZE", 64),
		MinHashPermutations: getEnvInt("MINHASH_PERMUTATIONS", 128),
		MinHashBands:        getEnvInt("MINHASH_BANDS", 20),
		MinHashRowsPerBand:  getEnvInt("MINHASH_ROWS_PER_BAND", 6),
		ShingleSize:         getEnvInt("SHINGLE_SIZE", 5),
		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.8),

		APIV1Prefix: getEnv("API_V1_PREFIX", "/api/v1"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		NatsURL: getEnv("NATS_URL", ""),

		TopTermsMode: strings.ToLower(getEnv("TOPTERMS_MODE", "frequency")),
		LLMProvider:  getEnv("LLM_PROVIDER", "glm"),
		LLMEndpoint:  getEnv("LLM_ENDPOINT", ""),
		LLMModel:     getEnv("LLM_MODEL", ""),
		LLMAPIKey:    getEnv("LLM_API_KEY", ""),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

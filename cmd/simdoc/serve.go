package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zyrak/simdoc/internal/config"
	"github.com/zyrak/simdoc/internal/httpapi"
	"github.com/zyrak/simdoc/internal/query"
	"github.com/zyrak/simdoc/internal/submit"
)

func newServeCmd() *cobra.Command {
	var host string
	var port int
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			if host != "" {
				cfg.Host = host
			}
			if port != 0 {
				cfg.Port = port
			}
			if debug {
				cfg.Debug = true
			}
			runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "override HOST")
	cmd.Flags().IntVar(&port, "port", 0, "override PORT")
	cmd.Flags().BoolVar(&debug, "reload", false, "enable verbose request logging (no hot-reload in Go)")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug-level logging")

	return cmd
}

func runServe(cfg *config.Config) {
	setupLogging(cfg.Debug)
	log.Info("starting simdoc API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to build document store")
	}
	if err := store.Init(ctx); err != nil {
		log.WithError(err).Warn("index initialization check failed, continuing")
	}

	rdb := buildRedis(cfg)
	defer rdb.Close()
	q := buildQueue(cfg, rdb)

	extractor := buildFeatureExtractor(cfg)
	notifier := buildNotifier(cfg)
	registry := buildClusterRegistry(ctx, cfg, store)

	submitter := submit.New(store, q, extractor, registry, notifier, cfg.SimilarityThreshold)
	queryAPI := query.New(store, q, extractor)

	server := httpapi.New(submitter, queryAPI, store, q, cfg.APIV1Prefix, cfg.CORSOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: server.Router()}

	go func() {
		log.WithField("addr", addr).Info("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}
	os.Exit(0)
}

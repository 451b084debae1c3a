package main

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zyrak/simdoc/internal/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the articles and clusters indices if they do not exist",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			setupLogging(cfg.Debug)

			store, err := buildStore(cfg)
			if err != nil {
				log.WithError(err).Fatal("failed to build document store")
			}
			if err := store.Init(context.Background()); err != nil {
				log.WithError(err).Fatal("failed to initialize indices")
			}
			log.Info("indices initialized")
		},
	}
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zyrak/simdoc/internal/config"
)

// newClearAllCmd implements the supplemented administrative reset
// (SPEC_FULL §12.1): drops every queued job, job record, and pending hint,
// then empties and recreates both indices.
func newClearAllCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear-all",
		Short: "Delete all articles, clusters, and queued jobs",
		Run: func(cmd *cobra.Command, args []string) {
			if !force && !confirm() {
				fmt.Println("aborted")
				return
			}
			runClearAll()
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "skip the interactive confirmation prompt")
	return cmd
}

func confirm() bool {
	fmt.Print("this deletes all articles, clusters, and queued jobs. continue? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.ToLower(strings.TrimSpace(line)) == "y"
}

func runClearAll() {
	cfg := config.Load()
	setupLogging(cfg.Debug)
	ctx := context.Background()

	store, err := buildStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to build document store")
	}
	if err := store.ClearAll(ctx); err != nil {
		log.WithError(err).Fatal("failed to clear document store")
	}

	rdb := buildRedis(cfg)
	defer rdb.Close()
	q := buildQueue(cfg, rdb)
	if err := q.ClearAll(ctx); err != nil {
		log.WithError(err).Fatal("failed to clear job queue")
	}

	log.Info("cleared all articles, clusters, and queued jobs")
}

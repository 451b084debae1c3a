package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zyrak/simdoc/internal/config"
	"github.com/zyrak/simdoc/internal/ingesttest"
	"github.com/zyrak/simdoc/internal/ratelimit"
)

func newIntegrationTestCmd() *cobra.Command {
	var baseURL string
	var timeoutSeconds int
	var assetsDir string
	var seedFeed string

	cmd := &cobra.Command{
		Use:   "integration-test",
		Short: "Drive the spec's concrete end-to-end scenarios against a running server",
		Run: func(cmd *cobra.Command, args []string) {
			runIntegrationTest(baseURL, time.Duration(timeoutSeconds)*time.Second, assetsDir, seedFeed)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8000", "base URL of the running simdoc server")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 10, "seconds to wait for the re-score worker to settle between steps")
	cmd.Flags().StringVar(&assetsDir, "assets-dir", "", "unused placeholder for static fixture assets (reserved)")
	cmd.Flags().StringVar(&seedFeed, "seed-feed", "", "optional RSS feed URL to pull supplementary real-world text from")

	return cmd
}

func runIntegrationTest(baseURL string, settleWait time.Duration, assetsDir, seedFeed string) {
	cfg := config.Load()
	setupLogging(cfg.Debug)

	client := ingesttest.NewClient(baseURL, cfg.APIV1Prefix, 30*time.Second)

	if seedFeed != "" {
		rdb := buildRedis(cfg)
		defer rdb.Close()
		limiter, err := ratelimit.New(rdb, ratelimit.Config{UserAgent: "simdoc-integration-test/1.0"})
		if err == nil {
			fetcher := ingesttest.NewFixtureFetcher(rdb, limiter, 30*time.Second)
			fixtures, err := fetcher.Fetch(context.Background(), seedFeed, 5)
			if err != nil {
				fmt.Fprintf(os.Stderr, "fetching seed feed: %v\n", err)
			}
			for _, fx := range fixtures {
				if status, _, err := client.SubmitArticle(fx); err != nil || status != 200 {
					fmt.Fprintf(os.Stderr, "submitting seed fixture %s: status=%d err=%v\n", fx.ArticleID, status, err)
				}
			}
		}
	}

	report := ingesttest.Run(client, settleWait)

	for _, r := range report.Results {
		mark := "PASS"
		if !r.Passed {
			mark = "FAIL"
		}
		fmt.Printf("[%s] %s: %s\n", mark, r.Name, r.Detail)
	}

	if !report.Passed() {
		os.Exit(1)
	}
}

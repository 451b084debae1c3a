package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zyrak/simdoc/internal/config"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check Elasticsearch and Redis connectivity and report status",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			setupLogging(cfg.Debug)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			ok := true

			store, err := buildStore(cfg)
			if err != nil {
				fmt.Printf("elasticsearch: fail (%v)\n", err)
				ok = false
			} else if err := store.Ping(ctx); err != nil {
				fmt.Printf("elasticsearch: fail (%v)\n", err)
				ok = false
			} else {
				fmt.Println("elasticsearch: pass")
			}

			rdb := buildRedis(cfg)
			defer rdb.Close()
			q := buildQueue(cfg, rdb)
			if err := q.Ping(ctx); err != nil {
				fmt.Printf("redis: fail (%v)\n", err)
				ok = false
			} else {
				fmt.Println("redis: pass")
			}

			if !ok {
				os.Exit(1)
			}
		},
	}
}

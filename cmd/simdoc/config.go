package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zyrak/simdoc/internal/config"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as JSON",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			cfg.ESPassword = redactIfSet(cfg.ESPassword)
			cfg.RedisPassword = redactIfSet(cfg.RedisPassword)
			cfg.LLMAPIKey = redactIfSet(cfg.LLMAPIKey)

			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				fmt.Println(err)
				return
			}
			fmt.Println(string(out))
		},
	}
}

func redactIfSet(s string) string {
	if s == "" {
		return ""
	}
	return "<redacted>"
}

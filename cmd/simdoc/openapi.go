package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zyrak/simdoc/internal/config"
)

func newOpenAPICmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Write the OpenAPI description of the HTTP surface",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			doc := buildOpenAPIDoc(cfg)

			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}

			if outPath == "" {
				fmt.Println(string(out))
				return
			}
			if err := os.WriteFile(outPath, out, 0o644); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to this path instead of stdout")
	return cmd
}

func buildOpenAPIDoc(cfg *config.Config) map[string]interface{} {
	prefix := cfg.APIV1Prefix
	errorResponse := map[string]interface{}{
		"description": "error envelope",
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":    map[string]interface{}{"type": "object"},
						"trace_id": map[string]interface{}{"type": "string"},
					},
				},
			},
		},
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":   cfg.AppName,
			"version": cfg.AppVersion,
		},
		"paths": map[string]interface{}{
			prefix + "/articles/": map[string]interface{}{
				"post": map[string]interface{}{
					"summary": "Submit an article for similarity processing",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "accepted"},
						"400": errorResponse,
						"500": errorResponse,
					},
				},
			},
			prefix + "/articles/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Get an article and its cluster",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "ok"},
						"404": errorResponse,
					},
				},
			},
			prefix + "/articles/{id}/similar": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "List articles in the same cluster",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "ok"},
						"404": errorResponse,
					},
				},
			},
			prefix + "/articles/recheck": map[string]interface{}{
				"post": map[string]interface{}{
					"summary": "Re-enqueue articles for re-score",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "accepted"},
						"400": errorResponse,
					},
				},
			},
			prefix + "/clusters/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Get a cluster, optionally with member articles",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "ok"},
						"404": errorResponse,
					},
				},
			},
			prefix + "/clusters/": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Search articles by metadata",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "ok"},
						"400": errorResponse,
					},
				},
			},
			prefix + "/clusters/stats": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Cluster-size distribution diagnostic",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "ok"},
					},
				},
			},
			"/system/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Liveness and dependency health",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "ok"},
					},
				},
			},
		},
	}
}

// Command simdoc runs the near-duplicate article clustering engine: the
// HTTP API, the re-score worker, or one-off administrative operations,
// wired from internal/config through docstore/jobqueue to the core
// submit/rescore/query/cluster packages.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "simdoc",
		Short: "Near-duplicate article clustering engine",
	}

	root.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newInitCmd(),
		newHealthCmd(),
		newConfigCmd(),
		newOpenAPICmd(),
		newClearAllCmd(),
		newIntegrationTestCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

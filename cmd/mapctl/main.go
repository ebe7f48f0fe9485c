package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mapctl",
		Short:         "Inspect the map directory from the command line",
		Long:          `Geometry helpers and direct viewport queries against the configured business store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newBBoxCmd(), newDistanceCmd(), newSearchCmd(), newClustersCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

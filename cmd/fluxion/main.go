package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fluxion",
		Short: "A level-ordered reactive dataflow engine",
		Long: `Fluxion is a reactive dataflow engine for Go.

Build graphs of derived values that recompute automatically when their
inputs change, propagated level by level so no node ever observes a
half-updated upstream. Features include:

  • Dynamically-dependent computed signals
  • Map and filter/dedup transform nodes
  • Glitch-free, level-ordered propagation
  • Prometheus metrics and OpenTelemetry tracing hooks
  • Live graph inspection over HTTP/WebSocket`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		demoCmd(),
		benchCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

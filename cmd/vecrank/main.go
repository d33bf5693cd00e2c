package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecrank/internal/version"
)

// options are the flags shared by all subcommands.
type options struct {
	configPath string
	env        string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:           "vecrank",
		Short:         "Re-rank vector search results with a second embedding model",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file path (default: config/<env>.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.env, "env", "", "Environment: local, dev, docker, prod (default: $ENV or local)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	var (
		text string
		topK int
	)
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Run a single best-similarity query and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(cmd.Context(), opts, text, topK, cmd.Flags().Changed("top-k"), cmd.OutOrStdout())
		},
	}
	queryCmd.Flags().StringVar(&text, "text", "", "Query text")
	queryCmd.Flags().IntVar(&topK, "top-k", 0, "Number of index candidates to re-rank (default: rerank.default_top_k)")
	_ = queryCmd.MarkFlagRequired("text")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build metadata",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vecrank %s (commit %s, built %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}

	rootCmd.AddCommand(serveCmd, queryCmd, versionCmd)
	return rootCmd
}

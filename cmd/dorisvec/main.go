// Command dorisvec runs vector searches against Apache Doris (or a local
// DuckDB file) from the shell.
//
//	dorisvec search docs --vector 0.1,0.2,0.3 --select id,title --limit 5
//	dorisvec batch docs --file queries.jsonl --concurrency 4
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dorisvec",
		Short:         "Vector search client for Apache Doris",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", DefaultConfigPath(), "Path to the YAML config file")
	rootCmd.PersistentFlags().StringP("output", "o", formatJSON, "Output format: json or text")

	rootCmd.AddCommand(
		searchCmd(),
		batchCmd(),
	)
	return rootCmd
}

func loadFromFlags(cmd *cobra.Command) (*Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	format, _ := cmd.Flags().GetString("output")
	if format != formatJSON && format != formatText {
		return nil, "", fmt.Errorf("unknown output format %q", format)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, format, nil
}

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jcdickinson/doxnav/internal/config"
	"github.com/jcdickinson/doxnav/internal/doxygen"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <location>",
	Short: "Check Doxygen output for broken trees and search indexes",
	Long: `Load Doxygen HTML output without storing it and report problems: nodes
with neither anchor nor children, cycles, an unsorted navigation index,
search keys without occurrences or with names that do not match.`,
	Example: `  doxnav validate ./build/docs/html
  doxnav validate --strict https://dynamorio.org/`,
	Args: cobra.ExactArgs(1),
	Run:  runValidate,
}

var validateStrict bool

func init() {
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "fail on load warnings too")
}

// loadLocal parses a docset in-process, printing progress to stderr.
func loadLocal(location, name string) (*doxygen.DocSet, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	src, err := doxygen.OpenSource(location, cfg.Fetch)
	if err != nil {
		return nil, nil, err
	}
	d, err := doxygen.Load(context.Background(), src, name, doxygen.LoadOptions{
		Concurrency:  cfg.Fetch.Concurrency,
		HTMLFallback: cfg.Fetch.HTMLFallback,
		Progress: func(msg string) {
			fmt.Fprintf(os.Stderr, "  %s\n", msg)
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return d, cfg, nil
}

func runValidate(cmd *cobra.Command, args []string) {
	d, _, err := loadLocal(args[0], "validate")
	if err != nil {
		log.Fatalf("load failed: %v", err)
	}

	for _, w := range d.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	problems := doxygen.Problems(doxygen.Validate(d))
	for _, p := range problems {
		fmt.Printf("error: %s\n", p)
	}

	if len(problems) > 0 || (validateStrict && len(d.Warnings) > 0) {
		fmt.Printf("%d problems, %d warnings\n", len(problems), len(d.Warnings))
		os.Exit(1)
	}
	fmt.Printf("ok: %d search entries, %d outlines, %d warnings\n", len(d.Search), len(d.Outlines), len(d.Warnings))
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/envelope-ocr/internal/app"
	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory of scans to process (required)")
		skipHidden = flag.Bool("skip-hidden", true, "skip dotfiles and dot-directories")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	if err := common.LoadDotEnv(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stdout)

	os.Exit(run(cfg, logger, *dir, *skipHidden))
}

func run(cfg *common.Config, logger *slog.Logger, dir string, skipHidden bool) int {
	ctx := context.Background()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		return 1
	}
	defer a.Close()

	ingestor := ingest.NewFSIngestor(a.Processor, ingest.NewSeen(), logger)

	logger.Info("starting ingestion", "dir", dir)
	results, stats, err := ingestor.IngestDirectory(ctx, dir, skipHidden)
	if err != nil {
		logger.Error("failed to ingest directory", "error", err)
		return 1
	}

	rows := 0
	reports := map[string]struct{}{}
	for _, r := range results {
		rows += r.Rows
		if r.ReportKey != "" && r.Err == "" {
			reports[r.ReportKey] = struct{}{}
		}
		if r.Err != "" {
			printError("- %s: %s\n", r.SourcePath, r.Message)
		}
	}

	logger.Info("batch processing complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated,
		"rows", rows)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files matched: %d\n", stats.Matched)
	fmt.Printf("- Files processed: %d\n", stats.Succeeded)
	fmt.Printf("- Duplicates skipped: %d\n", stats.Deduplicated)
	fmt.Printf("- Failures: %d\n", stats.Failed)
	fmt.Printf("- Rows appended: %d\n", rows)
	for key := range reports {
		fmt.Printf("- Report: %s\n", key)
	}
	if stats.Failed > 0 {
		return 1
	}
	return 0
}

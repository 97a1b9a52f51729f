package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/envelope-ocr/internal/app"
	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/core"
	"github.com/joseph-ayodele/envelope-ocr/internal/server"
)

func main() {
	var (
		file  = flag.String("file", "", "document to process (.pdf, .jpg, .jpeg, .png)")
		event = flag.String("event", "", "JSON invocation event to process instead of -file")
	)
	flag.Parse()

	if (*file == "") == (*event == "") {
		fmt.Fprintln(os.Stderr, "usage: runocr -file <path> | -event <event.json>")
		os.Exit(2)
	}

	if err := common.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stderr)

	inv, err := load(*file, *event)
	if err != nil {
		logger.Error("failed to read input", "error", err)
		os.Exit(2)
	}

	os.Exit(run(cfg, logger, inv))
}

func run(cfg *common.Config, logger *slog.Logger, inv core.Invocation) int {
	ctx, cancel := common.WithTimeout(context.Background(), cfg.Queue.ProcessTimeout)
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		return 1
	}
	defer a.Close()

	res := a.Processor.Process(ctx, inv)
	fmt.Println(res.Message)
	if res.StatusCode != 200 {
		return 1
	}
	return 0
}

func load(file, event string) (core.Invocation, error) {
	if event != "" {
		raw, err := os.ReadFile(event)
		if err != nil {
			return core.Invocation{}, err
		}
		return server.ParseEvent(raw, "cli")
	}
	body, err := os.ReadFile(file)
	if err != nil {
		return core.Invocation{}, err
	}
	return core.Invocation{Filename: filepath.Base(file), Body: body, Source: "cli"}, nil
}

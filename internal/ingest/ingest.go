// Package ingest turns files on disk into invocations, one at a time, by
// directory walk, or by watching inbox directories.
package ingest

import (
	"context"

	"github.com/joseph-ayodele/envelope-ocr/internal/core"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	HashHex      string
	FileExt      string
	Deduplicated bool
	StatusCode   int
	Message      string
	ReportKey    string
	Rows         int
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Handler runs one invocation to completion.
type Handler interface {
	Process(ctx context.Context, inv core.Invocation) core.Result
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/envelope-ocr/constants"
)

// FSIngestor reads documents from the local filesystem and runs them
// synchronously through a Handler.
type FSIngestor struct {
	handler Handler
	seen    *Seen
	logger  *slog.Logger
	source  string
}

func NewFSIngestor(h Handler, seen *Seen, logger *slog.Logger) *FSIngestor {
	if seen == nil {
		seen = NewSeen()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{handler: h, seen: seen, logger: logger, source: "batch"}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path, FileExt: constants.NormalizeExt(filepath.Ext(path))}

	inv, hash, err := ReadInvocation(path, i.source)
	if err != nil {
		return out, err
	}
	out.HashHex = hash
	if !i.seen.Add(hash) {
		out.Deduplicated = true
		i.logger.Info("skipping duplicate document", "path", path, "hash", hash)
		return out, nil
	}

	res := i.handler.Process(ctx, inv)
	out.StatusCode, out.Message, out.ReportKey, out.Rows = res.StatusCode, res.Message, res.ReportKey, res.Rows
	if res.Err != nil {
		// a failed file may be fixed and dropped in again
		i.seen.Forget(hash)
		return out, res.Err
	}
	return out, nil
}

// IngestDirectory walks root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

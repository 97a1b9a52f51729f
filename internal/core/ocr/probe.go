package ocr

import (
	"context"
	"log/slog"
	"strings"
)

// Tool describes an external binary found (or not) at startup.
type Tool struct {
	Name    string
	Path    string
	Version string
	Err     error
}

// Probe runs `<bin> --version` / `pdftoppm -v` and logs what it finds. It never
// fails startup; a missing binary surfaces as an OCR or decode failure later.
func Probe(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) []Tool {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.WithDefaults()
	o := buildOptions(opts)

	tools := []Tool{
		probeOne(ctx, o.runner, logger, "tesseract", cfg.Tesseract, "--version"),
		probeOne(ctx, o.runner, logger, "pdftoppm", cfg.Pdftoppm, "-v"),
	}
	for _, t := range tools {
		if t.Err != nil {
			logger.Warn("ocr dependency unavailable", "tool", t.Name, "path", t.Path, "error", t.Err)
			continue
		}
		logger.Info("ocr dependency found", "tool", t.Name, "path", t.Path, "version", t.Version)
	}
	if cfg.TessdataDir != "" {
		logger.Info("tessdata directory", "path", cfg.TessdataDir)
	}
	return tools
}

func probeOne(ctx context.Context, r Runner, logger *slog.Logger, name, path string, args ...string) Tool {
	out, errb, err := run(ctx, r, logger, path, args...)
	t := Tool{Name: name, Path: path, Err: err}
	if err != nil {
		return t
	}
	// both tools print their banner on stderr in some versions
	text := strings.TrimSpace(string(out))
	if text == "" {
		text = strings.TrimSpace(string(errb))
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	t.Version = text
	return t
}

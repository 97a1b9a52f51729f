package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
)

// Engine turns a normalized region image into raw text.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) (string, error)
}

type Config struct {
	Engine    string // "cli" (default) | "gosseract"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string // passed explicitly, never exported to the environment
	DPI           int    // rasterization DPI for PDFs, default 300
	MaxPages      int    // 0 = no limit

	PSM int // default 4: single column of variable-size text, one line at a time
	OEM int // default 3: legacy + LSTM, whatever the traineddata supports
}

// WithDefaults fills zero values.
func (c Config) WithDefaults() Config {
	if c.Engine == "" {
		c.Engine = "cli"
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.TesseractLang == "" {
		c.TesseractLang = "eng"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	if c.PSM <= 0 {
		c.PSM = 4
	}
	if c.OEM <= 0 {
		c.OEM = 3
	}
	return c
}

// Option customizes engines and the rasterizer.
type Option func(*options)

type options struct {
	runner Runner
}

// WithRunner swaps the command runner (tests use a fake).
func WithRunner(r Runner) Option {
	return func(o *options) {
		if r != nil {
			o.runner = r
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{runner: execRunner{}}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// NewEngine picks the OCR engine named by cfg.Engine.
func NewEngine(cfg Config, logger *slog.Logger, opts ...Option) (Engine, error) {
	cfg = cfg.WithDefaults()
	switch cfg.Engine {
	case "cli":
		return NewTesseractCLI(cfg, logger, opts...), nil
	case "gosseract":
		return NewGosseract(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", cfg.Engine)
	}
}

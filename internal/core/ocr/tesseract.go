package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/core/imageproc"
)

// TesseractCLI runs the tesseract binary once per region image.
type TesseractCLI struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseractCLI(cfg Config, logger *slog.Logger, opts ...Option) *TesseractCLI {
	if logger == nil {
		logger = slog.Default()
	}
	o := buildOptions(opts)
	return &TesseractCLI{cfg: cfg.WithDefaults(), runner: o.runner, logger: logger}
}

func (t *TesseractCLI) Name() string { return "tesseract-cli" }

// Recognize writes img to a temp PNG and runs
// tesseract <png> stdout --psm N --oem N -l LANG [--tessdata-dir DIR].
func (t *TesseractCLI) Recognize(ctx context.Context, img image.Image) (string, error) {
	data, err := imageproc.EncodePNG(img)
	if err != nil {
		return "", common.NewKindError(common.KindOCREngineFailure, "encode region", err)
	}

	tmpDir, err := os.MkdirTemp("", "eo-ocr-*")
	if err != nil {
		return "", common.NewKindError(common.KindOCREngineFailure, "temp dir", err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			t.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "region.png")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return "", common.NewKindError(common.KindOCREngineFailure, "write region", err)
	}

	out, _, err := run(ctx, t.runner, t.logger, t.cfg.Tesseract, t.args(in)...)
	if err != nil {
		var ce *CommandError
		errors.As(err, &ce)
		return "", common.NewKindError(common.KindOCREngineFailure, ce.Detail(), fmt.Errorf("%w: %w", common.ErrOCREngine, err))
	}
	return string(out), nil
}

func (t *TesseractCLI) args(in string) []string {
	args := []string{in, "stdout",
		"--psm", strconv.Itoa(t.cfg.PSM),
		"--oem", strconv.Itoa(t.cfg.OEM),
		"-l", t.cfg.TesseractLang,
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return args
}

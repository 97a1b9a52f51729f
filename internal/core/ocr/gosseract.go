//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/core/imageproc"
)

// Gosseract recognizes text through libtesseract (cgo).
type Gosseract struct {
	cfg           Config
	clientFactory func() *gosseract.Client
	logger        *slog.Logger
}

// NewGosseract builds the cgo engine. The engine mode is whatever
// libtesseract defaults to, which is OEM 3.
func NewGosseract(cfg Config, logger *slog.Logger) (Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.WithDefaults()
	logger.Debug("gosseract engine ready", "lang", cfg.TesseractLang, "psm", cfg.PSM, "tessdata", cfg.TessdataDir)
	return &Gosseract{cfg: cfg, clientFactory: gosseract.NewClient, logger: logger}, nil
}

func (g *Gosseract) Name() string { return "gosseract" }

func (g *Gosseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := imageproc.EncodePNG(img)
	if err != nil {
		return "", common.NewKindError(common.KindOCREngineFailure, "encode region", err)
	}

	c := g.clientFactory()
	defer func() {
		if err := c.Close(); err != nil {
			g.logger.Warn("gosseract close failed", "error", err)
		}
	}()

	if g.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(g.cfg.TessdataDir); err != nil {
			return "", ocrFailure("set tessdata prefix", err)
		}
	}
	if err := c.SetLanguage(g.cfg.TesseractLang); err != nil {
		return "", ocrFailure("set language", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(g.cfg.PSM)); err != nil {
		return "", ocrFailure("set page segmentation mode", err)
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", ocrFailure("set image", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", ocrFailure("recognize text", err)
	}
	return text, nil
}

func ocrFailure(msg string, err error) error {
	return common.NewKindError(common.KindOCREngineFailure, msg, fmt.Errorf("%w: %v", common.ErrOCREngine, err))
}

//go:build !gosseract

package ocr

import (
	"log/slog"

	"github.com/joseph-ayodele/envelope-ocr/internal/common"
)

// NewGosseract reports that the cgo engine was not compiled in.
func NewGosseract(cfg Config, logger *slog.Logger) (Engine, error) {
	return nil, common.NewAppError("CONFIG_ERROR",
		"OCR_ENGINE=gosseract requires building with -tags gosseract and libtesseract installed", common.ErrInvalidInput)
}

package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/envelope-ocr/constants"
	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/core/imageproc"
	"github.com/joseph-ayodele/envelope-ocr/internal/document"
)

// NotPDFMessage is reported when a .pdf payload lacks the %PDF magic.
const NotPDFMessage = "The uploaded file is not a valid PDF (missing %PDF header)"

// Rasterizer turns a Document into an ordered list of oriented page images.
type Rasterizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewRasterizer(cfg Config, logger *slog.Logger, opts ...Option) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	o := buildOptions(opts)
	return &Rasterizer{cfg: cfg.WithDefaults(), runner: o.runner, logger: logger}
}

// Rasterize returns every page of doc, rotated 90 degrees clockwise.
func (r *Rasterizer) Rasterize(ctx context.Context, doc document.Document) ([]image.Image, error) {
	var (
		pages []image.Image
		err   error
	)
	switch doc.Ext() {
	case ".pdf":
		pages, err = r.pdfPages(ctx, doc.Data())
	case ".jpg", ".jpeg", ".png":
		pages, err = r.imagePage(doc.Data())
	default:
		return nil, common.NewKindError(common.KindUnsupportedType,
			fmt.Sprintf("extension %q is not supported", doc.Ext()), nil)
	}
	if err != nil {
		return nil, err
	}

	for i, p := range pages {
		pages[i] = imageproc.Orient(p)
	}
	r.logger.Debug("document rasterized", "filename", doc.Filename(), "ext", doc.Ext(), "pages", len(pages))
	return pages, nil
}

func (r *Rasterizer) imagePage(data []byte) ([]image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, common.NewKindError(common.KindDecodeFailure, "image could not be decoded: "+err.Error(), err)
	}
	return []image.Image{img}, nil
}

func (r *Rasterizer) pdfPages(ctx context.Context, data []byte) ([]image.Image, error) {
	if !bytes.HasPrefix(data, []byte(constants.PDFMagic)) {
		return nil, common.NewKindError(common.KindInvalidInput, NotPDFMessage, nil)
	}

	declared := countPDFPages(data)
	if declared < 0 {
		r.logger.Warn("pdf page tree unreadable, relying on pdftoppm")
	}

	tmpDir, err := os.MkdirTemp("", "eo-pp-*")
	if err != nil {
		return nil, common.NewKindError(common.KindUnhandled, "temp dir", err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, common.NewKindError(common.KindUnhandled, "write pdf", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png [-l N] <in.pdf> <tmp/page>
	args := []string{"-r", strconv.Itoa(r.cfg.DPI), "-png"}
	if r.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(r.cfg.MaxPages))
	}
	args = append(args, in, prefix)
	if _, _, err := run(ctx, r.runner, r.logger, r.cfg.Pdftoppm, args...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var ce *CommandError
		errors.As(err, &ce)
		return nil, common.NewKindError(common.KindDecodeFailure, ce.Detail(), fmt.Errorf("%w: %w", common.ErrDecode, err))
	}

	// pdftoppm zero-pads page numbers to the width of the page count, so a
	// lexical sort is page order.
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if r.cfg.MaxPages > 0 && len(matches) > r.cfg.MaxPages {
		matches = matches[:r.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, common.NewKindError(common.KindDecodeFailure, "pdftoppm produced no images", nil)
	}
	if declared > 0 && declared != len(matches) && (r.cfg.MaxPages == 0 || declared < r.cfg.MaxPages) {
		r.logger.Warn("rendered page count differs from page tree", "declared", declared, "rendered", len(matches))
	}

	pages := make([]image.Image, 0, len(matches))
	for _, m := range matches {
		img, err := imaging.Open(m)
		if err != nil {
			return nil, common.NewKindError(common.KindDecodeFailure, "rendered page unreadable: "+err.Error(), err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}

// countPDFPages reads the page tree, returning -1 when it cannot be parsed.
func countPDFPages(data []byte) (n int) {
	defer func() {
		if recover() != nil {
			n = -1
		}
	}()
	rd, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return -1
	}
	return rd.NumPage()
}

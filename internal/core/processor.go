// Package core drives one extraction invocation end to end.
package core

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/envelope-ocr/constants"
	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/core/imageproc"
	"github.com/joseph-ayodele/envelope-ocr/internal/core/ocr"
	"github.com/joseph-ayodele/envelope-ocr/internal/core/textclean"
	"github.com/joseph-ayodele/envelope-ocr/internal/document"
	"github.com/joseph-ayodele/envelope-ocr/internal/regions"
	"github.com/joseph-ayodele/envelope-ocr/internal/report"
	"github.com/joseph-ayodele/envelope-ocr/internal/repository"
	"github.com/joseph-ayodele/envelope-ocr/internal/storage"
)

// Invocation is the transport-neutral request.
type Invocation struct {
	Filename    string
	ContentType string
	Body        []byte
	Base64      bool
	Source      string // http, grpc, lambda, cli, watch
}

// Result is what every boundary renders back to its caller.
type Result struct {
	StatusCode int
	Message    string
	ReportKey  string
	Rows       int
	Err        error
}

// Rasterizer yields oriented pages for a document.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc document.Document) ([]image.Image, error)
}

// Ledger records invocations. Failures are logged and never change the Result.
type Ledger interface {
	Start(ctx context.Context, run repository.Run) (uuid.UUID, error)
	Finish(ctx context.Context, id uuid.UUID, out repository.Outcome) error
}

// Processor runs validate, rasterize, extract, then persist.
type Processor struct {
	raster Rasterizer
	engine ocr.Engine
	gw     storage.Gateway
	prefix string

	logger      *slog.Logger
	clock       func() time.Time
	maxBody     int64
	maxAttempts int
	ledger      Ledger
	catalog     []regions.Region
	embedder    report.Embedder
	conditional bool
}

type Option func(*Processor)

func WithMaxBodyBytes(n int64) Option { return func(p *Processor) { p.maxBody = n } }

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.clock = now
		}
	}
}

func WithLedger(l Ledger) Option { return func(p *Processor) { p.ledger = l } }

func WithMaxAttempts(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithCatalog replaces the region list; used by tests and diagnostics.
func WithCatalog(rs []regions.Region) Option {
	return func(p *Processor) {
		if len(rs) > 0 {
			p.catalog = append([]regions.Region(nil), rs...)
		}
	}
}

func WithEmbedder(e report.Embedder) Option { return func(p *Processor) { p.embedder = e } }

// WithConditionalWrites(false) uploads without a version precondition
// (last writer wins).
func WithConditionalWrites(on bool) Option { return func(p *Processor) { p.conditional = on } }

func NewProcessor(raster Rasterizer, engine ocr.Engine, gw storage.Gateway, prefix string, opts ...Option) *Processor {
	p := &Processor{
		raster:      raster,
		engine:      engine,
		gw:          gw,
		prefix:      prefix,
		logger:      slog.Default(),
		clock:       time.Now,
		maxBody:     common.DefaultMaxBodyBytes,
		maxAttempts: 3,
		catalog:     regions.Catalog(),
		embedder:    report.MemoryEmbedder{},
		conditional: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// runState is what one Process call accumulates for logging and the ledger.
type runState struct {
	runID    uuid.UUID
	ext      string
	pages    int
	attempts int
}

// Process handles one invocation. It never panics and never returns an error;
// failures are folded into Result.
func (p *Processor) Process(ctx context.Context, inv Invocation) (res Result) {
	start := time.Now()
	ctx, reqID := common.EnsureRequestID(ctx)
	log := p.logger.With("request_id", reqID, "source", inv.Source)

	var st runState
	key := report.Key(p.prefix, p.clock())

	defer func() {
		if r := recover(); r != nil {
			log.Error("processor panic", "panic", r, "stack", string(debug.Stack()))
			res = p.failure(fmt.Errorf("%w: panic: %v", common.ErrInternal, r), st.ext)
			res.ReportKey = key
		}
		p.finishRun(ctx, log, st, res)
		log.Info("invocation finished",
			"filename", inv.Filename,
			"report_key", res.ReportKey,
			"status_code", res.StatusCode,
			"rows", res.Rows,
			"pages", st.pages,
			"attempts", st.attempts,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	st.runID = p.startRun(ctx, log, inv, key)

	doc, err := document.New(document.Input{
		Filename:    inv.Filename,
		ContentType: inv.ContentType,
		Body:        inv.Body,
		Base64:      inv.Base64,
	}, p.maxBody)
	if err != nil {
		log.Warn("invocation rejected", "bytes", len(inv.Body), "error", err)
		return p.failure(err, "")
	}
	st.ext = doc.Ext()

	pages, err := p.raster.Rasterize(ctx, doc)
	if err != nil {
		log.Warn("rasterize failed", "filename", doc.Filename(), "ext", doc.Ext(), "error", err)
		return p.failure(err, doc.Ext())
	}
	st.pages = len(pages)

	rows, err := p.extract(ctx, log, doc, pages)
	if err != nil {
		log.Error("extraction failed", "filename", doc.Filename(), "error", err)
		return p.failure(err, doc.Ext())
	}

	st.attempts, err = p.persist(ctx, log, key, rows)
	if err != nil {
		log.Error("persist failed", "report_key", key, "attempts", st.attempts, "error", err)
		res = p.failure(err, doc.Ext())
		res.ReportKey = key
		return res
	}

	return Result{
		StatusCode: 200,
		Message:    "✅ Processed and saved to " + key,
		ReportKey:  key,
		Rows:       len(rows),
	}
}

// extract runs every catalog region of every page through preprocess, OCR and
// cleaning. Pages are 1-based in labels.
func (p *Processor) extract(ctx context.Context, log *slog.Logger, doc document.Document, pages []image.Image) ([]report.Row, error) {
	var rows []report.Row
	for i, page := range pages {
		for _, rg := range p.catalog {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !rg.Rect().Overlaps(page.Bounds()) {
				log.Warn("region outside page", "page", i+1, "region", rg.Name, "bounds", page.Bounds().String())
				continue
			}
			if !rg.Fits(page.Bounds()) {
				log.Warn("region clipped to page", "page", i+1, "region", rg.Name, "bounds", page.Bounds().String())
			}

			crop := imageproc.Crop(page, rg)
			raw, err := p.engine.Recognize(ctx, imageproc.Normalize(crop))
			if err != nil {
				return nil, err
			}
			text := textclean.Clean(raw)
			if text == "" {
				log.Debug("region empty after cleaning", "page", i+1, "region", rg.Name)
				continue
			}
			rows = append(rows, report.Row{
				Label:   regions.Label(doc.Filename(), i+1, rg),
				Text:    text,
				Preview: imageproc.Preview(crop),
			})
		}
	}
	return rows, nil
}

// persist writes rows into the day's report, starting over when another writer
// got there between our read and our write.
func (p *Processor) persist(ctx context.Context, log *slog.Logger, key string, rows []report.Row) (int, error) {
	var err error
	for attempt := 1; ; attempt++ {
		err = p.persistOnce(ctx, key, rows)
		if err == nil {
			return attempt, nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) || attempt >= p.maxAttempts {
			return attempt, err
		}
		log.Warn("report changed during write, retrying", "report_key", key, "attempt", attempt)
	}
}

func (p *Processor) persistOnce(ctx context.Context, key string, rows []report.Row) error {
	acc := report.NewAccumulator(p.gw, report.WithEmbedder(p.embedder), report.WithLogger(p.logger))
	if err := acc.Open(ctx, key); err != nil {
		return asPersistence("open report", err)
	}
	for _, r := range rows {
		if err := acc.Append(r); err != nil {
			_, _ = acc.Close()
			return asPersistence("append row", err)
		}
	}
	body, err := acc.Close()
	if err != nil {
		return asPersistence("close report", err)
	}

	expect := acc.Version()
	if !p.conditional {
		expect = storage.AnyVersion
	}
	if _, err := p.gw.Upload(ctx, key, body, expect); err != nil {
		return asPersistence("upload report", err)
	}
	return nil
}

func asPersistence(msg string, err error) error {
	var ae *common.AppError
	if errors.As(err, &ae) {
		return err
	}
	return common.NewKindError(common.KindPersistenceFailure, msg, fmt.Errorf("%w: %w", common.ErrPersistence, err))
}

func (p *Processor) failure(err error, ext string) Result {
	return Result{
		StatusCode: common.StatusCode(err),
		Message:    p.message(err, ext),
		Err:        err,
	}
}

func (p *Processor) message(err error, ext string) string {
	detail := err.Error()
	var ae *common.AppError
	if errors.As(err, &ae) {
		detail = ae.Message
	}

	switch common.KindOf(err) {
	case common.KindTooLarge:
		return fmt.Sprintf("❌ Error: File too large (max %g MB)", float64(p.maxBody)/(1<<20))
	case common.KindUnsupportedType:
		return "❌ Unsupported file type"
	case common.KindDecodeFailure:
		what := "PDF"
		if constants.MapExtToFormat(ext) == constants.IMAGE {
			what = "image"
		}
		return fmt.Sprintf("❌ Error reading %s file. It may be corrupted or unsupported. Details: %s", what, detail)
	case common.KindInvalidInput:
		return "❌ Error: " + detail
	default:
		return "❌ Error: " + err.Error()
	}
}

func (p *Processor) startRun(ctx context.Context, log *slog.Logger, inv Invocation, key string) uuid.UUID {
	if p.ledger == nil {
		return uuid.Nil
	}
	filename := inv.Filename
	if filename == "" {
		filename = constants.DefaultFilename
	}
	id, err := p.ledger.Start(ctx, repository.Run{
		ReportKey: key,
		Filename:  filename,
		Source:    inv.Source,
		StartedAt: p.clock().UTC(),
	})
	if err != nil {
		log.Warn("ledger start failed", "error", err)
		return uuid.Nil
	}
	return id
}

func (p *Processor) finishRun(ctx context.Context, log *slog.Logger, st runState, res Result) {
	if p.ledger == nil || st.runID == uuid.Nil {
		return
	}
	out := repository.Outcome{
		Status:       constants.RunStatusForCode(res.StatusCode),
		Ext:          st.ext,
		RowsAppended: res.Rows,
		Pages:        st.pages,
		Attempts:     st.attempts,
	}
	if res.Err != nil {
		out.ErrorMessage = res.Err.Error()
	}
	// record the outcome even when the caller has gone away
	if err := p.ledger.Finish(context.WithoutCancel(ctx), st.runID, out); err != nil {
		log.Warn("ledger finish failed", "run_id", st.runID, "error", err)
	}
}

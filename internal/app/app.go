// Package app wires configuration into a ready Processor and its dependencies.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/core"
	"github.com/joseph-ayodele/envelope-ocr/internal/core/ocr"
	"github.com/joseph-ayodele/envelope-ocr/internal/report"
	"github.com/joseph-ayodele/envelope-ocr/internal/repository"
	"github.com/joseph-ayodele/envelope-ocr/internal/storage"
)

type App struct {
	Config    *common.Config
	Logger    *slog.Logger
	Processor *core.Processor
	Gateway   storage.Gateway
	DB        *repository.DB // nil without DB_URL
	Runs      repository.RunRepository
}

// Option overrides a dependency before the processor is assembled.
type Option func(*buildOptions)

type buildOptions struct {
	gateway storage.Gateway
	engine  ocr.Engine
	runner  ocr.Runner
	clock   func() time.Time
}

func WithGateway(g storage.Gateway) Option { return func(o *buildOptions) { o.gateway = g } }
func WithEngine(e ocr.Engine) Option       { return func(o *buildOptions) { o.engine = e } }
func WithRunner(r ocr.Runner) Option       { return func(o *buildOptions) { o.runner = r } }
func WithClock(now func() time.Time) Option {
	return func(o *buildOptions) { o.clock = now }
}

// OCRConfig maps the env section onto the OCR package config.
func OCRConfig(c common.OCRConfig) ocr.Config {
	return ocr.Config{
		Engine:        c.Engine,
		Tesseract:     c.Tesseract,
		Pdftoppm:      c.Pdftoppm,
		TesseractLang: c.Lang,
		TessdataDir:   c.TessdataDir,
		DPI:           c.DPI,
		MaxPages:      c.MaxPages,
	}
}

func dbConfig(c common.DatabaseConfig) repository.Config {
	return repository.Config{
		DSN:              c.DSN,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
	}
}

// Build assembles the processor. Call Close when done.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var bo buildOptions
	for _, o := range opts {
		o(&bo)
	}

	a := &App{Config: cfg, Logger: logger}

	a.Gateway = bo.gateway
	if a.Gateway == nil {
		gw, err := storage.New(ctx, cfg.Store, logger)
		if err != nil {
			return nil, err
		}
		a.Gateway = gw
	}

	ocrCfg := OCRConfig(cfg.OCR)
	var ocrOpts []ocr.Option
	if bo.runner != nil {
		ocrOpts = append(ocrOpts, ocr.WithRunner(bo.runner))
	}
	engine := bo.engine
	if engine == nil {
		e, err := ocr.NewEngine(ocrCfg, logger, ocrOpts...)
		if err != nil {
			return nil, err
		}
		engine = e
	}

	embedder, err := report.EmbedderFor(cfg.Report.EmbedMode, cfg.Report.TempDir)
	if err != nil {
		return nil, err
	}

	popts := []core.Option{
		core.WithLogger(logger),
		core.WithMaxBodyBytes(cfg.Limits.MaxBodyBytes),
		core.WithMaxAttempts(cfg.Limits.PersistMaxAttempts),
		core.WithEmbedder(embedder),
		core.WithConditionalWrites(cfg.Store.ConditionalWrites),
	}
	if bo.clock != nil {
		popts = append(popts, core.WithClock(bo.clock))
	}

	if cfg.Database.DSN != "" {
		db, err := repository.Open(ctx, dbConfig(cfg.Database), logger)
		if err != nil {
			return nil, err
		}
		runs, err := repository.NewRunRepository(ctx, db, logger)
		if err != nil {
			db.Close(logger)
			return nil, err
		}
		a.DB, a.Runs = db, runs
		popts = append(popts, core.WithLedger(runs))
	}

	a.Processor = core.NewProcessor(ocr.NewRasterizer(ocrCfg, logger, ocrOpts...), engine, a.Gateway, cfg.Store.Prefix, popts...)
	logger.Info("processor ready",
		"store", cfg.Store.Backend,
		"prefix", cfg.Store.Prefix,
		"engine", engine.Name(),
		"embed_mode", cfg.Report.EmbedMode,
		"ledger", a.DB != nil,
	)
	return a, nil
}

// Health pings the ledger database when one is configured.
func (a *App) Health(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return repository.HealthCheck(ctx, a.DB, 2*time.Second, a.Logger)
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close(a.Logger)
	}
}

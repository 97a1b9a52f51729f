// Package report accumulates extraction rows into the daily XLSX workbook.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/core/imageproc"
	"github.com/joseph-ayodele/envelope-ocr/internal/storage"
)

const (
	SheetName = "Extracted Addresses"
	RowHeight = 75.0
)

// Headers is row 1 of every report.
var Headers = []string{"Filename", "Extracted Address", "Cropped Preview"}

var colWidths = map[string]float64{"A": 30, "B": 50, "C": 40}

// ErrState is returned when an operation is called out of order.
var ErrState = errors.New("report: invalid state")

// Key is the storage key of the report for t's UTC date.
func Key(prefix string, t time.Time) string {
	name := fmt.Sprintf("ocr_output_%s.xlsx", t.UTC().Format("2006-01-02"))
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Row is one extraction result.
type Row struct {
	Label   string
	Text    string
	Preview image.Image
}

type state int

const (
	unopened state = iota
	open
	closed
)

// Accumulator holds one report for the duration of an invocation:
// Open, any number of Appends, then Close.
type Accumulator struct {
	gw       storage.Gateway
	embedder Embedder
	logger   *slog.Logger

	state     state
	f         *excelize.File
	sheet     string
	key       string
	version   string
	nextRow   int
	wrapStyle int
}

type Option func(*Accumulator)

func WithEmbedder(e Embedder) Option {
	return func(a *Accumulator) {
		if e != nil {
			a.embedder = e
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Accumulator) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAccumulator(gw storage.Gateway, opts ...Option) *Accumulator {
	a := &Accumulator{gw: gw, embedder: MemoryEmbedder{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Key is the storage key passed to Open.
func (a *Accumulator) Key() string { return a.key }

// Version is the version token the report was read at, "" for a new report.
func (a *Accumulator) Version() string { return a.version }

// NextRow is the 1-based row the next Append writes to.
func (a *Accumulator) NextRow() int { return a.nextRow }

// Open loads the report stored at key or starts a new one.
func (a *Accumulator) Open(ctx context.Context, key string) error {
	if a.state != unopened {
		return fmt.Errorf("open: %w", ErrState)
	}
	a.key = key

	exists, err := a.gw.Exists(ctx, key)
	if err != nil {
		return persistErr("check report", err)
	}
	if exists {
		obj, err := a.gw.Download(ctx, key)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			// deleted between Exists and Download
			exists = false
		case err != nil:
			return persistErr("download report", err)
		default:
			if err := a.load(obj); err != nil {
				return err
			}
		}
	}
	if !exists {
		if err := a.create(); err != nil {
			return err
		}
	}

	style, err := a.f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		_ = a.f.Close()
		return fmt.Errorf("wrap style: %w", err)
	}
	a.wrapStyle = style
	a.state = open

	a.logger.Debug("report opened", "report_key", key, "existing", exists, "next_row", a.nextRow)
	return nil
}

func (a *Accumulator) load(obj storage.Object) error {
	f, err := excelize.OpenReader(bytes.NewReader(obj.Body))
	if err != nil {
		return persistErr("existing report is unreadable", err)
	}
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		_ = f.Close()
		return persistErr("read existing rows", err)
	}
	a.f, a.sheet, a.version = f, sheet, obj.Version
	a.nextRow = len(rows) + 1
	return nil
}

func (a *Accumulator) create() error {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		_ = f.Close()
		return err
	}
	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			_ = f.Close()
			return err
		}
	}
	for col, w := range colWidths {
		if err := f.SetColWidth(SheetName, col, col, w); err != nil {
			_ = f.Close()
			return err
		}
	}
	a.f, a.sheet, a.version = f, SheetName, ""
	a.nextRow = 2
	return nil
}

// Append writes row at NextRow and advances it.
func (a *Accumulator) Append(row Row) error {
	if a.state != open {
		return fmt.Errorf("append: %w", ErrState)
	}
	r := a.nextRow
	cell := func(col string) string { return fmt.Sprintf("%s%d", col, r) }

	if err := a.f.SetCellValue(a.sheet, cell("A"), row.Label); err != nil {
		return err
	}
	if err := a.f.SetCellValue(a.sheet, cell("B"), row.Text); err != nil {
		return err
	}
	if err := a.f.SetCellStyle(a.sheet, cell("B"), cell("B"), a.wrapStyle); err != nil {
		return err
	}
	if row.Preview != nil {
		png, err := imageproc.EncodePNG(row.Preview)
		if err != nil {
			return fmt.Errorf("encode preview: %w", err)
		}
		if err := a.embedder.Embed(a.f, a.sheet, cell("C"), png); err != nil {
			return fmt.Errorf("embed preview at %s: %w", cell("C"), err)
		}
	}
	if err := a.f.SetRowHeight(a.sheet, r, RowHeight); err != nil {
		return err
	}
	a.nextRow++
	return nil
}

// Close serializes the workbook. The accumulator is unusable afterwards.
func (a *Accumulator) Close() ([]byte, error) {
	if a.state != open {
		return nil, fmt.Errorf("close: %w", ErrState)
	}
	a.state = closed
	defer func() {
		if err := a.f.Close(); err != nil {
			a.logger.Warn("workbook close failed", "report_key", a.key, "error", err)
		}
	}()

	buf, err := a.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize report: %w", err)
	}
	return buf.Bytes(), nil
}

func persistErr(msg string, err error) error {
	return common.NewKindError(common.KindPersistenceFailure, msg, fmt.Errorf("%w: %w", common.ErrPersistence, err))
}

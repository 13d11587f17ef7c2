// Package xlstream reads worksheet rows out of xlsx workbook archives
// held entirely in memory, without materialising whole workbooks.
//
// The reader streams: it seeks into the archive's central directory,
// inflates the worksheet part incrementally, and pull-parses only the
// cell-bearing subset of the worksheet grammar, assembling rows into
// bounded windows. Long extractions periodically hand control back to
// the caller through a cooperative yield callback, so a single-threaded
// host can interleave other work.
//
// One-shot calls go through ListSheets and Batch. Callers issuing many
// windows against the same buffer should Open a Workbook once: it
// keeps the parsed directory, the sheet index, and (after first use)
// the shared-string table for the life of the session.
package xlstream

import (
	"context"
	"fmt"

	"github.com/javajack/xlstream/zipar"
)

// Workbook is an open session against one immutable workbook buffer.
// The buffer is borrowed for the life of the session and must not be
// mutated while any call is in flight.
//
// A Workbook performs no locking; share one across goroutines only if
// calls are externally serialised. Concurrent sessions over the same
// buffer are always safe; each owns its parser and string table.
type Workbook struct {
	archive *zipar.Archive
	index   *workbookIndex
	sst     sstTable
	opts    *Options
}

// Open parses the buffer's archive directory and workbook index and
// returns a session for issuing row-window calls against it.
func Open(buf []byte, opts ...Option) (*Workbook, error) {
	// The smallest archive is a bare 22-byte end-of-central-directory record.
	if len(buf) < 22 {
		return nil, fmt.Errorf("%w: buffer of %d bytes is too small to be an archive", ErrInvalidArgument, len(buf))
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	a, err := zipar.Parse(buf)
	if err != nil {
		return nil, err
	}
	idx, err := readWorkbookIndex(a)
	if err != nil {
		return nil, err
	}

	return &Workbook{
		archive: a,
		index:   idx,
		sst:     sstTable{archive: a, path: idx.sharedStringsPath},
		opts:    o,
	}, nil
}

// SheetNames returns the sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.index.sheets))
	for i, s := range w.index.sheets {
		names[i] = s.Name
	}
	return names
}

// Sheets returns the sheet descriptors in workbook order.
func (w *Workbook) Sheets() []SheetInfo {
	out := make([]SheetInfo, len(w.index.sheets))
	copy(out, w.index.sheets)
	return out
}

// Batch extracts up to count rows of the named sheet, starting at the
// 0-based row ordinal start. See BatchResult for the window contract.
//
// The shared-string table, if the sheet needs it, is built on first
// use and kept for later batches in this session.
func (w *Workbook) Batch(ctx context.Context, sheetName string, start, count int) (BatchResult, error) {
	sheet, ok := w.index.sheet(sheetName)
	if !ok {
		return BatchResult{}, fmt.Errorf("%w: no sheet named %q", ErrInvalidArgument, sheetName)
	}
	return w.batch(ctx, sheet, start, count)
}

// BatchIndex is Batch addressed by 0-based sheet position in workbook
// order rather than by name.
func (w *Workbook) BatchIndex(ctx context.Context, sheetIndex, start, count int) (BatchResult, error) {
	if sheetIndex < 0 || sheetIndex >= len(w.index.sheets) {
		return BatchResult{}, fmt.Errorf("%w: sheet index %d out of range", ErrInvalidArgument, sheetIndex)
	}
	return w.batch(ctx, w.index.sheets[sheetIndex], start, count)
}

func (w *Workbook) batch(ctx context.Context, sheet SheetInfo, start, count int) (BatchResult, error) {
	if count <= 0 {
		return BatchResult{}, fmt.Errorf("%w: count must be positive", ErrInvalidArgument)
	}
	if start < 0 {
		return BatchResult{}, fmt.Errorf("%w: start must be non-negative", ErrInvalidArgument)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p := &pacer{ctx: ctx, yield: w.opts.yield}
	w.sst.pace = p
	w.sst.bytesPerYield = w.opts.bytesPerYield
	return extractWindow(p, w.archive, sheet, &w.sst, start, count, w.opts)
}

// ScanRows streams the named sheet's rows to fn, starting at the
// 0-based ordinal start, until fn returns false or the sheet ends.
// Rows absent from the worksheet XML arrive as empty rows, exactly as
// they would inside a Batch window.
func (w *Workbook) ScanRows(ctx context.Context, sheetName string, start int, fn func(ord int, row []Cell) bool) error {
	sheet, ok := w.index.sheet(sheetName)
	if !ok {
		return fmt.Errorf("%w: no sheet named %q", ErrInvalidArgument, sheetName)
	}
	if start < 0 {
		return fmt.Errorf("%w: start must be non-negative", ErrInvalidArgument)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p := &pacer{ctx: ctx, yield: w.opts.yield}
	w.sst.pace = p
	w.sst.bytesPerYield = w.opts.bytesPerYield
	x, found, err := newSheetExtractor(p, w.archive, sheet, &w.sst, w.opts)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	_, err = x.iterate(start, fn)
	return err
}

// ListSheets returns the ordered sheet names of the workbook held in
// buf. It is idempotent and independent of any Batch call.
func ListSheets(buf []byte) ([]string, error) {
	w, err := Open(buf)
	if err != nil {
		return nil, err
	}
	return w.SheetNames(), nil
}

// Batch is the one-shot form of (*Workbook).Batch: it parses the
// directory and workbook index for this call alone and discards them
// with it, rebuilding the shared-string table if the sheet needs one.
func Batch(ctx context.Context, buf []byte, sheetName string, start, count int, opts ...Option) (BatchResult, error) {
	w, err := Open(buf, opts...)
	if err != nil {
		return BatchResult{}, err
	}
	return w.Batch(ctx, sheetName, start, count)
}

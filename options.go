package xlstream

import (
	"context"
	"io"
)

// Default pacing: the extractor yields at least once every
// defaultRowsPerYield rows and once every defaultBytesPerYield bytes
// of inflate output, so very wide rows still return control.
const (
	defaultRowsPerYield  = 64
	defaultBytesPerYield = 256 << 10
)

// YieldFunc is invoked at safe suspension points to hand control back
// to the host's event loop. Returning an error aborts the extraction
// with that error. Scheduling is single-threaded cooperative: the
// extractor is suspended for exactly the duration of the call.
type YieldFunc func(ctx context.Context) error

// Options holds configuration for a Workbook.
type Options struct {
	yield         YieldFunc
	rowsPerYield  int
	bytesPerYield int64
	verifyCRC     bool
}

func defaultOptions() *Options {
	return &Options{
		rowsPerYield:  defaultRowsPerYield,
		bytesPerYield: defaultBytesPerYield,
	}
}

// Option configures a Workbook.
type Option func(*Options)

// WithYield sets the cooperative yield callback. Without one, the
// extractor still checks context cancellation at every yield point.
func WithYield(fn YieldFunc) Option {
	return func(o *Options) { o.yield = fn }
}

// WithRowsPerYield sets how many rows may be extracted between yields
// (default 64).
func WithRowsPerYield(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.rowsPerYield = n
		}
	}
}

// WithBytesPerYield sets how many bytes of inflate output may be
// produced between yields (default 256 KiB).
func WithBytesPerYield(n int64) Option {
	return func(o *Options) {
		if n > 0 {
			o.bytesPerYield = n
		}
	}
}

// WithVerifyCRC enables CRC-32 verification of archive entries against
// the central directory (default off; it costs a pass over every
// inflated byte).
func WithVerifyCRC(verify bool) Option {
	return func(o *Options) { o.verifyCRC = verify }
}

// pacer drives the yield schedule for one extraction call.
type pacer struct {
	ctx   context.Context
	yield YieldFunc
}

// pause is one suspension point: cancellation is checked first, then
// the yield callback runs, if any.
func (p *pacer) pause() error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	if p.yield != nil {
		return p.yield(p.ctx)
	}
	return nil
}

// meteredReader counts uncompressed bytes flowing out of an entry
// stream and pauses each time another interval of them has been
// produced. This is the between-inflate-chunks suspension point for
// very wide rows.
type meteredReader struct {
	src   io.Reader
	pacer *pacer
	every int64
	next  int64
	read  int64
}

func newMeteredReader(src io.Reader, p *pacer, every int64) *meteredReader {
	return &meteredReader{src: src, pacer: p, every: every, next: every}
}

func (m *meteredReader) Read(p []byte) (int, error) {
	n, err := m.src.Read(p)
	m.read += int64(n)
	if err == nil && m.read >= m.next {
		m.next = m.read + m.every
		if perr := m.pacer.pause(); perr != nil {
			return n, perr
		}
	}
	return n, err
}

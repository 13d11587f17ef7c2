package zipar

import (
	"bytes"
	"compress/flate"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Open returns a reader over the uncompressed contents of e. Stored
// entries read straight from the buffer; deflate entries are inflated
// incrementally, so small Read slices pump the inflater in small steps.
func (a *Archive) Open(e *Entry) (io.Reader, error) {
	return a.open(e, false)
}

// OpenVerify is Open with CRC-32 verification: at EOF the running
// checksum must match the value recorded in the central directory.
func (a *Archive) OpenVerify(e *Entry) (io.Reader, error) {
	return a.open(e, true)
}

func (a *Archive) open(e *Entry, verify bool) (io.Reader, error) {
	off, err := a.payloadOffset(e)
	if err != nil {
		return nil, err
	}
	if off+e.CompressedSize > uint64(len(a.buf)) {
		return nil, fmt.Errorf("%w: payload of %q runs past buffer", ErrTruncated, e.Name)
	}
	payload := a.buf[off : off+e.CompressedSize]

	var src io.Reader
	switch e.Method {
	case MethodStored:
		src = bytes.NewReader(payload)
	case MethodDeflate:
		src = flate.NewReader(bytes.NewReader(payload))
	default:
		return nil, fmt.Errorf("%w: entry %q uses method %d", ErrUnsupportedMethod, e.Name, e.Method)
	}

	return &entryReader{
		name:   e.Name,
		src:    src,
		want:   e.UncompressedSize,
		crcOK:  e.CRC32,
		verify: verify,
	}, nil
}

// entryReader tracks progress through an entry's uncompressed stream,
// mapping inflater failures to this package's errors and enforcing the
// declared length (and, optionally, the checksum) at EOF.
type entryReader struct {
	name   string
	src    io.Reader
	read   uint64
	want   uint64
	crc    uint32
	crcOK  uint32
	verify bool
}

func (r *entryReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	r.read += uint64(n)
	if r.verify && n > 0 {
		r.crc = crc32.Update(r.crc, crc32.IEEETable, p[:n])
	}
	if r.read > r.want {
		return n, fmt.Errorf("%w: entry %q inflates past its declared size", ErrInflate, r.name)
	}
	if err == nil {
		return n, nil
	}
	if err == io.EOF {
		if r.read < r.want {
			return n, fmt.Errorf("%w: entry %q ended at %d of %d bytes", ErrTruncated, r.name, r.read, r.want)
		}
		if r.verify && r.crc != r.crcOK {
			return n, fmt.Errorf("%w: entry %q crc32 %08x, directory records %08x", ErrMalformed, r.name, r.crc, r.crcOK)
		}
		return n, io.EOF
	}
	return n, mapInflateErr(r.name, err)
}

// mapInflateErr folds compress/flate failures into the package errors.
func mapInflateErr(name string, err error) error {
	var corrupt flate.CorruptInputError
	if errors.As(err, &corrupt) {
		return fmt.Errorf("%w: entry %q: corrupt stream at offset %d", ErrInflate, name, int64(corrupt))
	}
	var internal flate.InternalError
	if errors.As(err, &internal) {
		return fmt.Errorf("%w: entry %q: %s", ErrInflate, name, string(internal))
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: entry %q: compressed data ended early", ErrTruncated, name)
	}
	return err
}

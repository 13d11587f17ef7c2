package xlstream

import (
	"errors"
	"fmt"

	"github.com/javajack/xlstream/xmlscan"
	"github.com/javajack/xlstream/zipar"
)

// Sentinel errors for every failure mode of the reader. Callers match
// with errors.Is; wrapped messages carry the detail. The archive and
// XML sentinels are the subpackages' own, re-exported so the whole
// taxonomy lives in one place.
var (
	// ErrMalformedArchive reports a container whose end-of-central-directory
	// record is missing or whose directory records are broken, and an
	// entry whose CRC-32 does not match when verification is enabled.
	ErrMalformedArchive = zipar.ErrMalformed

	// ErrUnsupportedMethod reports an entry compressed with a method
	// other than stored or deflate.
	ErrUnsupportedMethod = zipar.ErrUnsupportedMethod

	// ErrUnsupportedFeature reports an encrypted entry or a ZIP64
	// feature beyond the size extension.
	ErrUnsupportedFeature = zipar.ErrUnsupportedFeature

	// ErrInflate reports a corrupt DEFLATE stream.
	ErrInflate = zipar.ErrInflate

	// ErrTruncated reports a byte stream that ended before the expected
	// payload length.
	ErrTruncated = zipar.ErrTruncated

	// ErrMalformedXml reports input rejected by the XML scanner.
	ErrMalformedXml = xmlscan.ErrMalformed

	// ErrMissingPart reports a required part absent from the archive.
	// The wrapped message names the part path.
	ErrMissingPart = errors.New("missing part")

	// ErrMalformedWorkbook reports workbook XML or relationships that
	// cannot be resolved into a sheet list.
	ErrMalformedWorkbook = errors.New("malformed workbook")

	// ErrMalformedSheet reports non-monotonic row ordinals or other
	// structural violations inside a worksheet part.
	ErrMalformedSheet = errors.New("malformed sheet")

	// ErrMissingSharedStrings reports a shared-string cell in a
	// workbook that has no shared-strings part.
	ErrMissingSharedStrings = errors.New("missing shared strings part")

	// ErrInvalidArgument reports a zero count, a negative start, an
	// unknown sheet, or a buffer too small to be an archive.
	ErrInvalidArgument = errors.New("invalid argument")
)

// missingPart wraps ErrMissingPart with the part path.
func missingPart(path string) error {
	return fmt.Errorf("%w: %s", ErrMissingPart, path)
}

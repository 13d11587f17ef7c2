package xlstream

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/javajack/xlstream/xmlscan"
	"github.com/javajack/xlstream/zipar"
)

// sstTable is the lazily built shared-string table. It is populated by
// one streaming pass over the shared-strings part, triggered by the
// first cell of type "s"; a workbook without such cells never pays for
// the pass.
type sstTable struct {
	archive *zipar.Archive
	path    string // "" when the part is absent
	loaded  bool
	strings []string

	// pace, when set, paces the build pass the same way worksheet
	// inflation is paced.
	pace          *pacer
	bytesPerYield int64
}

// lookup resolves a 0-based shared-string index, building the table on
// first use.
func (t *sstTable) lookup(index int) (string, error) {
	if !t.loaded {
		if t.path == "" {
			return "", fmt.Errorf("%w: cell references shared string %d", ErrMissingSharedStrings, index)
		}
		strs, err := t.load()
		if err != nil {
			return "", err
		}
		t.strings = strs
		t.loaded = true
	}
	if index < 0 || index >= len(t.strings) {
		return "", fmt.Errorf("%w: shared string index %d out of range (table has %d)",
			ErrMalformedSheet, index, len(t.strings))
	}
	return t.strings[index], nil
}

// load streams the shared-strings part once, collecting one string
// per si element in document order.
func (t *sstTable) load() ([]string, error) {
	e, ok := t.archive.Entry(t.path)
	if !ok {
		return nil, missingPart(t.path)
	}
	r, err := t.archive.Open(e)
	if err != nil {
		return nil, err
	}
	if t.pace != nil {
		r = newMeteredReader(r, t.pace, t.bytesPerYield)
	}

	var table []string
	sc := xmlscan.New(r)
	for {
		ev, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if ev.Kind != xmlscan.Start {
			continue
		}
		switch ev.Name {
		case "sst":
			if v, ok := ev.Attr("uniqueCount"); ok {
				if n, err := strconv.Atoi(v); err == nil && n >= 0 {
					table = make([]string, 0, n)
				}
			}
		case "si":
			s, err := readFlattenedText(sc)
			if err != nil {
				return nil, err
			}
			table = append(table, s)
		}
	}
	return table, nil
}

// readFlattenedText consumes the element whose start tag was just
// returned and concatenates the text of every descendant t element.
// Rich-text runs (r/t) flatten to their plain text.
func readFlattenedText(sc *xmlscan.Scanner) (string, error) {
	var b strings.Builder
	depth := 1
	tDepth := 0
	for depth > 0 {
		ev, err := sc.Next()
		if err == io.EOF {
			return "", fmt.Errorf("%w: unexpected end of input inside string item", ErrMalformedXml)
		}
		if err != nil {
			return "", err
		}
		switch ev.Kind {
		case xmlscan.Start:
			depth++
			if ev.Name == "t" {
				tDepth++
			}
		case xmlscan.End:
			depth--
			if ev.Name == "t" && tDepth > 0 {
				tDepth--
			}
		case xmlscan.Text:
			if tDepth > 0 {
				b.Write(ev.Text)
			}
		}
	}
	return b.String(), nil
}

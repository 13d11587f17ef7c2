package xlstream

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/javajack/xlstream/xmlscan"
	"github.com/javajack/xlstream/zipar"
)

// BatchResult is one extracted row window.
type BatchResult struct {
	// Rows holds up to the requested count of rows, in sheet order. A
	// row's length is one past its last non-empty cell; a row that is
	// entirely empty has length zero.
	Rows [][]Cell

	// Start echoes the requested 0-based first row ordinal.
	Start int

	// Returned is len(Rows).
	Returned int

	// Done is true when the end of the sheet was reached before the
	// window filled; remaining requested rows do not exist.
	Done bool
}

// extractor drives one pass over a worksheet part.
type extractor struct {
	sc           *xmlscan.Scanner
	sst          *sstTable
	pace         *pacer
	rowsPerYield int
	rowsSinceYld int
}

// newSheetExtractor opens the worksheet part and positions an
// extractor just inside its sheetData element. found is false for a
// worksheet with no sheetData element at all, which reads as a sheet
// with zero rows.
func newSheetExtractor(p *pacer, a *zipar.Archive, sheet SheetInfo, sst *sstTable, o *Options) (x *extractor, found bool, err error) {
	e, ok := a.Entry(sheet.PartPath)
	if !ok {
		return nil, false, missingPart(sheet.PartPath)
	}

	var r io.Reader
	if o.verifyCRC {
		r, err = a.OpenVerify(e)
	} else {
		r, err = a.Open(e)
	}
	if err != nil {
		return nil, false, err
	}

	x = &extractor{
		sc:           xmlscan.New(newMeteredReader(r, p, o.bytesPerYield)),
		sst:          sst,
		pace:         p,
		rowsPerYield: o.rowsPerYield,
	}
	found, err = x.seekSheetData()
	if err != nil {
		return nil, false, err
	}
	return x, found, nil
}

// extractWindow scans the worksheet part for sheet and returns the
// half-open row window [start, start+count).
func extractWindow(p *pacer, a *zipar.Archive, sheet SheetInfo, sst *sstTable, start, count int, o *Options) (BatchResult, error) {
	x, found, err := newSheetExtractor(p, a, sheet, sst, o)
	if err != nil {
		return BatchResult{}, err
	}
	if !found {
		return BatchResult{Rows: [][]Cell{}, Start: start, Done: true}, nil
	}
	return x.readWindow(start, count)
}

// seekSheetData advances the scanner to just inside the sheetData
// element, skipping the subtrees that precede it.
func (x *extractor) seekSheetData() (bool, error) {
	seenRoot := false
	for {
		ev, err := x.sc.Next()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if ev.Kind != xmlscan.Start {
			continue
		}
		switch {
		case ev.Name == "sheetData":
			return true, nil
		case !seenRoot:
			seenRoot = true // the worksheet root element
		default:
			if err := x.sc.Skip(); err != nil {
				return false, err
			}
		}
	}
}

// readWindow collects the half-open window [start, start+count). Done
// stays false when the window filled before sheetData ended, even if
// no further rows happen to exist.
func (x *extractor) readWindow(start, count int) (BatchResult, error) {
	res := BatchResult{Rows: [][]Cell{}, Start: start}
	done, err := x.iterate(start, func(_ int, row []Cell) bool {
		res.Rows = append(res.Rows, row)
		res.Returned++
		return res.Returned < count
	})
	if err != nil {
		return BatchResult{}, err
	}
	res.Done = done
	return res, nil
}

// iterate walks row elements from logical ordinal start onward,
// handing each materialised row to emit until emit returns false or
// sheetData ends. It returns done=true only in the latter case.
//
// Rows before start are counted but not materialised; ordinal gaps
// declared by the r attribute reach emit as empty rows from start
// onward and are elided entirely before it.
func (x *extractor) iterate(start int, emit func(ord int, row []Cell) bool) (done bool, err error) {
	next := 0 // logical ordinal of the next row element if it has no r attribute

	for {
		ev, err := x.sc.Next()
		if err == io.EOF {
			// Well-formed end of document; sheetData was closed.
			return true, nil
		}
		if err != nil {
			return false, err
		}

		switch ev.Kind {
		case xmlscan.End:
			if ev.Name == "sheetData" {
				return true, nil
			}
		case xmlscan.Start:
			if ev.Name != "row" {
				if err := x.sc.Skip(); err != nil {
					return false, err
				}
				continue
			}

			ord := next
			if v, ok := ev.Attr("r"); ok {
				n, err := strconv.Atoi(v)
				if err != nil || n < 1 {
					return false, fmt.Errorf("%w: row ordinal %q", ErrMalformedSheet, v)
				}
				ord = n - 1
			}
			if ord < next {
				return false, fmt.Errorf("%w: row %d out of order after row %d", ErrMalformedSheet, ord+1, next)
			}

			// Rows absent from the XML across the gap.
			for ; next < ord; next++ {
				if next >= start && !emit(next, []Cell{}) {
					return false, nil
				}
			}

			if next < start {
				if err := x.sc.Skip(); err != nil {
					return false, err
				}
				next++
			} else {
				row, err := x.readRow()
				if err != nil {
					return false, err
				}
				more := emit(next, row)
				next++
				if !more {
					return false, nil
				}
			}
			if err := x.rowTick(); err != nil {
				return false, err
			}
		}
	}
}

// rowTick is the between-rows suspension point.
func (x *extractor) rowTick() error {
	x.rowsSinceYld++
	if x.rowsSinceYld < x.rowsPerYield {
		return nil
	}
	x.rowsSinceYld = 0
	return x.pace.pause()
}

// readRow consumes the row element whose start tag was just returned
// and assembles its cells by column index.
func (x *extractor) readRow() ([]Cell, error) {
	cells := []Cell{}
	lastCol := -1
	for {
		ev, err := x.sc.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: unexpected end of input inside row", ErrMalformedXml)
		}
		if err != nil {
			return nil, err
		}
		switch ev.Kind {
		case xmlscan.End:
			if ev.Name == "row" {
				return trimRow(cells), nil
			}
		case xmlscan.Start:
			if ev.Name != "c" {
				if err := x.sc.Skip(); err != nil {
					return nil, err
				}
				continue
			}

			// Letterless or absent references take the next column.
			col := lastCol + 1
			if ref, ok := ev.Attr("r"); ok {
				c, hasCol, err := refColumn(ref)
				if err != nil {
					return nil, fmt.Errorf("%w: cell reference %q", ErrMalformedSheet, ref)
				}
				if hasCol {
					col = c
				}
			}
			typ, _ := ev.Attr("t")

			cell, err := x.readCell(typ)
			if err != nil {
				return nil, err
			}
			for len(cells) <= col {
				cells = append(cells, Cell{})
			}
			cells[col] = cell // duplicate references: the last one wins
			lastCol = col
		}
	}
}

// trimRow cuts trailing empty cells so a row's length is one past its
// last non-empty cell.
func trimRow(cells []Cell) []Cell {
	last := -1
	for i := range cells {
		if !cells[i].IsEmpty() {
			last = i
		}
	}
	return cells[:last+1]
}

// readCell consumes the c element whose start tag was just returned,
// gathering the v text (or the flattened is subtree for inline
// strings) and materialising the value for the declared type.
func (x *extractor) readCell(typ string) (Cell, error) {
	var v strings.Builder
	var inline strings.Builder
	hasV, hasInline := false, false
	for {
		ev, err := x.sc.Next()
		if err == io.EOF {
			return Cell{}, fmt.Errorf("%w: unexpected end of input inside cell", ErrMalformedXml)
		}
		if err != nil {
			return Cell{}, err
		}
		switch ev.Kind {
		case xmlscan.End:
			if ev.Name == "c" {
				return x.materialise(typ, v.String(), hasV, inline.String(), hasInline)
			}
		case xmlscan.Start:
			switch ev.Name {
			case "v":
				hasV = true
				if err := x.readElementText(&v); err != nil {
					return Cell{}, err
				}
			case "is":
				hasInline = true
				s, err := readFlattenedText(x.sc)
				if err != nil {
					return Cell{}, err
				}
				inline.WriteString(s)
			default:
				// formulas, extension lists
				if err := x.sc.Skip(); err != nil {
					return Cell{}, err
				}
			}
		}
	}
}

// readElementText collects the direct text of the element whose start
// tag was just returned, up to its end tag.
func (x *extractor) readElementText(b *strings.Builder) error {
	depth := 1
	for depth > 0 {
		ev, err := x.sc.Next()
		if err == io.EOF {
			return fmt.Errorf("%w: unexpected end of input inside value", ErrMalformedXml)
		}
		if err != nil {
			return err
		}
		switch ev.Kind {
		case xmlscan.Start:
			depth++
		case xmlscan.End:
			depth--
		case xmlscan.Text:
			if depth == 1 {
				b.Write(ev.Text)
			}
		}
	}
	return nil
}

// materialise builds the Cell for a parsed c element.
//
// Numeric text parses as IEEE-754 double; failures become "#NUM"
// cells, not call failures. Booleans accept exactly "0" and "1".
// Unknown type codes surface the raw v text as Text.
func (x *extractor) materialise(typ, v string, hasV bool, inline string, hasInline bool) (Cell, error) {
	if !hasV && !hasInline {
		return Cell{}, nil
	}
	switch typ {
	case "", "n":
		if v == "" {
			return Cell{}, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errorCell("#NUM"), nil
		}
		return numberCell(f), nil
	case "b":
		switch v {
		case "1":
			return boolCell(true), nil
		case "0":
			return boolCell(false), nil
		default:
			return errorCell("#BOOL"), nil
		}
	case "s":
		idx, err := strconv.Atoi(v)
		if err != nil || idx < 0 {
			return Cell{}, fmt.Errorf("%w: shared string reference %q", ErrMalformedSheet, v)
		}
		s, err := x.sst.lookup(idx)
		if err != nil {
			return Cell{}, err
		}
		return textCell(s), nil
	case "str":
		return textCell(v), nil
	case "inlineStr":
		return textCell(inline), nil
	case "e":
		return errorCell(v), nil
	default:
		return textCell(v), nil
	}
}

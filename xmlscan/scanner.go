// Package xmlscan pulls a narrow stream of XML events out of a byte
// stream: start tags with their attributes, end tags, and character
// data. It is the cell-bearing subset of the worksheet grammar, not a
// general XML reader: namespaces are flattened to local names,
// comments and processing instructions are dropped, and document type
// declarations are rejected outright.
package xmlscan

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed reports input the scanner refuses: syntactically broken
// XML, or a DTD / external entity declaration.
var ErrMalformed = errors.New("malformed xml")

// Kind discriminates scanner events.
type Kind int

const (
	// Start is an opening tag. Self-closing tags produce a Start
	// immediately followed by an End.
	Start Kind = iota
	// End is a closing tag.
	End
	// Text is character data, with entity and numeric character
	// references already decoded. CDATA sections arrive as Text.
	Text
)

// Attr is one attribute on a start tag, with a namespace-free name.
type Attr struct {
	Name  string
	Value string
}

// Event is one pulled event. Name is the local tag name (the part
// after any ':') for Start and End. Text is only valid until the next
// call on the scanner.
type Event struct {
	Kind  Kind
	Name  string
	Attrs []Attr
	Text  []byte
}

// Attr returns the value of the named attribute on a Start event.
func (e *Event) Attr(name string) (string, bool) {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			return e.Attrs[i].Value, true
		}
	}
	return "", false
}

// Scanner pulls events from a byte stream.
type Scanner struct {
	dec   *xml.Decoder
	attrs []Attr // reused backing array for start-tag attributes
}

// New returns a Scanner over r. Input must be UTF-8.
func New(r io.Reader) *Scanner {
	dec := xml.NewDecoder(r)
	// Entities beyond the five predefined ones are undeclared and
	// therefore malformed; leave the decoder strict.
	dec.Strict = true
	return &Scanner{dec: dec}
}

// Next returns the next event, or io.EOF after the document ends.
func (s *Scanner) Next() (Event, error) {
	for {
		tok, err := s.dec.Token()
		if err != nil {
			if err == io.EOF {
				return Event{}, io.EOF
			}
			return Event{}, mapErr(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			s.attrs = s.attrs[:0]
			for _, a := range t.Attr {
				if a.Name.Local == "xmlns" || a.Name.Space == "xmlns" {
					continue
				}
				s.attrs = append(s.attrs, Attr{Name: a.Name.Local, Value: a.Value})
			}
			return Event{Kind: Start, Name: t.Name.Local, Attrs: s.attrs}, nil
		case xml.EndElement:
			return Event{Kind: End, Name: t.Name.Local}, nil
		case xml.CharData:
			return Event{Kind: Text, Text: t}, nil
		case xml.Directive:
			return Event{}, fmt.Errorf("%w: document type declarations are not accepted", ErrMalformed)
		case xml.Comment, xml.ProcInst:
			// skipped
		}
	}
}

// Skip advances past the end tag of the element whose start tag was
// just returned, counting depth rather than materialising the subtree.
func (s *Scanner) Skip() error {
	if err := s.dec.Skip(); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: unexpected end of input inside element", ErrMalformed)
		}
		return mapErr(err)
	}
	return nil
}

// mapErr folds decoder failures into ErrMalformed, leaving non-XML
// errors (for instance a failing underlying reader) untouched.
func mapErr(err error) error {
	var syn *xml.SyntaxError
	if errors.As(err, &syn) {
		return fmt.Errorf("%w: line %d: %s", ErrMalformed, syn.Line, syn.Msg)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: unexpected end of input", ErrMalformed)
	}
	return err
}

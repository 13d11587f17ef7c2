package xlstream

import (
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/javajack/xlstream/xmlscan"
	"github.com/javajack/xlstream/zipar"
)

const (
	workbookPart     = "xl/workbook.xml"
	workbookRelsPart = "xl/_rels/workbook.xml.rels"

	sharedStringsRelType = "/sharedStrings"
	stylesRelType        = "/styles"

	defaultSharedStringsPart = "xl/sharedStrings.xml"
	defaultStylesPart        = "xl/styles.xml"
)

// SheetInfo describes one worksheet in workbook order.
type SheetInfo struct {
	// Name is the worksheet's display name.
	Name string

	// PartPath is the archive path of the worksheet part.
	PartPath string

	// RelID is the workbook-relationship id that bound the part.
	RelID string

	// SheetID is the workbook's numeric sheet id.
	SheetID uint32
}

// workbookIndex is the resolved workbook structure: the ordered sheet
// list and the paths of the optional shared-strings and styles parts
// (empty when absent; their absence is non-fatal).
type workbookIndex struct {
	sheets            []SheetInfo
	sharedStringsPath string
	stylesPath        string
}

// sheet finds a sheet descriptor by exact name.
func (x *workbookIndex) sheet(name string) (SheetInfo, bool) {
	for _, s := range x.sheets {
		if s.Name == name {
			return s, true
		}
	}
	return SheetInfo{}, false
}

// readWorkbookIndex streams the workbook part and its relationships
// part out of the archive and resolves every sheet to its part path.
func readWorkbookIndex(a *zipar.Archive) (*workbookIndex, error) {
	sheets, err := readSheetList(a)
	if err != nil {
		return nil, err
	}
	rels, err := readRelationships(a)
	if err != nil {
		return nil, err
	}

	idx := &workbookIndex{sheets: sheets}
	for i := range idx.sheets {
		target, ok := rels.targets[idx.sheets[i].RelID]
		if !ok {
			return nil, fmt.Errorf("%w: sheet %q references unknown relationship %q",
				ErrMalformedWorkbook, idx.sheets[i].Name, idx.sheets[i].RelID)
		}
		idx.sheets[i].PartPath = resolvePartPath(target)
	}

	idx.sharedStringsPath = locatePart(a, rels.sharedStrings, defaultSharedStringsPart)
	idx.stylesPath = locatePart(a, rels.styles, defaultStylesPart)
	return idx, nil
}

// readSheetList collects each sheet element's name, sheetId and r:id
// attributes from xl/workbook.xml, in document order.
func readSheetList(a *zipar.Archive) ([]SheetInfo, error) {
	e, ok := a.Entry(workbookPart)
	if !ok {
		return nil, missingPart(workbookPart)
	}
	r, err := a.Open(e)
	if err != nil {
		return nil, err
	}

	var sheets []SheetInfo
	sc := xmlscan.New(r)
	for {
		ev, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedWorkbook, workbookPart, err)
		}
		if ev.Kind != xmlscan.Start || ev.Name != "sheet" {
			continue
		}

		var s SheetInfo
		s.Name, _ = ev.Attr("name")
		s.RelID, _ = ev.Attr("id")
		if v, ok := ev.Attr("sheetId"); ok {
			id, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: sheet %q has sheetId %q", ErrMalformedWorkbook, s.Name, v)
			}
			s.SheetID = uint32(id)
		}
		if s.Name == "" || s.RelID == "" {
			return nil, fmt.Errorf("%w: sheet element without name or r:id", ErrMalformedWorkbook)
		}
		sheets = append(sheets, s)
	}
	return sheets, nil
}

// relationships is the decoded workbook relationships part.
type relationships struct {
	targets       map[string]string // id → raw target
	sharedStrings string            // raw target, "" when absent
	styles        string
}

// readRelationships builds the id→target map from the workbook rels
// part and picks out the shared-strings and styles targets by type.
func readRelationships(a *zipar.Archive) (*relationships, error) {
	e, ok := a.Entry(workbookRelsPart)
	if !ok {
		return nil, missingPart(workbookRelsPart)
	}
	r, err := a.Open(e)
	if err != nil {
		return nil, err
	}

	rels := &relationships{targets: make(map[string]string)}
	sc := xmlscan.New(r)
	for {
		ev, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedWorkbook, workbookRelsPart, err)
		}
		if ev.Kind != xmlscan.Start || ev.Name != "Relationship" {
			continue
		}

		id, _ := ev.Attr("Id")
		target, _ := ev.Attr("Target")
		relType, _ := ev.Attr("Type")
		if id == "" || target == "" {
			return nil, fmt.Errorf("%w: relationship without Id or Target", ErrMalformedWorkbook)
		}
		rels.targets[id] = target

		switch {
		case strings.HasSuffix(relType, sharedStringsRelType):
			rels.sharedStrings = target
		case strings.HasSuffix(relType, stylesRelType):
			rels.styles = target
		}
	}
	return rels, nil
}

// resolvePartPath resolves a relationship target against the xl/
// directory. Absolute targets ("/xl/...") address the archive root.
func resolvePartPath(target string) string {
	if strings.HasPrefix(target, "/") {
		return path.Clean(target[1:])
	}
	return path.Clean(path.Join("xl", target))
}

// locatePart resolves an optional part: the relationship target when
// declared, otherwise the conventional path if such an entry exists.
func locatePart(a *zipar.Archive, target, conventional string) string {
	if target != "" {
		return resolvePartPath(target)
	}
	if _, ok := a.Entry(conventional); ok {
		return conventional
	}
	return ""
}

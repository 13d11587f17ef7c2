package xlstream

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook creates a workbook in memory through excelize and
// returns its bytes. The populate callback receives the fresh file
// with its default "Sheet1".
func buildWorkbook(t *testing.T, populate func(f *excelize.File)) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if populate != nil {
		populate(f)
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// createHeaderDataWorkbook builds the canonical two-row workbook with
// one sheet "S": a header row of shared strings and one data row.
//
//	A1: "id"  B1: "name"
//	A2: 1     B2: "Ada"
func createHeaderDataWorkbook(t *testing.T) []byte {
	t.Helper()
	return buildWorkbook(t, func(f *excelize.File) {
		require.NoError(t, f.SetSheetName("Sheet1", "S"))
		require.NoError(t, f.SetCellValue("S", "A1", "id"))
		require.NoError(t, f.SetCellValue("S", "B1", "name"))
		require.NoError(t, f.SetCellValue("S", "A2", 1))
		require.NoError(t, f.SetCellValue("S", "B2", "Ada"))
	})
}

// createTallWorkbook builds one sheet "S" with rows 0..n-1, each row
// carrying its ordinal in column A and a shared string in column B.
func createTallWorkbook(t *testing.T, n int) []byte {
	t.Helper()
	return buildWorkbook(t, func(f *excelize.File) {
		require.NoError(t, f.SetSheetName("Sheet1", "S"))
		for i := 0; i < n; i++ {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("S", cell, i))
			cell, err = excelize.CoordinatesToCellName(2, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("S", cell, "row"))
		}
	})
}

// zipParts assembles an archive from part path to body, deflated the
// ordinary way. Raw parts give tests exact control over worksheet XML
// that excelize would normalise away.
func zipParts(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const testWorkbookXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets><sheet name="S" sheetId="1" r:id="rId1"/></sheets>
</workbook>`

const testRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings" Target="sharedStrings.xml"/>
</Relationships>`

const testRelsNoSSTXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
</Relationships>`

// rawWorkbook builds a single-sheet archive around the given sheetData
// body. sharedStrings is included (and wired through the rels part)
// only when non-empty.
func rawWorkbook(t *testing.T, sheetData, sharedStrings string) []byte {
	t.Helper()
	sheet := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
<dimension ref="A1"/><sheetViews><sheetView workbookViewId="0"/></sheetViews>
<sheetData>` + sheetData + `</sheetData>
</worksheet>`

	parts := map[string]string{
		"xl/workbook.xml":          testWorkbookXML,
		"xl/worksheets/sheet1.xml": sheet,
	}
	if sharedStrings != "" {
		parts["xl/_rels/workbook.xml.rels"] = testRelsXML
		parts["xl/sharedStrings.xml"] = sharedStrings
	} else {
		parts["xl/_rels/workbook.xml.rels"] = testRelsNoSSTXML
	}
	return zipParts(t, parts)
}

// sstXML wraps string items into a shared-strings part.
func sstXML(items ...string) string {
	body := ""
	for _, it := range items {
		body += "<si><t>" + it + "</t></si>"
	}
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">` + body + `</sst>`
}

// values flattens a row to its boundary encoding for compact asserts.
func values(row []Cell) []any {
	out := make([]any, len(row))
	for i, c := range row {
		out[i] = c.Value()
	}
	return out
}

// allValues flattens a whole batch.
func allValues(rows [][]Cell) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = values(r)
	}
	return out
}

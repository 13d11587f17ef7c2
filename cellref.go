package xlstream

import "fmt"

// ColToName converts a 0-based column index to its letter name.
// 0→"A", 25→"Z", 26→"AA", 702→"AAA"
func ColToName(col int) string {
	result := ""
	col++ // 1-based for the carry arithmetic
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}

// NameToCol converts a column letter name to a 0-based index.
// "A"→0, "Z"→25, "AA"→26
func NameToCol(name string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("empty column name")
	}
	col := 0
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("invalid column name: %q", name)
		}
		col = col*26 + int(ch-'A') + 1
	}
	return col - 1, nil
}

// splitCellRef splits a worksheet cell reference like "B7" into its
// column letters and row digits. Either part may be empty; a cell
// element without column letters takes the next sequential column.
func splitCellRef(ref string) (letters, digits string) {
	i := 0
	for i < len(ref) {
		ch := ref[i]
		if (ch < 'A' || ch > 'Z') && (ch < 'a' || ch > 'z') {
			break
		}
		i++
	}
	return ref[:i], ref[i:]
}

// refColumn resolves the 0-based column of a cell reference, or
// ok=false when the reference carries no column letters.
func refColumn(ref string) (col int, ok bool, err error) {
	letters, _ := splitCellRef(ref)
	if letters == "" {
		return 0, false, nil
	}
	col, err = NameToCol(letters)
	if err != nil {
		return 0, false, err
	}
	return col, true, nil
}

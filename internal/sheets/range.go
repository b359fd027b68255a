package sheets

import "fmt"

// ColumnName converts a 1-based column number to spreadsheet letters.
func ColumnName(n int) string {
	if n < 1 {
		return "A"
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// A1Range is the range covering cols columns and rows rows from A1 of sheet.
func A1Range(sheet string, cols, rows int) string {
	if rows < 1 {
		rows = 1
	}
	return fmt.Sprintf("'%s'!A1:%s%d", sheet, ColumnName(cols), rows)
}

package importer

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/h2non/filetype"
	"github.com/jfyne/csvd"
	"github.com/xuri/excelize/v2"
)

const headerScanRows = 10

// ReadRows returns every row of a spreadsheet blob. XLSX workbooks are
// read from their first sheet; anything else is treated as delimited text
// and the delimiter is sniffed.
func ReadRows(name string, blob []byte) ([][]string, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%s: empty file", name)
	}

	kind, _ := filetype.Match(blob)
	if kind.Extension == "xlsx" || http.DetectContentType(blob) == "application/zip" {
		return readXLSX(name, blob)
	}
	return readDelimited(name, blob)
}

func readXLSX(name string, blob []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("%s: open workbook: %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", name)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%s: read sheet %s: %w", name, sheets[0], err)
	}
	return rows, nil
}

func readDelimited(name string, blob []byte) ([][]string, error) {
	blob = bytes.TrimPrefix(blob, []byte("\xef\xbb\xbf"))
	reader := csvd.NewReader(bytes.NewReader(blob))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: read csv: %w", name, err)
	}
	return rows, nil
}

// headerKey folds a column title for lookup: "Product Quantity",
// "product_quantity" and "ProductQuantity" are the same column.
func headerKey(title string) string {
	title = strings.TrimPrefix(title, "\ufeff")
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if r == ' ' || r == '_' || r == '-' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Columns maps a logical field name to its position in a row.
type Columns map[string]int

// Cell returns the trimmed value of a field, or "" when the column is
// absent or the row is short.
func (c Columns) Cell(row []string, field string) string {
	idx, ok := c[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// LocateHeader finds the first row among the leading rows that names every
// required field. aliases maps each field to the header keys it accepts, in
// order of preference: the first alias present in the row wins regardless
// of column position.
func LocateHeader(rows [][]string, aliases map[string][]string, required ...string) (int, Columns, error) {
	limit := min(len(rows), headerScanRows)
	for i := 0; i < limit; i++ {
		positions := map[string]int{}
		for j, title := range rows[i] {
			key := headerKey(title)
			if _, seen := positions[key]; !seen {
				positions[key] = j
			}
		}
		cols := Columns{}
		for field, keys := range aliases {
			for _, k := range keys {
				if j, ok := positions[k]; ok {
					cols[field] = j
					break
				}
			}
		}
		complete := true
		for _, field := range required {
			if _, ok := cols[field]; !ok {
				complete = false
				break
			}
		}
		if complete {
			return i, cols, nil
		}
	}
	return -1, nil, errors.New("header row not found: need " + strings.Join(required, ", "))
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

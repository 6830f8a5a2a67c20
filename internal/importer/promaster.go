package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"promaster/internal"
	"promaster/internal/util"
)

const (
	FieldPartCode = "partCode"
	FieldQuantity = "quantity"
	FieldCost     = "cost"
	FieldPrice    = "price"
	FieldAccount  = "account"
)

var promasterColumns = map[string][]string{
	FieldPartCode: {"partcode", "code", "itemcode"},
	FieldQuantity: {"productquantity", "quantity", "qty"},
	FieldCost:     {"productcost", "unitcost", "cost"},
	FieldPrice:    {"productprice", "unitprice", "price"},
	FieldAccount:  {"accountnumber", "account"},
}

var reExportSuffix = regexp.MustCompile(`(?i)_ShipmentProductWithCostsAndPrice(\.[a-z0-9]+)?$`)

// OrderRef derives the order reference from an export file name:
// "12345.A_ShipmentProductWithCostsAndPrice.csv" gives "12345.A".
func OrderRef(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if loc := reExportSuffix.FindStringIndex(base); loc != nil {
		return base[:loc[0]]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// CustomerPoNo is the part of an order reference before the first dot.
func CustomerPoNo(orderRef string) string {
	if i := strings.Index(orderRef, "."); i >= 0 {
		return orderRef[:i]
	}
	return orderRef
}

func ReadFile(path string) ([]internal.OrderLine, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Read(filepath.Base(path), blob)
}

// Read parses one ProMaster shipment export. Rows without a part code are
// skipped. A quantity that does not parse is kept as 0 so the order fails
// validation instead of the whole import.
func Read(name string, blob []byte) ([]internal.OrderLine, error) {
	rows, err := ReadRows(name, blob)
	if err != nil {
		return nil, err
	}
	headerAt, cols, err := LocateHeader(rows, promasterColumns, FieldPartCode, FieldQuantity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	ref := OrderRef(name)
	poNo := CustomerPoNo(ref)
	var out []internal.OrderLine
	for i, row := range rows[headerAt+1:] {
		if blankRow(row) {
			continue
		}
		code := cols.Cell(row, FieldPartCode)
		if code == "" {
			continue
		}
		qty, _ := util.ParseNumber(cols.Cell(row, FieldQuantity))
		out = append(out, internal.OrderLine{
			LineNo:           headerAt + i + 2,
			SourceFile:       name,
			OrderRef:         ref,
			CustomerPoNo:     poNo,
			AccountToken:     cols.Cell(row, FieldAccount),
			RawItemCode:      code,
			ResolvedItemCode: code,
			Quantity:         qty,
			UnitCost:         decimalCell(cols.Cell(row, FieldCost)),
			UnitPrice:        decimalCell(cols.Cell(row, FieldPrice)),
		})
	}
	return out, nil
}

func decimalCell(cell string) decimal.Decimal {
	d, ok := util.ParseDecimal(cell)
	if !ok {
		return decimal.Zero
	}
	return d
}

package barem

import "fmt"

// Column layout of a full tier row. Column 0 holds the selection radio.
const (
	colTermDays = iota + 1
	colMinQuantity
	colFreeGoods
	colInstitutional
	colCommercial
	colUnitPrice
)

// MinRowCells is the smallest cell count a row needs to be considered.
const MinRowCells = 6

// RowError reports a row that could not be converted into a Tier.
type RowError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: column %s value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ExtractRow maps the trimmed cell texts of one row to a Tier. ok is false
// when the row is ineligible (too few cells, or neither a term nor a price).
// A non-nil error means a numeric cell could not be parsed.
func ExtractRow(row int, cells []string) (tier Tier, ok bool, err error) {
	if len(cells) < MinRowCells {
		return Tier{}, false, nil
	}

	cell := func(i int, def string) string {
		if i < len(cells) {
			return cells[i]
		}
		return def
	}

	termDays := ParseInt(cell(colTermDays, "0"), 0)
	minQty := ParseInt(cell(colMinQuantity, "1"), 1)
	freeGoods := cell(colFreeGoods, "0")

	institutional, err := ParseDecimal(cell(colInstitutional, ""))
	if err != nil {
		return Tier{}, false, &RowError{Row: row, Column: "institutional_discount", Value: cell(colInstitutional, ""), Err: err}
	}
	commercial, err := ParseDecimal(cell(colCommercial, ""))
	if err != nil {
		return Tier{}, false, &RowError{Row: row, Column: "commercial_discount", Value: cell(colCommercial, ""), Err: err}
	}
	unitPrice, err := ParseDecimal(cell(colUnitPrice, "0"))
	if err != nil {
		return Tier{}, false, &RowError{Row: row, Column: "unit_price", Value: cell(colUnitPrice, "0"), Err: err}
	}

	if termDays <= 0 && unitPrice <= 0 {
		return Tier{}, false, nil
	}

	return NewTier(termDays, minQty, freeGoods, institutional, commercial, unitPrice), true, nil
}

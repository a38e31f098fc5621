// internal/output/types.go
//
// Package output renders pricing tiers in the formats the parse command
// offers. Column names follow the tier wire format.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/valpere/barem-scraper/internal/barem"
)

// OutputFormat represents supported output formats
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
	FormatYAML  OutputFormat = "yaml"
	FormatExcel OutputFormat = "xlsx"
)

// ValidOutputFormats returns all valid output format values
func ValidOutputFormats() []OutputFormat {
	return []OutputFormat{FormatJSON, FormatCSV, FormatYAML, FormatExcel}
}

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case "yml":
		return FormatYAML, nil
	case "excel":
		return FormatExcel, nil
	}
	for _, valid := range ValidOutputFormats() {
		if f == valid {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %q", s)
}

// Columns lists tier fields in output order.
var Columns = []string{
	"Vade", "MinimumAdet", "MalFazlasi", "IskontoKurum",
	"IskontoTicari", "BirimFiyat", "Warehouse", "Discount",
}

// Writer writes tiers to an underlying stream.
type Writer interface {
	Write(tiers []barem.Tier) error
	Close() error
}

// NewWriter returns the writer for format over w.
func NewWriter(format OutputFormat, w io.Writer) (Writer, error) {
	switch format {
	case FormatJSON:
		return NewJSONWriter(w), nil
	case FormatCSV:
		return NewCSVWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	case FormatExcel:
		return NewExcelWriter(w, ExcelConfig{})
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// values returns the tier fields in Columns order.
func values(t barem.Tier) []interface{} {
	return []interface{}{
		t.TermDays, t.MinimumQuantity, t.FreeGoodsNote, t.InstitutionalDiscountPct,
		t.CommercialDiscountPct, t.UnitPrice, t.Warehouse, t.EffectiveDiscountPct,
	}
}

// internal/output/csv.go
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/valpere/barem-scraper/internal/barem"
)

// CSVWriter writes tiers in CSV format with a header row
type CSVWriter struct {
	writer *csv.Writer
}

// NewCSVWriter creates a new CSV writer
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{writer: csv.NewWriter(w)}
}

func (w *CSVWriter) Write(tiers []barem.Tier) error {
	if err := w.writer.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, t := range tiers {
		record := make([]string, 0, len(Columns))
		for _, v := range values(t) {
			record = append(record, formatCell(v))
		}
		if err := w.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes buffered rows
func (w *CSVWriter) Close() error {
	w.writer.Flush()
	return w.writer.Error()
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

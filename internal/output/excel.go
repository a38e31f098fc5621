// internal/output/excel.go
package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/valpere/barem-scraper/internal/barem"
)

// ExcelConfig configuration for Excel output
type ExcelConfig struct {
	SheetName    string         `json:"sheet_name"`
	FreezePane   bool           `json:"freeze_pane"`
	AutoFilter   bool           `json:"auto_filter"`
	ColumnWidths map[string]int `json:"column_widths"`
	NumberFormat string         `json:"number_format"`
}

// ExcelWriter writes tiers to a single worksheet and streams the workbook
// on Close.
type ExcelWriter struct {
	out       io.Writer
	file      *excelize.File
	config    ExcelConfig
	sheetName string
	row       int
}

// NewExcelWriter creates a new Excel writer
func NewExcelWriter(out io.Writer, config ExcelConfig) (*ExcelWriter, error) {
	if config.SheetName == "" {
		config.SheetName = "Barem"
	}
	if config.NumberFormat == "" {
		config.NumberFormat = "0.00"
	}

	file := excelize.NewFile()

	// Rename the default sheet
	defaultSheet := file.GetSheetName(0)
	if defaultSheet != config.SheetName {
		if err := file.SetSheetName(defaultSheet, config.SheetName); err != nil {
			return nil, fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	return &ExcelWriter{
		out:       out,
		file:      file,
		config:    config,
		sheetName: config.SheetName,
		row:       1,
	}, nil
}

func (w *ExcelWriter) Write(tiers []barem.Tier) error {
	if err := w.writeHeaders(); err != nil {
		return err
	}

	numberStyle, err := w.file.NewStyle(&excelize.Style{CustomNumFmt: &w.config.NumberFormat})
	if err != nil {
		return err
	}

	for _, t := range tiers {
		for col, v := range values(t) {
			cell := columnName(col+1) + strconv.Itoa(w.row)
			if err := w.file.SetCellValue(w.sheetName, cell, v); err != nil {
				return err
			}
			if _, ok := v.(float64); ok {
				if err := w.file.SetCellStyle(w.sheetName, cell, cell, numberStyle); err != nil {
					return err
				}
			}
		}
		w.row++
	}
	return nil
}

// writeHeaders writes the bold header row
func (w *ExcelWriter) writeHeaders() error {
	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return err
	}

	for col, header := range Columns {
		cell := columnName(col+1) + strconv.Itoa(w.row)
		if err := w.file.SetCellValue(w.sheetName, cell, header); err != nil {
			return err
		}
		if err := w.file.SetCellStyle(w.sheetName, cell, cell, style); err != nil {
			return err
		}
	}
	w.row++
	return nil
}

// Close applies formatting and writes the workbook
func (w *ExcelWriter) Close() error {
	defer w.file.Close()

	if err := w.applyFinalFormatting(); err != nil {
		return err
	}
	return w.file.Write(w.out)
}

// applyFinalFormatting applies final formatting to the worksheet
func (w *ExcelWriter) applyFinalFormatting() error {
	for col, header := range Columns {
		colName := columnName(col + 1)
		width := 14.0
		if custom, ok := w.config.ColumnWidths[header]; ok {
			width = float64(custom)
		}
		if err := w.file.SetColWidth(w.sheetName, colName, colName, width); err != nil {
			return err
		}
	}

	if w.config.AutoFilter && w.row > 2 {
		ref := "A1:" + columnName(len(Columns)) + strconv.Itoa(w.row-1)
		if err := w.file.AutoFilter(w.sheetName, ref, nil); err != nil {
			return err
		}
	}

	if w.config.FreezePane {
		if err := w.file.SetPanes(w.sheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
	}
	return nil
}

// columnName converts a column number to Excel column name (A, B, C, ..., AA, AB, etc.)
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}

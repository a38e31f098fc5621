// internal/output/json.go
package output

import (
	"encoding/json"
	"io"

	"github.com/valpere/barem-scraper/internal/barem"
)

// JSONWriter writes tiers as an indented JSON array
type JSONWriter struct {
	w io.Writer
}

// NewJSONWriter creates a new JSON writer
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: w}
}

func (w *JSONWriter) Write(tiers []barem.Tier) error {
	if tiers == nil {
		tiers = []barem.Tier{}
	}
	encoder := json.NewEncoder(w.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(tiers)
}

func (w *JSONWriter) Close() error { return nil }

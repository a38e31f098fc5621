package barem

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	nbspGlyph  = "\u00a0"
	nbspEntity = "&nbsp;"
)

// ParseInt returns the integer value of text when it consists only of ASCII
// digits, and def otherwise.
func ParseInt(text string, def int) int {
	if text == "" {
		return def
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return def
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return def
	}
	return n
}

// ParseDecimal parses a percentage or price cell. Blank and non-breaking
// space values are 0. Only the first comma becomes a decimal point, so
// "1.234,56" fails to parse; callers drop such rows.
func ParseDecimal(text string) (float64, error) {
	if text == "" || text == nbspGlyph || text == nbspEntity {
		return 0, nil
	}

	s := strings.ReplaceAll(text, "%", "")
	s = strings.Replace(s, ",", ".", 1)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse decimal %q: %w", text, err)
	}
	return v, nil
}

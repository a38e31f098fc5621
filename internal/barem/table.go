package barem

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"

	"github.com/valpere/barem-scraper/internal/utils"
)

const (
	// DefaultTableID is the id of the campaign table in the item-detail popup.
	DefaultTableID = "popup_tblKampanyalar"
	// DefaultTableIDSubstring matches alternative campaign table ids.
	DefaultTableIDSubstring = "kampanya"
)

// Table selection strategies, reported in Stats.
const (
	StrategyExactID   = "exact_id"
	StrategySubstring = "id_substring"
	StrategyFirst     = "first_table"
	StrategyNone      = "none"
)

// Stats summarises one extraction run.
type Stats struct {
	Strategy   string
	Rows       int
	Skipped    int
	Failed     int
	Duplicates int
}

// Extractor locates the tier table in a markup fragment and converts its rows.
type Extractor struct {
	tableID     string
	idSubstring string
	log         utils.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithTableID overrides the exact table id tried first.
func WithTableID(id string) ExtractorOption {
	return func(e *Extractor) {
		if id != "" {
			e.tableID = id
		}
	}
}

// WithTableIDSubstring overrides the case-insensitive id fragment tried second.
func WithTableIDSubstring(s string) ExtractorOption {
	return func(e *Extractor) {
		if s != "" {
			e.idSubstring = s
		}
	}
}

// WithLogger sets the logger used for per-row diagnostics.
func WithLogger(log utils.Logger) ExtractorOption {
	return func(e *Extractor) {
		if log != nil {
			e.log = log
		}
	}
}

// NewExtractor creates an extractor with the portal defaults.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		tableID:     DefaultTableID,
		idSubstring: DefaultTableIDSubstring,
		log:         utils.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the deduplicated tiers found in markup, in row order.
// It never fails: unparseable markup or a missing table yields no tiers.
func (e *Extractor) Extract(markup string) []Tier {
	tiers, _ := e.ExtractWithStats(markup)
	return tiers
}

// ExtractWithStats is Extract plus a summary of what happened.
func (e *Extractor) ExtractWithStats(markup string) ([]Tier, Stats) {
	stats := Stats{Strategy: StrategyNone}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		e.log.Warnf("failed to parse item markup: %v", err)
		return []Tier{}, stats
	}

	table, strategy := e.selectTable(doc)
	stats.Strategy = strategy
	if table == nil {
		e.log.Warn("no tier table found in markup")
		return []Tier{}, stats
	}
	if strategy == StrategyFirst {
		e.log.Infof("no %q table found, using first table", e.idSubstring)
	}

	rows := table.Find("tr")
	if tbody := table.Find("tbody").First(); tbody.Length() > 0 {
		rows = tbody.Find("tr")
	}
	stats.Rows = rows.Length()
	e.log.Infof("found %d rows in tier table", stats.Rows)

	candidates := make([]Tier, 0, stats.Rows)
	rows.Each(func(i int, row *goquery.Selection) {
		var cells []string
		row.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, cellText(td))
		})

		tier, ok, err := ExtractRow(i, cells)
		if err != nil {
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				e.log.WithField("column", rowErr.Column).Warnf("skipping row: %v", err)
			} else {
				e.log.Warnf("skipping row %d: %v", i, err)
			}
			stats.Failed++
			return
		}
		if !ok {
			stats.Skipped++
			return
		}

		e.log.Debugf("tier: term=%d min_qty=%d price=%.2f", tier.TermDays, tier.MinimumQuantity, tier.UnitPrice)
		candidates = append(candidates, tier)
	})

	tiers := Deduplicate(candidates)
	stats.Duplicates = len(candidates) - len(tiers)
	if stats.Duplicates > 0 {
		e.log.Infof("removed %d duplicate tiers", stats.Duplicates)
	}

	return tiers, stats
}

// selectTable picks the exact id, then an id containing the substring
// (case-insensitively), then the first table.
func (e *Extractor) selectTable(doc *goquery.Document) (*goquery.Selection, string) {
	tables := doc.Find("table")
	if tables.Length() == 0 {
		return nil, StrategyNone
	}

	exact := tables.FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		return id == e.tableID
	})
	if exact.Length() > 0 {
		return exact.First(), StrategyExactID
	}

	// Casers keep state between calls, so each selection gets its own.
	fold := cases.Fold()
	needle := fold.String(e.idSubstring)
	partial := tables.FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, ok := s.Attr("id")
		return ok && id != "" && strings.Contains(fold.String(id), needle)
	})
	if partial.Length() > 0 {
		return partial.First(), StrategySubstring
	}

	return tables.First(), StrategyFirst
}

// cellText concatenates the cell's text nodes, each trimmed of surrounding
// whitespace.
func cellText(s *goquery.Selection) string {
	var b strings.Builder
	collectText(s, &b)
	return b.String()
}

func collectText(s *goquery.Selection, b *strings.Builder) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(strings.TrimSpace(c.Text()))
			return
		}
		collectText(c, b)
	})
}

// Deduplicate keeps the first tier for each (term, minimum quantity,
// free-goods note, unit price) key, preserving order.
func Deduplicate(tiers []Tier) []Tier {
	seen := make(map[tierKey]struct{}, len(tiers))
	unique := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		k := t.key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, t)
	}
	return unique
}

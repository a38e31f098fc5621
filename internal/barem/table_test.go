package barem

import (
	"fmt"
	"strings"
	"testing"
)

func tierRow(term, minQty, freeGoods, inst, comm, price string) string {
	return fmt.Sprintf(
		`<tr><td><input type="radio"></td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
		term, minQty, freeGoods, inst, comm, price,
	)
}

func campaignTable(id string, rows ...string) string {
	return fmt.Sprintf(`<table id=%q><thead><tr><th></th><th>Vade</th><th>Adet</th><th>MF</th><th>Kurum</th><th>Ticari</th><th>Fiyat</th></tr></thead><tbody>%s</tbody></table>`,
		id, strings.Join(rows, ""))
}

func TestExtractFixture(t *testing.T) {
	markup := campaignTable(DefaultTableID,
		tierRow("30", "1", "", "5", "0", "100.50"),
		tierRow("30", "1", "", "5", "0", "100.50"),
		tierRow("60", "5", "MF", "0", "10", "95,00"),
	)

	tiers, stats := NewExtractor().ExtractWithStats(markup)
	if len(tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d: %+v", len(tiers), tiers)
	}
	if stats.Strategy != StrategyExactID {
		t.Errorf("expected strategy %s, got %s", StrategyExactID, stats.Strategy)
	}
	if stats.Duplicates != 1 {
		t.Errorf("expected 1 duplicate, got %d", stats.Duplicates)
	}

	first := tiers[0]
	if first.TermDays != 30 || first.MinimumQuantity != 1 || first.FreeGoodsNote != "" {
		t.Errorf("unexpected first tier: %+v", first)
	}
	if first.UnitPrice != 100.50 || first.EffectiveDiscountPct != 5 {
		t.Errorf("unexpected first tier pricing: %+v", first)
	}

	second := tiers[1]
	if second.TermDays != 60 || second.MinimumQuantity != 5 || second.FreeGoodsNote != "MF" {
		t.Errorf("unexpected second tier: %+v", second)
	}
	if second.UnitPrice != 95 || second.EffectiveDiscountPct != 10 {
		t.Errorf("unexpected second tier pricing: %+v", second)
	}
	for _, tier := range tiers {
		if tier.Warehouse != Warehouse {
			t.Errorf("expected warehouse %q, got %q", Warehouse, tier.Warehouse)
		}
	}
}

func TestExtractNoTable(t *testing.T) {
	for _, markup := range []string{"", "<div>Ürün bulunamadı</div>", "not even markup <<"} {
		tiers, stats := NewExtractor().ExtractWithStats(markup)
		if tiers == nil || len(tiers) != 0 {
			t.Errorf("expected empty non-nil tiers for %q, got %#v", markup, tiers)
		}
		if stats.Strategy != StrategyNone {
			t.Errorf("expected strategy %s, got %s", StrategyNone, stats.Strategy)
		}
	}
}

func TestExtractTablePriority(t *testing.T) {
	first := campaignTable("other", tierRow("10", "1", "", "0", "0", "1"))
	partial := campaignTable("tblKAMPANYA_2", tierRow("20", "1", "", "0", "0", "2"))
	exact := campaignTable(DefaultTableID, tierRow("30", "1", "", "0", "0", "3"))

	tests := []struct {
		name     string
		markup   string
		wantTerm int
		strategy string
	}{
		{"exact id wins", first + partial + exact, 30, StrategyExactID},
		{"substring is case-insensitive", first + partial, 20, StrategySubstring},
		{"first table fallback", first, 10, StrategyFirst},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tiers, stats := NewExtractor().ExtractWithStats(tt.markup)
			if len(tiers) != 1 {
				t.Fatalf("expected 1 tier, got %d", len(tiers))
			}
			if tiers[0].TermDays != tt.wantTerm {
				t.Errorf("expected term %d, got %d", tt.wantTerm, tiers[0].TermDays)
			}
			if stats.Strategy != tt.strategy {
				t.Errorf("expected strategy %s, got %s", tt.strategy, stats.Strategy)
			}
		})
	}
}

func TestExtractCustomTableID(t *testing.T) {
	markup := campaignTable("other", tierRow("10", "1", "", "0", "0", "1")) +
		campaignTable("priceTiers", tierRow("45", "2", "", "0", "0", "7"))

	tiers := NewExtractor(WithTableID("priceTiers")).Extract(markup)
	if len(tiers) != 1 || tiers[0].TermDays != 45 {
		t.Fatalf("expected the configured table to be used, got %+v", tiers)
	}
}

func TestExtractSkipsIneligibleRows(t *testing.T) {
	markup := campaignTable(DefaultTableID,
		`<tr><td></td><td>30</td><td>1</td><td></td><td>5</td></tr>`,
		tierRow("0", "1", "", "5", "0", "0"),
		tierRow("abc", "1", "", "5", "0", "&nbsp;"),
		tierRow("0", "1", "", "0", "0", "12,40"),
		tierRow("15", "", "", "", "", ""),
	)

	tiers, stats := NewExtractor().ExtractWithStats(markup)
	if len(tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d: %+v", len(tiers), tiers)
	}
	if tiers[0].TermDays != 0 || tiers[0].UnitPrice != 12.40 {
		t.Errorf("expected price-only tier first, got %+v", tiers[0])
	}
	if tiers[1].TermDays != 15 || tiers[1].MinimumQuantity != 1 || tiers[1].UnitPrice != 0 {
		t.Errorf("expected term-only tier with default quantity, got %+v", tiers[1])
	}
	if stats.Skipped != 3 {
		t.Errorf("expected 3 skipped rows, got %d", stats.Skipped)
	}
}

func TestExtractUnparseableRowIsDropped(t *testing.T) {
	markup := campaignTable(DefaultTableID,
		tierRow("30", "1", "", "5", "0", "1.234,56"),
		tierRow("60", "1", "", "5", "0", "90"),
	)

	tiers, stats := NewExtractor().ExtractWithStats(markup)
	if len(tiers) != 1 || tiers[0].TermDays != 60 {
		t.Fatalf("expected only the parseable row, got %+v", tiers)
	}
	if stats.Failed != 1 {
		t.Errorf("expected 1 failed row, got %d", stats.Failed)
	}
}

func TestExtractNestedCellText(t *testing.T) {
	markup := `<table id="popup_tblKampanyalar"><tr>
		<td><input type="radio"></td>
		<td> <span> 90 </span> </td>
		<td>3</td>
		<td><b>2</b> + <i>1</i></td>
		<td>%7,5</td>
		<td>  </td>
		<td><span>  210,90 </span></td>
	</tr></table>`

	tiers := NewExtractor().Extract(markup)
	if len(tiers) != 1 {
		t.Fatalf("expected 1 tier, got %d", len(tiers))
	}
	tier := tiers[0]
	if tier.TermDays != 90 || tier.MinimumQuantity != 3 {
		t.Errorf("unexpected tier: %+v", tier)
	}
	if tier.FreeGoodsNote != "2+1" {
		t.Errorf("expected free goods %q, got %q", "2+1", tier.FreeGoodsNote)
	}
	if tier.InstitutionalDiscountPct != 7.5 || tier.CommercialDiscountPct != 0 {
		t.Errorf("unexpected discounts: %+v", tier)
	}
	if tier.UnitPrice != 210.90 {
		t.Errorf("expected price 210.90, got %v", tier.UnitPrice)
	}
}

func TestDeduplicate(t *testing.T) {
	a := NewTier(30, 1, "", 5, 0, 100)
	aDifferentDiscount := NewTier(30, 1, "", 8, 0, 100)
	b := NewTier(30, 1, "MF", 5, 0, 100)
	c := NewTier(60, 1, "", 5, 0, 100)

	got := Deduplicate([]Tier{a, b, aDifferentDiscount, c, b})
	if len(got) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(got))
	}
	if got[0] != a || got[1] != b || got[2] != c {
		t.Errorf("unexpected order or values: %+v", got)
	}
}

func TestExtractRowTooFewCells(t *testing.T) {
	for n := 0; n < MinRowCells; n++ {
		cells := make([]string, n)
		for i := range cells {
			cells[i] = "30"
		}
		if _, ok, err := ExtractRow(0, cells); ok || err != nil {
			t.Errorf("row with %d cells: expected ineligible, got ok=%v err=%v", n, ok, err)
		}
	}
}

func TestExtractRowSixCells(t *testing.T) {
	tier, ok, err := ExtractRow(0, []string{"", "30", "2", "", "4", "6"})
	if err != nil || !ok {
		t.Fatalf("expected a tier, got ok=%v err=%v", ok, err)
	}
	if tier.UnitPrice != 0 || tier.CommercialDiscountPct != 6 || tier.EffectiveDiscountPct != 6 {
		t.Errorf("unexpected tier: %+v", tier)
	}
}

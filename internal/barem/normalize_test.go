package barem

import "testing"

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"percent with comma", "12,5%", 12.5, false},
		{"empty", "", 0, false},
		{"nbsp entity", "&nbsp;", 0, false},
		{"nbsp glyph", "\u00a0", 0, false},
		{"plain price", "100.50", 100.50, false},
		{"comma price", "95,00", 95, false},
		{"internal spaces", "1 250,75", 1250.75, false},
		{"only percent sign", "%", 0, false},
		{"padded", "  7,25 % ", 7.25, false},
		{"thousands separator is not handled", "1.234,56", 0, true},
		{"second comma is left alone", "1,234,56", 0, true},
		{"text", "yok", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimal(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDecimal(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		input string
		def   int
		want  int
	}{
		{"30", 0, 30},
		{"", 1, 1},
		{"10 adet", 1, 1},
		{"-5", 0, 0},
		{"1.5", 1, 1},
		{"007", 0, 7},
		{"99999999999999999999999", 0, 0},
	}

	for _, tt := range tests {
		if got := ParseInt(tt.input, tt.def); got != tt.want {
			t.Errorf("ParseInt(%q, %d) = %d, want %d", tt.input, tt.def, got, tt.want)
		}
	}
}

func TestNewTierEffectiveDiscount(t *testing.T) {
	tier := NewTier(30, 1, "", 5, 12.5, 100)
	if tier.EffectiveDiscountPct != 12.5 {
		t.Errorf("expected effective discount 12.5, got %v", tier.EffectiveDiscountPct)
	}
	if tier.Warehouse != Warehouse {
		t.Errorf("expected warehouse %q, got %q", Warehouse, tier.Warehouse)
	}
}

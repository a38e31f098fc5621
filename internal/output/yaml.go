// internal/output/yaml.go
package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/valpere/barem-scraper/internal/barem"
)

type yamlTier struct {
	Vade          int     `yaml:"Vade"`
	MinimumAdet   int     `yaml:"MinimumAdet"`
	MalFazlasi    string  `yaml:"MalFazlasi"`
	IskontoKurum  float64 `yaml:"IskontoKurum"`
	IskontoTicari float64 `yaml:"IskontoTicari"`
	BirimFiyat    float64 `yaml:"BirimFiyat"`
	Warehouse     string  `yaml:"Warehouse"`
	Discount      float64 `yaml:"Discount"`
}

// YAMLWriter writes tiers as a YAML sequence
type YAMLWriter struct {
	encoder *yaml.Encoder
}

// NewYAMLWriter creates a new YAML writer
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	return &YAMLWriter{encoder: encoder}
}

func (w *YAMLWriter) Write(tiers []barem.Tier) error {
	docs := make([]yamlTier, 0, len(tiers))
	for _, t := range tiers {
		docs = append(docs, yamlTier{
			Vade:          t.TermDays,
			MinimumAdet:   t.MinimumQuantity,
			MalFazlasi:    t.FreeGoodsNote,
			IskontoKurum:  t.InstitutionalDiscountPct,
			IskontoTicari: t.CommercialDiscountPct,
			BirimFiyat:    t.UnitPrice,
			Warehouse:     t.Warehouse,
			Discount:      t.EffectiveDiscountPct,
		})
	}
	return w.encoder.Encode(docs)
}

// Close finishes the YAML stream
func (w *YAMLWriter) Close() error {
	return w.encoder.Close()
}

// Package barem turns the item-detail markup returned by the portal into
// pricing tiers ("barem" rows): table selection, row mapping, locale-aware
// number parsing and deduplication.
package barem

import "time"

// Warehouse is the label stamped on every tier produced by this service.
const Warehouse = "Alliance"

// Tier is one pricing rule row for a product. JSON names follow the wire
// format existing consumers of the service already read.
type Tier struct {
	TermDays                 int     `json:"Vade"`
	MinimumQuantity          int     `json:"MinimumAdet"`
	FreeGoodsNote            string  `json:"MalFazlasi"`
	InstitutionalDiscountPct float64 `json:"IskontoKurum"`
	CommercialDiscountPct    float64 `json:"IskontoTicari"`
	UnitPrice                float64 `json:"BirimFiyat"`
	Warehouse                string  `json:"Warehouse"`
	EffectiveDiscountPct     float64 `json:"Discount"`
}

// NewTier builds a Tier, filling the warehouse label and the effective
// discount (the larger of the two discounts).
func NewTier(termDays, minQty int, freeGoods string, institutional, commercial, unitPrice float64) Tier {
	return Tier{
		TermDays:                 termDays,
		MinimumQuantity:          minQty,
		FreeGoodsNote:            freeGoods,
		InstitutionalDiscountPct: institutional,
		CommercialDiscountPct:    commercial,
		UnitPrice:                unitPrice,
		Warehouse:                Warehouse,
		EffectiveDiscountPct:     max(institutional, commercial),
	}
}

type tierKey struct {
	termDays  int
	minQty    int
	freeGoods string
	unitPrice float64
}

// key identifies duplicate tiers.
func (t Tier) key() tierKey {
	return tierKey{
		termDays:  t.TermDays,
		minQty:    t.MinimumQuantity,
		freeGoods: t.FreeGoodsNote,
		unitPrice: t.UnitPrice,
	}
}

// FetchResult is the response for one item lookup. It is never persisted.
type FetchResult struct {
	Success      bool      `json:"success"`
	ItemID       int       `json:"item_id"`
	Name         *string   `json:"name"`
	Barcode      *string   `json:"barcode"`
	Tiers        []Tier    `json:"barems"`
	ErrorMessage string    `json:"error,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// NewFetchResult returns a failed result shell for itemID stamped with at.
func NewFetchResult(itemID int, at time.Time) *FetchResult {
	return &FetchResult{
		ItemID:    itemID,
		Tiers:     []Tier{},
		FetchedAt: at,
	}
}

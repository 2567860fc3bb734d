// Package pricing computes cart totals: subtotal, tiered bulk discount,
// flat-rate shipping and the final total. All values are pence.
package pricing

// CartItem is the minimal view of a line item the engine needs.
type CartItem struct {
	UnitPrice int64 `json:"unit_price"`
	Quantity  int   `json:"quantity"`
}

// Breakdown is the result of a pricing computation.
// Total = Subtotal - Discount + ShippingCost, never negative.
type Breakdown struct {
	Subtotal     int64 `json:"subtotal"`
	Discount     int64 `json:"discount"`
	ShippingCost int64 `json:"shipping_cost"`
	Total        int64 `json:"total"`
}

// Tier grants Percent off the subtotal once it reaches MinSubtotal.
type Tier struct {
	MinSubtotal int64
	Percent     int64
}

// Engine holds the pricing configuration. Compute is pure: the same cart
// always yields the same breakdown.
type Engine struct {
	// ShippingFee is charged whenever the subtotal is below
	// FreeShippingThreshold. A single domestic flat rate; destination
	// does not enter the computation.
	ShippingFee           int64
	FreeShippingThreshold int64

	// Tiers must be sorted ascending by MinSubtotal; the highest matching
	// tier wins, so the discount is a non-decreasing step function of the
	// subtotal.
	Tiers []Tier
}

// Default is the engine with the shop's standard rates: £3.95 shipping,
// free over £60, and 5/10/15% off at £75/£150/£250.
var Default = Engine{
	ShippingFee:           395,
	FreeShippingThreshold: 6000,
	Tiers: []Tier{
		{MinSubtotal: 7500, Percent: 5},
		{MinSubtotal: 15000, Percent: 10},
		{MinSubtotal: 25000, Percent: 15},
	},
}

// Compute prices a cart. An empty cart yields an all-zero breakdown; input
// validation (quantity >= 1) is the caller's concern.
func (e Engine) Compute(items []CartItem) Breakdown {
	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPrice * int64(item.Quantity)
	}
	if subtotal <= 0 {
		return Breakdown{}
	}

	var discount int64
	for _, tier := range e.Tiers {
		if subtotal >= tier.MinSubtotal {
			discount = subtotal * tier.Percent / 100
		}
	}
	if discount > subtotal {
		discount = subtotal
	}

	var shipping int64
	if subtotal < e.FreeShippingThreshold {
		shipping = e.ShippingFee
	}

	return Breakdown{
		Subtotal:     subtotal,
		Discount:     discount,
		ShippingCost: shipping,
		Total:        subtotal - discount + shipping,
	}
}

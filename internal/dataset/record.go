package dataset

import "time"

// CustomerRecord is one abandoned-cart event for one customer within the
// analysis window. Records are immutable once loaded; the segmentation
// pipeline only reads them.
type CustomerRecord struct {
	ID            string     `json:"id"`
	AbandonedAt   time.Time  `json:"abandoned_at"`
	LastOrderAt   *time.Time `json:"last_order_at,omitempty"`
	AOV           float64    `json:"aov"`
	Sessions      int        `json:"sessions"`
	CartItems     int        `json:"cart_items"`
	Engagement    float64    `json:"engagement"`
	Profitability float64    `json:"profitability"`

	// Archetype and Region are opaque metadata carried through to outputs;
	// they never participate in tiering or scoring.
	Archetype string `json:"archetype,omitempty"`
	Region    string `json:"region,omitempty"`
}

// FirstTime reports whether the customer has never completed an order.
func (r CustomerRecord) FirstTime() bool {
	return r.LastOrderAt == nil
}

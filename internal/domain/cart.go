package domain

import "github.com/shopspring/decimal"

// LineItem is one product-to-quantity record of a cart. A record whose
// quantity would drop to zero is deleted, never stored.
type LineItem struct {
	ProductID int64           `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns price times quantity.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total sums the subtotals of items.
func Total(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// SyncState is the subscription state of a cart view.
type SyncState int

const (
	StateUnsubscribed SyncState = iota
	StateSubscribed             // subscription open, first snapshot pending
	StateSynced
)

func (s SyncState) String() string {
	switch s {
	case StateSubscribed:
		return "subscribed"
	case StateSynced:
		return "synced"
	default:
		return "unsubscribed"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s SyncState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CartView is a consistent point-in-time copy of the local cart.
type CartView struct {
	UID   string          `json:"uid,omitempty"`
	State SyncState       `json:"state"`
	Items []LineItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
}

// LineItem converts a catalog entry into a cart record with the given quantity.
func (p Product) LineItem(quantity int) LineItem {
	return LineItem{
		ProductID: p.ID,
		Title:     p.Title,
		Price:     p.Price,
		Image:     p.Image,
		Quantity:  quantity,
	}
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the server-side cart as returned by GET /api/cart/.
// The client never patches it locally; it is always refetched.
type Cart struct {
	ID         int             `json:"id"`
	Items      []CartItem      `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type CartItem struct {
	ID         int             `json:"id"`
	Product    Product         `json:"product"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type AddToCartRequest struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// IsEmpty reports whether a cart is missing or holds no items
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// FindItem returns the line with the given id, or nil
func (c *Cart) FindItem(itemID int) *CartItem {
	if c == nil {
		return nil
	}
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

// CanIncrement is only a hint for the UI. Stock limits are enforced by the server.
func (ci *CartItem) CanIncrement() bool {
	return ci.Quantity < ci.Product.StockQuantity
}

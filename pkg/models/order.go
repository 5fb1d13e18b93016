package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem represents a single line of a placed order
type OrderItem struct {
	ID         int             `json:"id"`
	Product    Product         `json:"product"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Order is the customer-visible view of an order
type Order struct {
	ID              int              `json:"id"`
	OrderID         string           `json:"order_id"`
	OrderDate       time.Time        `json:"order_date"`
	Status          string           `json:"status"`
	TotalPrice      decimal.Decimal  `json:"total_price"`
	ShippingCost    decimal.Decimal  `json:"shipping_cost"`
	ShippingMethod  string           `json:"shipping_method,omitempty"`
	TrackingNumber  string           `json:"tracking_number,omitempty"`
	Items           []OrderItem      `json:"items"`
	ShippingAddress *ShippingAddress `json:"shipping_address,omitempty"`
	IsArchived      bool             `json:"is_archived"`
	ArchivedAt      *time.Time       `json:"archived_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at,omitzero"`
	UpdatedAt       time.Time        `json:"updated_at,omitzero"`
}

// GetItemCount returns the total number of units in the order
func (o *Order) GetItemCount() int {
	var count int
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// CheckoutSessionRequest is the body of POST /api/checkout/.
// Shipping fields are omitted when not chosen.
type CheckoutSessionRequest struct {
	ShippingAddressID     int              `json:"shipping_address_id"`
	ShippingRateID        string           `json:"shipping_rate_id,omitempty"`
	ShippingCarrier       string           `json:"shipping_carrier,omitempty"`
	ShippingService       string           `json:"shipping_service,omitempty"`
	ShippingCost          *decimal.Decimal `json:"shipping_cost,omitempty"`
	ShippingEstimatedDays int              `json:"shipping_estimated_days,omitempty"`
}

// NewCheckoutSessionRequest builds the request for an address and the chosen rate
func NewCheckoutSessionRequest(addressID int, rate *ShippingRate) CheckoutSessionRequest {
	req := CheckoutSessionRequest{ShippingAddressID: addressID}
	if rate == nil {
		return req
	}
	req.ShippingRateID = rate.ID
	req.ShippingCarrier = rate.Carrier
	req.ShippingService = rate.Service
	if !rate.Amount.IsZero() {
		cost := rate.Amount
		req.ShippingCost = &cost
	}
	req.ShippingEstimatedDays = rate.EstimatedDays
	return req
}

type CheckoutSessionResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id,omitempty"`
}

// OrderSuccess is returned once the payment provider redirects back
type OrderSuccess struct {
	OrderID    string          `json:"order_id"`
	Status     string          `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Message    string          `json:"message"`
	Order      *Order          `json:"order,omitempty"`
}

type BulkOperationRequest struct {
	Operation string `json:"operation"` // archive or unarchive
	OrderIDs  []int  `json:"order_ids"`
}

type BulkOperationResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ProcessedCount int    `json:"processed_count"`
	FailedCount    int    `json:"failed_count"`
	FailedOrders   []int  `json:"failed_orders"`
}

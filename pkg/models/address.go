package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ShippingAddress is a saved customer address. The server keeps at most one default.
type ShippingAddress struct {
	ID           int       `json:"id,omitempty"`
	Customer     int       `json:"customer,omitempty"`
	FullName     string    `json:"full_name"`
	AddressLine1 string    `json:"address_line_1"`
	AddressLine2 string    `json:"address_line_2,omitempty"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	PostalCode   string    `json:"postal_code"`
	Country      string    `json:"country"`
	IsDefault    bool      `json:"is_default"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
	UpdatedAt    time.Time `json:"updated_at,omitzero"`
}

// MissingFields lists the required fields that are blank, in form order
func (a *ShippingAddress) MissingFields() []string {
	required := []struct {
		name  string
		value string
	}{
		{"full_name", a.FullName},
		{"address_line_1", a.AddressLine1},
		{"city", a.City},
		{"state", a.State},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// DefaultAddress returns the address flagged as default, or nil
func DefaultAddress(addresses []ShippingAddress) *ShippingAddress {
	for i := range addresses {
		if addresses[i].IsDefault {
			return &addresses[i]
		}
	}
	return nil
}

// ShippingRate is a carrier quote for one address. It is never persisted.
type ShippingRate struct {
	ID            string          `json:"id"`
	Carrier       string          `json:"carrier"`
	Service       string          `json:"service"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	EstimatedDays int             `json:"estimated_days"`
	DurationTerms string          `json:"duration_terms,omitempty"`
}

type ShippingRatesRequest struct {
	ShippingAddressID int `json:"shipping_address_id"`
}

type ShippingRatesResponse struct {
	Rates []ShippingRate `json:"rates"`
}

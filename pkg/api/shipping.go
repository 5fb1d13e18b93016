package api

import (
	"context"
	"fmt"
	"net/http"

	"julianmorley.ca/pasargad/storefront/pkg/models"
)

// ListAddresses accepts both the paginated and the bare-array response shape.
func (c *Client) ListAddresses(ctx context.Context) ([]models.ShippingAddress, error) {
	resp, err := c.Send(ctx, http.MethodGet, "/api/shipping-addresses/", nil)
	if err != nil {
		return nil, err
	}
	page, err := models.DecodeList[models.ShippingAddress](resp.Body)
	if err != nil {
		return nil, fmt.Errorf("invalid address data received: %w", err)
	}
	if page.Results == nil {
		return []models.ShippingAddress{}, nil
	}
	return page.Results, nil
}

func (c *Client) CreateAddress(ctx context.Context, address models.ShippingAddress) (*models.ShippingAddress, error) {
	if missing := address.MissingFields(); len(missing) > 0 {
		return nil, requiredError(missing[0])
	}
	var out models.ShippingAddress
	if err := c.do(ctx, http.MethodPost, "/api/shipping-addresses/", address, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAddress(ctx context.Context, id int, address models.ShippingAddress) (*models.ShippingAddress, error) {
	if err := validateItemID(id, "Valid shipping address ID is required"); err != nil {
		return nil, err
	}
	var out models.ShippingAddress
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/shipping-addresses/%d/", id), address, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAddress(ctx context.Context, id int) error {
	if err := validateItemID(id, "Valid shipping address ID is required"); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/shipping-addresses/%d/", id), nil, nil)
}

// GetShippingRates asks the backend to quote carriers for an address.
// Quotes can take a while, hence the longer timeout.
func (c *Client) GetShippingRates(ctx context.Context, addressID int) ([]models.ShippingRate, error) {
	if err := validateItemID(addressID, "Valid shipping address ID is required"); err != nil {
		return nil, err
	}
	var out models.ShippingRatesResponse
	err := c.do(ctx, http.MethodPost, "/api/shipping-rates/",
		models.ShippingRatesRequest{ShippingAddressID: addressID}, &out,
		WithTimeout(ShippingRatesTimeout))
	if err != nil {
		return nil, err
	}
	return out.Rates, nil
}

package api

import (
	"context"
	"fmt"
	"net/http"

	"julianmorley.ca/pasargad/storefront/pkg/models"
)

func validateItemID(id int, message string) error {
	if id <= 0 {
		return &InputError{Field: "id", Message: message}
	}
	return nil
}

func validateQuantity(quantity int) error {
	if quantity <= 0 {
		return &InputError{Field: "quantity", Message: "Quantity must be greater than 0"}
	}
	return nil
}

func (c *Client) GetCart(ctx context.Context) (*models.Cart, error) {
	var out models.Cart
	if err := c.do(ctx, http.MethodGet, "/api/cart/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddToCart(ctx context.Context, productID, quantity int) error {
	if err := validateItemID(productID, "Valid product ID is required"); err != nil {
		return err
	}
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/cart/add/", models.AddToCartRequest{ProductID: productID, Quantity: quantity}, nil)
}

func (c *Client) UpdateCartItem(ctx context.Context, itemID, quantity int) error {
	if err := validateItemID(itemID, "Valid item ID is required"); err != nil {
		return err
	}
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/cart/update/%d/", itemID), models.UpdateCartItemRequest{Quantity: quantity}, nil)
}

func (c *Client) RemoveFromCart(ctx context.Context, itemID int) error {
	if err := validateItemID(itemID, "Valid item ID is required"); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/cart/remove/%d/", itemID), nil, nil)
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/cart/clear/", nil, nil)
}

package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"julianmorley.ca/pasargad/storefront/pkg/models"
)

// CreateCheckoutSession asks the backend for a hosted payment page.
func (c *Client) CreateCheckoutSession(ctx context.Context, req models.CheckoutSessionRequest) (*models.CheckoutSessionResponse, error) {
	var out models.CheckoutSessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/checkout/", req, &out, WithTimeout(CheckoutTimeout)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrderSuccess(ctx context.Context, sessionID string) (*models.OrderSuccess, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, &InputError{Field: "session_id", Message: "Invalid session ID"}
	}
	q := url.Values{}
	q.Set("session_id", sessionID)

	var out models.OrderSuccess
	if err := c.do(ctx, http.MethodGet, "/api/order-success/", nil, &out, WithQuery(q), WithTimeout(OrderSuccessTimeout)); err != nil {
		return nil, err
	}
	return &out, nil
}

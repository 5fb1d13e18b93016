// Package checkout sequences the steps between a filled cart and the hosted
// payment page, and settles the order once the payment provider sends the
// shopper back.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"julianmorley.ca/pasargad/storefront/pkg/models"
	"julianmorley.ca/pasargad/storefront/pkg/store"
)

// Session is the part of the store the checkout flow reads and updates.
type Session interface {
	Snapshot() store.State
	FetchCart(ctx context.Context) error
	ClearCart(ctx context.Context) error
	SetCurrentOrder(ctx context.Context, order *models.Order)
	AddNotification(typ models.NotificationType, message string) models.Notification
	CheckoutProcessed(ctx context.Context, sessionID string) bool
	MarkCheckoutProcessed(ctx context.Context, sessionID string)
}

// Backend is the part of the REST API the checkout flow calls.
type Backend interface {
	ListAddresses(ctx context.Context) ([]models.ShippingAddress, error)
	CreateAddress(ctx context.Context, address models.ShippingAddress) (*models.ShippingAddress, error)
	GetShippingRates(ctx context.Context, addressID int) ([]models.ShippingRate, error)
	CreateCheckoutSession(ctx context.Context, req models.CheckoutSessionRequest) (*models.CheckoutSessionResponse, error)
	GetOrderSuccess(ctx context.Context, sessionID string) (*models.OrderSuccess, error)
}

const (
	CheckoutLoginRedirect = "/login?redirect=/checkout"
	CatalogRedirect       = "/products"
)

var (
	ErrInvalidCheckoutSession = errors.New("Invalid checkout session response")
	ErrPaymentInProgress      = errors.New("payment is already being processed")
	ErrMissingPaymentSession  = errors.New("Invalid payment session. Please contact support if you completed a payment.")
)

// RedirectError means the caller must navigate elsewhere before the flow can continue.
type RedirectError struct {
	Location string
	Reason   string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect to %s: %s", e.Location, e.Reason)
}

// LoginRedirect builds a login location carrying a message for the login view.
func LoginRedirect(message string) string {
	q := url.Values{}
	q.Set("message", message)
	return "/login?" + q.Encode()
}

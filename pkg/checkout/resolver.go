package checkout

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"julianmorley.ca/pasargad/storefront/pkg/api"
	"julianmorley.ca/pasargad/storefront/pkg/global"
	"julianmorley.ca/pasargad/storefront/pkg/models"
)

// Resolution is what the order confirmation view renders.
type Resolution struct {
	SessionID string               `json:"session_id,omitempty"`
	Order     *models.OrderSuccess `json:"order,omitempty"`
	Error     string               `json:"error,omitempty"`
	Processed bool                 `json:"processed"`
}

// Resolver exchanges a payment session id for the confirmed order.
type Resolver struct {
	session Session
	backend Backend
	log     logrus.FieldLogger

	mu        sync.Mutex
	processed map[string]bool
}

func NewResolver(session Session, backend Backend, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = global.DiscardLogger()
	}
	return &Resolver{
		session:   session,
		backend:   backend,
		log:       log,
		processed: make(map[string]bool),
	}
}

// Resolve loads the confirmed order for sessionID. The cart is cleared at
// most once per session id, across reloads.
func (r *Resolver) Resolve(ctx context.Context, sessionID string) (Resolution, error) {
	if !r.session.Snapshot().Auth.IsAuthenticated {
		return Resolution{}, &RedirectError{
			Location: LoginRedirect("Please login to view your order confirmation"),
			Reason:   "not authenticated",
		}
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Resolution{Error: ErrMissingPaymentSession.Error()}, ErrMissingPaymentSession
	}

	res := Resolution{SessionID: sessionID}
	success, err := r.backend.GetOrderSuccess(ctx, sessionID)
	if err != nil {
		res.Error = resolutionErrorMessage(err)
		r.log.WithError(err).WithField("session_id", sessionID).Warn("order confirmation failed")
		r.session.AddNotification(models.NotificationError, "Failed to load order confirmation details")
		return res, err
	}
	res.Order = success

	if success.Order != nil {
		r.session.SetCurrentOrder(ctx, success.Order)
	}

	res.Processed = r.settle(ctx, sessionID)
	return res, nil
}

// settle clears the cart the first time sessionID is seen.
func (r *Resolver) settle(ctx context.Context, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.processed[sessionID] || r.session.CheckoutProcessed(ctx, sessionID) {
		r.processed[sessionID] = true
		return true
	}

	if err := r.session.ClearCart(ctx); err != nil {
		r.log.WithError(err).WithField("session_id", sessionID).Warn("failed to clear cart after payment")
		r.session.AddNotification(models.NotificationError, "Your order was placed but your cart could not be cleared. Please refresh to try again.")
		return false
	}
	r.processed[sessionID] = true
	r.session.MarkCheckoutProcessed(ctx, sessionID)
	r.session.AddNotification(models.NotificationSuccess, "Your order has been placed successfully!")
	return true
}

// Cancel records that the shopper abandoned the payment page.
func (r *Resolver) Cancel() models.Notification {
	return r.session.AddNotification(models.NotificationInfo, "Payment cancelled. Your cart items are still saved.")
}

func resolutionErrorMessage(err error) string {
	apiErr := api.Classify(err)
	switch {
	case apiErr.Kind == api.KindNotFound:
		return "Order not found. Your payment may still be processing. Please check your email for confirmation or contact support."
	case apiErr.Kind == api.KindServer:
		return "Server error occurred. Your payment was processed but there was an issue loading your order details. Please check your email or contact support."
	case apiErr.Kind == api.KindNetwork:
		return "Network connection issue. Your payment was likely processed. Please check your email or try refreshing the page."
	case apiErr.Message != "":
		return apiErr.Message
	}
	return "Unable to load order details. Please contact support if you completed a payment."
}

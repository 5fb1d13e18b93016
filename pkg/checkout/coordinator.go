package checkout

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"julianmorley.ca/pasargad/storefront/pkg/api"
	"julianmorley.ca/pasargad/storefront/pkg/global"
	"julianmorley.ca/pasargad/storefront/pkg/models"
)

type Step string

const (
	StepShipping Step = "shipping"
	StepPayment  Step = "payment"
)

const (
	msgSelectAddress   = "Please select a shipping address"
	msgSelectRate      = "Please select a shipping option"
	msgContinueFirst   = "Please continue to payment before placing your order"
	msgNoRates         = "No shipping options available for this address. Please try a different address."
	msgStockGone       = "Some items in your cart are no longer available. Please review your cart and try again."
	msgCartEmpty       = "Your cart is empty. Please add items before checking out."
	msgInvalidCheckout = "Invalid checkout request. Please verify your information."
)

// State is what the checkout view renders.
type State struct {
	Step                 Step                     `json:"step"`
	Addresses            []models.ShippingAddress `json:"addresses"`
	SelectedAddressID    int                      `json:"selected_address_id,omitempty"`
	ShippingRates        []models.ShippingRate    `json:"shipping_rates"`
	SelectedShippingRate *models.ShippingRate     `json:"selected_shipping_rate"`

	IsLoading bool   `json:"is_loading"`
	Error     string `json:"error,omitempty"`

	IsLoadingShipping  bool                    `json:"is_loading_shipping"`
	ShippingError      string                  `json:"shipping_error,omitempty"`
	ShippingErrorLevel models.NotificationType `json:"shipping_error_level,omitempty"`

	IsProcessingPayment bool   `json:"is_processing_payment"`
	PaymentError        string `json:"payment_error,omitempty"`
	RedirectURL         string `json:"redirect_url,omitempty"`
}

// Coordinator drives one checkout attempt: shipping, then payment, then
// the hand-off to the hosted payment page.
type Coordinator struct {
	session Session
	backend Backend
	log     logrus.FieldLogger

	mu    sync.Mutex
	state State
	begun bool
}

func NewCoordinator(session Session, backend Backend, log logrus.FieldLogger) *Coordinator {
	if log == nil {
		log = global.DiscardLogger()
	}
	return &Coordinator{
		session: session,
		backend: backend,
		log:     log,
		state:   State{Step: StepShipping},
	}
}

func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.Addresses = slices.Clone(c.state.Addresses)
	st.ShippingRates = slices.Clone(c.state.ShippingRates)
	return st
}

// Begun reports whether Begin has passed its preconditions.
func (c *Coordinator) Begun() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.begun
}

func (c *Coordinator) mutate(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	c.mu.Unlock()
}

// Begin checks the entry preconditions and enters the shipping step with
// the customer's saved addresses loaded.
func (c *Coordinator) Begin(ctx context.Context) error {
	if !c.session.Snapshot().Auth.IsAuthenticated {
		return &RedirectError{Location: CheckoutLoginRedirect, Reason: "not authenticated"}
	}
	if err := c.session.FetchCart(ctx); err != nil {
		return err
	}
	if c.session.Snapshot().Cart.Cart.IsEmpty() {
		return &RedirectError{Location: CatalogRedirect, Reason: "cart is empty"}
	}

	c.mu.Lock()
	c.state = State{Step: StepShipping}
	c.begun = true
	c.mu.Unlock()

	return c.loadAddresses(ctx)
}

func (c *Coordinator) loadAddresses(ctx context.Context) error {
	addresses, err := c.backend.ListAddresses(ctx)
	if err != nil {
		c.log.WithError(err).Warn("failed to load addresses")
		c.mutate(func(st *State) { st.Addresses = []models.ShippingAddress{} })
		c.session.AddNotification(models.NotificationError, "Failed to load saved addresses")
		if api.IsSessionExpired(err) {
			return err
		}
		return nil
	}

	c.mutate(func(st *State) {
		st.Addresses = addresses
		if def := models.DefaultAddress(addresses); def != nil {
			st.SelectedAddressID = def.ID
		}
	})
	return nil
}

func (c *Coordinator) SelectAddress(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range c.state.Addresses {
		if a.ID == id {
			c.selectAddressLocked(id)
			c.state.Error = ""
			return nil
		}
	}
	c.state.Error = msgSelectAddress
	return &api.InputError{Field: "shipping_address_id", Message: msgSelectAddress}
}

// selectAddressLocked switches the address. Quotes belong to the address
// they were made for, so a different address drops them.
func (c *Coordinator) selectAddressLocked(id int) {
	if c.state.SelectedAddressID == id {
		return
	}
	c.state.SelectedAddressID = id
	c.state.ShippingRates = nil
	c.state.SelectedShippingRate = nil
	c.state.ShippingError = ""
	c.state.ShippingErrorLevel = ""
}

// SubmitAddress saves a new address, appends it and selects it.
func (c *Coordinator) SubmitAddress(ctx context.Context, address models.ShippingAddress) (*models.ShippingAddress, error) {
	c.mutate(func(st *State) {
		st.IsLoading = true
		st.Error = ""
	})

	created, err := c.backend.CreateAddress(ctx, address)
	if err != nil {
		msg := addressErrorMessage(err)
		c.mutate(func(st *State) {
			st.IsLoading = false
			st.Error = msg
		})
		c.session.AddNotification(models.NotificationError, "Failed to save shipping address")
		return nil, err
	}

	c.mu.Lock()
	c.state.IsLoading = false
	c.state.Addresses = append(c.state.Addresses, *created)
	c.selectAddressLocked(created.ID)
	c.mu.Unlock()
	c.session.AddNotification(models.NotificationSuccess, "Shipping address saved successfully")
	return created, nil
}

// ContinueToPayment enters the payment step and quotes shipping for the
// selected address. Without an address nothing is requested.
func (c *Coordinator) ContinueToPayment(ctx context.Context) error {
	c.mu.Lock()
	if c.state.SelectedAddressID == 0 {
		c.state.Error = msgSelectAddress
		c.mu.Unlock()
		return &api.InputError{Field: "shipping_address_id", Message: msgSelectAddress}
	}
	c.state.Error = ""
	c.state.Step = StepPayment
	c.state.PaymentError = ""
	addressID := c.state.SelectedAddressID
	c.mu.Unlock()

	return c.fetchShippingRates(ctx, addressID)
}

// BackToShipping returns to address selection. Rates are quoted again on the next ContinueToPayment.
func (c *Coordinator) BackToShipping() {
	c.mutate(func(st *State) {
		st.Step = StepShipping
		st.PaymentError = ""
	})
}

func (c *Coordinator) fetchShippingRates(ctx context.Context, addressID int) error {
	c.mutate(func(st *State) {
		st.IsLoadingShipping = true
		st.ShippingError = ""
		st.ShippingErrorLevel = ""
		st.ShippingRates = nil
		st.SelectedShippingRate = nil
	})

	rates, err := c.backend.GetShippingRates(ctx, addressID)
	if err != nil {
		msg := shippingErrorMessage(err)
		c.log.WithError(err).WithField("address_id", addressID).Warn("shipping rates failed")
		c.mutate(func(st *State) {
			st.IsLoadingShipping = false
			st.ShippingError = msg
			st.ShippingErrorLevel = models.NotificationError
		})
		c.session.AddNotification(models.NotificationError, "Failed to calculate shipping rates")
		return err
	}

	if len(rates) == 0 {
		c.mutate(func(st *State) {
			st.IsLoadingShipping = false
			st.ShippingError = msgNoRates
			st.ShippingErrorLevel = models.NotificationWarning
		})
		c.session.AddNotification(models.NotificationWarning, msgNoRates)
		return nil
	}

	// the backend orders quotes cheapest first
	first := rates[0]
	c.mutate(func(st *State) {
		st.IsLoadingShipping = false
		if st.SelectedAddressID != addressID {
			return
		}
		st.ShippingRates = rates
		st.SelectedShippingRate = &first
	})
	return nil
}

func (c *Coordinator) SelectShippingRate(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.state.ShippingRates {
		if r.ID == id {
			rate := r
			c.state.SelectedShippingRate = &rate
			c.state.PaymentError = ""
			return nil
		}
	}
	return &api.InputError{Field: "shipping_rate_id", Message: msgSelectRate}
}

// PlaceOrder creates the hosted payment session and returns its URL. Once
// it succeeds the hand-off cannot be undone; the flow stays in processing.
func (c *Coordinator) PlaceOrder(ctx context.Context) (string, error) {
	c.mu.Lock()
	switch {
	case c.state.IsProcessingPayment:
		c.mu.Unlock()
		return "", ErrPaymentInProgress
	case c.state.Step != StepPayment:
		c.state.PaymentError = msgContinueFirst
		c.mu.Unlock()
		return "", &api.InputError{Field: "step", Message: msgContinueFirst}
	case c.state.SelectedAddressID == 0:
		c.state.PaymentError = msgSelectAddress
		c.mu.Unlock()
		return "", &api.InputError{Field: "shipping_address_id", Message: msgSelectAddress}
	case c.state.SelectedShippingRate == nil:
		c.state.PaymentError = msgSelectRate
		c.mu.Unlock()
		return "", &api.InputError{Field: "shipping_rate_id", Message: msgSelectRate}
	}
	c.state.IsProcessingPayment = true
	c.state.PaymentError = ""
	req := models.NewCheckoutSessionRequest(c.state.SelectedAddressID, c.state.SelectedShippingRate)
	c.mu.Unlock()

	resp, err := c.backend.CreateCheckoutSession(ctx, req)
	if err == nil && resp.CheckoutURL == "" {
		err = ErrInvalidCheckoutSession
	}
	if err != nil {
		msg := paymentErrorMessage(err)
		c.log.WithError(err).Error("checkout session failed")
		c.mutate(func(st *State) {
			st.IsProcessingPayment = false
			st.PaymentError = msg
		})
		c.session.AddNotification(models.NotificationError, "Failed to process payment")
		return "", err
	}

	c.mutate(func(st *State) { st.RedirectURL = resp.CheckoutURL })
	c.log.WithField("address_id", req.ShippingAddressID).Info("handing off to payment page")
	return resp.CheckoutURL, nil
}

func addressErrorMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if msg := api.Message(err); msg != "" {
		return msg
	}
	return "Failed to save address"
}

func shippingErrorMessage(err error) string {
	var inputErr *api.InputError
	if errors.As(err, &inputErr) {
		return inputErr.Message
	}
	apiErr := api.Classify(err)
	switch {
	case apiErr.Status == 400:
		if apiErr.ServerMessage != "" {
			return apiErr.ServerMessage
		}
		return "Invalid shipping address. Please verify your address details."
	case apiErr.Kind == api.KindServer:
		return "Shipping service temporarily unavailable. Please try again in a few minutes."
	case apiErr.Kind == api.KindNetwork:
		return "Unable to connect to shipping service. Please check your connection and try again."
	}
	return apiErr.Message
}

func paymentErrorMessage(err error) string {
	if errors.Is(err, ErrInvalidCheckoutSession) {
		return ErrInvalidCheckoutSession.Error()
	}
	apiErr := api.Classify(err)
	switch {
	case apiErr.Status == 400:
		switch {
		case strings.Contains(apiErr.ServerMessage, "stock"):
			return msgStockGone
		case strings.Contains(apiErr.ServerMessage, "cart"):
			return msgCartEmpty
		case apiErr.ServerMessage != "":
			return apiErr.ServerMessage
		}
		return msgInvalidCheckout
	case apiErr.Kind == api.KindServer:
		return "Payment service temporarily unavailable. Please try again in a few minutes."
	case apiErr.Kind == api.KindNetwork:
		return "Unable to connect to payment service. Please check your connection and try again."
	}
	return apiErr.Message
}

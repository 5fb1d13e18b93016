package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"julianmorley.ca/pasargad/storefront/internal/fakebackend"
	"julianmorley.ca/pasargad/storefront/internal/router"
	"julianmorley.ca/pasargad/storefront/pkg/api"
	"julianmorley.ca/pasargad/storefront/pkg/checkout"
	"julianmorley.ca/pasargad/storefront/pkg/global"
	"julianmorley.ca/pasargad/storefront/pkg/models"
	"julianmorley.ca/pasargad/storefront/pkg/store"
)

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Message  string          `json:"message"`
	Redirect string          `json:"redirect"`
}

type shell struct {
	backend  *fakebackend.Backend
	registry *router.Registry
	engine   *gin.Engine
}

func newShell(t *testing.T, probe router.Probe) *shell {
	t.Helper()
	b := fakebackend.New()
	srv := b.Start()
	t.Cleanup(srv.Close)
	b.AddUser("ava", "secret")

	log := global.DiscardLogger()
	reg := router.NewRegistry(api.NewClient(srv.URL), store.NewMemoryPersister(), log,
		store.WithScheduler(func(time.Duration, func()) func() { return func() {} }),
		store.WithCartRetry(1, 0),
	)
	cfg := router.Config{Env: "test"}
	engine := router.InitEngine(cfg, log)
	router.InitializeRoutes(engine, router.NewHandler(log, "memory", probe), reg, cfg)

	return &shell{backend: b, registry: reg, engine: engine}
}

// browser replays the session cookie the shell hands out.
type browser struct {
	t      *testing.T
	shell  *shell
	cookie *http.Cookie
}

func (s *shell) browser(t *testing.T) *browser {
	return &browser{t: t, shell: s}
}

func (b *browser) do(method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	b.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rec := httptest.NewRecorder()
	b.shell.engine.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == router.SessionCookie {
			b.cookie = c
		}
	}

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(b.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (b *browser) login() {
	b.t.Helper()
	rec, env := b.do(http.MethodPost, "/app/login", models.Credentials{Username: "ava", Password: "secret"})
	require.Equal(b.t, http.StatusOK, rec.Code)
	require.True(b.t, env.Success)
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

// Health
func TestHealthCheck(t *testing.T) {
	s := newShell(t, nil)

	rec, env := s.browser(t).do(http.MethodGet, "/app/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, env.Data)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "memory", body["persistence"])
	assert.Zero(t, s.registry.Len())
}

func TestHealthCheck_ProbeFailure(t *testing.T) {
	s := newShell(t, func(context.Context) error { return errors.New("connection refused") })

	rec, env := s.browser(t).do(http.MethodGet, "/app/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.Success)
}

// Sessions
func TestSessionCookie_IsReused(t *testing.T) {
	s := newShell(t, nil)
	b := s.browser(t)

	b.do(http.MethodGet, "/app/session", nil)
	require.NotNil(t, b.cookie)
	first := b.cookie.Value
	assert.True(t, router.ValidSessionID(first))
	assert.True(t, b.cookie.HttpOnly)

	b.do(http.MethodGet, "/app/session", nil)
	assert.Equal(t, first, b.cookie.Value)
	assert.Equal(t, 1, s.registry.Len())

	other := s.browser(t)
	other.cookie = &http.Cookie{Name: router.SessionCookie, Value: "not-a-uuid"}
	other.do(http.MethodGet, "/app/session", nil)
	assert.NotEqual(t, "not-a-uuid", other.cookie.Value)
	assert.Equal(t, 2, s.registry.Len())
}

func TestSessionSurvivesEviction(t *testing.T) {
	s := newShell(t, nil)
	b := s.browser(t)
	b.login()

	assert.Zero(t, s.registry.Prune(time.Hour))
	assert.Equal(t, 1, s.registry.Prune(-time.Minute))
	assert.Zero(t, s.registry.Len())

	rec, env := b.do(http.MethodGet, "/app/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[store.State](t, env.Data)
	assert.True(t, state.Auth.IsAuthenticated)
}

// Auth
func TestLogin_BadCredentials(t *testing.T) {
	s := newShell(t, nil)

	rec, env := s.browser(t).do(http.MethodPost, "/app/login", models.Credentials{Username: "ava", Password: "wrong"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid credentials", env.Message)
}

func TestLogin_KeepsLocalRedirectOnly(t *testing.T) {
	s := newShell(t, nil)
	creds := models.Credentials{Username: "ava", Password: "secret"}

	_, env := s.browser(t).do(http.MethodPost, "/app/login?redirect=/checkout", creds)
	assert.Equal(t, "/checkout", env.Redirect)

	_, env = s.browser(t).do(http.MethodPost, "/app/login?redirect=//evil.example", creds)
	assert.Empty(t, env.Redirect)
}

func TestMemberRoutes_RedirectSignedOutBrowsers(t *testing.T) {
	s := newShell(t, nil)

	rec, env := s.browser(t).do(http.MethodGet, "/app/cart", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?redirect=%2Fapp%2Fcart", rec.Header().Get("Location"))
	assert.Equal(t, "Please log in to continue", env.Message)
	assert.Zero(t, s.backend.Calls(http.MethodGet, "/api/cart/"))
}

func TestExpiredSession_RedirectsToLogin(t *testing.T) {
	s := newShell(t, nil)
	b := s.browser(t)
	b.login()

	rec, _ := b.do(http.MethodGet, "/app/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	s.backend.RevokeTokens()
	rec, env := b.do(http.MethodGet, "/app/cart", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, checkout.LoginRedirect(api.MsgSessionExpired), rec.Header().Get("Location"))
	assert.Equal(t, api.MsgSessionExpired, env.Message)

	_, env = b.do(http.MethodGet, "/app/session", nil)
	assert.False(t, decode[store.State](t, env.Data).Auth.IsAuthenticated)
}

func TestLogout(t *testing.T) {
	s := newShell(t, nil)
	b := s.browser(t)
	b.login()

	rec, _ := b.do(http.MethodPost, "/app/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = b.do(http.MethodGet, "/app/orders", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

// Cart
func TestCart_AddNotifiesAndValidates(t *testing.T) {
	s := newShell(t, nil)
	p := s.backend.AddProduct("Framed Print", "40.00", 3)
	b := s.browser(t)
	b.login()

	rec, env := b.do(http.MethodPost, "/app/cart/items", models.AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[store.CartState](t, env.Data)
	require.NotNil(t, cart.Cart)
	assert.Equal(t, 2, cart.Cart.Items[0].Quantity)

	_, env = b.do(http.MethodGet, "/app/notifications", nil)
	notes := decode[[]models.Notification](t, env.Data)
	require.Len(t, notes, 1)
	assert.Equal(t, "Item added to cart", notes[0].Message)

	rec, env = b.do(http.MethodPost, "/app/cart/items", models.AddToCartRequest{ProductID: p.ID, Quantity: 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only 3 items available in stock", env.Message)

	rec, _ = b.do(http.MethodPut, "/app/cart/items/abc", models.UpdateCartItemRequest{Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, env = b.do(http.MethodDelete, "/app/notifications/"+notes[0].ID, nil)
	assert.Empty(t, decode[[]models.Notification](t, env.Data))
}

// Checkout
func TestCheckoutSteps_RequireBegin(t *testing.T) {
	s := newShell(t, nil)
	b := s.browser(t)
	b.login()

	rec, _ := b.do(http.MethodPost, "/app/checkout/continue", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/checkout", rec.Header().Get("Location"))
}

func TestCheckout_EmptyCartGoesToCatalog(t *testing.T) {
	s := newShell(t, nil)
	b := s.browser(t)
	b.login()

	rec, _ := b.do(http.MethodGet, "/app/checkout", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, checkout.CatalogRedirect, rec.Header().Get("Location"))
}

func TestCheckout_SignedOutGoesToLogin(t *testing.T) {
	s := newShell(t, nil)

	rec, _ := s.browser(t).do(http.MethodGet, "/app/checkout", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, checkout.CheckoutLoginRedirect, rec.Header().Get("Location"))
}

func TestCheckout_EndToEnd(t *testing.T) {
	s := newShell(t, nil)
	p := s.backend.AddProduct("Framed Print", "40.00", 3)
	s.backend.AddAddress("ava", models.ShippingAddress{
		FullName: "Ava Tester", AddressLine1: "1 Main St", City: "Victoria",
		State: "BC", PostalCode: "V8V 1A1", Country: "CA", IsDefault: true,
	})
	s.backend.SetRates([]models.ShippingRate{{ID: "rate_ground", Carrier: "Canada Post", Service: "Regular", Currency: "CAD", EstimatedDays: 4}})
	b := s.browser(t)
	b.login()

	rec, _ := b.do(http.MethodPost, "/app/cart/items", models.AddToCartRequest{ProductID: p.ID, Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := b.do(http.MethodGet, "/app/checkout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, decode[checkout.State](t, env.Data).SelectedAddressID)

	rec, _ = b.do(http.MethodPut, "/app/checkout/address", map[string]int{"address_id": 999})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = b.do(http.MethodPost, "/app/checkout/continue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[checkout.State](t, env.Data)
	assert.Equal(t, checkout.StepPayment, state.Step)
	require.NotNil(t, state.SelectedShippingRate)

	rec, env = b.do(http.MethodPost, "/app/checkout/place", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, env.Redirect, "session_id=")
	sessionID := env.Redirect[strings.Index(env.Redirect, "session_id=")+len("session_id="):]

	rec, _ = b.do(http.MethodPost, "/app/checkout/place", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = b.do(http.MethodGet, "/app/checkout/success?session_id="+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[checkout.Resolution](t, env.Data)
	assert.True(t, res.Processed)
	require.NotNil(t, res.Order)

	_, env = b.do(http.MethodGet, "/app/orders/recent", nil)
	recent := decode[[]models.Order](t, env.Data)
	require.Len(t, recent, 1)
	assert.Equal(t, res.Order.OrderID, recent[0].OrderID)

	rec, _ = b.do(http.MethodGet, "/app/checkout/success?session_id="+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.backend.Calls(http.MethodDelete, "/api/cart/clear/"))
}

func TestCheckoutSuccess_MissingSessionID(t *testing.T) {
	s := newShell(t, nil)
	b := s.browser(t)
	b.login()

	rec, env := b.do(http.MethodGet, "/app/checkout/success", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, checkout.ErrMissingPaymentSession.Error(), env.Message)
}

func TestCheckoutCancel(t *testing.T) {
	s := newShell(t, nil)

	rec, env := s.browser(t).do(http.MethodGet, "/app/checkout/cancel", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Payment cancelled. Your cart items are still saved.", env.Message)
}

// Account
func TestDashboard(t *testing.T) {
	s := newShell(t, nil)
	b := s.browser(t)
	b.login()

	rec, env := b.do(http.MethodGet, "/app/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]json.RawMessage](t, env.Data)
	assert.NotEqual(t, "null", string(body["stats"]))
	assert.NotEqual(t, "null", string(body["customer"]))
}

func TestOrders_DetailAndExport(t *testing.T) {
	s := newShell(t, nil)
	order := s.backend.AddOrder("ava", models.Order{Status: "delivered"})
	b := s.browser(t)
	b.login()

	rec, env := b.do(http.MethodGet, "/app/orders/"+strconv.Itoa(order.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, env = b.do(http.MethodGet, "/app/orders/recent", nil)
	recent := decode[[]models.Order](t, env.Data)
	require.Len(t, recent, 1)
	assert.Equal(t, order.ID, recent[0].ID)

	rec, env = b.do(http.MethodGet, "/app/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), order.OrderID)

	rec, _ = b.do(http.MethodGet, "/app/orders/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), order.OrderID)
}

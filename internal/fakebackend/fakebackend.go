// Package fakebackend is an in-memory implementation of the shop REST API.
// Tests serve it with httptest so the real HTTP client is exercised end to
// end. It keeps no state between instances.
package fakebackend

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"julianmorley.ca/pasargad/storefront/pkg/models"
)

// PageSize is the number of results per page in list endpoints.
const PageSize = 12

type account struct {
	user     models.User
	password string
}

type failure struct {
	status    int
	body      gin.H
	remaining int // 0 means every call
}

type Backend struct {
	mu sync.Mutex

	accounts   map[string]*account
	tokens     map[string]int
	products   []models.Product
	carts      map[int]*models.Cart
	addresses  map[int][]models.ShippingAddress
	rates      []models.ShippingRate
	orders     map[int][]models.Order
	sessions   map[string]sessionRecord
	prefs      map[int]models.NotificationPreferences
	activities map[int][]models.UserActivity

	failures map[string]*failure
	calls    map[string]int
	nextID   int

	checkoutURL string
	now         func() time.Time
}

type sessionRecord struct {
	userID  int
	success models.OrderSuccess
}

func New() *Backend {
	return &Backend{
		accounts:    make(map[string]*account),
		tokens:      make(map[string]int),
		carts:       make(map[int]*models.Cart),
		addresses:   make(map[int][]models.ShippingAddress),
		orders:      make(map[int][]models.Order),
		sessions:    make(map[string]sessionRecord),
		prefs:       make(map[int]models.NotificationPreferences),
		activities:  make(map[int][]models.UserActivity),
		failures:    make(map[string]*failure),
		calls:       make(map[string]int),
		checkoutURL: "https://pay.example.test/c/pay",
		now:         time.Now,
	}
}

// Start serves the backend on a local listener. Close the server when done.
func (b *Backend) Start() *httptest.Server {
	return httptest.NewServer(b.Handler())
}

func (b *Backend) Handler() http.Handler {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), b.track())

	api := engine.Group("/api")
	{
		api.POST("/login/", b.login)
		api.POST("/register/", b.register)
		api.GET("/products", b.listProducts)
		api.GET("/products/:slug", b.getProduct)
	}

	authed := api.Group("")
	authed.Use(b.authenticate())
	{
		authed.POST("/logout/", b.logout)
		authed.GET("/profile/", b.getProfile)
		authed.PUT("/profile/", b.updateProfile)

		authed.GET("/cart/", b.getCart)
		authed.POST("/cart/add/", b.addToCart)
		authed.PUT("/cart/update/:id/", b.updateCartItem)
		authed.DELETE("/cart/remove/:id/", b.removeFromCart)
		authed.DELETE("/cart/clear/", b.clearCart)

		authed.GET("/shipping-addresses/", b.listAddresses)
		authed.POST("/shipping-addresses/", b.createAddress)
		authed.PUT("/shipping-addresses/:id/", b.updateAddress)
		authed.DELETE("/shipping-addresses/:id/", b.deleteAddress)
		authed.POST("/shipping-rates/", b.shippingRates)

		authed.POST("/checkout/", b.checkout)
		authed.GET("/order-success/", b.orderSuccess)

		authed.GET("/orders/", b.listOrders)
		authed.GET("/orders/:id/", b.getOrder)
		authed.POST("/orders/bulk_operations/", b.bulkOrders)
		authed.GET("/orders/export_csv/", b.exportOrders)

		authed.GET("/dashboard/", b.dashboard)
		authed.GET("/customers/me", b.getCustomer)
		authed.PUT("/customers/me", b.updateCustomer)
		authed.GET("/customers/activities/", b.listActivities)
		authed.GET("/customers/notification_preferences/", b.getPreferences)
		authed.PATCH("/customers/notification_preferences/", b.updatePreferences)
	}
	return engine
}

func routeKey(method, path string) string {
	return method + " " + path
}

// track counts calls per route and applies injected failures.
func (b *Backend) track() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := routeKey(c.Request.Method, c.FullPath())

		b.mu.Lock()
		b.calls[key]++
		f, failing := b.failures[key]
		var status int
		var body gin.H
		if failing {
			status, body = f.status, f.body
			if f.remaining > 0 {
				f.remaining--
				if f.remaining == 0 {
					delete(b.failures, key)
				}
			}
		}
		b.mu.Unlock()

		if failing {
			c.AbortWithStatusJSON(status, body)
			return
		}
		c.Next()
	}
}

func (b *Backend) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Token ")
		b.mu.Lock()
		userID, known := b.tokens[token]
		b.mu.Unlock()
		if !ok || !known {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token."})
			return
		}
		c.Set("userID", userID)
		c.Next()
	}
}

// Calls returns how many requests reached the route, e.g. Calls("POST", "/api/shipping-rates/").
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[routeKey(method, path)]
}

// Fail makes every call to the route answer status with body.
func (b *Backend) Fail(method, path string, status int, body gin.H) {
	b.FailN(method, path, 0, status, body)
}

// FailN makes the next n calls to the route fail. n of zero fails every call.
func (b *Backend) FailN(method, path string, n, status int, body gin.H) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[routeKey(method, path)] = &failure{status: status, body: body, remaining: n}
}

func (b *Backend) Recover(method, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, routeKey(method, path))
}

func (b *Backend) SetCheckoutURL(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkoutURL = url
}

func (b *Backend) SetRates(rates []models.ShippingRate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rates = rates
}

func (b *Backend) AddUser(username, password string) models.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(models.RegisterRequest{
		Username:  username,
		Password:  password,
		Email:     username + "@example.test",
		FirstName: strings.ToUpper(username[:1]) + username[1:],
		LastName:  "Tester",
	})
}

func (b *Backend) addUserLocked(req models.RegisterRequest) models.User {
	b.nextID++
	u := models.User{
		ID:        b.nextID,
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	b.accounts[req.Username] = &account{user: u, password: req.Password}
	return u
}

// IssueToken signs username in without going through the login endpoint.
func (b *Backend) IssueToken(username string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[username]
	if !ok {
		return ""
	}
	return b.issueTokenLocked(acc.user.ID)
}

func (b *Backend) issueTokenLocked(userID int) string {
	b.nextID++
	token := fmt.Sprintf("tok-%d-%d", userID, b.nextID)
	b.tokens[token] = userID
	return token
}

// RevokeTokens forgets every issued token, as a server-side session reset would.
func (b *Backend) RevokeTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.tokens)
}

func (b *Backend) AddProduct(name, price string, stock int) models.Product {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	now := b.now()
	p := models.Product{
		ID:            b.nextID,
		Name:          name,
		Description:   name + " printed on demand",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Slug:          strings.ReplaceAll(strings.ToLower(name), " ", "-"),
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.products = append(b.products, p)
	return p
}

// SetStock changes a product's stock, including copies already in carts.
func (b *Backend) SetStock(productID, stock int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.products {
		if b.products[i].ID == productID {
			b.products[i].StockQuantity = stock
		}
	}
	for _, cart := range b.carts {
		for i := range cart.Items {
			if cart.Items[i].Product.ID == productID {
				cart.Items[i].Product.StockQuantity = stock
			}
		}
	}
}

func (b *Backend) AddAddress(username string, address models.ShippingAddress) models.ShippingAddress {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accounts[username]
	return b.addAddressLocked(acc.user.ID, address)
}

// AddOrder stores a past order for username.
func (b *Backend) AddOrder(username string, order models.Order) models.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accounts[username]
	b.nextID++
	order.ID = b.nextID
	if order.OrderID == "" {
		order.OrderID = fmt.Sprintf("ORD-%05d", order.ID)
	}
	b.orders[acc.user.ID] = append(b.orders[acc.user.ID], order)
	return order
}

// Cart returns a copy of username's server cart.
func (b *Backend) Cart(username string) models.Cart {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accounts[username]
	cart := b.cartLocked(acc.user.ID)
	out := *cart
	out.Items = append([]models.CartItem(nil), cart.Items...)
	return out
}

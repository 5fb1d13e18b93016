package router

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"julianmorley.ca/pasargad/storefront/pkg/api"
	"julianmorley.ca/pasargad/storefront/pkg/global"
	"julianmorley.ca/pasargad/storefront/pkg/models"
)

// Probe checks a dependency the shell relies on.
type Probe func(ctx context.Context) error

type Handler struct {
	log         logrus.FieldLogger
	persistence string
	probe       Probe
}

// NewHandler builds the route handlers. probe may be nil when persistence is in memory.
func NewHandler(log logrus.FieldLogger, persistence string, probe Probe) *Handler {
	return &Handler{log: log, persistence: persistence, probe: probe}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if h.probe != nil {
		if err := h.probe(c.Request.Context()); err != nil {
			h.log.WithError(err).Error("persistence probe failed")
			c.JSON(http.StatusServiceUnavailable, global.ErrorResponse("Persistence connection failed", nil))
			return
		}
	}
	c.JSON(http.StatusOK, global.SuccessResponse(map[string]string{"status": "OK", "persistence": h.persistence}))
}

// safeRedirect keeps post-login navigation on this site.
func safeRedirect(target string) string {
	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
		return target
	}
	return ""
}

// Auth

func (h *Handler) Login(c *gin.Context) {
	var creds models.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", nil))
		return
	}

	sess := session(c)
	if err := sess.Store.Login(c.Request.Context(), creds); err != nil {
		respondError(c, err, "", nil)
		return
	}

	resp := global.SuccessResponse(sess.Store.Snapshot().Auth)
	resp.Redirect = safeRedirect(c.Query("redirect"))
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", nil))
		return
	}

	sess := session(c)
	if err := sess.Store.Register(c.Request.Context(), req); err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusCreated, global.SuccessResponse(sess.Store.Snapshot().Auth))
}

func (h *Handler) Logout(c *gin.Context) {
	sess := session(c)
	sess.Store.Logout(c.Request.Context())
	c.JSON(http.StatusOK, global.SuccessResponse(sess.Store.Snapshot().Auth))
}

func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, global.SuccessResponse(session(c).Store.Snapshot()))
}

// Catalog

func (h *Handler) ListProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	products, err := session(c).API.ListProducts(c.Request.Context(), page, c.Query("search"))
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(products))
}

func (h *Handler) GetProduct(c *gin.Context) {
	product, err := session(c).API.GetProduct(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(product))
}

// Cart

func itemParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Valid item ID is required", []global.ValidationError{
			{Field: "id", Message: "Valid item ID is required", Code: "invalid_format"},
		}))
		return 0, false
	}
	return id, true
}

func (h *Handler) GetCart(c *gin.Context) {
	st := session(c).Store
	if err := st.FetchCart(c.Request.Context()); err != nil {
		respondError(c, err, "", st.Snapshot().Cart)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(st.Snapshot().Cart))
}

func (h *Handler) AddToCart(c *gin.Context) {
	var req models.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", nil))
		return
	}

	st := session(c).Store
	if err := st.AddToCart(c.Request.Context(), req.ProductID, req.Quantity); err != nil {
		respondError(c, err, "", st.Snapshot().Cart)
		return
	}
	st.AddNotification(models.NotificationSuccess, "Item added to cart")
	c.JSON(http.StatusOK, global.SuccessResponse(st.Snapshot().Cart))
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	id, ok := itemParam(c)
	if !ok {
		return
	}
	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", nil))
		return
	}

	st := session(c).Store
	if err := st.UpdateCartItem(c.Request.Context(), id, req.Quantity); err != nil {
		respondError(c, err, "", st.Snapshot().Cart)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(st.Snapshot().Cart))
}

func (h *Handler) RemoveFromCart(c *gin.Context) {
	id, ok := itemParam(c)
	if !ok {
		return
	}

	st := session(c).Store
	if err := st.RemoveFromCart(c.Request.Context(), id); err != nil {
		respondError(c, err, "", st.Snapshot().Cart)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(st.Snapshot().Cart))
}

func (h *Handler) ClearCart(c *gin.Context) {
	st := session(c).Store
	if err := st.ClearCart(c.Request.Context()); err != nil {
		respondError(c, err, "", st.Snapshot().Cart)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(st.Snapshot().Cart))
}

// Checkout

func (h *Handler) BeginCheckout(c *gin.Context) {
	co := session(c).Checkout
	if err := co.Begin(c.Request.Context()); err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(co.Snapshot()))
}

// checkoutStarted rejects step calls made before GET /checkout succeeded.
func checkoutStarted(c *gin.Context) bool {
	if !session(c).Checkout.Begun() {
		redirect(c, "/checkout", "Checkout has not been started")
		return false
	}
	return true
}

func (h *Handler) SubmitAddress(c *gin.Context) {
	if !checkoutStarted(c) {
		return
	}
	var address models.ShippingAddress
	if err := c.ShouldBindJSON(&address); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", nil))
		return
	}

	co := session(c).Checkout
	if _, err := co.SubmitAddress(c.Request.Context(), address); err != nil {
		st := co.Snapshot()
		respondError(c, err, st.Error, st)
		return
	}
	c.JSON(http.StatusCreated, global.SuccessResponse(co.Snapshot()))
}

type selectAddressRequest struct {
	AddressID int `json:"address_id"`
}

func (h *Handler) SelectAddress(c *gin.Context) {
	if !checkoutStarted(c) {
		return
	}
	var req selectAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", nil))
		return
	}

	co := session(c).Checkout
	if err := co.SelectAddress(req.AddressID); err != nil {
		respondError(c, err, "", co.Snapshot())
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(co.Snapshot()))
}

func (h *Handler) ContinueToPayment(c *gin.Context) {
	if !checkoutStarted(c) {
		return
	}

	co := session(c).Checkout
	if err := co.ContinueToPayment(c.Request.Context()); err != nil {
		st := co.Snapshot()
		respondError(c, err, st.ShippingError, st)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(co.Snapshot()))
}

func (h *Handler) BackToShipping(c *gin.Context) {
	if !checkoutStarted(c) {
		return
	}
	co := session(c).Checkout
	co.BackToShipping()
	c.JSON(http.StatusOK, global.SuccessResponse(co.Snapshot()))
}

type selectRateRequest struct {
	RateID string `json:"rate_id"`
}

func (h *Handler) SelectShippingRate(c *gin.Context) {
	if !checkoutStarted(c) {
		return
	}
	var req selectRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", nil))
		return
	}

	co := session(c).Checkout
	if err := co.SelectShippingRate(req.RateID); err != nil {
		respondError(c, err, "", co.Snapshot())
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(co.Snapshot()))
}

// PlaceOrder answers with the hosted payment page as the redirect target.
func (h *Handler) PlaceOrder(c *gin.Context) {
	if !checkoutStarted(c) {
		return
	}

	co := session(c).Checkout
	checkoutURL, err := co.PlaceOrder(c.Request.Context())
	if err != nil {
		st := co.Snapshot()
		respondError(c, err, st.PaymentError, st)
		return
	}

	resp := global.SuccessResponse(co.Snapshot())
	resp.Redirect = checkoutURL
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CheckoutSuccess(c *gin.Context) {
	res, err := session(c).Resolver.Resolve(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		respondError(c, err, res.Error, res)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(res))
}

func (h *Handler) CheckoutCancel(c *gin.Context) {
	n := session(c).Resolver.Cancel()
	resp := global.SuccessResponse(n)
	resp.Message = n.Message
	c.JSON(http.StatusOK, resp)
}

// Orders

func (h *Handler) ListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	archived := c.Query("archived") == "true"

	orders, err := session(c).API.ListOrders(c.Request.Context(), page, archived)
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(orders))
}

// GetOrder loads one order and remembers it as recently viewed.
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := itemParam(c)
	if !ok {
		return
	}

	sess := session(c)
	ctx := c.Request.Context()
	sess.Store.SetOrderLoading(true, "")
	order, err := sess.API.GetOrder(ctx, id)
	if err != nil {
		sess.Store.SetOrderLoading(false, api.Message(err))
		respondError(c, err, "", nil)
		return
	}
	sess.Store.SetOrderLoading(false, "")
	sess.Store.SetCurrentOrder(ctx, order)
	c.JSON(http.StatusOK, global.SuccessResponse(order))
}

func (h *Handler) RecentOrders(c *gin.Context) {
	c.JSON(http.StatusOK, global.SuccessResponse(session(c).Store.Snapshot().Orders.RecentOrders))
}

// Dashboard

type dashboard struct {
	Stats    *models.DashboardStats `json:"stats"`
	Customer *models.Customer       `json:"customer"`
}

func (h *Handler) Dashboard(c *gin.Context) {
	client := session(c).API
	g, ctx := errgroup.WithContext(c.Request.Context())

	var out dashboard
	g.Go(func() error {
		stats, err := client.GetDashboardStats(ctx)
		out.Stats = stats
		return err
	})
	g.Go(func() error {
		customer, err := client.GetCustomer(ctx)
		out.Customer = customer
		return err
	})

	if err := g.Wait(); err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(out))
}

// Notifications

func (h *Handler) ListNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, global.SuccessResponse(session(c).Store.Snapshot().Notifications))
}

func (h *Handler) DismissNotification(c *gin.Context) {
	st := session(c).Store
	st.RemoveNotification(c.Param("id"))
	c.JSON(http.StatusOK, global.SuccessResponse(st.Snapshot().Notifications))
}

func (h *Handler) ClearNotifications(c *gin.Context) {
	st := session(c).Store
	st.ClearNotifications()
	c.JSON(http.StatusOK, global.SuccessResponse(st.Snapshot().Notifications))
}

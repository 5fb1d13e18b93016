package fakebackend

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"julianmorley.ca/pasargad/storefront/pkg/models"
)

func userID(c *gin.Context) int {
	return c.GetInt("userID")
}

func paramID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return 0, false
	}
	return id, true
}

func pageOf[T any](c *gin.Context, items []T) models.Page[T] {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	out := models.Page[T]{Count: len(items), Results: []T{}}
	start := (page - 1) * PageSize
	if start < len(items) {
		end := min(start+PageSize, len(items))
		out.Results = items[start:end]
	}
	if start+PageSize < len(items) {
		next := fmt.Sprintf("%s?page=%d", c.Request.URL.Path, page+1)
		out.Next = &next
	}
	if page > 1 {
		prev := fmt.Sprintf("%s?page=%d", c.Request.URL.Path, page-1)
		out.Previous = &prev
	}
	return out
}

// Auth

func (b *Backend) login(c *gin.Context) {
	var creds models.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acc, ok := b.accounts[creds.Username]
	if !ok || acc.password != creds.Password {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credentials"})
		return
	}
	token := b.issueTokenLocked(acc.user.ID)
	b.recordActivityLocked(acc.user.ID, "login", "Signed in", c)
	c.JSON(http.StatusOK, models.AuthResponse{User: acc.user, Token: token})
}

func (b *Backend) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.accounts[req.Username]; exists {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username already exists"})
		return
	}
	u := b.addUserLocked(req)
	token := b.issueTokenLocked(u.ID)
	c.JSON(http.StatusCreated, models.AuthResponse{User: u, Token: token})
}

func (b *Backend) logout(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Token ")
	b.mu.Lock()
	delete(b.tokens, token)
	b.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

func (b *Backend) userLocked(id int) *account {
	for _, acc := range b.accounts {
		if acc.user.ID == id {
			return acc
		}
	}
	return nil
}

func (b *Backend) getProfile(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, b.userLocked(userID(c)).user)
}

func (b *Backend) updateProfile(c *gin.Context) {
	var update models.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acc := b.userLocked(userID(c))
	if update.FirstName != "" {
		acc.user.FirstName = update.FirstName
	}
	if update.LastName != "" {
		acc.user.LastName = update.LastName
	}
	if update.Email != "" {
		acc.user.Email = update.Email
	}
	c.JSON(http.StatusOK, acc.user)
}

// Catalog

func (b *Backend) listProducts(c *gin.Context) {
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))

	b.mu.Lock()
	defer b.mu.Unlock()

	matched := make([]models.Product, 0, len(b.products))
	for _, p := range b.products {
		if search == "" || strings.Contains(strings.ToLower(p.Name), search) {
			matched = append(matched, p)
		}
	}
	c.JSON(http.StatusOK, pageOf(c, matched))
}

func (b *Backend) getProduct(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.products {
		if p.Slug == c.Param("slug") {
			c.JSON(http.StatusOK, p)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
}

func (b *Backend) productLocked(id int) *models.Product {
	for i := range b.products {
		if b.products[i].ID == id {
			return &b.products[i]
		}
	}
	return nil
}

// Cart

func (b *Backend) cartLocked(uid int) *models.Cart {
	cart, ok := b.carts[uid]
	if !ok {
		b.nextID++
		now := b.now()
		cart = &models.Cart{ID: b.nextID, Items: []models.CartItem{}, CreatedAt: now, UpdatedAt: now}
		b.carts[uid] = cart
	}
	return cart
}

func (b *Backend) recalcLocked(cart *models.Cart) {
	cart.TotalItems = 0
	cart.TotalPrice = decimal.Zero
	for i := range cart.Items {
		item := &cart.Items[i]
		item.TotalPrice = item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		cart.TotalItems += item.Quantity
		cart.TotalPrice = cart.TotalPrice.Add(item.TotalPrice)
	}
	cart.UpdatedAt = b.now()
}

func (b *Backend) getCart(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, b.cartLocked(userID(c)))
}

func stockError(available int) gin.H {
	return gin.H{"error": fmt.Sprintf("Only %d items available in stock", available)}
}

func (b *Backend) addToCart(c *gin.Context) {
	var req models.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quantity"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	product := b.productLocked(req.ProductID)
	if product == nil || !product.IsActive {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}

	cart := b.cartLocked(userID(c))
	for i := range cart.Items {
		if cart.Items[i].Product.ID == product.ID {
			if cart.Items[i].Quantity+req.Quantity > product.StockQuantity {
				c.JSON(http.StatusBadRequest, stockError(product.StockQuantity))
				return
			}
			cart.Items[i].Quantity += req.Quantity
			b.recalcLocked(cart)
			c.JSON(http.StatusOK, gin.H{"message": "Item added to cart"})
			return
		}
	}

	if req.Quantity > product.StockQuantity {
		c.JSON(http.StatusBadRequest, stockError(product.StockQuantity))
		return
	}
	b.nextID++
	cart.Items = append(cart.Items, models.CartItem{ID: b.nextID, Product: *product, Quantity: req.Quantity})
	b.recalcLocked(cart)
	c.JSON(http.StatusCreated, gin.H{"message": "Item added to cart"})
}

func (b *Backend) updateCartItem(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quantity"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cart := b.cartLocked(userID(c))
	item := cart.FindItem(id)
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	if req.Quantity > item.Product.StockQuantity {
		c.JSON(http.StatusBadRequest, stockError(item.Product.StockQuantity))
		return
	}
	item.Quantity = req.Quantity
	b.recalcLocked(cart)
	c.JSON(http.StatusOK, gin.H{"message": "Cart updated"})
}

func (b *Backend) removeFromCart(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cart := b.cartLocked(userID(c))
	kept := cart.Items[:0]
	found := false
	for _, item := range cart.Items {
		if item.ID == id {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	cart.Items = kept
	b.recalcLocked(cart)
	c.Status(http.StatusNoContent)
}

func (b *Backend) clearCart(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cart := b.cartLocked(userID(c))
	cart.Items = []models.CartItem{}
	b.recalcLocked(cart)
	c.Status(http.StatusNoContent)
}

// Shipping

func (b *Backend) addAddressLocked(uid int, address models.ShippingAddress) models.ShippingAddress {
	b.nextID++
	now := b.now()
	address.ID = b.nextID
	address.Customer = uid
	address.CreatedAt = now
	address.UpdatedAt = now

	existing := b.addresses[uid]
	if len(existing) == 0 {
		address.IsDefault = true
	}
	if address.IsDefault {
		for i := range existing {
			existing[i].IsDefault = false
		}
	}
	b.addresses[uid] = append(existing, address)
	return address
}

func (b *Backend) addressLocked(uid, id int) *models.ShippingAddress {
	for i := range b.addresses[uid] {
		if b.addresses[uid][i].ID == id {
			return &b.addresses[uid][i]
		}
	}
	return nil
}

func (b *Backend) listAddresses(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, pageOf(c, b.addresses[userID(c)]))
}

func (b *Backend) createAddress(c *gin.Context) {
	var address models.ShippingAddress
	if err := c.ShouldBindJSON(&address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if missing := address.MissingFields(); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "This field is required: " + missing[0]})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusCreated, b.addAddressLocked(userID(c), address))
}

func (b *Backend) updateAddress(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var update models.ShippingAddress
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	uid := userID(c)
	address := b.addressLocked(uid, id)
	if address == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	if update.IsDefault {
		for i := range b.addresses[uid] {
			b.addresses[uid][i].IsDefault = false
		}
	}
	update.ID = address.ID
	update.Customer = uid
	update.CreatedAt = address.CreatedAt
	update.UpdatedAt = b.now()
	*address = update
	c.JSON(http.StatusOK, *address)
}

func (b *Backend) deleteAddress(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	uid := userID(c)
	if b.addressLocked(uid, id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	kept := b.addresses[uid][:0]
	for _, a := range b.addresses[uid] {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	b.addresses[uid] = kept
	c.Status(http.StatusNoContent)
}

func (b *Backend) shippingRates(c *gin.Context) {
	var req models.ShippingRatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.addressLocked(userID(c), req.ShippingAddressID) == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Shipping address not found"})
		return
	}
	rates := b.rates
	if rates == nil {
		rates = []models.ShippingRate{}
	}
	c.JSON(http.StatusOK, models.ShippingRatesResponse{Rates: rates})
}

// Payment

func (b *Backend) checkout(c *gin.Context) {
	var req models.CheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	uid := userID(c)
	cart := b.cartLocked(uid)
	if cart.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Your cart is empty"})
		return
	}
	for _, item := range cart.Items {
		if item.Quantity > item.Product.StockQuantity {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Insufficient stock for %s", item.Product.Name)})
			return
		}
	}
	address := b.addressLocked(uid, req.ShippingAddressID)
	if address == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shipping address"})
		return
	}

	b.nextID++
	sessionID := fmt.Sprintf("cs_test_%d", b.nextID)
	order := b.placeOrderLocked(uid, cart, *address, req)
	b.sessions[sessionID] = sessionRecord{
		userID: uid,
		success: models.OrderSuccess{
			OrderID:    order.OrderID,
			Status:     order.Status,
			TotalPrice: order.TotalPrice,
			Message:    "Payment successful",
			Order:      &order,
		},
	}

	c.JSON(http.StatusOK, models.CheckoutSessionResponse{
		CheckoutURL: b.checkoutURL + "?session_id=" + sessionID,
		SessionID:   sessionID,
	})
}

func (b *Backend) placeOrderLocked(uid int, cart *models.Cart, address models.ShippingAddress, req models.CheckoutSessionRequest) models.Order {
	b.nextID++
	now := b.now()
	order := models.Order{
		ID:              b.nextID,
		OrderID:         fmt.Sprintf("ORD-%05d", b.nextID),
		OrderDate:       now,
		Status:          "processing",
		ShippingMethod:  strings.TrimSpace(req.ShippingCarrier + " " + req.ShippingService),
		ShippingAddress: &address,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.ShippingCost != nil {
		order.ShippingCost = *req.ShippingCost
	}
	order.TotalPrice = cart.TotalPrice.Add(order.ShippingCost)
	for _, item := range cart.Items {
		b.nextID++
		order.Items = append(order.Items, models.OrderItem{
			ID:         b.nextID,
			Product:    item.Product,
			Quantity:   item.Quantity,
			Price:      item.Product.Price,
			TotalPrice: item.TotalPrice,
		})
	}
	b.orders[uid] = append(b.orders[uid], order)
	return order
}

func (b *Backend) orderSuccess(c *gin.Context) {
	sessionID := c.Query("session_id")

	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.sessions[sessionID]
	if !ok || rec.userID != userID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	c.JSON(http.StatusOK, rec.success)
}

// Orders

func (b *Backend) listOrders(c *gin.Context) {
	archived := c.Query("archived") == "true"

	b.mu.Lock()
	defer b.mu.Unlock()

	var matched []models.Order
	orders := b.orders[userID(c)]
	for i := len(orders) - 1; i >= 0; i-- {
		if orders[i].IsArchived == archived {
			matched = append(matched, orders[i])
		}
	}
	c.JSON(http.StatusOK, pageOf(c, matched))
}

func (b *Backend) orderLocked(uid, id int) *models.Order {
	for i := range b.orders[uid] {
		if b.orders[uid][i].ID == id {
			return &b.orders[uid][i]
		}
	}
	return nil
}

func (b *Backend) getOrder(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	order := b.orderLocked(userID(c), id)
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (b *Backend) bulkOrders(c *gin.Context) {
	var req models.BulkOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	resp := models.BulkOperationResponse{Success: true, FailedOrders: []int{}}
	now := b.now()
	for _, id := range req.OrderIDs {
		order := b.orderLocked(userID(c), id)
		if order == nil {
			resp.FailedCount++
			resp.FailedOrders = append(resp.FailedOrders, id)
			continue
		}
		order.IsArchived = req.Operation == "archive"
		if order.IsArchived {
			order.ArchivedAt = &now
		} else {
			order.ArchivedAt = nil
		}
		resp.ProcessedCount++
	}
	resp.Message = fmt.Sprintf("%d orders processed", resp.ProcessedCount)
	c.JSON(http.StatusOK, resp)
}

func (b *Backend) exportOrders(c *gin.Context) {
	b.mu.Lock()
	orders := append([]models.Order(nil), b.orders[userID(c)]...)
	b.mu.Unlock()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"order_id", "status", "total_price", "items"})
	for _, o := range orders {
		_ = w.Write([]string{o.OrderID, o.Status, o.TotalPrice.StringFixed(2), strconv.Itoa(o.GetItemCount())})
	}
	w.Flush()
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// Account

func (b *Backend) dashboard(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	orders := b.orders[userID(c)]
	stats := models.DashboardStats{
		TotalOrders:    len(orders),
		TotalRevenue:   decimal.Zero,
		RecentOrders:   []models.Order{},
		OrdersByStatus: map[string]int{},
		MonthlyRevenue: []models.MonthlyRevenue{},
	}
	for i := len(orders) - 1; i >= 0; i-- {
		o := orders[i]
		stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalPrice)
		stats.OrdersByStatus[o.Status]++
		if len(stats.RecentOrders) < 5 {
			stats.RecentOrders = append(stats.RecentOrders, o)
		}
	}
	c.JSON(http.StatusOK, stats)
}

func (b *Backend) customerLocked(uid int) models.Customer {
	acc := b.userLocked(uid)
	cust := models.Customer{
		ID:                uid,
		User:              acc.user,
		PreferredCurrency: "CAD",
		PreferredLanguage: "en",
		Timezone:          "America/Toronto",
		TotalSpent:        decimal.Zero,
	}
	for _, o := range b.orders[uid] {
		cust.TotalOrders++
		cust.TotalSpent = cust.TotalSpent.Add(o.TotalPrice)
	}
	return cust
}

func (b *Backend) getCustomer(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, b.customerLocked(userID(c)))
}

func (b *Backend) updateCustomer(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cust := b.customerLocked(userID(c))
	if phone, ok := fields["phone"].(string); ok {
		cust.Phone = phone
	}
	if website, ok := fields["website"].(string); ok {
		cust.Website = website
	}
	c.JSON(http.StatusOK, cust)
}

func (b *Backend) recordActivityLocked(uid int, kind, description string, c *gin.Context) {
	b.nextID++
	b.activities[uid] = append(b.activities[uid], models.UserActivity{
		ID:           b.nextID,
		User:         uid,
		ActivityType: kind,
		Description:  description,
		Timestamp:    b.now(),
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	})
}

func (b *Backend) listActivities(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, pageOf(c, b.activities[userID(c)]))
}

func (b *Backend) getPreferences(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prefs, ok := b.prefs[userID(c)]
	if !ok {
		prefs = models.NotificationPreferences{EmailNotifications: true, OrderUpdates: true, ShippingUpdates: true}
	}
	c.JSON(http.StatusOK, prefs)
}

func (b *Backend) updatePreferences(c *gin.Context) {
	var prefs models.NotificationPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.prefs[userID(c)] = prefs
	c.JSON(http.StatusOK, prefs)
}

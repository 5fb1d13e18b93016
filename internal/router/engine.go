package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DefaultAllowOrigins are the dev servers of the presentation layer.
var DefaultAllowOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

type Config struct {
	Env          string
	AllowOrigins []string
}

func (cfg Config) production() bool {
	return cfg.Env == "production"
}

func InitEngine(cfg Config, log logrus.FieldLogger) *gin.Engine {
	if cfg.production() {
		gin.SetMode(gin.ReleaseMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.DebugMode)
	}

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = DefaultAllowOrigins
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Location"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	return router
}

func InitializeRoutes(router *gin.Engine, h *Handler, reg *Registry, cfg Config) {
	app := router.Group("/app")
	app.GET("/health", h.HealthCheck)

	shop := app.Group("")
	shop.Use(SessionMiddleware(reg, cfg.production()))
	{
		shop.POST("/login", h.Login)
		shop.POST("/register", h.Register)
		shop.POST("/logout", h.Logout)
		shop.GET("/session", h.GetSession)

		shop.GET("/products", h.ListProducts)
		shop.GET("/products/:slug", h.GetProduct)

		shop.GET("/notifications", h.ListNotifications)
		shop.DELETE("/notifications/:id", h.DismissNotification)
		shop.DELETE("/notifications", h.ClearNotifications)

		// Checkout entry and the payment return pages check auth themselves.
		shop.GET("/checkout", h.BeginCheckout)
		shop.GET("/checkout/success", h.CheckoutSuccess)
		shop.GET("/checkout/cancel", h.CheckoutCancel)
	}

	member := shop.Group("")
	member.Use(RequireAuth())
	{
		cart := member.Group("/cart")
		{
			cart.GET("", h.GetCart)
			cart.DELETE("", h.ClearCart)
			cart.POST("/items", h.AddToCart)
			cart.PUT("/items/:id", h.UpdateCartItem)
			cart.DELETE("/items/:id", h.RemoveFromCart)
		}

		checkout := member.Group("/checkout")
		{
			checkout.POST("/addresses", h.SubmitAddress)
			checkout.PUT("/address", h.SelectAddress)
			checkout.POST("/continue", h.ContinueToPayment)
			checkout.POST("/back", h.BackToShipping)
			checkout.PUT("/rate", h.SelectShippingRate)
			checkout.POST("/place", h.PlaceOrder)
		}

		orders := member.Group("/orders")
		{
			orders.GET("", h.ListOrders)
			orders.GET("/recent", h.RecentOrders)
			orders.GET("/export", h.ExportOrders)
			orders.POST("/bulk", h.BulkOrders)
			orders.GET("/:id", h.GetOrder)
		}

		addresses := member.Group("/addresses")
		{
			addresses.GET("", h.ListAddresses)
			addresses.PUT("/:id", h.UpdateAddress)
			addresses.DELETE("/:id", h.DeleteAddress)
		}

		account := member.Group("/account")
		{
			account.GET("/profile", h.GetProfile)
			account.PUT("/profile", h.UpdateProfile)
			account.PUT("/customer", h.UpdateCustomer)
			account.GET("/activities", h.ListActivities)
			account.GET("/preferences", h.GetPreferences)
			account.PATCH("/preferences", h.UpdatePreferences)
		}

		member.GET("/dashboard", h.Dashboard)
	}
}

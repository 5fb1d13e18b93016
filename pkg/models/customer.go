package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the authenticated account as returned by login and register
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// GetFullName returns the user's full name
func (u *User) GetFullName() string {
	return u.FirstName + " " + u.LastName
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AuthResponse is the body of a successful login or register
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Customer is the extended profile behind /api/customers/me
type Customer struct {
	ID                int             `json:"id"`
	User              User            `json:"user"`
	Phone             string          `json:"phone"`
	DateOfBirth       *string         `json:"date_of_birth"`
	Website           string          `json:"website"`
	PreferredCurrency string          `json:"preferred_currency"`
	PreferredLanguage string          `json:"preferred_language"`
	Timezone          string          `json:"timezone"`
	IsVerified        bool            `json:"is_verified"`
	AvatarURL         *string         `json:"avatar_url"`
	TotalOrders       int             `json:"total_orders"`
	TotalSpent        decimal.Decimal `json:"total_spent"`
	MemberSince       string          `json:"member_since"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// GetAverageOrderValue returns the average order value
func (c *Customer) GetAverageOrderValue() decimal.Decimal {
	if c.TotalOrders == 0 {
		return decimal.Zero
	}
	return c.TotalSpent.Div(decimal.NewFromInt(int64(c.TotalOrders)))
}

type ProfileUpdate struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

type NotificationPreferences struct {
	EmailNotifications bool `json:"email_notifications"`
	OrderUpdates       bool `json:"order_updates"`
	PromotionalEmails  bool `json:"promotional_emails"`
	ShippingUpdates    bool `json:"shipping_updates"`
}

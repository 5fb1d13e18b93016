package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type MonthlyRevenue struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

type DashboardStats struct {
	TotalOrders    int              `json:"total_orders"`
	TotalRevenue   decimal.Decimal  `json:"total_revenue"`
	RecentOrders   []Order          `json:"recent_orders"`
	OrdersByStatus map[string]int   `json:"orders_by_status"`
	MonthlyRevenue []MonthlyRevenue `json:"monthly_revenue"`
}

type UserActivity struct {
	ID           int       `json:"id"`
	User         int       `json:"user"`
	ActivityType string    `json:"activity_type"`
	Description  string    `json:"description"`
	Timestamp    time.Time `json:"timestamp"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
}

// Page is the paginated list envelope used by the backend
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// DecodeList accepts either a bare JSON array or a paginated envelope
func DecodeList[T any](body []byte) (Page[T], error) {
	var page Page[T]
	if len(body) == 0 {
		return page, nil
	}

	var items []T
	if err := json.Unmarshal(body, &items); err == nil {
		page.Results = items
		page.Count = len(items)
		return page, nil
	}

	if err := json.Unmarshal(body, &page); err != nil {
		return Page[T]{}, err
	}
	return page, nil
}

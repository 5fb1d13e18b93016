package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"julianmorley.ca/pasargad/storefront/pkg/models"
)

func (c *Client) GetDashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var out models.DashboardStats
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCustomer(ctx context.Context) (*models.Customer, error) {
	var out models.Customer
	if err := c.do(ctx, http.MethodGet, "/api/customers/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCustomer sends a partial update; only the keys present in fields change.
func (c *Client) UpdateCustomer(ctx context.Context, fields map[string]interface{}) (*models.Customer, error) {
	if len(fields) == 0 {
		return nil, &InputError{Field: "body", Message: "No updates provided"}
	}
	var out models.Customer
	if err := c.do(ctx, http.MethodPut, "/api/customers/me", fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListActivities(ctx context.Context, page int) (models.Page[models.UserActivity], error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))

	resp, err := c.Send(ctx, http.MethodGet, "/api/customers/activities/", nil, WithQuery(q))
	if err != nil {
		return models.Page[models.UserActivity]{}, err
	}
	out, err := models.DecodeList[models.UserActivity](resp.Body)
	if err != nil {
		return models.Page[models.UserActivity]{}, fmt.Errorf("failed to decode activities: %w", err)
	}
	return out, nil
}

func (c *Client) GetNotificationPreferences(ctx context.Context) (*models.NotificationPreferences, error) {
	var out models.NotificationPreferences
	if err := c.do(ctx, http.MethodGet, "/api/customers/notification_preferences/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateNotificationPreferences(ctx context.Context, prefs models.NotificationPreferences) (*models.NotificationPreferences, error) {
	var out models.NotificationPreferences
	if err := c.do(ctx, http.MethodPatch, "/api/customers/notification_preferences/", prefs, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

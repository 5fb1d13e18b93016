package api

import (
	"context"
	"net/http"

	"julianmorley.ca/pasargad/storefront/pkg/models"
)

func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, &InputError{Field: "credentials", Message: "Username and password are required"}
	}

	var out models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/login/", creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	required := []struct {
		field string
		value string
	}{
		{"username", req.Username},
		{"email", req.Email},
		{"password", req.Password},
		{"first_name", req.FirstName},
		{"last_name", req.LastName},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, requiredError(r.field)
		}
	}

	var out models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/register/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/logout/", nil, nil)
}

func (c *Client) GetProfile(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodGet, "/api/profile/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodPut, "/api/profile/", update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

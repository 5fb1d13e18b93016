package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"julianmorley.ca/pasargad/storefront/pkg/models"
)

// ListProducts returns one catalog page, optionally filtered by search.
func (c *Client) ListProducts(ctx context.Context, page int, search string) (models.Page[models.Product], error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("search", search)

	resp, err := c.Send(ctx, http.MethodGet, "/api/products", nil, WithQuery(q))
	if err != nil {
		return models.Page[models.Product]{}, err
	}
	out, err := models.DecodeList[models.Product](resp.Body)
	if err != nil {
		return models.Page[models.Product]{}, fmt.Errorf("failed to decode products: %w", err)
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, slug string) (*models.Product, error) {
	if slug == "" {
		return nil, requiredError("slug")
	}
	var out models.Product
	if err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(slug), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

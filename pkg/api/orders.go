package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"julianmorley.ca/pasargad/storefront/pkg/models"
)

func (c *Client) ListOrders(ctx context.Context, page int, archived bool) (models.Page[models.Order], error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("archived", strconv.FormatBool(archived))

	resp, err := c.Send(ctx, http.MethodGet, "/api/orders/", nil, WithQuery(q))
	if err != nil {
		return models.Page[models.Order]{}, err
	}
	out, err := models.DecodeList[models.Order](resp.Body)
	if err != nil {
		return models.Page[models.Order]{}, fmt.Errorf("failed to decode orders: %w", err)
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, id int) (*models.Order, error) {
	if err := validateItemID(id, "Valid order ID is required"); err != nil {
		return nil, err
	}
	var out models.Order
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/orders/%d/", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BulkOrderOperation(ctx context.Context, req models.BulkOperationRequest) (*models.BulkOperationResponse, error) {
	if req.Operation != "archive" && req.Operation != "unarchive" {
		return nil, &InputError{Field: "operation", Message: "operation must be archive or unarchive"}
	}
	if len(req.OrderIDs) == 0 {
		return nil, requiredError("order_ids")
	}
	var out models.BulkOperationResponse
	if err := c.do(ctx, http.MethodPost, "/api/orders/bulk_operations/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportOrdersCSV returns the raw CSV document.
func (c *Client) ExportOrdersCSV(ctx context.Context) ([]byte, error) {
	resp, err := c.Send(ctx, http.MethodGet, "/api/orders/export_csv/", nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

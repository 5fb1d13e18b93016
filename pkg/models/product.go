package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductImage is one picture in a product gallery
type ProductImage struct {
	ID        int    `json:"id"`
	Image     string `json:"image"`
	AltText   string `json:"alt_text"`
	IsPrimary bool   `json:"is_primary"`
	Order     int    `json:"order"`
}

// Product represents a printable item in the catalog
type Product struct {
	ID            int             `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Slug          string          `json:"slug"`
	Images        []ProductImage  `json:"images"`
	PrimaryImage  string          `json:"primary_image,omitempty"`
	Length        string          `json:"length"`
	Width         string          `json:"width"`
	Height        string          `json:"height"`
	Weight        string          `json:"weight"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p *Product) IsInStock() bool {
	return p.StockQuantity > 0 && p.IsActive
}

func (p *Product) IsLowStock(threshold int) bool {
	return p.StockQuantity <= threshold && p.StockQuantity > 0
}

// ImageURL returns the primary image, falling back to the first flagged or listed image
func (p *Product) ImageURL() string {
	if p.PrimaryImage != "" {
		return p.PrimaryImage
	}
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.Image
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].Image
	}
	return ""
}

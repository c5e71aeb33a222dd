package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/dquispe/reparto-backend/pkg/db/models"
	"github.com/dquispe/reparto-backend/pkg/pagination"
)

// CreateProductInput carries the fields required to publish a product.
type CreateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImgURL      *string
}

// UpdateProductInput carries optional fields for partial updates.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	ImgURL      *string
}

// ProductList is a paginated catalog page.
type ProductList struct {
	Items []models.Product
	Meta  pagination.Meta
}

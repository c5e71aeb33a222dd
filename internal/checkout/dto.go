package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dquispe/reparto-backend/pkg/db/models"
)

// CartItem is one product line submitted by a client at checkout.
type CartItem struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// CreateSessionInput is one customer's full checkout request. Coordinates are
// optional; orders without them are delivered by arrangement. Currency
// overrides the configured default when set.
type CreateSessionInput struct {
	CustomerID uuid.UUID
	Items      []CartItem
	Latitude   *float64
	Longitude  *float64
	Currency   string
}

// ValidatedLine is a cart line resolved against the live catalog.
type ValidatedLine struct {
	Product  models.Product
	Quantity int
	Subtotal decimal.Decimal
}

// SessionResult carries the identifiers the client needs to complete payment.
type SessionResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

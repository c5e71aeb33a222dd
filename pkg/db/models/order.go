package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dquispe/reparto-backend/pkg/enums"
)

// OrderDetail is the point-in-time snapshot of one purchased line.
type OrderDetail struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Order represents a paid purchase and its delivery lifecycle.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID    uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	DistributorID *uuid.UUID          `gorm:"column:distributor_id;type:uuid"`
	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'ESPERANDO_ASIGNACION'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	QuantityTotal int                 `gorm:"column:quantity_total;not null;default:0"`
	Total         decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	SessionID     string              `gorm:"column:session_id;not null;uniqueIndex"`
	Latitude      *float64            `gorm:"column:latitude;type:numeric(9,6)"`
	Longitude     *float64            `gorm:"column:longitude;type:numeric(9,6)"`
	Observation   *string             `gorm:"column:observation"`
	DeliveryTime  *time.Time          `gorm:"column:delivery_time"`
	Details       []OrderDetail       `gorm:"column:details;type:jsonb;serializer:json;not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

package orders

import (
	"github.com/dquispe/reparto-backend/pkg/db/models"
	"github.com/dquispe/reparto-backend/pkg/pagination"
)

// OrderList is a paginated page of orders.
type OrderList struct {
	Items []models.Order  `json:"items"`
	Meta  pagination.Meta `json:"meta"`
}

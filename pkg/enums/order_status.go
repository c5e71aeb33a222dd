package enums

import "fmt"

// OrderStatus tracks the delivery lifecycle of a paid order.
type OrderStatus string

const (
	OrderStatusAwaitingAssignment  OrderStatus = "ESPERANDO_ASIGNACION"
	OrderStatusAssignedDistributor OrderStatus = "ASIGNADO_DISTRIBUIDOR"
	OrderStatusInRoute             OrderStatus = "EN_RUTA"
	OrderStatusDeliveredSuccess    OrderStatus = "FINALIZADO_CON_EXITO"
	OrderStatusCanceled            OrderStatus = "CANCELADO"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusAwaitingAssignment,
	OrderStatusAssignedDistributor,
	OrderStatusInRoute,
	OrderStatusDeliveredSuccess,
	OrderStatusCanceled,
}

// orderStatusTransitions is the single source of truth for status writes.
// Terminal statuses have no outgoing edges.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusAwaitingAssignment: {
		OrderStatusAssignedDistributor,
		OrderStatusCanceled,
	},
	OrderStatusAssignedDistributor: {
		OrderStatusInRoute,
		OrderStatusDeliveredSuccess,
		OrderStatusCanceled,
	},
	OrderStatusInRoute: {
		OrderStatusDeliveredSuccess,
		OrderStatusCanceled,
	},
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (o OrderStatus) IsTerminal() bool {
	return o.IsValid() && len(orderStatusTransitions[o]) == 0
}

// CanTransition reports whether moving from the receiver to next is allowed.
func (o OrderStatus) CanTransition(next OrderStatus) bool {
	for _, candidate := range orderStatusTransitions[o] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

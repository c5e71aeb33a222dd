package controllers

import (
	"net/http"

	"github.com/dquispe/reparto-backend/api/responses"
	"github.com/dquispe/reparto-backend/api/validators"
	checkoutsvc "github.com/dquispe/reparto-backend/internal/checkout"
	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
	"github.com/dquispe/reparto-backend/pkg/logger"
)

type createSessionRequest struct {
	Items     []checkoutsvc.CartItem `json:"items" validate:"required,min=1,dive"`
	Latitude  *float64               `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64               `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Currency  string                 `json:"currency" validate:"omitempty,len=3,alpha"`
}

// CreateCheckoutSession validates the cart and opens a hosted payment session.
func CreateCheckoutSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateSession(r.Context(), checkoutsvc.CreateSessionInput{
			CustomerID: customerID,
			Items:      payload.Items,
			Latitude:   payload.Latitude,
			Longitude:  payload.Longitude,
			Currency:   payload.Currency,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

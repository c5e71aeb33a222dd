package controllers

import (
	"net/http"

	"github.com/dquispe/reparto-backend/api/responses"
	"github.com/dquispe/reparto-backend/api/validators"
	authsvc "github.com/dquispe/reparto-backend/internal/auth"
	identitysvc "github.com/dquispe/reparto-backend/internal/identity"
	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
	"github.com/dquispe/reparto-backend/pkg/logger"
)

// SignIn exchanges credentials for an access token.
func SignIn(svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload authsvc.SignInRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SignIn(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type signUpRequest struct {
	Name      string  `json:"name" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8"`
	Address   string  `json:"address" validate:"required"`
	Cellphone string  `json:"cellphone" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

// SignUpClient registers a self-service customer account.
func SignUpClient(svc identitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity service unavailable"))
			return
		}

		var payload signUpRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.SignUpClient(r.Context(), identitysvc.ClientSignUpInput{
			Name:      payload.Name,
			Email:     payload.Email,
			Password:  payload.Password,
			Address:   payload.Address,
			Cellphone: payload.Cellphone,
			Latitude:  payload.Latitude,
			Longitude: payload.Longitude,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, userResponseFromModel(user))
	}
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/dquispe/reparto-backend/api/responses"
	"github.com/dquispe/reparto-backend/api/validators"
	identitysvc "github.com/dquispe/reparto-backend/internal/identity"
	"github.com/dquispe/reparto-backend/pkg/db/models"
	"github.com/dquispe/reparto-backend/pkg/enums"
	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
	"github.com/dquispe/reparto-backend/pkg/logger"
)

// importMaxUploadBytes caps the CSV upload size accepted by the import endpoint.
const importMaxUploadBytes = 2 << 20

type createEmployeeRequest struct {
	Name        string                    `json:"name" validate:"required"`
	Email       string                    `json:"email" validate:"required,email"`
	Password    string                    `json:"password" validate:"required,min=8"`
	Role        string                    `json:"role" validate:"required"`
	Distributor *distributorDetailRequest `json:"distributor,omitempty"`
}

type distributorDetailRequest struct {
	Capacity    int    `json:"capacity" validate:"required,min=1"`
	TypeVehicle string `json:"type_vehicle" validate:"required"`
	Cellphone   string `json:"cellphone" validate:"required"`
}

// AdminCreateEmployee provisions an ADMIN or DISTRIBUTOR account.
func AdminCreateEmployee(svc identitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity service unavailable"))
			return
		}

		var payload createEmployeeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role, err := enums.ParseUserRole(strings.ToUpper(strings.TrimSpace(payload.Role)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
			return
		}

		input := identitysvc.CreateEmployeeInput{
			Name:     payload.Name,
			Email:    payload.Email,
			Password: payload.Password,
			Role:     role,
		}
		if payload.Distributor != nil {
			input.Distributor = &models.DistributorDetail{
				Capacity:    payload.Distributor.Capacity,
				TypeVehicle: payload.Distributor.TypeVehicle,
				Cellphone:   payload.Distributor.Cellphone,
			}
		}

		user, err := svc.CreateEmployee(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, userResponseFromModel(user))
	}
}

// AdminListUsers returns a paginated account listing, optionally filtered by role.
func AdminListUsers(svc identitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity service unavailable"))
			return
		}

		params, err := paginationFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var role *enums.UserRole
		if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
			parsed, err := enums.ParseUserRole(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role filter"))
				return
			}
			role = &parsed
		}

		list, err := svc.ListUsers(r.Context(), params, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"items": userResponsesFromModels(list.Items),
			"meta":  list.Meta,
		})
	}
}

// AdminGetUser returns a single account by id.
func AdminGetUser(svc identitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity service unavailable"))
			return
		}

		id, err := pathUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.GetUser(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, userResponseFromModel(user))
	}
}

// AdminToggleUser flips an account between active and inactive.
func AdminToggleUser(svc identitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity service unavailable"))
			return
		}

		id, err := pathUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.ToggleUserStatus(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, userResponseFromModel(user))
	}
}

type updateClientRequest struct {
	Name      *string  `json:"name,omitempty"`
	Email     *string  `json:"email,omitempty" validate:"omitempty,email"`
	Password  *string  `json:"password,omitempty" validate:"omitempty,min=8"`
	Address   *string  `json:"address,omitempty"`
	Cellphone *string  `json:"cellphone,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
}

func (req updateClientRequest) toInput() identitysvc.ClientUpdateInput {
	return identitysvc.ClientUpdateInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Address:   req.Address,
		Cellphone: req.Cellphone,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
}

// AdminUpdateClient edits a customer profile on their behalf.
func AdminUpdateClient(svc identitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity service unavailable"))
			return
		}

		id, err := pathUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateClientRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.UpdateClient(r.Context(), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, userResponseFromModel(user))
	}
}

// ClientGetProfile returns the authenticated customer's own account.
func ClientGetProfile(svc identitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity service unavailable"))
			return
		}

		id, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.GetUser(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, userResponseFromModel(user))
	}
}

// ClientUpdateProfile lets the authenticated customer edit their own profile.
func ClientUpdateProfile(svc identitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity service unavailable"))
			return
		}

		id, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateClientRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.UpdateClient(r.Context(), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, userResponseFromModel(user))
	}
}

// AdminImportDistributors ingests a CSV upload and provisions distributor accounts in bulk.
// The upload goes in a multipart field named "file".
func AdminImportDistributors(svc identitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity service unavailable"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, importMaxUploadBytes)
		if err := r.ParseMultipartForm(importMaxUploadBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart upload"))
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "csv file missing"))
			return
		}
		defer file.Close()

		report, err := svc.ImportDistributors(r.Context(), identitysvc.ImportDistributorsInput{Reader: file})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}

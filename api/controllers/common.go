package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dquispe/reparto-backend/api/middleware"
	"github.com/dquispe/reparto-backend/api/validators"
	"github.com/dquispe/reparto-backend/pkg/db/models"
	"github.com/dquispe/reparto-backend/pkg/enums"
	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
	"github.com/dquispe/reparto-backend/pkg/pagination"
)

func paginationFromQuery(r *http.Request) (pagination.Params, error) {
	page, err := validators.ParseQueryInt(r, "page", pagination.DefaultPage, 1, 1<<30)
	if err != nil {
		return pagination.Params{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Page: page, Limit: limit}, nil
}

func authenticatedUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid identifier").
			WithDetails(map[string]any{"field": param})
	}
	return id, nil
}

// userResponse strips credentials from the persisted account before it leaves the API.
type userResponse struct {
	ID                uuid.UUID                 `json:"id"`
	Name              string                    `json:"name"`
	Email             string                    `json:"email"`
	Role              enums.UserRole            `json:"role"`
	IsActive          bool                      `json:"is_active"`
	ClientDetail      *models.ClientDetail      `json:"client_detail,omitempty"`
	DistributorDetail *models.DistributorDetail `json:"distributor_detail,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

func userResponseFromModel(user *models.User) *userResponse {
	if user == nil {
		return nil
	}
	return &userResponse{
		ID:                user.ID,
		Name:              user.Name,
		Email:             user.Email,
		Role:              user.Role,
		IsActive:          user.IsActive,
		ClientDetail:      user.ClientDetail,
		DistributorDetail: user.DistributorDetail,
		CreatedAt:         user.CreatedAt,
		UpdatedAt:         user.UpdatedAt,
	}
}

func userResponsesFromModels(users []models.User) []*userResponse {
	out := make([]*userResponse, 0, len(users))
	for i := range users {
		out = append(out, userResponseFromModel(&users[i]))
	}
	return out
}

package auth

import (
	"github.com/google/uuid"

	"github.com/dquispe/reparto-backend/pkg/db/models"
	"github.com/dquispe/reparto-backend/pkg/enums"
)

// SignInRequest captures the credentials sent to the sign-in endpoint.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserSummary is the account projection returned after sign-in.
type UserSummary struct {
	ID       uuid.UUID      `json:"id"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Role     enums.UserRole `json:"role"`
	IsActive bool           `json:"is_active"`
}

// SignInResponse contains the token and user produced by a successful sign-in.
type SignInResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	User        *UserSummary `json:"user"`
}

// UserSummaryFromModel projects the persisted account into the response shape.
func UserSummaryFromModel(user *models.User) *UserSummary {
	if user == nil {
		return nil
	}
	return &UserSummary{
		ID:       user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Role:     user.Role,
		IsActive: user.IsActive,
	}
}

package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dquispe/reparto-backend/pkg/config"
	"github.com/dquispe/reparto-backend/pkg/db/models"
	"github.com/dquispe/reparto-backend/pkg/enums"
	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
	"github.com/dquispe/reparto-backend/pkg/pagination"
	"github.com/dquispe/reparto-backend/pkg/security"
)

// Service defines account management operations.
type Service interface {
	CreateEmployee(ctx context.Context, input CreateEmployeeInput) (*models.User, error)
	SignUpClient(ctx context.Context, input ClientSignUpInput) (*models.User, error)
	UpdateClient(ctx context.Context, id uuid.UUID, input ClientUpdateInput) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, params pagination.Params, role *enums.UserRole) (*UserList, error)
	ToggleUserStatus(ctx context.Context, id uuid.UUID) (*models.User, error)
	ImportDistributors(ctx context.Context, input ImportDistributorsInput) (*ImportReport, error)
	FirstActiveDistributor(ctx context.Context) (*models.User, error)
}

type service struct {
	repo        Repository
	passwordCfg config.PasswordConfig
}

// NewService builds an identity service with the required dependencies.
func NewService(repo Repository, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("identity repository required")
	}
	return &service{repo: repo, passwordCfg: passwordCfg}, nil
}

func (s *service) CreateEmployee(ctx context.Context, input CreateEmployeeInput) (*models.User, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password required")
	}
	if input.Role != enums.UserRoleAdmin && input.Role != enums.UserRoleDistributor {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be ADMIN or DISTRIBUTOR")
	}
	if input.Role == enums.UserRoleDistributor && input.Distributor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "distributor detail required")
	}

	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Name:              name,
		Email:             email,
		PasswordHash:      hash,
		Role:              input.Role,
		IsActive:          true,
		DistributorDetail: input.Distributor,
	}
	created, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return created, nil
}

func (s *service) SignUpClient(ctx context.Context, input ClientSignUpInput) (*models.User, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password required")
	}
	if strings.TrimSpace(input.Address) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address required")
	}

	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         enums.UserRoleClient,
		IsActive:     true,
		ClientDetail: &models.ClientDetail{
			Address:   strings.TrimSpace(input.Address),
			Cellphone: strings.TrimSpace(input.Cellphone),
			Coordinates: models.Coordinates{
				Latitude:  input.Latitude,
				Longitude: input.Longitude,
			},
		},
	}
	created, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create client")
	}
	return created, nil
}

func (s *service) UpdateClient(ctx context.Context, id uuid.UUID, input ClientUpdateInput) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != enums.UserRoleClient {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "client not found")
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if email == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "email cannot be empty")
		}
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email); err != nil {
				return nil, err
			}
			updates["email"] = email
		}
	}
	if input.Password != nil {
		if *input.Password == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "password cannot be empty")
		}
		hash, err := security.HashPassword(*input.Password, s.passwordCfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		updates["password_hash"] = hash
	}

	if input.Address != nil || input.Cellphone != nil || input.Latitude != nil || input.Longitude != nil {
		detail := models.ClientDetail{}
		if user.ClientDetail != nil {
			detail = *user.ClientDetail
		}
		if input.Address != nil {
			detail.Address = strings.TrimSpace(*input.Address)
		}
		if input.Cellphone != nil {
			detail.Cellphone = strings.TrimSpace(*input.Cellphone)
		}
		if input.Latitude != nil {
			detail.Coordinates.Latitude = *input.Latitude
		}
		if input.Longitude != nil {
			detail.Coordinates.Longitude = *input.Longitude
		}
		updates["client_detail"] = &detail
	}

	if len(updates) == 0 {
		return user, nil
	}
	if err := s.repo.UpdateUser(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update client")
	}
	return s.GetUser(ctx, id)
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (s *service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	user, err := s.repo.FindByEmail(ctx, normalized)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (s *service) ListUsers(ctx context.Context, params pagination.Params, role *enums.UserRole) (*UserList, error) {
	if role != nil && !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role filter")
	}
	users, total, err := s.repo.ListUsers(ctx, params, role)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	return &UserList{
		Items: users,
		Meta:  pagination.BuildMeta(params, total),
	}, nil
}

// ToggleUserStatus flips the active flag, acting as a reversible soft delete.
func (s *service) ToggleUserStatus(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateUser(ctx, id, map[string]any{"is_active": !user.IsActive}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle user status")
	}
	user.IsActive = !user.IsActive
	return user, nil
}

func (s *service) FirstActiveDistributor(ctx context.Context) (*models.User, error) {
	user, err := s.repo.FirstActiveDistributor(ctx)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active distributor available")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find distributor")
	}
	return user, nil
}

func (s *service) ensureEmailFree(ctx context.Context, email string) error {
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "email already in use")
	} else if err != gorm.ErrRecordNotFound {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check email")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

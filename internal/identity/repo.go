package identity

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dquispe/reparto-backend/pkg/db/models"
	"github.com/dquispe/reparto-backend/pkg/enums"
	"github.com/dquispe/reparto-backend/pkg/pagination"
)

// Repository defines persistence operations for user accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	CreateUsers(ctx context.Context, users []models.User) error
	UpdateUser(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, params pagination.Params, role *enums.UserRole) ([]models.User, int64, error)
	FirstActiveDistributor(ctx context.Context) (*models.User, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an identity repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *repository) CreateUsers(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&users).Error
}

func (r *repository) UpdateUser(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) ListUsers(ctx context.Context, params pagination.Params, role *enums.UserRole) ([]models.User, int64, error) {
	norm := params.Normalize()

	query := r.db.WithContext(ctx).Model(&models.User{})
	if role != nil {
		query = query.Where("role = ?", *role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	err := query.
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(norm.Limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// FirstActiveDistributor returns the oldest active distributor account.
// Assignment policy is deliberately first-available, not capacity-aware.
func (r *repository) FirstActiveDistributor(ctx context.Context) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", enums.UserRoleDistributor, true).
		Order("created_at ASC").
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dquispe/reparto-backend/pkg/db/models"
	"github.com/dquispe/reparto-backend/pkg/enums"
	"github.com/dquispe/reparto-backend/pkg/pagination"
)

// ErrGuardedUpdateMissed signals that a conditional status update matched no row.
var ErrGuardedUpdateMissed = errors.New("guarded order update matched no row")

// Repository defines persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) error
	ListAll(ctx context.Context, params pagination.Params, status *enums.OrderStatus) ([]models.Order, int64, error)
	ListForDistributor(ctx context.Context, distributorID uuid.UUID, params pagination.Params, status enums.OrderStatus) ([]models.Order, int64, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatusGuarded applies updates only while the order still sits in the
// expected status, so concurrent writers cannot double-apply a transition.
func (r *repository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGuardedUpdateMissed
	}
	return nil
}

func (r *repository) ListAll(ctx context.Context, params pagination.Params, status *enums.OrderStatus) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	return page(query, "created_at DESC", params)
}

func (r *repository) ListForDistributor(ctx context.Context, distributorID uuid.UUID, params pagination.Params, status enums.OrderStatus) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("distributor_id = ? AND status = ?", distributorID, status)
	return page(query, "updated_at DESC", params)
}

func (r *repository) ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("customer_id = ?", customerID)
	return page(query, "created_at DESC", params)
}

func page(query *gorm.DB, order string, params pagination.Params) ([]models.Order, int64, error) {
	norm := params.Normalize()

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := query.
		Order(order).
		Offset(params.Offset()).
		Limit(norm.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dquispe/reparto-backend/pkg/db/models"
	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
	"github.com/dquispe/reparto-backend/pkg/pagination"
)

// Service defines catalog operations for admins, clients and the order pipeline.
type Service interface {
	ListProducts(ctx context.Context, params pagination.Params, activeOnly bool) (*ProductList, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error)
	ToggleProductStatus(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error
}

type service struct {
	repo Repository
}

// NewService builds a catalog service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListProducts(ctx context.Context, params pagination.Params, activeOnly bool) (*ProductList, error) {
	products, total, err := s.repo.ListProducts(ctx, params, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return &ProductList{
		Items: products,
		Meta:  pagination.BuildMeta(params, total),
	}, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if input.Price.IsNegative() || input.Price.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}

	if _, err := s.repo.FindByName(ctx, name); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product already exists")
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product name")
	}

	product := &models.Product{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Stock:       input.Stock,
		IsActive:    true,
		ImgURL:      input.ImgURL,
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return created, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name cannot be empty")
		}
		if name != product.Name {
			if _, err := s.repo.FindByName(ctx, name); err == nil {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "product name already in use")
			} else if err != gorm.ErrRecordNotFound {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product name")
			}
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Price != nil {
		if input.Price.IsNegative() || input.Price.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		updates["price"] = *input.Price
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
		}
		updates["stock"] = *input.Stock
	}
	if input.ImgURL != nil {
		updates["img_url"] = *input.ImgURL
	}

	if len(updates) == 0 {
		return product, nil
	}
	if err := s.repo.UpdateProduct(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return s.GetProduct(ctx, id)
}

// ToggleProductStatus flips the active flag, acting as a reversible soft delete.
func (s *service) ToggleProductStatus(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProduct(ctx, id, map[string]any{"is_active": !product.IsActive}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle product status")
	}
	product.IsActive = !product.IsActive
	return product, nil
}

func (s *service) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	products, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	active := make([]models.Product, 0, len(products))
	for _, product := range products {
		if product.IsActive {
			active = append(active, product)
		}
	}
	return active, nil
}

func (s *service) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if err := s.repo.DecrementStock(ctx, id, qty); err != nil {
		if err == ErrInsufficientStock {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "stock would go negative")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	return nil
}

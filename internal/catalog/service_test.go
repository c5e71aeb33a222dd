package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dquispe/reparto-backend/pkg/db/models"
	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
	"github.com/dquispe/reparto-backend/pkg/pagination"
)

type stubCatalogRepo struct {
	createProduct  func(ctx context.Context, product *models.Product) (*models.Product, error)
	updateProduct  func(ctx context.Context, id uuid.UUID, updates map[string]any) error
	findByID       func(ctx context.Context, id uuid.UUID) (*models.Product, error)
	findByName     func(ctx context.Context, name string) (*models.Product, error)
	findByIDs      func(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	listProducts   func(ctx context.Context, params pagination.Params, activeOnly bool) ([]models.Product, int64, error)
	decrementStock func(ctx context.Context, id uuid.UUID, qty int) error
}

func (s *stubCatalogRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubCatalogRepo) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if s.createProduct == nil {
		return product, nil
	}
	return s.createProduct(ctx, product)
}

func (s *stubCatalogRepo) UpdateProduct(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if s.updateProduct == nil {
		return nil
	}
	return s.updateProduct(ctx, id, updates)
}

func (s *stubCatalogRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.findByID == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.findByID(ctx, id)
}

func (s *stubCatalogRepo) FindByName(ctx context.Context, name string) (*models.Product, error) {
	if s.findByName == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.findByName(ctx, name)
}

func (s *stubCatalogRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if s.findByIDs == nil {
		return nil, nil
	}
	return s.findByIDs(ctx, ids)
}

func (s *stubCatalogRepo) ListProducts(ctx context.Context, params pagination.Params, activeOnly bool) ([]models.Product, int64, error) {
	if s.listProducts == nil {
		return nil, 0, nil
	}
	return s.listProducts(ctx, params, activeOnly)
}

func (s *stubCatalogRepo) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	if s.decrementStock == nil {
		return nil
	}
	return s.decrementStock(ctx, id, qty)
}

func TestCreateProductRejectsDuplicateName(t *testing.T) {
	repo := &stubCatalogRepo{
		findByName: func(ctx context.Context, name string) (*models.Product, error) {
			return &models.Product{Name: name}, nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.CreateProduct(context.Background(), CreateProductInput{
		Name:  "Queso fresco",
		Price: decimal.NewFromFloat(12.50),
		Stock: 5,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateProductValidatesInput(t *testing.T) {
	svc, err := NewService(&stubCatalogRepo{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cases := []CreateProductInput{
		{Name: "", Price: decimal.NewFromInt(10), Stock: 1},
		{Name: "ok", Price: decimal.Zero, Stock: 1},
		{Name: "ok", Price: decimal.NewFromInt(-5), Stock: 1},
		{Name: "ok", Price: decimal.NewFromInt(10), Stock: -1},
	}
	for i, input := range cases {
		_, err := svc.CreateProduct(context.Background(), input)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestGetProductMapsNotFound(t *testing.T) {
	svc, err := NewService(&stubCatalogRepo{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.GetProduct(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestToggleProductStatusFlips(t *testing.T) {
	id := uuid.New()
	var captured map[string]any
	repo := &stubCatalogRepo{
		findByID: func(ctx context.Context, got uuid.UUID) (*models.Product, error) {
			return &models.Product{ID: id, Name: "p", IsActive: true}, nil
		},
		updateProduct: func(ctx context.Context, got uuid.UUID, updates map[string]any) error {
			captured = updates
			return nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	product, err := svc.ToggleProductStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("toggle status: %v", err)
	}
	if product.IsActive {
		t.Fatalf("expected product to be deactivated")
	}
	if active, ok := captured["is_active"].(bool); !ok || active {
		t.Fatalf("expected is_active=false update, got %v", captured)
	}
}

func TestFindActiveByIDsFiltersInactive(t *testing.T) {
	activeID := uuid.New()
	repo := &stubCatalogRepo{
		findByIDs: func(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
			return []models.Product{
				{ID: activeID, IsActive: true},
				{ID: uuid.New(), IsActive: false},
			}, nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	products, err := svc.FindActiveByIDs(context.Background(), []uuid.UUID{activeID})
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if len(products) != 1 || products[0].ID != activeID {
		t.Fatalf("expected only the active product, got %+v", products)
	}
}

func TestDecrementStockMapsInsufficient(t *testing.T) {
	repo := &stubCatalogRepo{
		decrementStock: func(ctx context.Context, id uuid.UUID, qty int) error {
			return ErrInsufficientStock
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.DecrementStock(context.Background(), uuid.New(), 3)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

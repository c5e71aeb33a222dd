package orders

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/dquispe/reparto-backend/internal/catalog"
	"github.com/dquispe/reparto-backend/internal/checkout"
	"github.com/dquispe/reparto-backend/pkg/db/models"
	"github.com/dquispe/reparto-backend/pkg/enums"
	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
	"github.com/dquispe/reparto-backend/pkg/logger"
	"github.com/dquispe/reparto-backend/pkg/pagination"
)

type stubOrderRepo struct {
	createOrder         func(ctx context.Context, order *models.Order) (*models.Order, error)
	findByID            func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	findBySessionID     func(ctx context.Context, sessionID string) (*models.Order, error)
	updateStatusGuarded func(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) error
	listAll             func(ctx context.Context, params pagination.Params, status *enums.OrderStatus) ([]models.Order, int64, error)
	listForDistributor  func(ctx context.Context, distributorID uuid.UUID, params pagination.Params, status enums.OrderStatus) ([]models.Order, int64, error)
	listForCustomer     func(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, int64, error)
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrderRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if s.createOrder == nil {
		return order, nil
	}
	return s.createOrder(ctx, order)
}

func (s *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.findByID == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.findByID(ctx, id)
}

func (s *stubOrderRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	if s.findBySessionID == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.findBySessionID(ctx, sessionID)
}

func (s *stubOrderRepo) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) error {
	if s.updateStatusGuarded == nil {
		return nil
	}
	return s.updateStatusGuarded(ctx, id, from, updates)
}

func (s *stubOrderRepo) ListAll(ctx context.Context, params pagination.Params, status *enums.OrderStatus) ([]models.Order, int64, error) {
	if s.listAll == nil {
		return nil, 0, nil
	}
	return s.listAll(ctx, params, status)
}

func (s *stubOrderRepo) ListForDistributor(ctx context.Context, distributorID uuid.UUID, params pagination.Params, status enums.OrderStatus) ([]models.Order, int64, error) {
	if s.listForDistributor == nil {
		return nil, 0, nil
	}
	return s.listForDistributor(ctx, distributorID, params, status)
}

func (s *stubOrderRepo) ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, int64, error) {
	if s.listForCustomer == nil {
		return nil, 0, nil
	}
	return s.listForCustomer(ctx, customerID, params)
}

type stubProductRepo struct {
	findByIDs      func(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	decrementStock func(ctx context.Context, id uuid.UUID, qty int) error
}

func (s *stubProductRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if s.findByIDs == nil {
		return nil, nil
	}
	return s.findByIDs(ctx, ids)
}

func (s *stubProductRepo) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	if s.decrementStock == nil {
		return nil
	}
	return s.decrementStock(ctx, id, qty)
}

type stubUserRepo struct {
	findByID               func(ctx context.Context, id uuid.UUID) (*models.User, error)
	firstActiveDistributor func(ctx context.Context) (*models.User, error)
}

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.findByID == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.findByID(ctx, id)
}

func (s *stubUserRepo) FirstActiveDistributor(ctx context.Context) (*models.User, error) {
	if s.firstActiveDistributor == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.firstActiveDistributor(ctx)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
}

func newOrdersService(t *testing.T, repo Repository, products productRepository, users userRepository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Products: products,
		Users:    users,
		Logger:   testLogger(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func coord(value float64) *float64 {
	return &value
}

func paidSession(t *testing.T, customerID uuid.UUID, items []checkout.CartItem, amountTotal int64) *stripe.CheckoutSession {
	t.Helper()
	metadata, err := checkout.EncodeMetadata(customerID, items, coord(-17.3895), coord(-66.1568))
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	return &stripe.CheckoutSession{
		ID:          "cs_test_" + uuid.NewString(),
		AmountTotal: amountTotal,
		Metadata:    metadata,
	}
}

func activeClient(id uuid.UUID) *models.User {
	return &models.User{ID: id, Role: enums.UserRoleClient, IsActive: true}
}

func TestMaterializeFromSessionHappyPath(t *testing.T) {
	customerID := uuid.New()
	distributorID := uuid.New()
	product := models.Product{
		ID:       uuid.New(),
		Name:     "Arroz",
		Price:    decimal.RequireFromString("25.00"),
		Stock:    10,
		IsActive: true,
	}

	var inserted *models.Order
	var decremented struct {
		id  uuid.UUID
		qty int
	}
	var assigned map[string]any

	repo := &stubOrderRepo{
		createOrder: func(ctx context.Context, order *models.Order) (*models.Order, error) {
			inserted = order
			return order, nil
		},
		updateStatusGuarded: func(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) error {
			assigned = updates
			return nil
		},
	}
	products := &stubProductRepo{
		findByIDs: func(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
			return []models.Product{product}, nil
		},
		decrementStock: func(ctx context.Context, id uuid.UUID, qty int) error {
			decremented.id = id
			decremented.qty = qty
			return nil
		},
	}
	users := &stubUserRepo{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			return activeClient(customerID), nil
		},
		firstActiveDistributor: func(ctx context.Context) (*models.User, error) {
			return &models.User{ID: distributorID, Role: enums.UserRoleDistributor, IsActive: true}, nil
		},
	}
	svc := newOrdersService(t, repo, products, users)

	session := paidSession(t, customerID, []checkout.CartItem{{ProductID: product.ID, Quantity: 3}}, 7500)
	order, err := svc.MaterializeFromSession(context.Background(), session)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}

	if inserted == nil {
		t.Fatalf("expected order insert")
	}
	if !order.Total.Equal(decimal.RequireFromString("75.00")) {
		t.Fatalf("expected total 75.00, got %s", order.Total)
	}
	if order.QuantityTotal != 3 {
		t.Fatalf("expected quantity total 3, got %d", order.QuantityTotal)
	}
	if order.PaymentMethod != enums.PaymentMethodCard {
		t.Fatalf("expected TARJETA payment method, got %s", order.PaymentMethod)
	}
	if len(order.Details) != 1 || order.Details[0].Quantity != 3 {
		t.Fatalf("expected one detail line with qty 3, got %+v", order.Details)
	}
	if !order.Details[0].Subtotal.Equal(decimal.RequireFromString("75.00")) {
		t.Fatalf("expected line subtotal 75.00, got %s", order.Details[0].Subtotal)
	}
	if decremented.id != product.ID || decremented.qty != 3 {
		t.Fatalf("expected stock decrement of 3, got %+v", decremented)
	}
	if assigned == nil {
		t.Fatalf("expected auto assignment update")
	}
	if order.Status != enums.OrderStatusAssignedDistributor {
		t.Fatalf("expected ASIGNADO_DISTRIBUIDOR, got %s", order.Status)
	}
	if order.DistributorID == nil || *order.DistributorID != distributorID {
		t.Fatalf("expected distributor %s, got %v", distributorID, order.DistributorID)
	}
}

func TestMaterializeFromSessionWithoutCoordinates(t *testing.T) {
	customerID := uuid.New()
	product := models.Product{ID: uuid.New(), Name: "Arroz", Price: decimal.RequireFromString("25.00"), Stock: 10, IsActive: true}

	repo := &stubOrderRepo{}
	products := &stubProductRepo{
		findByIDs: func(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
			return []models.Product{product}, nil
		},
	}
	users := &stubUserRepo{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			return activeClient(customerID), nil
		},
	}
	svc := newOrdersService(t, repo, products, users)

	items := []checkout.CartItem{{ProductID: product.ID, Quantity: 1}}
	metadata, err := checkout.EncodeMetadata(customerID, items, nil, nil)
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	session := &stripe.CheckoutSession{
		ID:          "cs_test_" + uuid.NewString(),
		AmountTotal: 2500,
		Metadata:    metadata,
	}

	order, err := svc.MaterializeFromSession(context.Background(), session)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if order.Latitude != nil || order.Longitude != nil {
		t.Fatalf("expected nil coordinates, got %v / %v", order.Latitude, order.Longitude)
	}
}

func TestMaterializeFromSessionReplayIsIdempotent(t *testing.T) {
	customerID := uuid.New()
	existing := &models.Order{ID: uuid.New(), Status: enums.OrderStatusAssignedDistributor}

	inserts := 0
	repo := &stubOrderRepo{
		findBySessionID: func(ctx context.Context, sessionID string) (*models.Order, error) {
			return existing, nil
		},
		createOrder: func(ctx context.Context, order *models.Order) (*models.Order, error) {
			inserts++
			return order, nil
		},
	}
	svc := newOrdersService(t, repo, &stubProductRepo{}, &stubUserRepo{})

	session := paidSession(t, customerID, []checkout.CartItem{{ProductID: uuid.New(), Quantity: 1}}, 1000)
	order, err := svc.MaterializeFromSession(context.Background(), session)
	if err != nil {
		t.Fatalf("materialize replay: %v", err)
	}
	if order.ID != existing.ID {
		t.Fatalf("expected existing order returned")
	}
	if inserts != 0 {
		t.Fatalf("expected no insert on replay, got %d", inserts)
	}
}

func TestMaterializeFromSessionDuplicateInsertRace(t *testing.T) {
	customerID := uuid.New()
	product := models.Product{ID: uuid.New(), Name: "Arroz", Price: decimal.RequireFromString("10.00"), Stock: 5, IsActive: true}
	winner := &models.Order{ID: uuid.New(), Status: enums.OrderStatusAwaitingAssignment}

	lookups := 0
	repo := &stubOrderRepo{
		findBySessionID: func(ctx context.Context, sessionID string) (*models.Order, error) {
			lookups++
			if lookups == 1 {
				return nil, gorm.ErrRecordNotFound
			}
			return winner, nil
		},
		createOrder: func(ctx context.Context, order *models.Order) (*models.Order, error) {
			return nil, errors.New(`ERROR: duplicate key value violates unique constraint "idx_orders_session_id" (SQLSTATE 23505)`)
		},
	}
	products := &stubProductRepo{
		findByIDs: func(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
			return []models.Product{product}, nil
		},
	}
	users := &stubUserRepo{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			return activeClient(customerID), nil
		},
	}
	svc := newOrdersService(t, repo, products, users)

	session := paidSession(t, customerID, []checkout.CartItem{{ProductID: product.ID, Quantity: 1}}, 1000)
	order, err := svc.MaterializeFromSession(context.Background(), session)
	if err != nil {
		t.Fatalf("materialize race: %v", err)
	}
	if order.ID != winner.ID {
		t.Fatalf("expected winner order returned")
	}
}

func TestMaterializeFromSessionMalformedMetadata(t *testing.T) {
	inserts := 0
	repo := &stubOrderRepo{
		createOrder: func(ctx context.Context, order *models.Order) (*models.Order, error) {
			inserts++
			return order, nil
		},
	}
	svc := newOrdersService(t, repo, &stubProductRepo{}, &stubUserRepo{})

	_, err := svc.MaterializeFromSession(context.Background(), &stripe.CheckoutSession{
		ID:       "cs_test_bad",
		Metadata: map[string]string{"orderType": "product_purchase", "customerId": "garbage"},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if inserts != 0 {
		t.Fatalf("expected no insert for malformed metadata")
	}
}

func TestMaterializeFromSessionSurvivesStockConflict(t *testing.T) {
	customerID := uuid.New()
	product := models.Product{ID: uuid.New(), Name: "Arroz", Price: decimal.RequireFromString("10.00"), Stock: 1, IsActive: true}

	repo := &stubOrderRepo{}
	products := &stubProductRepo{
		findByIDs: func(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
			return []models.Product{product}, nil
		},
		decrementStock: func(ctx context.Context, id uuid.UUID, qty int) error {
			return catalog.ErrInsufficientStock
		},
	}
	users := &stubUserRepo{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			return activeClient(customerID), nil
		},
	}
	svc := newOrdersService(t, repo, products, users)

	session := paidSession(t, customerID, []checkout.CartItem{{ProductID: product.ID, Quantity: 5}}, 5000)
	order, err := svc.MaterializeFromSession(context.Background(), session)
	if err != nil {
		t.Fatalf("expected order despite stock conflict, got %v", err)
	}
	if order.Status != enums.OrderStatusAwaitingAssignment {
		t.Fatalf("expected ESPERANDO_ASIGNACION without distributor, got %s", order.Status)
	}
}

func TestAssignDistributorOnlyFromWaitingState(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrderRepo{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{ID: orderID, Status: enums.OrderStatusAssignedDistributor}, nil
		},
	}
	svc := newOrdersService(t, repo, &stubProductRepo{}, &stubUserRepo{})

	_, err := svc.AssignDistributor(context.Background(), orderID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for already assigned order, got %v", err)
	}
}

func TestAssignDistributorRejectsInactiveDistributor(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrderRepo{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{ID: orderID, Status: enums.OrderStatusAwaitingAssignment}, nil
		},
	}
	users := &stubUserRepo{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			return &models.User{ID: id, Role: enums.UserRoleDistributor, IsActive: false}, nil
		},
	}
	svc := newOrdersService(t, repo, &stubProductRepo{}, users)

	_, err := svc.AssignDistributor(context.Background(), orderID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAssignDistributorGuardedRace(t *testing.T) {
	orderID := uuid.New()
	distributorID := uuid.New()
	repo := &stubOrderRepo{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{ID: orderID, Status: enums.OrderStatusAwaitingAssignment}, nil
		},
		updateStatusGuarded: func(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) error {
			return ErrGuardedUpdateMissed
		},
	}
	users := &stubUserRepo{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			return &models.User{ID: distributorID, Role: enums.UserRoleDistributor, IsActive: true}, nil
		},
	}
	svc := newOrdersService(t, repo, &stubProductRepo{}, users)

	_, err := svc.AssignDistributor(context.Background(), orderID, distributorID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestMarkDeliveredWrongDistributor(t *testing.T) {
	orderID := uuid.New()
	assignee := uuid.New()
	repo := &stubOrderRepo{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{
				ID:            orderID,
				Status:        enums.OrderStatusAssignedDistributor,
				DistributorID: &assignee,
			}, nil
		},
	}
	svc := newOrdersService(t, repo, &stubProductRepo{}, &stubUserRepo{})

	_, err := svc.MarkDelivered(context.Background(), orderID, uuid.New(), "")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for wrong distributor, got %v", err)
	}
}

func TestMarkDeliveredStampsDeliveryTime(t *testing.T) {
	orderID := uuid.New()
	distributorID := uuid.New()

	var captured map[string]any
	state := &models.Order{
		ID:            orderID,
		Status:        enums.OrderStatusAssignedDistributor,
		DistributorID: &distributorID,
	}
	repo := &stubOrderRepo{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return state, nil
		},
		updateStatusGuarded: func(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) error {
			if from != enums.OrderStatusAssignedDistributor {
				t.Fatalf("expected guard on ASIGNADO_DISTRIBUIDOR, got %s", from)
			}
			captured = updates
			return nil
		},
	}
	svc := newOrdersService(t, repo, &stubProductRepo{}, &stubUserRepo{})

	_, err := svc.MarkDelivered(context.Background(), orderID, distributorID, "left at the door")
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if captured["status"] != enums.OrderStatusDeliveredSuccess {
		t.Fatalf("expected FINALIZADO_CON_EXITO, got %v", captured["status"])
	}
	if _, ok := captured["delivery_time"].(time.Time); !ok {
		t.Fatalf("expected delivery_time stamp, got %v", captured["delivery_time"])
	}
	if captured["observation"] != "left at the door" {
		t.Fatalf("expected observation recorded, got %v", captured["observation"])
	}
}

func TestMarkDeliveredRejectsLongObservation(t *testing.T) {
	svc := newOrdersService(t, &stubOrderRepo{}, &stubProductRepo{}, &stubUserRepo{})

	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	_, err := svc.MarkDelivered(context.Background(), uuid.New(), uuid.New(), string(long))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkDeliveredRejectsTerminalOrder(t *testing.T) {
	orderID := uuid.New()
	distributorID := uuid.New()
	repo := &stubOrderRepo{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{
				ID:            orderID,
				Status:        enums.OrderStatusDeliveredSuccess,
				DistributorID: &distributorID,
			}, nil
		},
	}
	svc := newOrdersService(t, repo, &stubProductRepo{}, &stubUserRepo{})

	_, err := svc.MarkDelivered(context.Background(), orderID, distributorID, "")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for delivered order, got %v", err)
	}
}

func TestListForDistributorDefaultsToAssigned(t *testing.T) {
	var seen enums.OrderStatus
	repo := &stubOrderRepo{
		listForDistributor: func(ctx context.Context, distributorID uuid.UUID, params pagination.Params, status enums.OrderStatus) ([]models.Order, int64, error) {
			seen = status
			return nil, 0, nil
		},
	}
	svc := newOrdersService(t, repo, &stubProductRepo{}, &stubUserRepo{})

	_, err := svc.ListForDistributor(context.Background(), uuid.New(), pagination.Params{Page: 1, Limit: 10}, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if seen != enums.OrderStatusAssignedDistributor {
		t.Fatalf("expected default ASIGNADO_DISTRIBUIDOR filter, got %s", seen)
	}
}

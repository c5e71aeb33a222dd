package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/dquispe/reparto-backend/internal/catalog"
	"github.com/dquispe/reparto-backend/internal/checkout"
	"github.com/dquispe/reparto-backend/pkg/db"
	"github.com/dquispe/reparto-backend/pkg/db/models"
	"github.com/dquispe/reparto-backend/pkg/enums"
	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
	"github.com/dquispe/reparto-backend/pkg/logger"
	"github.com/dquispe/reparto-backend/pkg/metrics"
	"github.com/dquispe/reparto-backend/pkg/pagination"
)

const maxObservationLen = 255

type productRepository interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error
}

type userRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FirstActiveDistributor(ctx context.Context) (*models.User, error)
}

// Service turns paid checkout sessions into orders and drives their delivery
// lifecycle.
type Service interface {
	MaterializeFromSession(ctx context.Context, session *stripe.CheckoutSession) (*models.Order, error)
	AssignDistributor(ctx context.Context, orderID, distributorID uuid.UUID) (*models.Order, error)
	MarkDelivered(ctx context.Context, orderID, distributorID uuid.UUID, observation string) (*models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListAll(ctx context.Context, params pagination.Params, status *enums.OrderStatus) (*OrderList, error)
	ListForDistributor(ctx context.Context, distributorID uuid.UUID, params pagination.Params, status *enums.OrderStatus) (*OrderList, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error)
}

// ServiceParams bundles the dependencies required to build an orders service.
type ServiceParams struct {
	Repo     Repository
	Products productRepository
	Users    userRepository
	Logger   *logger.Logger
	Metrics  *metrics.PipelineMetrics
}

type service struct {
	repo     Repository
	products productRepository
	users    userRepository
	log      *logger.Logger
	metrics  *metrics.PipelineMetrics
	now      func() time.Time
}

// NewService builds an orders service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		users:    params.Users,
		log:      params.Logger,
		metrics:  params.Metrics,
		now:      time.Now,
	}, nil
}

// MaterializeFromSession converts a completed checkout session into a stored
// order. Stripe retries webhook deliveries, so every step tolerates replays:
// the session id is unique and an existing order short-circuits the whole run.
func (s *service) MaterializeFromSession(ctx context.Context, session *stripe.CheckoutSession) (*models.Order, error) {
	if session == nil || session.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session required")
	}
	ctx = s.log.WithField(ctx, "session_id", session.ID)

	decoded, err := checkout.DecodeMetadata(session.Metadata)
	if err != nil {
		return nil, err
	}

	if existing, err := s.repo.FindBySessionID(ctx, session.ID); err == nil {
		s.log.Info(ctx, "order already materialized for session")
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order by session")
	}

	customer, err := s.users.FindByID(ctx, decoded.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	if customer.Role != enums.UserRoleClient || !customer.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer is not an active client")
	}

	details, err := s.buildDetails(ctx, decoded.Items)
	if err != nil {
		return nil, err
	}

	// The processor settled the charge, so its amount wins over any local sum.
	total := decimal.NewFromInt(session.AmountTotal).Div(decimal.NewFromInt(100))

	quantityTotal := 0
	for _, detail := range details {
		quantityTotal += detail.Quantity
	}

	order := &models.Order{
		ID:            uuid.New(),
		CustomerID:    customer.ID,
		Status:        enums.OrderStatusAwaitingAssignment,
		PaymentMethod: enums.PaymentMethodCard,
		QuantityTotal: quantityTotal,
		Total:         total,
		SessionID:     session.ID,
		Latitude:      decoded.Latitude,
		Longitude:     decoded.Longitude,
		Details:       details,
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			// a concurrent delivery of the same event won the insert
			return s.repo.FindBySessionID(ctx, session.ID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
	}
	s.metrics.IncOrderCreated()
	ctx = s.log.WithOrderID(ctx, created.ID.String())

	s.decrementStockBestEffort(ctx, decoded.Items)
	s.autoAssignBestEffort(ctx, created)

	return created, nil
}

func (s *service) buildDetails(ctx context.Context, items []checkout.CartItem) ([]models.OrderDetail, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	details := make([]models.OrderDetail, 0, len(items))
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product no longer exists").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid quantity in metadata").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		details = append(details, models.OrderDetail{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  item.Quantity,
			Subtotal:  product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return details, nil
}

// decrementStockBestEffort lowers inventory after payment. The charge already
// settled, so a failed decrement must not undo the order; conflicts are logged
// and counted instead.
func (s *service) decrementStockBestEffort(ctx context.Context, items []checkout.CartItem) {
	var combined error
	for _, item := range items {
		if err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, catalog.ErrInsufficientStock) {
				s.metrics.IncStockConflict()
			}
			combined = multierr.Append(combined, fmt.Errorf("product %s: %w", item.ProductID, err))
		}
	}
	if combined != nil {
		s.log.Error(ctx, "stock decrement incomplete for paid order", combined)
	}
}

func (s *service) autoAssignBestEffort(ctx context.Context, order *models.Order) {
	distributor, err := s.users.FirstActiveDistributor(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn(ctx, "no active distributor, order stays unassigned")
		} else {
			s.log.Error(ctx, "distributor lookup failed", err)
		}
		return
	}

	err = s.repo.UpdateStatusGuarded(ctx, order.ID, enums.OrderStatusAwaitingAssignment, map[string]any{
		"status":         enums.OrderStatusAssignedDistributor,
		"distributor_id": distributor.ID,
	})
	if err != nil {
		s.log.Error(ctx, "auto assignment failed", err)
		return
	}
	order.Status = enums.OrderStatusAssignedDistributor
	id := distributor.ID
	order.DistributorID = &id
	s.metrics.IncAssignment("auto")
}

func (s *service) AssignDistributor(ctx context.Context, orderID, distributorID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil || distributorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and distributor id required")
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// Orders that already left the waiting state are not assignable; they are
	// reported as missing rather than conflicting.
	if order.Status != enums.OrderStatusAwaitingAssignment {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no assignable order found")
	}

	distributor, err := s.users.FindByID(ctx, distributorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "distributor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load distributor")
	}
	if distributor.Role != enums.UserRoleDistributor || !distributor.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user is not an active distributor")
	}

	err = s.repo.UpdateStatusGuarded(ctx, order.ID, enums.OrderStatusAwaitingAssignment, map[string]any{
		"status":         enums.OrderStatusAssignedDistributor,
		"distributor_id": distributor.ID,
	})
	if err != nil {
		if errors.Is(err, ErrGuardedUpdateMissed) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order was assigned concurrently")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign distributor")
	}
	s.metrics.IncAssignment("manual")

	return s.GetOrder(ctx, order.ID)
}

func (s *service) MarkDelivered(ctx context.Context, orderID, distributorID uuid.UUID, observation string) (*models.Order, error) {
	if orderID == uuid.Nil || distributorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and distributor id required")
	}
	if len(observation) > maxObservationLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "observation too long").
			WithDetails(map[string]any{"max_len": maxObservationLen})
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// Three-way match: the order must exist, belong to the calling
	// distributor, and still be deliverable. Any miss looks identical to the
	// caller so one distributor cannot probe another's queue.
	if order.DistributorID == nil || *order.DistributorID != distributorID ||
		!order.Status.CanTransition(enums.OrderStatusDeliveredSuccess) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no deliverable order found")
	}

	updates := map[string]any{
		"status":        enums.OrderStatusDeliveredSuccess,
		"delivery_time": s.now().UTC(),
	}
	if observation != "" {
		updates["observation"] = observation
	}
	if err := s.repo.UpdateStatusGuarded(ctx, order.ID, order.Status, updates); err != nil {
		if errors.Is(err, ErrGuardedUpdateMissed) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark delivered")
	}

	return s.GetOrder(ctx, order.ID)
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListAll(ctx context.Context, params pagination.Params, status *enums.OrderStatus) (*OrderList, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	orders, total, err := s.repo.ListAll(ctx, params, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return &OrderList{Items: orders, Meta: pagination.BuildMeta(params, total)}, nil
}

func (s *service) ListForDistributor(ctx context.Context, distributorID uuid.UUID, params pagination.Params, status *enums.OrderStatus) (*OrderList, error) {
	if distributorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "distributor id required")
	}
	// distributors see their assigned queue unless they ask for another state
	filter := enums.OrderStatusAssignedDistributor
	if status != nil {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
		}
		filter = *status
	}
	orders, total, err := s.repo.ListForDistributor(ctx, distributorID, params, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list distributor orders")
	}
	return &OrderList{Items: orders, Meta: pagination.BuildMeta(params, total)}, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	orders, total, err := s.repo.ListForCustomer(ctx, customerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customer orders")
	}
	return &OrderList{Items: orders, Meta: pagination.BuildMeta(params, total)}, nil
}

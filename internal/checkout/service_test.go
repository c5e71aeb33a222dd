package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/dquispe/reparto-backend/pkg/db/models"
	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
)

type stubProductFinder struct {
	findActiveByIDs func(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

func (s *stubProductFinder) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if s.findActiveByIDs == nil {
		return nil, nil
	}
	return s.findActiveByIDs(ctx, ids)
}

type stubStripeClient struct {
	createSession func(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
}

func (s *stubStripeClient) CreateSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
	if s.createSession == nil {
		return &stripe.CheckoutSession{ID: "cs_test_stub", URL: "https://checkout.stripe.test/stub"}, nil
	}
	return s.createSession(ctx, params)
}

func newCheckoutService(t *testing.T, products productFinder, client StripeSessionClient) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Products:   products,
		Stripe:     client,
		SuccessURL: "https://shop.reparto.dev/success",
		CancelURL:  "https://shop.reparto.dev/cancel",
		Currency:   "usd",
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func catalogWith(products ...models.Product) *stubProductFinder {
	return &stubProductFinder{
		findActiveByIDs: func(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
			return products, nil
		},
	}
}

func TestValidateCartRejectsEmpty(t *testing.T) {
	svc := newCheckoutService(t, catalogWith(), &stubStripeClient{})

	_, err := svc.ValidateCart(context.Background(), nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateCartRejectsDuplicates(t *testing.T) {
	id := uuid.New()
	svc := newCheckoutService(t, catalogWith(), &stubStripeClient{})

	_, err := svc.ValidateCart(context.Background(), []CartItem{
		{ProductID: id, Quantity: 1},
		{ProductID: id, Quantity: 2},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateCartRejectsUnknownProduct(t *testing.T) {
	svc := newCheckoutService(t, catalogWith(), &stubStripeClient{})

	_, err := svc.ValidateCart(context.Background(), []CartItem{
		{ProductID: uuid.New(), Quantity: 1},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestValidateCartRejectsInsufficientStock(t *testing.T) {
	product := models.Product{
		ID:       uuid.New(),
		Name:     "Arroz",
		Price:    decimal.RequireFromString("25.00"),
		Stock:    2,
		IsActive: true,
	}
	svc := newCheckoutService(t, catalogWith(product), &stubStripeClient{})

	_, err := svc.ValidateCart(context.Background(), []CartItem{
		{ProductID: product.ID, Quantity: 3},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestValidateCartComputesSubtotals(t *testing.T) {
	product := models.Product{
		ID:       uuid.New(),
		Name:     "Arroz",
		Price:    decimal.RequireFromString("25.00"),
		Stock:    10,
		IsActive: true,
	}
	svc := newCheckoutService(t, catalogWith(product), &stubStripeClient{})

	lines, err := svc.ValidateCart(context.Background(), []CartItem{
		{ProductID: product.ID, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("validate cart: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if !lines[0].Subtotal.Equal(decimal.RequireFromString("75.00")) {
		t.Fatalf("expected subtotal 75.00, got %s", lines[0].Subtotal)
	}
}

func TestCreateSessionBuildsLineItemsAndMetadata(t *testing.T) {
	customerID := uuid.New()
	product := models.Product{
		ID:       uuid.New(),
		Name:     "Arroz",
		Price:    decimal.RequireFromString("25.00"),
		Stock:    10,
		IsActive: true,
	}

	var captured *stripe.CheckoutSessionCreateParams
	client := &stubStripeClient{
		createSession: func(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
			captured = params
			return &stripe.CheckoutSession{ID: "cs_test_123", URL: "https://checkout.stripe.test/cs_test_123"}, nil
		},
	}
	svc := newCheckoutService(t, catalogWith(product), client)

	result, err := svc.CreateSession(context.Background(), CreateSessionInput{
		CustomerID: customerID,
		Items:      []CartItem{{ProductID: product.ID, Quantity: 3}},
		Latitude:   coord(-17.3895),
		Longitude:  coord(-66.1568),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if result.SessionID != "cs_test_123" {
		t.Fatalf("expected session id cs_test_123, got %s", result.SessionID)
	}

	if captured == nil || len(captured.LineItems) != 1 {
		t.Fatalf("expected 1 line item, got %+v", captured)
	}
	line := captured.LineItems[0]
	if *line.PriceData.UnitAmount != 2500 {
		t.Fatalf("expected unit amount 2500, got %d", *line.PriceData.UnitAmount)
	}
	if *line.Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", *line.Quantity)
	}
	if *line.PriceData.ProductData.Name != "Arroz" {
		t.Fatalf("expected product name in line item, got %s", *line.PriceData.ProductData.Name)
	}

	decoded, err := DecodeMetadata(captured.Metadata)
	if err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if decoded.CustomerID != customerID {
		t.Fatalf("metadata customer mismatch")
	}
}

func TestCreateSessionWrapsStripeFailure(t *testing.T) {
	product := models.Product{
		ID:       uuid.New(),
		Name:     "Arroz",
		Price:    decimal.RequireFromString("25.00"),
		Stock:    10,
		IsActive: true,
	}
	client := &stubStripeClient{
		createSession: func(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
			return nil, &stripe.Error{Msg: "api down"}
		},
	}
	svc := newCheckoutService(t, catalogWith(product), client)

	_, err := svc.CreateSession(context.Background(), CreateSessionInput{
		CustomerID: uuid.New(),
		Items:      []CartItem{{ProductID: product.ID, Quantity: 1}},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestCreateSessionWithoutCoordinates(t *testing.T) {
	product := models.Product{
		ID:       uuid.New(),
		Name:     "Arroz",
		Price:    decimal.RequireFromString("25.00"),
		Stock:    10,
		IsActive: true,
	}
	var captured *stripe.CheckoutSessionCreateParams
	client := &stubStripeClient{
		createSession: func(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
			captured = params
			return &stripe.CheckoutSession{ID: "cs_test_nocoord", URL: "https://checkout.stripe.test/nocoord"}, nil
		},
	}
	svc := newCheckoutService(t, catalogWith(product), client)

	_, err := svc.CreateSession(context.Background(), CreateSessionInput{
		CustomerID: uuid.New(),
		Items:      []CartItem{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if captured.Metadata["latitude"] != "" || captured.Metadata["longitude"] != "" {
		t.Fatalf("expected empty coordinate metadata, got %q / %q",
			captured.Metadata["latitude"], captured.Metadata["longitude"])
	}
}

func TestCreateSessionCurrencyOverride(t *testing.T) {
	product := models.Product{
		ID:       uuid.New(),
		Name:     "Arroz",
		Price:    decimal.RequireFromString("25.00"),
		Stock:    10,
		IsActive: true,
	}
	var captured *stripe.CheckoutSessionCreateParams
	client := &stubStripeClient{
		createSession: func(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
			captured = params
			return &stripe.CheckoutSession{ID: "cs_test_bob", URL: "https://checkout.stripe.test/bob"}, nil
		},
	}
	svc := newCheckoutService(t, catalogWith(product), client)

	_, err := svc.CreateSession(context.Background(), CreateSessionInput{
		CustomerID: uuid.New(),
		Items:      []CartItem{{ProductID: product.ID, Quantity: 1}},
		Currency:   "BOB",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if got := *captured.LineItems[0].PriceData.Currency; got != "bob" {
		t.Fatalf("expected currency override bob, got %q", got)
	}

	_, err = svc.CreateSession(context.Background(), CreateSessionInput{
		CustomerID: uuid.New(),
		Items:      []CartItem{{ProductID: product.ID, Quantity: 1}},
		Currency:   "boliviano",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for bad currency, got %v", err)
	}
}

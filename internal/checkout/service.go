package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/dquispe/reparto-backend/pkg/db/models"
	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
	"github.com/dquispe/reparto-backend/pkg/metrics"
)

const maxCartLines = 50

type productFinder interface {
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Service validates carts and opens Stripe checkout sessions for them.
type Service interface {
	ValidateCart(ctx context.Context, items []CartItem) ([]ValidatedLine, error)
	CreateSession(ctx context.Context, input CreateSessionInput) (*SessionResult, error)
}

// ServiceParams bundles the dependencies required to build a checkout service.
type ServiceParams struct {
	Products   productFinder
	Stripe     StripeSessionClient
	SuccessURL string
	CancelURL  string
	Currency   string
	Metrics    *metrics.PipelineMetrics
}

type service struct {
	products   productFinder
	stripe     StripeSessionClient
	successURL string
	cancelURL  string
	currency   string
	metrics    *metrics.PipelineMetrics
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Products == nil {
		return nil, fmt.Errorf("product finder required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.SuccessURL == "" || params.CancelURL == "" {
		return nil, fmt.Errorf("checkout redirect urls required")
	}
	if params.Currency == "" {
		return nil, fmt.Errorf("checkout currency required")
	}
	return &service{
		products:   params.Products,
		stripe:     params.Stripe,
		successURL: params.SuccessURL,
		cancelURL:  params.CancelURL,
		currency:   params.Currency,
		metrics:    params.Metrics,
	}, nil
}

func (s *service) ValidateCart(ctx context.Context, items []CartItem) ([]ValidatedLine, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if len(items) > maxCartLines {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart has too many lines").
			WithDetails(map[string]any{"max_lines": maxCartLines})
	}

	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		if seen[item.ProductID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in cart").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		seen[item.ProductID] = true
		ids = append(ids, item.ProductID)
	}

	products, err := s.products.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	lines := make([]ValidatedLine, 0, len(items))
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product unavailable").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		if product.Stock < item.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
				WithDetails(map[string]any{
					"product_id": product.ID,
					"requested":  item.Quantity,
					"available":  product.Stock,
				})
		}
		lines = append(lines, ValidatedLine{
			Product:  product,
			Quantity: item.Quantity,
			Subtotal: product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return lines, nil
}

func (s *service) CreateSession(ctx context.Context, input CreateSessionInput) (*SessionResult, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	currency := s.currency
	if override := strings.ToLower(strings.TrimSpace(input.Currency)); override != "" {
		if len(override) != 3 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency must be a 3-letter code").
				WithDetails(map[string]any{"currency": input.Currency})
		}
		currency = override
	}

	lines, err := s.ValidateCart(ctx, input.Items)
	if err != nil {
		s.metrics.IncCheckoutSession("rejected")
		return nil, err
	}

	metadata, err := EncodeMetadata(input.CustomerID, input.Items, input.Latitude, input.Longitude)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
		Metadata:   metadata,
		LineItems:  s.buildLineItems(lines, currency),
	}

	session, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		s.metrics.IncCheckoutSession("failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	s.metrics.IncCheckoutSession("created")
	return &SessionResult{SessionID: session.ID, URL: session.URL}, nil
}

func (s *service) buildLineItems(lines []ValidatedLine, currency string) []*stripe.CheckoutSessionCreateLineItemParams {
	items := make([]*stripe.CheckoutSessionCreateLineItemParams, 0, len(lines))
	for _, line := range lines {
		// Stripe wants integer minor units, so 25.00 becomes 2500.
		unitAmount := line.Product.Price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
		productData := &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
			Name: stripe.String(line.Product.Name),
		}
		if line.Product.Description != "" {
			productData.Description = stripe.String(line.Product.Description)
		}
		if line.Product.ImgURL != nil && *line.Product.ImgURL != "" {
			productData.Images = stripe.StringSlice([]string{*line.Product.ImgURL})
		}
		items = append(items, &stripe.CheckoutSessionCreateLineItemParams{
			Quantity: stripe.Int64(int64(line.Quantity)),
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(unitAmount),
				ProductData: productData,
			},
		})
	}
	return items
}

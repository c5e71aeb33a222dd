package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/dquispe/reparto-backend/pkg/db/models"
	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
	"github.com/dquispe/reparto-backend/pkg/metrics"
)

type orderMaterializer interface {
	MaterializeFromSession(ctx context.Context, session *stripe.CheckoutSession) (*models.Order, error)
}

// ServiceParams bundles the dependencies required to build the webhook service.
type ServiceParams struct {
	Orders  orderMaterializer
	Metrics *metrics.PipelineMetrics
}

// Service routes verified Stripe events into the order pipeline.
type Service struct {
	orders  orderMaterializer
	metrics *metrics.PipelineMetrics
}

// NewService builds the Stripe webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order materializer required")
	}
	return &Service{orders: params.Orders, metrics: params.Metrics}, nil
}

// HandleEvent dispatches a verified event. Unknown event types are accepted
// and dropped so Stripe does not retry them. Duplicate deliveries are not
// filtered here; the materializer is idempotent on the session id.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			s.metrics.IncWebhookEvent(string(event.Type), "malformed")
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		if _, err := s.orders.MaterializeFromSession(ctx, &session); err != nil {
			s.metrics.IncWebhookEvent(string(event.Type), "failed")
			return err
		}
		s.metrics.IncWebhookEvent(string(event.Type), "processed")
		return nil
	default:
		s.metrics.IncWebhookEvent(string(event.Type), "ignored")
		return nil
	}
}

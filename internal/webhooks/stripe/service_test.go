package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/dquispe/reparto-backend/pkg/db/models"
	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
)

type stubMaterializer struct {
	calls    int
	lastID   string
	err      error
	response *models.Order
}

func (s *stubMaterializer) MaterializeFromSession(ctx context.Context, session *stripe.CheckoutSession) (*models.Order, error) {
	s.calls++
	s.lastID = session.ID
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func completedSessionEvent(t *testing.T, sessionID string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(&stripe.CheckoutSession{ID: sessionID, AmountTotal: 7500})
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEventRoutesCompletedSession(t *testing.T) {
	materializer := &stubMaterializer{response: &models.Order{}}
	svc, err := NewService(ServiceParams{Orders: materializer})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.HandleEvent(context.Background(), completedSessionEvent(t, "cs_test_42")); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if materializer.calls != 1 || materializer.lastID != "cs_test_42" {
		t.Fatalf("expected one materialize call for cs_test_42, got %d (%s)", materializer.calls, materializer.lastID)
	}
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	materializer := &stubMaterializer{}
	svc, err := NewService(ServiceParams{Orders: materializer})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{Raw: []byte(`{}`)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown event should be accepted, got %v", err)
	}
	if materializer.calls != 0 {
		t.Fatalf("expected no materialize calls, got %d", materializer.calls)
	}
}

func TestHandleEventPropagatesMaterializerError(t *testing.T) {
	materializer := &stubMaterializer{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	svc, err := NewService(ServiceParams{Orders: materializer})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.HandleEvent(context.Background(), completedSessionEvent(t, "cs_test_err"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestHandleEventRejectsMissingData(t *testing.T) {
	svc, err := NewService(ServiceParams{Orders: &stubMaterializer{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.HandleEvent(context.Background(), &stripe.Event{Type: stripe.EventTypeCheckoutSessionCompleted})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

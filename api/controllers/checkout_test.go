package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/dquispe/reparto-backend/api/middleware"
	checkoutsvc "github.com/dquispe/reparto-backend/internal/checkout"
)

type stubCheckoutService struct {
	calls int
	input checkoutsvc.CreateSessionInput
}

func (s *stubCheckoutService) ValidateCart(ctx context.Context, items []checkoutsvc.CartItem) ([]checkoutsvc.ValidatedLine, error) {
	panic("unimplemented")
}

func (s *stubCheckoutService) CreateSession(ctx context.Context, input checkoutsvc.CreateSessionInput) (*checkoutsvc.SessionResult, error) {
	s.calls++
	s.input = input
	return &checkoutsvc.SessionResult{SessionID: "cs_test_1", URL: "https://checkout.stripe.com/pay/cs_test_1"}, nil
}

func TestCreateCheckoutSession(t *testing.T) {
	logg := testControllerLogger()
	customerID := uuid.New()
	productID := uuid.New()

	t.Run("missing user", func(t *testing.T) {
		stub := &stubCheckoutService{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/sessions", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		CreateCheckoutSession(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("empty cart rejected", func(t *testing.T) {
		stub := &stubCheckoutService{}
		ctx := middleware.WithUserID(context.Background(), customerID.String())
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/sessions", strings.NewReader(`{"items":[],"latitude":-17.39,"longitude":-66.15}`))
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		CreateCheckoutSession(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
		}
		if stub.calls != 0 {
			t.Fatalf("service should not be called for an empty cart")
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubCheckoutService{}
		ctx := middleware.WithUserID(context.Background(), customerID.String())
		body := `{"items":[{"productId":"` + productID.String() + `","quantity":2}],"latitude":-17.3895,"longitude":-66.1568}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/sessions", strings.NewReader(body))
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		CreateCheckoutSession(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
		}
		if stub.input.CustomerID != customerID {
			t.Fatalf("expected customer id from context, got %s", stub.input.CustomerID)
		}
		if len(stub.input.Items) != 1 || stub.input.Items[0].Quantity != 2 {
			t.Fatalf("unexpected items %+v", stub.input.Items)
		}
		if stub.input.Latitude == nil || *stub.input.Latitude != -17.3895 {
			t.Fatalf("unexpected latitude %v", stub.input.Latitude)
		}
		if stub.input.Longitude == nil || *stub.input.Longitude != -66.1568 {
			t.Fatalf("unexpected longitude %v", stub.input.Longitude)
		}

		var payload struct {
			Data struct {
				SessionID string `json:"sessionId"`
				URL       string `json:"url"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if payload.Data.SessionID != "cs_test_1" {
			t.Fatalf("unexpected session id %q", payload.Data.SessionID)
		}
	})

	t.Run("coordinates optional", func(t *testing.T) {
		stub := &stubCheckoutService{}
		ctx := middleware.WithUserID(context.Background(), customerID.String())
		body := `{"items":[{"productId":"` + productID.String() + `","quantity":1}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/sessions", strings.NewReader(body))
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		CreateCheckoutSession(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 without coordinates, got %d (%s)", rec.Code, rec.Body.String())
		}
		if stub.input.Latitude != nil || stub.input.Longitude != nil {
			t.Fatalf("expected nil coordinates, got %v / %v", stub.input.Latitude, stub.input.Longitude)
		}
	})

	t.Run("zero coordinates accepted", func(t *testing.T) {
		stub := &stubCheckoutService{}
		ctx := middleware.WithUserID(context.Background(), customerID.String())
		body := `{"items":[{"productId":"` + productID.String() + `","quantity":1}],"latitude":0,"longitude":0}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/sessions", strings.NewReader(body))
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		CreateCheckoutSession(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 for zero coordinates, got %d (%s)", rec.Code, rec.Body.String())
		}
		if stub.input.Latitude == nil || *stub.input.Latitude != 0 {
			t.Fatalf("expected latitude 0 forwarded, got %v", stub.input.Latitude)
		}
	})

	t.Run("currency forwarded", func(t *testing.T) {
		stub := &stubCheckoutService{}
		ctx := middleware.WithUserID(context.Background(), customerID.String())
		body := `{"items":[{"productId":"` + productID.String() + `","quantity":1}],"currency":"bob"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/sessions", strings.NewReader(body))
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		CreateCheckoutSession(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
		}
		if stub.input.Currency != "bob" {
			t.Fatalf("expected currency forwarded, got %q", stub.input.Currency)
		}
	})
}

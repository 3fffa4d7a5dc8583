package pushinpay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"vipbot/entity"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(Config{Token: "secret-token", ApiUrl: srv.URL, Timeout: 2 * time.Second}, logger)
}

func TestCreateCharge(t *testing.T) {
	var got cashInRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/pix/cashIn" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret-token" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"9c29870c-9f69","qr_code":"00020101021226770014BR.GOV.BCB.PIX","status":"created","value":1799}`))
	})

	charge, err := c.CreateCharge(context.Background(), 1799, "https://example.com/pushin/webhook")
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	if charge.Id != "9c29870c-9f69" || charge.QrCode == "" || charge.Value != 1799 {
		t.Errorf("unexpected charge %+v", charge)
	}
	if got.Value != 1799 || got.WebhookUrl != "https://example.com/pushin/webhook" {
		t.Errorf("unexpected payload %+v", got)
	}
	if got.SplitRules == nil || len(got.SplitRules) != 0 {
		t.Errorf("split_rules must be an empty list, got %v", got.SplitRules)
	}
}

func TestCreateChargeProviderError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid value"}`))
	})

	_, err := c.CreateCharge(context.Background(), 1, "https://example.com/pushin/webhook")
	var ge *entity.GatewayError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if ge.Status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", ge.Status)
	}
}

func TestCreateChargeIncompleteResponse(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	})

	_, err := c.CreateCharge(context.Background(), 1799, "")
	var ge *entity.GatewayError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
}

func TestCreateChargeNetworkError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewClient(Config{ApiUrl: "http://127.0.0.1:1", Timeout: time.Second}, logger)

	_, err := c.CreateCharge(context.Background(), 1799, "")
	var ge *entity.GatewayError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if ge.Status != 0 {
		t.Errorf("network failure must have no status, got %d", ge.Status)
	}
}

func TestFetchPixCode(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/pix/cashIn/abc-123" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"abc-123","qr_code":"pix-code","status":"paid","value":"2499"}`))
	})

	code, err := c.FetchPixCode(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("FetchPixCode: %v", err)
	}
	if code != "pix-code" {
		t.Errorf("code = %q", code)
	}
}

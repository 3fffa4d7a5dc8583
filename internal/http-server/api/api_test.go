package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"vipbot/entity"
)

type fakeHandler struct {
	confirmed int
}

func (f *fakeHandler) ConfirmPayment(context.Context, *entity.PaymentNotification) (entity.ConfirmResult, error) {
	f.confirmed++
	return entity.ConfirmOk, nil
}

func (f *fakeHandler) PixCode(context.Context, string) (string, error) {
	return "000201pix", nil
}

func newServer(h *fakeHandler) *httptest.Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httptest.NewServer(Router(log, h))
}

func TestHealth(t *testing.T) {
	srv := newServer(&fakeHandler{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Errorf("status=%d body=%v", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("request id header missing")
	}
}

func TestWebhookRoute(t *testing.T) {
	h := &fakeHandler{}
	srv := newServer(h)
	defer srv.Close()

	form := url.Values{"id": {"abc"}, "status": {"paid"}, "value": {"1799"}}
	resp, err := http.Post(srv.URL+"/pushin/webhook", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || h.confirmed != 1 {
		t.Errorf("status=%d confirmed=%d", resp.StatusCode, h.confirmed)
	}
}

func TestQrCodeRoute(t *testing.T) {
	srv := newServer(&fakeHandler{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/qrcode/abc")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") || !strings.Contains(string(body), "000201pix") {
		t.Errorf("content-type=%q body=%s", resp.Header.Get("Content-Type"), body)
	}
}

func TestUnknownRoutes(t *testing.T) {
	srv := newServer(&fakeHandler{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/pushin/webhook")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET webhook status = %d", resp.StatusCode)
	}
}

package pushinpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"vipbot/entity"
	"vipbot/lib/sl"
)

const (
	DefaultApiUrl  = "https://api.pushinpay.com.br"
	DefaultTimeout = 30 * time.Second
	cashInPath     = "/api/pix/cashIn"
)

// Client talks to the Pushin Pay PIX API.
type Client struct {
	hc      *http.Client
	baseURL string
	token   string
	log     *slog.Logger
}

type Config struct {
	Token   string
	ApiUrl  string
	Timeout time.Duration
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.ApiUrl == "" {
		cfg.ApiUrl = DefaultApiUrl
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		hc:      &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimSuffix(cfg.ApiUrl, "/"),
		token:   cfg.Token,
		log:     logger.With(sl.Module("pushinpay")),
	}
}

// CreateCharge asks the provider for a new PIX charge of amount centavos.
// The provider calls webhookURL when the charge is paid.
func (c *Client) CreateCharge(ctx context.Context, amount int64, webhookURL string) (*entity.Charge, error) {
	payload := cashInRequest{
		Value:      amount,
		WebhookUrl: webhookURL,
		SplitRules: []splitRule{},
	}
	body, err := c.request(ctx, http.MethodPost, cashInPath, payload)
	if err != nil {
		return nil, &entity.GatewayError{Op: "create charge", Status: statusOf(err), Err: err}
	}
	var resp cashInResponse
	if err = json.Unmarshal(body, &resp); err != nil {
		return nil, &entity.GatewayError{Op: "create charge", Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.Id == "" || resp.QrCode == "" {
		return nil, &entity.GatewayError{Op: "create charge", Err: errors.New("response without id or qr_code")}
	}
	c.log.Info("charge created",
		sl.Charge(resp.Id),
		slog.Int64("amount", amount))
	return resp.charge(), nil
}

// FetchPixCode returns the copy-paste PIX code of an existing charge.
func (c *Client) FetchPixCode(ctx context.Context, chargeId string) (string, error) {
	body, err := c.request(ctx, http.MethodGet, cashInPath+"/"+url.PathEscape(chargeId), nil)
	if err != nil {
		return "", &entity.GatewayError{Op: "fetch charge", Status: statusOf(err), Err: err}
	}
	var resp cashInResponse
	if err = json.Unmarshal(body, &resp); err != nil {
		return "", &entity.GatewayError{Op: "fetch charge", Err: fmt.Errorf("decode response: %w", err)}
	}
	return resp.QrCode, nil
}

func (c *Client) request(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	endpoint := c.baseURL + path
	log := c.log.With(
		slog.String("method", method),
		slog.String("endpoint", endpoint),
	)

	status := "ERROR"
	t1 := time.Now()
	defer func() {
		log.Debug("pushin pay request completed",
			slog.String("duration", fmt.Sprintf("%.3fms", float64(time.Since(t1))/float64(time.Millisecond))),
			slog.String("status", status))
	}()

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		log.Error("request failed", sl.Err(err))
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	status = resp.Status
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error("pushin pay returned error",
			slog.String("status", resp.Status),
			slog.String("body", string(body)))
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.code, http.StatusText(e.code), e.body)
}

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}

package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	corepay "github.com/openroad/roadassist/core/payment"
)

// Config defines the gateway endpoint and its credentials.
type Config struct {
	BaseURL        string      `json:"base_url"`
	Credentials    Credentials `json:"credentials"`
	TimeoutSeconds int         `json:"timeout_seconds"`
}

// Client talks to the payment gateway. It implements payment.Gateway.
type Client struct {
	baseURL string
	creds   *ClientCred
	http    *http.Client
}

// NewClient builds the gateway client.
func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		creds:   NewClientCred(cfg.Credentials),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.creds.SetAuthHeader(ctx, req); err != nil {
		return fmt.Errorf("failed to set auth header: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// CreateCharge creates a charge for a completed breakdown.
func (c *Client) CreateCharge(ctx context.Context, in corepay.ChargeInput) (corepay.Charge, error) {
	var ch corepay.Charge
	if err := c.do(ctx, http.MethodPost, "/v1/charges", in, &ch); err != nil {
		return corepay.Charge{}, err
	}
	return ch, nil
}

// Refund refunds part or all of a charge.
func (c *Client) Refund(ctx context.Context, chargeID string, amount float64) error {
	body := struct {
		Amount float64 `json:"amount"`
	}{Amount: amount}
	return c.do(ctx, http.MethodPost, "/v1/charges/"+chargeID+"/refunds", body, nil)
}

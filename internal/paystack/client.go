package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"freight-backend/internal/domain"
	"freight-backend/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.paystack.co"
	Currency       = "ZAR"
)

// Client is a stateless wrapper around the Paystack REST API. Build one from
// config at startup and inject it; it is safe for concurrent use.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTP       *http.Client
	MaxRetries int
	Backoff    time.Duration
}

func NewClient(secretKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		SecretKey:  strings.TrimSpace(secretKey),
		HTTP:       &http.Client{Timeout: timeout},
		MaxRetries: 3,
		Backoff:    200 * time.Millisecond,
	}
}

// Configured is false when no secret key was provided.
func (c *Client) Configured() bool {
	return c != nil && c.SecretKey != ""
}

// Initialize starts a transaction. It is never retried: a timeout leaves the
// outcome unknown and must be settled through Verify.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	if req.Currency == "" {
		req.Currency = Currency
	}
	env, err := c.do(ctx, "initialize", http.MethodPost, "/transaction/initialize", req, false)
	if err != nil {
		return InitializeResult{}, err
	}
	var out InitializeResult
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return InitializeResult{}, &domain.GatewayError{Op: "initialize", StatusCode: http.StatusOK, Body: string(env.Data), Err: fmt.Errorf("decode data: %w", err)}
	}
	if out.Reference == "" {
		out.Reference = req.Reference
	}
	return out, nil
}

// Verify is idempotent and safe to poll.
func (c *Client) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	env, err := c.do(ctx, "verify", http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, true)
	if err != nil {
		if gwErr, ok := domain.AsGatewayError(err); ok && referenceUnknown(gwErr) {
			return VerifyResult{Status: StatusNotFound, Reference: reference}, nil
		}
		return VerifyResult{}, err
	}
	var d verifyData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return VerifyResult{}, &domain.GatewayError{Op: "verify", StatusCode: http.StatusOK, Body: string(env.Data), Err: fmt.Errorf("decode data: %w", err)}
	}
	if d.Reference == "" {
		d.Reference = reference
	}
	return VerifyResult{
		Success:       d.Status == StatusSuccess,
		Status:        d.Status,
		Reference:     d.Reference,
		AmountMinor:   d.Amount,
		Currency:      d.Currency,
		CustomerEmail: d.Customer.Email,
		Raw:           env.Data,
	}, nil
}

// Refund asks the gateway to return amountMinor of the transaction. The
// caller validates the amount against the authorized total beforehand.
func (c *Client) Refund(ctx context.Context, reference string, amountMinor int64) (RefundResult, error) {
	body := map[string]any{"transaction": reference}
	if amountMinor > 0 {
		body["amount"] = amountMinor
	}
	env, err := c.do(ctx, "refund", http.MethodPost, "/refund", body, false)
	if err != nil {
		return RefundResult{}, err
	}
	return RefundResult{OK: env.Status, Raw: env.Data}, nil
}

// Transfer pays out to a transporter recipient from the platform balance.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	body := map[string]any{
		"source":    "balance",
		"amount":    req.AmountMinor,
		"recipient": req.RecipientCode,
		"reference": req.Reference,
		"reason":    req.Reason,
		"currency":  Currency,
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	env, err := c.do(ctx, "transfer", http.MethodPost, "/transfer", body, false)
	if err != nil {
		return TransferResult{}, err
	}
	var d transferData
	_ = json.Unmarshal(env.Data, &d)
	return TransferResult{OK: env.Status, TransferCode: d.TransferCode, Status: d.Status, Raw: env.Data}, nil
}

// ResolveAccount looks up the account holder name for payout verification.
func (c *Client) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (AccountResolution, error) {
	q := url.Values{}
	q.Set("account_number", accountNumber)
	q.Set("bank_code", bankCode)
	env, err := c.do(ctx, "resolve_account", http.MethodGet, "/bank/resolve?"+q.Encode(), nil, true)
	if err != nil {
		return AccountResolution{}, err
	}
	var out AccountResolution
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return AccountResolution{}, &domain.GatewayError{Op: "resolve_account", StatusCode: http.StatusOK, Body: string(env.Data), Err: fmt.Errorf("decode data: %w", err)}
	}
	return out, nil
}

// CreateRecipient registers a payout recipient (South African BASA account by default).
func (c *Client) CreateRecipient(ctx context.Context, req RecipientRequest) (Recipient, error) {
	if req.Type == "" {
		req.Type = "basa"
	}
	if req.Currency == "" {
		req.Currency = Currency
	}
	env, err := c.do(ctx, "create_recipient", http.MethodPost, "/transferrecipient", req, false)
	if err != nil {
		return Recipient{}, err
	}
	var out Recipient
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return Recipient{}, &domain.GatewayError{Op: "create_recipient", StatusCode: http.StatusOK, Body: string(env.Data), Err: fmt.Errorf("decode data: %w", err)}
	}
	out.Raw = env.Data
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any, idempotent bool) (envelope, error) {
	if !c.Configured() {
		return envelope{}, &domain.GatewayError{Op: op, Err: errors.New("PAYSTACK_SECRET_KEY belum dikonfigurasi")}
	}

	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return envelope{}, &domain.GatewayError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = b
	}

	attempts := 1
	if idempotent && c.MaxRetries > 1 {
		attempts = c.MaxRetries
	}

	start := time.Now()
	defer func() { metrics.GatewayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds()) }()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := c.Backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				metrics.GatewayRequests.WithLabelValues(op, "canceled").Inc()
				return envelope{}, &domain.GatewayError{Op: op, Err: ctx.Err()}
			case <-time.After(wait):
			}
		}

		env, err := c.once(ctx, op, method, path, body)
		if err == nil {
			metrics.GatewayRequests.WithLabelValues(op, "ok").Inc()
			return env, nil
		}
		lastErr = err
		gwErr, _ := domain.AsGatewayError(err)
		if gwErr == nil || !gwErr.Ambiguous() || ctx.Err() != nil {
			break
		}
	}
	metrics.GatewayRequests.WithLabelValues(op, "error").Inc()
	return envelope{}, lastErr
}

func (c *Client) once(ctx context.Context, op, method, path string, body []byte) (envelope, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return envelope{}, &domain.GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return envelope{}, &domain.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return envelope{}, &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return envelope{}, &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Body: string(raw), Err: errors.New(messageOf(raw))}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Body: string(raw), Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if !env.Status {
		return envelope{}, &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Body: string(raw), Err: errors.New(env.Message)}
	}
	return env, nil
}

func messageOf(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		return env.Message
	}
	return "unexpected gateway response"
}

func referenceUnknown(e *domain.GatewayError) bool {
	if e.StatusCode != http.StatusBadRequest && e.StatusCode != http.StatusNotFound {
		return false
	}
	return strings.Contains(strings.ToLower(e.Body), "not found")
}

package paystack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"freight-backend/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient("sk_test_123", srv.URL, 2*time.Second)
	c.Backoff = time.Millisecond
	return c
}

func TestInitializeSendsMinorAmountAndAuth(t *testing.T) {
	var mu sync.Mutex
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test_123" {
			t.Fatalf("missing bearer secret, got %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(body, &got)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"trip-abc-170000-xyz"}}`))
	})

	res, err := c.Initialize(context.Background(), InitializeRequest{
		Email:       "client@example.com",
		AmountMinor: 50000,
		Reference:   "trip-abc-170000-xyz",
		Metadata:    map[string]any{"tripId": "abc"},
	})
	if err != nil {
		t.Fatalf("initialize error: %v", err)
	}
	if res.AuthorizationURL != "https://checkout.paystack.com/abc" || res.AccessCode != "abc" {
		t.Fatalf("unexpected result: %+v", res)
	}
	mu.Lock()
	defer mu.Unlock()
	if got["amount"].(float64) != 50000 {
		t.Fatalf("amount sent = %v, want 50000", got["amount"])
	}
	if got["currency"] != "ZAR" {
		t.Fatalf("currency sent = %v, want ZAR", got["currency"])
	}
}

func TestInitializeIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"status":false,"message":"upstream"}`))
	})

	_, err := c.Initialize(context.Background(), InitializeRequest{Email: "a@b.c", AmountMinor: 100, Reference: "r1"})
	gwErr, ok := domain.AsGatewayError(err)
	if !ok {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if !gwErr.Ambiguous() {
		t.Fatalf("5xx should be ambiguous")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("initialize called %d times, want 1", n)
	}
}

func TestVerifyRetriesOnServerError(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"status":"success","reference":"ref-1","amount":50000,"currency":"ZAR","customer":{"email":"client@example.com"}}}`))
	})

	res, err := c.Verify(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if !res.Success || res.AmountMinor != 50000 || res.CustomerEmail != "client@example.com" || res.Currency != "ZAR" {
		t.Fatalf("unexpected verify result: %+v", res)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("verify called %d times, want 3", n)
	}
}

func TestVerifyUnknownReference(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
	})

	res, err := c.Verify(context.Background(), "missing")
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if res.Status != StatusNotFound || res.Success {
		t.Fatalf("expected not_found, got %+v", res)
	}
}

func TestNonSuccessResponseCarriesBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"status":false,"message":"Refund amount cannot be greater than transaction amount"}`))
	})

	_, err := c.Refund(context.Background(), "ref-1", 999999)
	gwErr, ok := domain.AsGatewayError(err)
	if !ok {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.StatusCode != http.StatusUnprocessableEntity || gwErr.Body == "" {
		t.Fatalf("gateway error missing diagnostics: %+v", gwErr)
	}
	if gwErr.Ambiguous() {
		t.Fatalf("4xx must not be ambiguous")
	}
}

func TestRefundAndTransferPayloads(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var bodies []map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		_ = json.NewDecoder(r.Body).Decode(&m)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, m)
		mu.Unlock()
		switch r.URL.Path {
		case "/refund":
			_, _ = w.Write([]byte(`{"status":true,"message":"Refund has been queued for processing","data":{"status":"pending"}}`))
		case "/transfer":
			_, _ = w.Write([]byte(`{"status":true,"message":"Transfer has been queued","data":{"transfer_code":"TRF_1","status":"pending"}}`))
		}
	})

	if res, err := c.Refund(context.Background(), "ref-1", 25000); err != nil || !res.OK {
		t.Fatalf("refund failed: %v %+v", err, res)
	}
	tr, err := c.Transfer(context.Background(), TransferRequest{AmountMinor: 100000, RecipientCode: "RCP_1", Reference: "payout-1", Reason: "trip payout"})
	if err != nil || !tr.OK || tr.TransferCode != "TRF_1" {
		t.Fatalf("transfer failed: %v %+v", err, tr)
	}

	mu.Lock()
	defer mu.Unlock()
	if paths[0] != "/refund" || bodies[0]["transaction"] != "ref-1" || bodies[0]["amount"].(float64) != 25000 {
		t.Fatalf("unexpected refund payload: %v %v", paths[0], bodies[0])
	}
	if paths[1] != "/transfer" || bodies[1]["amount"].(float64) != 100000 || bodies[1]["recipient"] != "RCP_1" || bodies[1]["source"] != "balance" {
		t.Fatalf("unexpected transfer payload: %v %v", paths[1], bodies[1])
	}
}

func TestResolveAccountAndCreateRecipient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bank/resolve":
			if r.URL.Query().Get("account_number") != "0123456789" || r.URL.Query().Get("bank_code") != "632005" {
				t.Fatalf("unexpected query %s", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"status":true,"message":"Account number resolved","data":{"account_number":"0123456789","account_name":"KAROO HAULAGE"}}`))
		case "/transferrecipient":
			_, _ = w.Write([]byte(`{"status":true,"message":"Transfer recipient created successfully","data":{"recipient_code":"RCP_abc","name":"KAROO HAULAGE"}}`))
		}
	})

	acc, err := c.ResolveAccount(context.Background(), "0123456789", "632005")
	if err != nil || acc.AccountName != "KAROO HAULAGE" {
		t.Fatalf("resolve failed: %v %+v", err, acc)
	}
	rcp, err := c.CreateRecipient(context.Background(), RecipientRequest{Name: acc.AccountName, AccountNumber: "0123456789", BankCode: "632005"})
	if err != nil || rcp.RecipientCode != "RCP_abc" {
		t.Fatalf("create recipient failed: %v %+v", err, rcp)
	}
}

func TestUnconfiguredClientFails(t *testing.T) {
	c := NewClient("", "http://127.0.0.1:1", time.Second)
	if c.Configured() {
		t.Fatalf("client without secret must not be configured")
	}
	if _, err := c.Verify(context.Background(), "ref"); err == nil {
		t.Fatalf("expected error from unconfigured client")
	}
}

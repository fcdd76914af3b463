package testutil

import (
	"context"
	"sync"

	"freight-backend/internal/events"
	"freight-backend/internal/paystack"
)

type RefundCall struct {
	Reference   string
	AmountMinor int64
}

// FakeGateway records calls and answers through the optional Func hooks.
// Without hooks every call succeeds and verify reports "ongoing".
type FakeGateway struct {
	Unconfigured bool

	InitializeFunc func(req paystack.InitializeRequest) (paystack.InitializeResult, error)
	VerifyFunc     func(reference string) (paystack.VerifyResult, error)
	RefundFunc     func(reference string, amountMinor int64) (paystack.RefundResult, error)
	TransferFunc   func(req paystack.TransferRequest) (paystack.TransferResult, error)

	mu          sync.Mutex
	initializes []paystack.InitializeRequest
	verifies    []string
	refunds     []RefundCall
	transfers   []paystack.TransferRequest
	recipients  []paystack.RecipientRequest
}

func (g *FakeGateway) Configured() bool { return !g.Unconfigured }

func (g *FakeGateway) Initialize(ctx context.Context, req paystack.InitializeRequest) (paystack.InitializeResult, error) {
	g.mu.Lock()
	g.initializes = append(g.initializes, req)
	g.mu.Unlock()
	if g.InitializeFunc != nil {
		return g.InitializeFunc(req)
	}
	return paystack.InitializeResult{
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		AccessCode:       "acc_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *FakeGateway) Verify(ctx context.Context, reference string) (paystack.VerifyResult, error) {
	g.mu.Lock()
	g.verifies = append(g.verifies, reference)
	g.mu.Unlock()
	if g.VerifyFunc != nil {
		return g.VerifyFunc(reference)
	}
	return paystack.VerifyResult{Status: paystack.StatusOngoing, Reference: reference}, nil
}

func (g *FakeGateway) Refund(ctx context.Context, reference string, amountMinor int64) (paystack.RefundResult, error) {
	g.mu.Lock()
	g.refunds = append(g.refunds, RefundCall{Reference: reference, AmountMinor: amountMinor})
	g.mu.Unlock()
	if g.RefundFunc != nil {
		return g.RefundFunc(reference, amountMinor)
	}
	return paystack.RefundResult{OK: true}, nil
}

func (g *FakeGateway) Transfer(ctx context.Context, req paystack.TransferRequest) (paystack.TransferResult, error) {
	g.mu.Lock()
	g.transfers = append(g.transfers, req)
	g.mu.Unlock()
	if g.TransferFunc != nil {
		return g.TransferFunc(req)
	}
	return paystack.TransferResult{OK: true, TransferCode: "TRF_" + req.Reference, Status: "pending"}, nil
}

func (g *FakeGateway) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (paystack.AccountResolution, error) {
	return paystack.AccountResolution{AccountName: "TEST HAULAGE", AccountNumber: accountNumber}, nil
}

func (g *FakeGateway) CreateRecipient(ctx context.Context, req paystack.RecipientRequest) (paystack.Recipient, error) {
	g.mu.Lock()
	g.recipients = append(g.recipients, req)
	g.mu.Unlock()
	return paystack.Recipient{RecipientCode: "RCP_" + req.AccountNumber, Name: req.Name}, nil
}

func (g *FakeGateway) Initializes() []paystack.InitializeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]paystack.InitializeRequest(nil), g.initializes...)
}

func (g *FakeGateway) Verifies() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.verifies...)
}

func (g *FakeGateway) Refunds() []RefundCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]RefundCall(nil), g.refunds...)
}

func (g *FakeGateway) Transfers() []paystack.TransferRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]paystack.TransferRequest(nil), g.transfers...)
}

// Recorder is an events.Publisher that keeps everything in memory.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *Recorder) Publish(ctx context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *Recorder) Has(typ string) bool {
	for _, t := range r.Types() {
		if t == typ {
			return true
		}
	}
	return false
}

// MemDeduper mirrors cache.Deduper without redis.
type MemDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *MemDeduper) Claim(ctx context.Context, event, reference string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	k := event + ":" + reference
	if d.seen[k] {
		return false, nil
	}
	d.seen[k] = true
	return true, nil
}

func (d *MemDeduper) Release(ctx context.Context, event, reference string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, event+":"+reference)
	return nil
}

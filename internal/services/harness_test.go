package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"freight-backend/internal/domain"
	"freight-backend/internal/domain/models"
	"freight-backend/internal/testutil"
	"freight-backend/internal/webhook"

	"github.com/shopspring/decimal"
)

const testSecret = "sk_test_webhook"

type harness struct {
	store  *testutil.MemStore
	gw     *testutil.FakeGateway
	events *testutil.Recorder
	comp   CompensatorService
	ledger LedgerService
	recon  ReconciliationService
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  testutil.NewMemStore(),
		gw:     &testutil.FakeGateway{},
		events: &testutil.Recorder{},
		now:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }
	h.store.SetClock(clock)
	h.comp = CompensatorService{Store: h.store, Events: h.events}
	h.ledger = LedgerService{Store: h.store, Gateway: h.gw, Events: h.events, Compensator: h.comp, CallbackURL: "http://localhost:3000/payment/callback", Now: clock}
	h.recon = ReconciliationService{Store: h.store, Gateway: h.gw, Events: h.events, Dedupe: &testutil.MemDeduper{}, Compensator: h.comp, WebhookSecret: testSecret, Now: clock}
	return h
}

func (h *harness) addTrip(id string, price string) models.Trip {
	trip := models.Trip{
		ID:            id,
		Origin:        "Johannesburg",
		Destination:   "Durban",
		Price:         decimal.RequireFromString(price),
		TransporterID: "tr-1",
		CreatedAt:     h.now,
	}
	h.store.AddTrip(trip)
	return trip
}

// book runs StartBooking for user on trip and returns the result.
func (h *harness) book(t *testing.T, tripID, userID string) StartBookingResult {
	t.Helper()
	res, err := h.ledger.StartBooking(context.Background(), StartBookingRequest{TripID: tripID, UserID: userID, Email: userID + "@example.com"})
	if err != nil {
		t.Fatalf("StartBooking error: %v", err)
	}
	return res
}

// authorize books and settles a charge so the payment is authorized.
func (h *harness) authorize(t *testing.T, tripID, userID string) StartBookingResult {
	t.Helper()
	res := h.book(t, tripID, userID)
	body := chargeSuccess(res.Reference, h.minorOf(t, res.PaymentID), nil)
	if _, err := h.recon.HandleWebhook(context.Background(), body, webhook.Sign(body, testSecret)); err != nil {
		t.Fatalf("charge.success error: %v", err)
	}
	return res
}

func (h *harness) minorOf(t *testing.T, paymentID string) int64 {
	t.Helper()
	p, ok := h.store.Payment(paymentID)
	if !ok {
		t.Fatalf("payment %s missing", paymentID)
	}
	return p.TotalAmount.Mul(decimal.NewFromInt(100)).IntPart()
}

func (h *harness) paymentStatus(t *testing.T, id string) domain.PaymentStatus {
	t.Helper()
	p, ok := h.store.Payment(id)
	if !ok {
		t.Fatalf("payment %s missing", id)
	}
	return p.Status
}

func chargeSuccess(reference string, amount int64, meta map[string]string) []byte {
	m := "{}"
	if len(meta) > 0 {
		m = "{"
		first := true
		for k, v := range meta {
			if !first {
				m += ","
			}
			m += fmt.Sprintf("%q:%q", k, v)
			first = false
		}
		m += "}"
	}
	return []byte(fmt.Sprintf(`{"event":"charge.success","data":{"id":1,"status":"success","reference":%q,"amount":%d,"currency":"ZAR","customer":{"email":"client@example.com"},"metadata":%s}}`, reference, amount, m))
}

func transferEvent(event, reference, paymentID string) []byte {
	return []byte(fmt.Sprintf(`{"event":%q,"data":{"reference":%q,"transfer_code":"TRF_1","status":"success","amount":100000,"metadata":{"paymentId":%q}}}`, event, reference, paymentID))
}

var (
	admin       = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	transporter = domain.Actor{UserID: "tr-1", Role: domain.RoleTransporter}
)

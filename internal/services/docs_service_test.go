package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"freight-backend/internal/domain"

	"github.com/shopspring/decimal"
)

func TestDocsServiceGenerateReceipt(t *testing.T) {
	paid := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	loader := func(_ context.Context, id string) (receiptData, error) {
		return receiptData{
			PurchaseTripID: id,
			TripID:         "trip-1",
			Origin:         "Johannesburg",
			Destination:    "Durban",
			DepartureAt:    paid.Add(24 * time.Hour),
			Reference:      "trip-trip-1-1700000000000-abcd1234",
			PaymentStatus:  domain.PaymentAuthorized,
			BookingStatus:  domain.ReservationBooked,
			Total:          decimal.RequireFromString("1234.50"),
			PaidAt:         &paid,
		}, nil
	}

	svc := DocsService{Loader: loader}
	pdf, filename, err := svc.GenerateReceipt(context.Background(), "5f1c2d3e-aaaa-bbbb-cccc-000000000001")
	if err != nil {
		t.Fatalf("GenerateReceipt returned error: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
	if filename != "receipt-5f1c2d3e-aaaa-bbbb-cccc-000000000001.pdf" {
		t.Fatalf("unexpected filename %q", filename)
	}
}

func TestDocsServiceRejectsUnpaid(t *testing.T) {
	svc := DocsService{Loader: func(_ context.Context, id string) (receiptData, error) {
		return receiptData{PurchaseTripID: id, PaymentStatus: domain.PaymentPending}, nil
	}}
	if _, _, err := svc.GenerateReceipt(context.Background(), "pt-1"); !domain.IsConflict(err) {
		t.Fatalf("expected ConflictError for unpaid booking, got %v", err)
	}
}

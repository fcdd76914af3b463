package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"freight-backend/internal/domain"
	"freight-backend/internal/repositories"
	"freight-backend/internal/utils"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
)

// DocsService menghasilkan PDF receipt per reservasi yang sudah dibayar.
type DocsService struct {
	Store  repositories.Store
	Loader func(ctx context.Context, purchaseTripID string) (receiptData, error)
}

type receiptData struct {
	PurchaseTripID string
	TripID         string
	Origin         string
	Destination    string
	DepartureAt    time.Time
	ArrivalAt      time.Time
	Reference      string
	PaymentStatus  domain.PaymentStatus
	BookingStatus  domain.ReservationStatus
	Total          decimal.Decimal
	Refunded       decimal.Decimal
	PaidAt         *time.Time
}

// GenerateReceipt returns the PDF bytes and a download filename.
func (s DocsService) GenerateReceipt(ctx context.Context, purchaseTripID string) ([]byte, string, error) {
	data, err := s.load(ctx, purchaseTripID)
	if err != nil {
		return nil, "", err
	}
	if !data.PaymentStatus.MoneyMoved() {
		return nil, "", domain.ConflictError{Resource: "receipt", Msg: "pembayaran belum diterima"}
	}
	utils.LogEvent(utils.RequestIDFrom(ctx), "docs", "generate_receipt", "purchase_trip="+purchaseTripID)
	return buildReceiptPDF(data)
}

func (s DocsService) load(ctx context.Context, purchaseTripID string) (receiptData, error) {
	if s.Loader != nil {
		return s.Loader(ctx, purchaseTripID)
	}
	pt, err := s.Store.GetPurchaseTrip(ctx, purchaseTripID)
	if err != nil {
		return receiptData{}, err
	}
	trip, err := s.Store.GetTrip(ctx, pt.TripID)
	if err != nil {
		return receiptData{}, err
	}
	p, err := s.Store.GetPaymentByPurchaseTrip(ctx, pt.ID)
	if err != nil {
		if domain.IsNotFound(err) {
			return receiptData{}, domain.ConflictError{Resource: "receipt", Msg: "pembayaran belum diterima"}
		}
		return receiptData{}, err
	}
	return receiptData{
		PurchaseTripID: pt.ID,
		TripID:         trip.ID,
		Origin:         trip.Origin,
		Destination:    trip.Destination,
		DepartureAt:    trip.DepartureAt,
		ArrivalAt:      trip.ArrivalAt,
		Reference:      p.PaystackReference,
		PaymentStatus:  p.Status,
		BookingStatus:  pt.Status,
		Total:          p.TotalAmount,
		Refunded:       p.RefundedAmount,
		PaidAt:         p.AuthorizedAt,
	}, nil
}

func buildReceiptPDF(d receiptData) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "FREIGHT BOOKING RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		"Receipt No   : " + receiptNo(d),
		"Reference    : " + safe(d.Reference, "-"),
		"Booking      : " + d.PurchaseTripID,
		"Route        : " + safe(d.Origin, "-") + " -> " + safe(d.Destination, "-"),
		"Departure    : " + fmtTime(d.DepartureAt),
		"Arrival      : " + fmtTime(d.ArrivalAt),
		"Status       : " + string(d.BookingStatus) + " / " + string(d.PaymentStatus),
	}
	if d.PaidAt != nil {
		lines = append(lines, "Paid at      : "+fmtTime(*d.PaidAt))
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Total: "+utils.FormatRand(d.Total))
	pdf.Ln(8)
	if d.Refunded.IsPositive() {
		pdf.SetFont("Helvetica", "", 12)
		pdf.Cell(0, 8, "Refunded: "+utils.FormatRand(d.Refunded))
		pdf.Ln(8)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Payments are processed by Paystack in ZAR. Keep the reference for refund or payout enquiries.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), "receipt-" + utils.SanitizeRefPart(d.PurchaseTripID) + ".pdf", nil
}

func receiptNo(d receiptData) string {
	id := strings.ReplaceAll(d.PurchaseTripID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "RCPT-" + strings.ToUpper(id)
}

func safe(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04 MST")
}

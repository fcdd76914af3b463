package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"freight-backend/internal/domain"
	"freight-backend/internal/domain/models"
	"freight-backend/internal/events"
	"freight-backend/internal/paystack"
	"freight-backend/internal/repositories"
	"freight-backend/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerService owns the reservation lifecycle: hold, payment record,
// confirmation, cancellation and fulfilment.
type LedgerService struct {
	Store       repositories.Store
	Gateway     Gateway
	Events      events.Publisher
	Compensator CompensatorService
	CallbackURL string
	Now         func() time.Time
}

func (s LedgerService) now() time.Time { return nowFn(s.Now) }

// CreateReservation inserts an AwaitingConfirmation hold. The trip itself is
// only marked booked at confirmation.
func (s LedgerService) CreateReservation(ctx context.Context, tripID, userID, transporterID string, price decimal.Decimal) (string, error) {
	tripID, userID, transporterID = strings.TrimSpace(tripID), strings.TrimSpace(userID), strings.TrimSpace(transporterID)
	if tripID == "" {
		return "", domain.ValidationError{Field: "tripId", Msg: "id tidak valid"}
	}
	if userID == "" {
		return "", domain.ValidationError{Field: "userId", Msg: "id tidak valid"}
	}
	if !price.IsPositive() {
		return "", domain.ValidationError{Field: "price", Msg: "harus lebih dari 0"}
	}

	trip, err := s.Store.GetTrip(ctx, tripID)
	if err != nil {
		return "", err
	}
	if trip.IsBooked {
		return "", domain.ConflictError{Resource: "trip", Msg: "trip sudah dibooking"}
	}
	if transporterID == "" {
		transporterID = trip.TransporterID
	}
	if transporterID != trip.TransporterID {
		return "", domain.ValidationError{Field: "transporterId", Msg: "transporter tidak cocok dengan trip"}
	}

	now := s.now()
	pt := models.PurchaseTrip{
		ID:            uuid.NewString(),
		TripID:        tripID,
		UserID:        userID,
		TransporterID: transporterID,
		Amount:        price,
		Status:        domain.ReservationAwaitingConfirmation,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Store.CreatePurchaseTrip(ctx, pt); err != nil {
		return "", err
	}
	utils.LogEvent(utils.RequestIDFrom(ctx), "ledger", "reserve", "purchase_trip="+pt.ID+" trip="+tripID)
	return pt.ID, nil
}

// CreatePayment records a pending payment with a fresh gateway reference.
func (s LedgerService) CreatePayment(ctx context.Context, purchaseTripID, userID, transporterID, tripID string, total decimal.Decimal) (string, string, error) {
	if strings.TrimSpace(purchaseTripID) == "" {
		return "", "", domain.ValidationError{Field: "purchaseTripId", Msg: "id tidak valid"}
	}
	if strings.TrimSpace(tripID) == "" {
		return "", "", domain.ValidationError{Field: "tripId", Msg: "id tidak valid"}
	}
	if !total.IsPositive() {
		return "", "", domain.ValidationError{Field: "totalAmount", Msg: "harus lebih dari 0"}
	}

	now := s.now()
	p := models.Payment{
		ID:                uuid.NewString(),
		UserID:            userID,
		TransporterID:     transporterID,
		TripID:            tripID,
		PurchaseTripID:    purchaseTripID,
		TotalAmount:       total,
		PaystackReference: utils.NewPaymentReference(tripID, now),
		Status:            domain.PaymentPending,
		RefundedAmount:    decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Store.CreatePayment(ctx, p); err != nil {
		return "", "", err
	}
	utils.LogEvent(utils.RequestIDFrom(ctx), "ledger", "create_payment", "payment="+p.ID+" ref="+p.PaystackReference)
	return p.ID, p.PaystackReference, nil
}

// ConfirmBooking flips the reservation to Booked and takes the trip in one
// transaction. Either conditional update finding nothing rolls both back.
func (s LedgerService) ConfirmBooking(ctx context.Context, purchaseTripID string, actor domain.Actor) error {
	pt, err := s.Store.GetPurchaseTrip(ctx, purchaseTripID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && actor.UserID != pt.TransporterID {
		return domain.ForbiddenError{Msg: "hanya transporter pemilik trip yang boleh konfirmasi"}
	}
	payment, err := s.Store.GetPaymentByPurchaseTrip(ctx, pt.ID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.ReconciliationConflict{Resource: "purchase_trip", Msg: "belum ada pembayaran"}
		}
		return err
	}
	if payment.Status != domain.PaymentAuthorized && payment.Status != domain.PaymentReleased {
		return domain.ReconciliationConflict{Resource: "payment", From: string(payment.Status), To: string(domain.ReservationBooked), Msg: "pembayaran belum authorized"}
	}

	err = s.Store.WithTx(ctx, func(tx repositories.Store) error {
		ok, err := tx.TransitionPurchaseTrip(ctx, pt.ID,
			[]domain.ReservationStatus{domain.ReservationAwaitingConfirmation}, domain.ReservationBooked)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ReconciliationConflict{Resource: "purchase_trip", From: string(pt.Status), To: string(domain.ReservationBooked)}
		}
		ok, err = tx.MarkTripBooked(ctx, pt.TripID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ReconciliationConflict{Resource: "trip", Msg: "trip sudah dibooking"}
		}
		return nil
	})
	if err != nil {
		return err
	}

	utils.LogEvent(utils.RequestIDFrom(ctx), "ledger", "confirm", "purchase_trip="+pt.ID+" trip="+pt.TripID)
	publish(ctx, s.Events, events.BookingConfirmed, payment.ID, map[string]any{
		"purchaseTripId": pt.ID, "tripId": pt.TripID, "paymentId": payment.ID,
	})
	return nil
}

var cancellableFrom = []domain.ReservationStatus{
	domain.ReservationAwaitingConfirmation,
	domain.ReservationBooked,
	domain.ReservationDispatched,
}

// CancelReservation is refused while the payment holds funds; those
// bookings go through Refund instead.
func (s LedgerService) CancelReservation(ctx context.Context, purchaseTripID string, actor domain.Actor) error {
	pt, err := s.Store.GetPurchaseTrip(ctx, purchaseTripID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && actor.UserID != pt.UserID && actor.UserID != pt.TransporterID {
		return domain.ForbiddenError{Msg: "bukan pemilik reservasi"}
	}
	if pt.Status.Terminal() {
		return domain.ReconciliationConflict{Resource: "purchase_trip", From: string(pt.Status), To: string(domain.ReservationCancelled)}
	}

	payment, err := s.Store.GetPaymentByPurchaseTrip(ctx, pt.ID)
	switch {
	case err == nil:
		if payment.Status == domain.PaymentAuthorized || payment.Status == domain.PaymentRefundPending {
			return domain.ReconciliationConflict{Resource: "payment", From: string(payment.Status), To: string(domain.ReservationCancelled), Msg: "pembayaran harus direfund dulu"}
		}
	case domain.IsNotFound(err):
	default:
		return err
	}

	err = s.Store.WithTx(ctx, func(tx repositories.Store) error {
		ok, err := tx.TransitionPurchaseTrip(ctx, pt.ID, cancellableFrom, domain.ReservationCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ReconciliationConflict{Resource: "purchase_trip", From: string(pt.Status), To: string(domain.ReservationCancelled)}
		}
		if pt.Status.HoldsTrip() {
			if _, err := tx.ReleaseTrip(ctx, pt.TripID, pt.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	utils.LogEvent(utils.RequestIDFrom(ctx), "ledger", "cancel", "purchase_trip="+pt.ID)
	publish(ctx, s.Events, events.BookingCancelled, pt.ID, map[string]any{"purchaseTripId": pt.ID, "tripId": pt.TripID})
	return nil
}

// AdvanceStatus applies the next fulfilment step (Booked->Dispatched->Delivered).
func (s LedgerService) AdvanceStatus(ctx context.Context, purchaseTripID string, to domain.ReservationStatus, actor domain.Actor) error {
	pt, err := s.Store.GetPurchaseTrip(ctx, purchaseTripID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && actor.UserID != pt.TransporterID {
		return domain.ForbiddenError{Msg: "hanya transporter pemilik trip yang boleh mengubah status"}
	}
	next, ok := pt.Status.NextFulfilment()
	if !ok || next != to {
		return domain.ReconciliationConflict{Resource: "purchase_trip", From: string(pt.Status), To: string(to)}
	}
	ok, err = s.Store.TransitionPurchaseTrip(ctx, pt.ID, []domain.ReservationStatus{pt.Status}, to)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ReconciliationConflict{Resource: "purchase_trip", From: string(pt.Status), To: string(to)}
	}
	utils.LogEvent(utils.RequestIDFrom(ctx), "ledger", "advance", fmt.Sprintf("purchase_trip=%s %s->%s", pt.ID, pt.Status, to))
	return nil
}

type StartBookingRequest struct {
	TripID      string
	UserID      string
	Email       string
	CallbackURL string
}

type StartBookingResult struct {
	PurchaseTripID   string          `json:"purchaseTripId"`
	PaymentID        string          `json:"paymentId"`
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorizationUrl"`
	AccessCode       string          `json:"accessCode"`
	Amount           decimal.Decimal `json:"amount"`
}

// StartBooking reserves the trip, records the payment and opens a gateway
// transaction. A definitive gateway rejection undoes the hold; an ambiguous
// outcome keeps it for verification or the sweeper.
func (s LedgerService) StartBooking(ctx context.Context, req StartBookingRequest) (StartBookingResult, error) {
	reqID := utils.RequestIDFrom(ctx)
	if s.Gateway == nil || !s.Gateway.Configured() {
		return StartBookingResult{}, domain.InternalError{Msg: msgGatewayUnconfigured}
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return StartBookingResult{}, domain.ValidationError{Field: "email", Msg: "email tidak valid"}
	}

	trip, err := s.Store.GetTrip(ctx, strings.TrimSpace(req.TripID))
	if err != nil {
		return StartBookingResult{}, err
	}
	ptID, err := s.CreateReservation(ctx, trip.ID, req.UserID, trip.TransporterID, trip.Price)
	if err != nil {
		return StartBookingResult{}, err
	}
	paymentID, reference, err := s.CreatePayment(ctx, ptID, req.UserID, trip.TransporterID, trip.ID, trip.Price)
	if err != nil {
		if _, cerr := s.Compensator.Cleanup(ctx, CleanupRequest{PurchaseTripID: ptID, Reason: ReasonPaymentCreate}); cerr != nil {
			utils.LogError(reqID, "ledger", "start", "cleanup after payment failure", cerr)
		}
		return StartBookingResult{}, err
	}

	initRes, err := s.Gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       email,
		AmountMinor: paystack.ToMinor(trip.Price),
		Reference:   reference,
		CallbackURL: utils.FirstNonEmpty(req.CallbackURL, s.CallbackURL),
		Metadata: map[string]any{
			"purchaseTripId": ptID,
			"paymentId":      paymentID,
			"tripId":         trip.ID,
			"userId":         req.UserID,
		},
	})
	if err != nil {
		if gwErr, ok := domain.AsGatewayError(err); ok && !gwErr.Ambiguous() {
			if _, cerr := s.Compensator.Cleanup(ctx, CleanupRequest{PaystackReference: reference, PurchaseTripID: ptID, Reason: ReasonInitializeRejected}); cerr != nil {
				utils.LogError(reqID, "ledger", "start", "cleanup after rejected initialize", cerr)
			}
		} else {
			utils.LogWarn(reqID, "ledger", "start", "initialize outcome unknown, hold kept for ref="+reference)
		}
		return StartBookingResult{}, err
	}
	if err := s.Store.SetPaymentInitReference(ctx, paymentID, initRes.AccessCode); err != nil {
		utils.LogError(reqID, "ledger", "start", "store access code", err)
	}

	return StartBookingResult{
		PurchaseTripID:   ptID,
		PaymentID:        paymentID,
		Reference:        reference,
		AuthorizationURL: initRes.AuthorizationURL,
		AccessCode:       initRes.AccessCode,
		Amount:           trip.Price,
	}, nil
}

type ReservationView struct {
	PurchaseTrip models.PurchaseTrip `json:"purchaseTrip"`
	Trip         models.Trip         `json:"trip"`
	Payment      *models.Payment     `json:"payment,omitempty"`
}

func (s LedgerService) GetReservation(ctx context.Context, purchaseTripID string, actor domain.Actor) (ReservationView, error) {
	pt, err := s.Store.GetPurchaseTrip(ctx, purchaseTripID)
	if err != nil {
		return ReservationView{}, err
	}
	if !actor.IsAdmin() && actor.UserID != pt.UserID && actor.UserID != pt.TransporterID {
		return ReservationView{}, domain.ForbiddenError{Msg: "bukan pemilik reservasi"}
	}
	trip, err := s.Store.GetTrip(ctx, pt.TripID)
	if err != nil {
		return ReservationView{}, err
	}
	view := ReservationView{PurchaseTrip: pt, Trip: trip}
	payment, err := s.Store.GetPaymentByPurchaseTrip(ctx, pt.ID)
	switch {
	case err == nil:
		view.Payment = &payment
	case domain.IsNotFound(err):
	default:
		return ReservationView{}, err
	}
	return view, nil
}

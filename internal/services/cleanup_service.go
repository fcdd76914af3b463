package services

import (
	"context"
	"fmt"
	"strings"

	"freight-backend/internal/domain"
	"freight-backend/internal/domain/models"
	"freight-backend/internal/events"
	"freight-backend/internal/metrics"
	"freight-backend/internal/repositories"
	"freight-backend/internal/utils"
)

// Cleanup reasons.
const (
	ReasonVerificationFailed = "payment_verification_failed"
	ReasonInitializeRejected = "initialize_rejected"
	ReasonPaymentCreate      = "payment_create_failed"
	ReasonHoldExpired        = "hold_expired"
	ReasonUserAbandoned      = "user_abandoned"
)

type CleanupRequest struct {
	PaystackReference string `json:"paystackReference"`
	PurchaseTripID    string `json:"purchaseTripId"`
	Reason            string `json:"reason"`
}

// CleanupResult reports what was actually removed. Details carries per-step
// outcomes, including failures of individual steps.
type CleanupResult struct {
	Cleaned int            `json:"cleaned"`
	Skipped string         `json:"skipped,omitempty"`
	Details map[string]any `json:"details"`
}

// CompensatorService undoes an unpaid booking attempt: the trip hold, the
// reservation and the payment record. It never touches money that moved.
type CompensatorService struct {
	Store  repositories.Store
	Events events.Publisher
}

func (s CompensatorService) Cleanup(ctx context.Context, req CleanupRequest) (CleanupResult, error) {
	reqID := utils.RequestIDFrom(ctx)
	ref := strings.TrimSpace(req.PaystackReference)
	ptID := strings.TrimSpace(req.PurchaseTripID)
	reason := utils.FirstNonEmpty(req.Reason, "unspecified")
	if ref == "" && ptID == "" {
		return CleanupResult{}, domain.ValidationError{Field: "paystackReference", Msg: "paystackReference atau purchaseTripId wajib diisi"}
	}

	res := CleanupResult{Details: map[string]any{"reason": reason}}

	var payment *models.Payment
	if ref != "" {
		p, err := s.Store.GetPaymentByReference(ctx, ref)
		switch {
		case err == nil:
			payment = &p
		case domain.IsNotFound(err):
			res.Details["payment"] = "not_found"
		default:
			return CleanupResult{}, err
		}
	}
	if payment != nil && ptID != "" && payment.PurchaseTripID != ptID {
		return CleanupResult{}, domain.ValidationError{Field: "purchaseTripId", Msg: "reference dan purchaseTripId tidak cocok"}
	}
	if ptID == "" && payment != nil {
		ptID = payment.PurchaseTripID
	}
	if payment == nil && ptID != "" {
		p, err := s.Store.GetPaymentByPurchaseTrip(ctx, ptID)
		switch {
		case err == nil:
			payment = &p
		case domain.IsNotFound(err):
		default:
			return CleanupResult{}, err
		}
	}

	if payment != nil && payment.Status.MoneyMoved() {
		utils.LogWarn(reqID, "cleanup", reason, fmt.Sprintf("skip payment=%s status=%s", payment.ID, payment.Status))
		res.Skipped = "payment_authorized"
		res.Details["paymentStatus"] = string(payment.Status)
		return res, nil
	}

	var pt *models.PurchaseTrip
	if ptID != "" {
		p, err := s.Store.GetPurchaseTrip(ctx, ptID)
		switch {
		case err == nil:
			pt = &p
		case domain.IsNotFound(err):
			res.Details["purchaseTrip"] = "not_found"
		default:
			return CleanupResult{}, err
		}
	}
	if pt != nil && !pt.Status.Discardable() {
		res.Skipped = "reservation_booked"
		res.Details["reservationStatus"] = string(pt.Status)
		return res, nil
	}

	// The deletes are conditional on the statuses checked above. A webhook
	// that authorizes the payment in between makes them affect no rows.
	if payment != nil {
		deleted, err := s.Store.DeletePayment(ctx, payment.ID)
		switch {
		case err != nil:
			utils.LogError(reqID, "cleanup", reason, "delete payment "+payment.ID, err)
			res.Details["payment"] = "error: " + err.Error()
		case deleted:
			res.Cleaned++
			res.Details["payment"] = "deleted"
		}
		if !deleted {
			current, gerr := s.Store.GetPayment(ctx, payment.ID)
			switch {
			case gerr == nil && current.Status.MoneyMoved():
				utils.LogWarn(reqID, "cleanup", reason, fmt.Sprintf("payment=%s became %s, cleanup stopped", payment.ID, current.Status))
				res.Skipped = "payment_authorized"
				res.Details["paymentStatus"] = string(current.Status)
				return res, nil
			case domain.IsNotFound(gerr) && err == nil:
				res.Details["payment"] = "not_found"
			}
		}
	}

	// Each step runs even if an earlier one failed.
	if pt != nil {
		deleted, err := s.Store.DeletePurchaseTrip(ctx, pt.ID)
		switch {
		case err != nil:
			utils.LogError(reqID, "cleanup", reason, "delete purchase trip "+pt.ID, err)
			res.Details["purchaseTrip"] = "error: " + err.Error()
		case deleted:
			res.Cleaned++
			res.Details["purchaseTrip"] = "deleted"
		default:
			if current, gerr := s.Store.GetPurchaseTrip(ctx, pt.ID); gerr == nil {
				res.Details["purchaseTrip"] = "kept: " + string(current.Status)
			} else {
				res.Details["purchaseTrip"] = "not_found"
			}
		}

		// A discardable reservation never owns the trip, so only another
		// holder may keep it booked.
		released, err := s.Store.ReleaseTrip(ctx, pt.TripID, "")
		switch {
		case err != nil:
			utils.LogError(reqID, "cleanup", reason, "release trip "+pt.TripID, err)
			res.Details["trip"] = "error: " + err.Error()
		case released:
			res.Details["trip"] = "released"
		default:
			res.Details["trip"] = "unchanged"
		}
	}

	metrics.Cleanups.WithLabelValues(reason).Inc()
	utils.LogEvent(reqID, "cleanup", reason, fmt.Sprintf("ref=%s purchase_trip=%s cleaned=%d", ref, ptID, res.Cleaned))
	if res.Cleaned > 0 {
		key := ptID
		if key == "" {
			key = ref
		}
		publish(ctx, s.Events, events.BookingCleaned, key, map[string]any{
			"reason": reason, "reference": ref, "purchaseTripId": ptID, "cleaned": res.Cleaned,
		})
	}
	return res, nil
}

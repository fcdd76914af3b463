package services

import (
	"context"
	"fmt"
	"strings"

	"freight-backend/internal/domain"
	"freight-backend/internal/events"
	"freight-backend/internal/metrics"
	"freight-backend/internal/paystack"
	"freight-backend/internal/repositories"
	"freight-backend/internal/utils"

	"github.com/shopspring/decimal"
)

type RefundRequest struct {
	PaymentID   string `json:"paymentId"`
	Reference   string `json:"reference"`
	AmountMinor int64  `json:"amount"`
}

type RefundResult struct {
	PaymentID      string               `json:"paymentId"`
	Status         domain.PaymentStatus `json:"status"`
	AmountMinor    int64                `json:"amount"`
	RefundedAmount decimal.Decimal      `json:"refundedAmount"`
}

// Refund returns money for an authorized payment. The refund_pending claim
// guarantees at most one caller reaches the gateway and never succeeds while
// a payout is outstanding; AmountMinor 0 refunds the full total.
func (s ReconciliationService) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	reqID := utils.RequestIDFrom(ctx)
	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		return RefundResult{}, domain.ValidationError{Field: "paymentId", Msg: "paymentId wajib diisi"}
	}
	if s.Gateway == nil || !s.Gateway.Configured() {
		return RefundResult{}, domain.InternalError{Msg: msgGatewayUnconfigured}
	}

	payment, err := s.Store.GetPayment(ctx, paymentID)
	if err != nil {
		return RefundResult{}, err
	}
	if ref := strings.TrimSpace(req.Reference); ref != "" && ref != payment.PaystackReference {
		return RefundResult{}, domain.ValidationError{Field: "reference", Msg: "reference tidak cocok dengan pembayaran"}
	}
	total := paystack.ToMinor(payment.TotalAmount)
	if req.AmountMinor < 0 || req.AmountMinor > total {
		return RefundResult{}, domain.ValidationError{Field: "amount", Msg: fmt.Sprintf("amount harus antara 0 dan %d", total)}
	}
	amount := req.AmountMinor
	if amount == 0 {
		amount = total
	}

	claimed, err := s.Store.ClaimRefund(ctx, payment.ID)
	if err != nil {
		return RefundResult{}, err
	}
	if !claimed {
		metrics.Refunds.WithLabelValues("rejected").Inc()
		current, err := s.Store.GetPayment(ctx, payment.ID)
		if err != nil {
			return RefundResult{}, err
		}
		switch {
		case current.Status.Refundable() && current.TransferReference != "":
			return RefundResult{}, domain.ReconciliationConflict{Resource: "payment", From: string(current.Status), To: string(domain.PaymentRefunded), Msg: "payout sedang diproses"}
		case current.Status == domain.PaymentRefunded, current.Status == domain.PaymentRefundPending:
			return RefundResult{}, domain.ReconciliationConflict{Resource: "payment", From: string(current.Status), To: string(domain.PaymentRefunded), Msg: "refund sudah diproses"}
		default:
			return RefundResult{}, domain.ReconciliationConflict{Resource: "payment", From: string(current.Status), To: string(domain.PaymentRefunded), Msg: "not refundable"}
		}
	}

	if _, err := s.Gateway.Refund(ctx, payment.PaystackReference, amount); err != nil {
		metrics.Refunds.WithLabelValues("failed").Inc()
		utils.LogError(reqID, "refund", "gateway", "refund failed for payment="+payment.ID, err)
		if _, terr := s.Store.TransitionPayment(ctx, payment.ID,
			[]domain.PaymentStatus{domain.PaymentRefundPending}, domain.PaymentRefundFailed); terr != nil {
			utils.LogError(reqID, "refund", "mark_failed", "payment="+payment.ID, terr)
		}
		publish(ctx, s.Events, events.PaymentRefundFailed, payment.ID, map[string]any{"paymentId": payment.ID, "amountMinor": amount})
		return RefundResult{}, err
	}

	refunded := paystack.FromMinor(amount)
	if err := s.ProcessRefund(ctx, payment.ID, refunded); err != nil {
		utils.LogError(reqID, "refund", "settle", "gateway refunded but ledger not updated, payment="+payment.ID, err)
		return RefundResult{}, err
	}
	metrics.Refunds.WithLabelValues("refunded").Inc()
	return RefundResult{PaymentID: payment.ID, Status: domain.PaymentRefunded, AmountMinor: amount, RefundedAmount: refunded}, nil
}

var refundableReservations = []domain.ReservationStatus{
	domain.ReservationAwaitingConfirmation,
	domain.ReservationBooked,
	domain.ReservationDispatched,
}

// ProcessRefund settles a claimed refund: the payment becomes refunded, the
// reservation Refunded, and the trip is released if this reservation held it.
func (s ReconciliationService) ProcessRefund(ctx context.Context, paymentID string, amount decimal.Decimal) error {
	reqID := utils.RequestIDFrom(ctx)
	payment, err := s.Store.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx repositories.Store) error {
		ok, err := tx.MarkPaymentRefunded(ctx, payment.ID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ReconciliationConflict{Resource: "payment", From: string(payment.Status), To: string(domain.PaymentRefunded)}
		}

		pt, err := tx.GetPurchaseTrip(ctx, payment.PurchaseTripID)
		if err != nil {
			if domain.IsNotFound(err) {
				utils.LogWarn(reqID, "refund", "settle", "reservation missing for payment="+payment.ID)
				return nil
			}
			return err
		}
		moved, err := tx.TransitionPurchaseTrip(ctx, pt.ID, refundableReservations, domain.ReservationRefunded)
		if err != nil {
			return err
		}
		if !moved {
			utils.LogWarn(reqID, "refund", "settle", fmt.Sprintf("reservation %s stays %s", pt.ID, pt.Status))
			return nil
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

	utils.LogEvent(reqID, "refund", "settle", "payment="+payment.ID+" amount="+amount.StringFixed(2))
	publish(ctx, s.Events, events.PaymentRefunded, payment.ID, map[string]any{
		"paymentId": payment.ID, "purchaseTripId": payment.PurchaseTripID, "amount": amount.StringFixed(2),
	})
	return nil
}

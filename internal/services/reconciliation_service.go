package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"freight-backend/internal/domain"
	"freight-backend/internal/domain/models"
	"freight-backend/internal/events"
	"freight-backend/internal/metrics"
	"freight-backend/internal/paystack"
	"freight-backend/internal/repositories"
	"freight-backend/internal/utils"
	"freight-backend/internal/webhook"
)

// ReconciliationService moves ledger state in response to what the gateway
// reports: webhooks, verification polls, refunds and payouts.
type ReconciliationService struct {
	Store         repositories.Store
	Gateway       Gateway
	Events        events.Publisher
	Dedupe        Deduper
	Compensator   CompensatorService
	WebhookSecret string
	Now           func() time.Time
}

func (s ReconciliationService) now() time.Time { return nowFn(s.Now) }

// Webhook and verify outcomes.
const (
	ActionAuthorized       = "authorized"
	ActionAlreadyProcessed = "already_processed"
	ActionReleased         = "released"
	ActionOrphaned         = "orphaned"
	ActionTransferFailed   = "transfer_failed"
	ActionIgnored          = "ignored"
	ActionDuplicate        = "duplicate"
	ActionCleaned          = "cleaned"
	ActionPending          = "pending"
	ActionNotTracked       = "not_tracked"
)

// AuthorizePayment applies pending -> authorized. It returns false without
// error when the payment is already authorized or further along.
func (s ReconciliationService) AuthorizePayment(ctx context.Context, paymentID string) (bool, error) {
	ok, err := s.Store.TransitionPayment(ctx, paymentID, []domain.PaymentStatus{domain.PaymentPending}, domain.PaymentAuthorized)
	if err != nil {
		return false, err
	}
	if !ok {
		p, err := s.Store.GetPayment(ctx, paymentID)
		if err != nil {
			return false, err
		}
		if p.Status.MoneyMoved() {
			return false, nil
		}
		return false, domain.ReconciliationConflict{Resource: "payment", From: string(p.Status), To: string(domain.PaymentAuthorized)}
	}
	utils.LogEvent(utils.RequestIDFrom(ctx), "reconcile", "authorize", "payment="+paymentID)
	publish(ctx, s.Events, events.PaymentAuthorized, paymentID, map[string]any{"paymentId": paymentID})
	return true, nil
}

// ReleasePayment applies authorized -> released once the payout settled.
func (s ReconciliationService) ReleasePayment(ctx context.Context, paymentID string) (bool, error) {
	ok, err := s.Store.TransitionPayment(ctx, paymentID, []domain.PaymentStatus{domain.PaymentAuthorized}, domain.PaymentReleased)
	if err != nil {
		return false, err
	}
	if !ok {
		p, err := s.Store.GetPayment(ctx, paymentID)
		if err != nil {
			return false, err
		}
		if p.Status == domain.PaymentReleased {
			return false, nil
		}
		return false, domain.ReconciliationConflict{Resource: "payment", From: string(p.Status), To: string(domain.PaymentReleased)}
	}
	utils.LogEvent(utils.RequestIDFrom(ctx), "reconcile", "release", "payment="+paymentID)
	publish(ctx, s.Events, events.PaymentReleased, paymentID, map[string]any{"paymentId": paymentID})
	return true, nil
}

type WebhookResult struct {
	Event     string `json:"event"`
	Reference string `json:"reference,omitempty"`
	Action    string `json:"action"`
}

// HandleWebhook verifies the signature over the raw body before anything
// else, then dispatches the event.
func (s ReconciliationService) HandleWebhook(ctx context.Context, raw []byte, signature string) (WebhookResult, error) {
	reqID := utils.RequestIDFrom(ctx)
	if s.WebhookSecret == "" {
		return WebhookResult{}, domain.InternalError{Msg: msgGatewayUnconfigured}
	}
	if !webhook.Verify(raw, signature, s.WebhookSecret) {
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		utils.LogSecurity(reqID, "webhook", "verify", "invalid webhook signature")
		return WebhookResult{}, domain.AuthorizationError{Msg: "signature tidak valid"}
	}

	ev, err := webhook.ParseEvent(raw)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_payload").Inc()
		return WebhookResult{}, domain.ValidationError{Field: "body", Msg: "payload tidak valid", Err: err}
	}

	dedupeRef := eventReference(ev)
	if s.Dedupe != nil && dedupeRef != "" {
		first, derr := s.Dedupe.Claim(ctx, ev.Event, dedupeRef)
		if derr != nil {
			utils.LogWarn(reqID, "webhook", "dedupe", derr.Error())
		}
		if !first {
			metrics.WebhookEvents.WithLabelValues(ev.Event, ActionDuplicate).Inc()
			utils.LogEvent(reqID, "webhook", ev.Event, "duplicate delivery ref="+dedupeRef)
			return WebhookResult{Event: ev.Event, Reference: dedupeRef, Action: ActionDuplicate}, nil
		}
	}

	var res WebhookResult
	switch ev.Event {
	case webhook.EventChargeSuccess:
		res, err = s.handleChargeSuccess(ctx, ev)
	case webhook.EventTransferSuccess:
		res, err = s.handleTransferSuccess(ctx, ev)
	case webhook.EventTransferFailed, webhook.EventTransferReversed:
		res, err = s.handleTransferFailed(ctx, ev)
	default:
		utils.LogEvent(reqID, "webhook", ev.Event, "unhandled event ignored")
		res = WebhookResult{Event: ev.Event, Action: ActionIgnored}
	}

	if err != nil {
		if s.Dedupe != nil && dedupeRef != "" {
			if rerr := s.Dedupe.Release(ctx, ev.Event, dedupeRef); rerr != nil {
				utils.LogWarn(reqID, "webhook", "dedupe", rerr.Error())
			}
		}
		metrics.WebhookEvents.WithLabelValues(ev.Event, "error").Inc()
		return WebhookResult{Event: ev.Event, Reference: dedupeRef}, err
	}
	metrics.WebhookEvents.WithLabelValues(ev.Event, res.Action).Inc()
	return res, nil
}

func eventReference(ev webhook.Event) string {
	switch ev.Event {
	case webhook.EventChargeSuccess:
		if d, err := ev.Charge(); err == nil {
			return d.Reference
		}
	case webhook.EventTransferSuccess, webhook.EventTransferFailed, webhook.EventTransferReversed:
		if d, err := ev.Transfer(); err == nil {
			return utils.FirstNonEmpty(d.Reference, d.TransferCode)
		}
	}
	return ""
}

func (s ReconciliationService) handleChargeSuccess(ctx context.Context, ev webhook.Event) (WebhookResult, error) {
	d, err := ev.Charge()
	if err != nil {
		return WebhookResult{}, domain.ValidationError{Field: "data", Msg: "payload tidak valid", Err: err}
	}
	res := WebhookResult{Event: ev.Event, Reference: d.Reference}

	payment, err := s.resolveChargePayment(ctx, d)
	if err != nil {
		if domain.IsNotFound(err) {
			s.orphanCharge(ctx, d.Reference, d.Amount, d.Metadata)
			res.Action = ActionOrphaned
			return res, nil
		}
		return res, err
	}

	if err := s.checkAmount(ctx, payment, d.Amount, d.Currency); err != nil {
		return res, err
	}
	changed, err := s.AuthorizePayment(ctx, payment.ID)
	if err != nil {
		return res, err
	}
	res.Action = ActionAlreadyProcessed
	if changed {
		res.Action = ActionAuthorized
	}
	return res, nil
}

// resolveChargePayment finds the payment by reference, then by
// metadata.purchaseTripId, then by the newest awaiting reservation of
// metadata.tripId.
func (s ReconciliationService) resolveChargePayment(ctx context.Context, d webhook.ChargeData) (models.Payment, error) {
	if ref := strings.TrimSpace(d.Reference); ref != "" {
		p, err := s.Store.GetPaymentByReference(ctx, ref)
		if err == nil || !domain.IsNotFound(err) {
			return p, err
		}
	}
	if ptID := d.Metadata.Get("purchaseTripId", "purchase_trip_id"); ptID != "" {
		p, err := s.Store.GetPaymentByPurchaseTrip(ctx, ptID)
		if err == nil {
			utils.LogWarn(utils.RequestIDFrom(ctx), "webhook", "charge.success", "payment matched by purchaseTripId ref="+d.Reference)
		}
		if err == nil || !domain.IsNotFound(err) {
			return p, err
		}
	}
	if tripID := d.Metadata.Get("tripId", "trip_id"); tripID != "" {
		pt, err := s.Store.LatestAwaitingByTrip(ctx, tripID)
		if err != nil {
			return models.Payment{}, err
		}
		p, err := s.Store.GetPaymentByPurchaseTrip(ctx, pt.ID)
		if err == nil {
			utils.LogWarn(utils.RequestIDFrom(ctx), "webhook", "charge.success", "payment matched by tripId ref="+d.Reference)
		}
		return p, err
	}
	return models.Payment{}, domain.NotFoundError{Resource: "payment"}
}

func (s ReconciliationService) checkAmount(ctx context.Context, p models.Payment, amountMinor int64, currency string) error {
	want := paystack.ToMinor(p.TotalAmount)
	if amountMinor == want && (currency == "" || strings.EqualFold(currency, paystack.Currency)) {
		return nil
	}
	utils.LogSecurity(utils.RequestIDFrom(ctx), "reconcile", "amount_check",
		fmt.Sprintf("amount mismatch payment=%s expected=%d got=%d %s", p.ID, want, amountMinor, currency))
	return domain.ValidationError{Field: "amount", Msg: "jumlah pembayaran tidak sesuai"}
}

func (s ReconciliationService) orphanCharge(ctx context.Context, reference string, amountMinor int64, meta webhook.Metadata) {
	metrics.OrphanCharges.Inc()
	utils.LogError(utils.RequestIDFrom(ctx), "reconcile", "orphan_charge",
		fmt.Sprintf("charge without payment record ref=%s amount=%d, manual refund needed", reference, amountMinor), nil)
	data := map[string]any{"reference": reference, "amountMinor": amountMinor}
	for k, v := range meta {
		data["meta."+k] = v
	}
	publish(ctx, s.Events, events.PaymentOrphaned, reference, data)
}

func (s ReconciliationService) resolveTransferPayment(ctx context.Context, d webhook.TransferData) (models.Payment, error) {
	if ref := strings.TrimSpace(d.Reference); ref != "" {
		p, err := s.Store.GetPaymentByTransferReference(ctx, ref)
		if err == nil || !domain.IsNotFound(err) {
			return p, err
		}
	}
	if id := d.Metadata.Get("paymentId", "payment_id"); id != "" {
		return s.Store.GetPayment(ctx, id)
	}
	return models.Payment{}, domain.NotFoundError{Resource: "payment"}
}

func (s ReconciliationService) handleTransferSuccess(ctx context.Context, ev webhook.Event) (WebhookResult, error) {
	d, err := ev.Transfer()
	if err != nil {
		return WebhookResult{}, domain.ValidationError{Field: "data", Msg: "payload tidak valid", Err: err}
	}
	res := WebhookResult{Event: ev.Event, Reference: d.Reference}
	payment, err := s.resolveTransferPayment(ctx, d)
	if err != nil {
		return res, err
	}
	changed, err := s.ReleasePayment(ctx, payment.ID)
	if err != nil {
		return res, err
	}
	res.Action = ActionAlreadyProcessed
	if changed {
		res.Action = ActionReleased
	}
	return res, nil
}

func (s ReconciliationService) handleTransferFailed(ctx context.Context, ev webhook.Event) (WebhookResult, error) {
	reqID := utils.RequestIDFrom(ctx)
	d, err := ev.Transfer()
	if err != nil {
		return WebhookResult{}, domain.ValidationError{Field: "data", Msg: "payload tidak valid", Err: err}
	}
	res := WebhookResult{Event: ev.Event, Reference: d.Reference, Action: ActionTransferFailed}
	metrics.TransferFailures.Inc()
	utils.LogWarn(reqID, "webhook", ev.Event, fmt.Sprintf("transfer ref=%s code=%s status=%s", d.Reference, d.TransferCode, d.Status))

	payment, err := s.resolveTransferPayment(ctx, d)
	if err != nil {
		if domain.IsNotFound(err) {
			return res, nil
		}
		return res, err
	}
	ref := utils.FirstNonEmpty(payment.TransferReference, d.Reference)
	if ref != "" {
		if _, err := s.Store.ClearTransfer(ctx, payment.ID, ref); err != nil {
			return res, err
		}
	}
	publish(ctx, s.Events, events.TransferFailed, payment.ID, map[string]any{
		"paymentId": payment.ID, "reference": d.Reference, "event": ev.Event,
	})
	return res, nil
}

type VerifyOutcome struct {
	Reference string           `json:"reference"`
	Status    string           `json:"status"`
	Action    string           `json:"action"`
	Payment   *PaymentSnapshot `json:"payment,omitempty"`
	Cleanup   *CleanupResult   `json:"cleanup,omitempty"`
}

type PaymentSnapshot struct {
	ID     string               `json:"id"`
	Status domain.PaymentStatus `json:"status"`
}

// VerifyReference polls the gateway and reconciles the payment: success
// authorizes, a definitive failure releases the hold, anything else waits.
func (s ReconciliationService) VerifyReference(ctx context.Context, reference string) (VerifyOutcome, error) {
	return s.verify(ctx, reference, ReasonVerificationFailed)
}

func (s ReconciliationService) verify(ctx context.Context, reference, failReason string) (VerifyOutcome, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerifyOutcome{}, domain.ValidationError{Field: "reference", Msg: "reference wajib diisi"}
	}
	if s.Gateway == nil || !s.Gateway.Configured() {
		return VerifyOutcome{}, domain.InternalError{Msg: msgGatewayUnconfigured}
	}
	vr, err := s.Gateway.Verify(ctx, reference)
	if err != nil {
		return VerifyOutcome{}, err
	}
	out := VerifyOutcome{Reference: reference, Status: vr.Status}

	payment, err := s.Store.GetPaymentByReference(ctx, reference)
	if err != nil && !domain.IsNotFound(err) {
		return out, err
	}
	tracked := err == nil

	switch {
	case vr.Success:
		if !tracked {
			s.orphanCharge(ctx, reference, vr.AmountMinor, nil)
			out.Action = ActionOrphaned
			return out, nil
		}
		if err := s.checkAmount(ctx, payment, vr.AmountMinor, vr.Currency); err != nil {
			return out, err
		}
		changed, err := s.AuthorizePayment(ctx, payment.ID)
		if err != nil {
			return out, err
		}
		out.Action = ActionAlreadyProcessed
		if changed {
			out.Action = ActionAuthorized
		}
		out.Payment = &PaymentSnapshot{ID: payment.ID, Status: domain.PaymentAuthorized}
		if !changed {
			if fresh, err := s.Store.GetPayment(ctx, payment.ID); err == nil {
				out.Payment.Status = fresh.Status
			}
		}
	case paystack.DefinitiveFailure(vr.Status):
		if !tracked {
			out.Action = ActionNotTracked
			return out, nil
		}
		cr, err := s.Compensator.Cleanup(ctx, CleanupRequest{PaystackReference: reference, Reason: failReason})
		if err != nil {
			return out, err
		}
		out.Action = ActionCleaned
		out.Cleanup = &cr
	default:
		out.Action = ActionPending
		if tracked {
			out.Payment = &PaymentSnapshot{ID: payment.ID, Status: payment.Status}
		}
	}
	utils.LogEvent(utils.RequestIDFrom(ctx), "reconcile", "verify", fmt.Sprintf("ref=%s status=%s action=%s", reference, vr.Status, out.Action))
	return out, nil
}

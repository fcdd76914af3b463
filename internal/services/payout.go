package services

import (
	"context"
	"strconv"
	"strings"

	"freight-backend/internal/domain"
	"freight-backend/internal/domain/models"
	"freight-backend/internal/events"
	"freight-backend/internal/paystack"
	"freight-backend/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PayoutRequest struct {
	PaymentID     string
	AmountMajor   decimal.Decimal
	RecipientCode string
	Reference     string
	Reason        string
	Metadata      map[string]any
	Actor         domain.Actor
}

type PayoutResult struct {
	PaymentID    string `json:"paymentId"`
	Reference    string `json:"reference"`
	TransferCode string `json:"transferCode"`
	Status       string `json:"status"`
	AmountMinor  int64  `json:"amount"`
}

// RequestPayout transfers an authorized payment's funds to the transporter.
// The transfer_reference claim allows one outstanding payout per payment.
func (s ReconciliationService) RequestPayout(ctx context.Context, req PayoutRequest) (PayoutResult, error) {
	reqID := utils.RequestIDFrom(ctx)
	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		return PayoutResult{}, domain.ValidationError{Field: "metadata.paymentId", Msg: "paymentId wajib diisi"}
	}
	if strings.TrimSpace(req.RecipientCode) == "" {
		return PayoutResult{}, domain.ValidationError{Field: "recipientCode", Msg: "recipientCode wajib diisi"}
	}
	if !req.AmountMajor.IsPositive() {
		return PayoutResult{}, domain.ValidationError{Field: "amount", Msg: "harus lebih dari 0"}
	}
	if s.Gateway == nil || !s.Gateway.Configured() {
		return PayoutResult{}, domain.InternalError{Msg: msgGatewayUnconfigured}
	}

	payment, err := s.Store.GetPayment(ctx, paymentID)
	if err != nil {
		return PayoutResult{}, err
	}
	if !req.Actor.IsAdmin() && req.Actor.UserID != payment.TransporterID {
		return PayoutResult{}, domain.ForbiddenError{Msg: "bukan transporter pembayaran ini"}
	}
	if payment.Status != domain.PaymentAuthorized {
		return PayoutResult{}, domain.ReconciliationConflict{Resource: "payment", From: string(payment.Status), To: string(domain.PaymentReleased), Msg: "pembayaran belum authorized"}
	}
	if req.AmountMajor.GreaterThan(payment.TotalAmount) {
		return PayoutResult{}, domain.ValidationError{Field: "amount", Msg: "melebihi total pembayaran"}
	}

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = "payout-" + utils.SanitizeRefPart(payment.ID) + "-" + strconv.FormatInt(s.now().UnixMilli(), 10)
	}
	claimed, err := s.Store.ClaimTransfer(ctx, payment.ID, reference)
	if err != nil {
		return PayoutResult{}, err
	}
	if !claimed {
		return PayoutResult{}, domain.ReconciliationConflict{Resource: "payment", From: string(payment.Status), To: string(domain.PaymentReleased), Msg: "payout sudah diminta"}
	}

	meta := map[string]any{}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta["paymentId"] = payment.ID

	amountMinor := paystack.ToMinor(req.AmountMajor)
	tr, err := s.Gateway.Transfer(ctx, paystack.TransferRequest{
		AmountMinor:   amountMinor,
		RecipientCode: req.RecipientCode,
		Reference:     reference,
		Reason:        utils.FirstNonEmpty(req.Reason, "Trip payout"),
		Metadata:      meta,
	})
	if err != nil {
		// An ambiguous failure may still settle; the transfer webhook decides.
		if gwErr, ok := domain.AsGatewayError(err); ok && !gwErr.Ambiguous() {
			if _, cerr := s.Store.ClearTransfer(ctx, payment.ID, reference); cerr != nil {
				utils.LogError(reqID, "payout", "clear_claim", "payment="+payment.ID, cerr)
			}
		}
		utils.LogError(reqID, "payout", "transfer", "transfer failed for payment="+payment.ID, err)
		return PayoutResult{}, err
	}

	utils.LogEvent(reqID, "payout", "transfer", "payment="+payment.ID+" ref="+reference+" code="+tr.TransferCode)
	publish(ctx, s.Events, events.PayoutRequested, payment.ID, map[string]any{
		"paymentId": payment.ID, "reference": reference, "amountMinor": amountMinor, "transferCode": tr.TransferCode,
	})
	return PayoutResult{PaymentID: payment.ID, Reference: reference, TransferCode: tr.TransferCode, Status: tr.Status, AmountMinor: amountMinor}, nil
}

type RecipientInput struct {
	Name          string `json:"name"`
	AccountNumber string `json:"accountNumber"`
	BankCode      string `json:"bankCode"`
}

// RegisterRecipient resolves the bank account, creates the gateway
// recipient and stores it for the transporter.
func (s ReconciliationService) RegisterRecipient(ctx context.Context, actor domain.Actor, in RecipientInput) (models.TransferRecipient, error) {
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)
	in.BankCode = strings.TrimSpace(in.BankCode)
	if in.AccountNumber == "" {
		return models.TransferRecipient{}, domain.ValidationError{Field: "accountNumber", Msg: "accountNumber wajib diisi"}
	}
	if in.BankCode == "" {
		return models.TransferRecipient{}, domain.ValidationError{Field: "bankCode", Msg: "bankCode wajib diisi"}
	}
	if s.Gateway == nil || !s.Gateway.Configured() {
		return models.TransferRecipient{}, domain.InternalError{Msg: msgGatewayUnconfigured}
	}

	acc, err := s.Gateway.ResolveAccount(ctx, in.AccountNumber, in.BankCode)
	if err != nil {
		return models.TransferRecipient{}, err
	}
	name := utils.FirstNonEmpty(acc.AccountName, in.Name)
	rcp, err := s.Gateway.CreateRecipient(ctx, paystack.RecipientRequest{
		Name:          name,
		AccountNumber: in.AccountNumber,
		BankCode:      in.BankCode,
	})
	if err != nil {
		return models.TransferRecipient{}, err
	}

	rc := models.TransferRecipient{
		ID:            uuid.NewString(),
		TransporterID: actor.UserID,
		RecipientCode: rcp.RecipientCode,
		AccountName:   name,
		AccountNumber: in.AccountNumber,
		BankCode:      in.BankCode,
		CreatedAt:     s.now(),
	}
	if err := s.Store.SaveRecipient(ctx, rc); err != nil {
		return models.TransferRecipient{}, err
	}
	utils.LogEvent(utils.RequestIDFrom(ctx), "payout", "recipient", "transporter="+actor.UserID+" code="+rc.RecipientCode)
	return rc, nil
}

// ListRecipients returns a transporter's payout destinations. Admins may
// name any transporter; everyone else only sees their own.
func (s ReconciliationService) ListRecipients(ctx context.Context, actor domain.Actor, transporterID string) ([]models.TransferRecipient, error) {
	transporterID = utils.FirstNonEmpty(transporterID, actor.UserID)
	if !actor.IsAdmin() && transporterID != actor.UserID {
		return nil, domain.ForbiddenError{Msg: "bukan transporter yang sama"}
	}
	return s.Store.ListRecipients(ctx, transporterID)
}

type InitializeInput struct {
	Email       string         `json:"email"`
	AmountMinor int64          `json:"amount"`
	Reference   string         `json:"reference"`
	CallbackURL string         `json:"callback_url"`
	Metadata    map[string]any `json:"metadata"`
}

// InitializeTransaction opens a gateway transaction for a client-built
// request. When metadata names a ledger payment, amount and reference must
// match it.
func (s ReconciliationService) InitializeTransaction(ctx context.Context, in InitializeInput, defaultCallback string) (paystack.InitializeResult, error) {
	if s.Gateway == nil || !s.Gateway.Configured() {
		return paystack.InitializeResult{}, domain.InternalError{Msg: msgGatewayUnconfigured}
	}
	if strings.TrimSpace(in.Email) == "" {
		return paystack.InitializeResult{}, domain.ValidationError{Field: "email", Msg: "email wajib diisi"}
	}
	if in.AmountMinor <= 0 {
		return paystack.InitializeResult{}, domain.ValidationError{Field: "amount", Msg: "harus lebih dari 0"}
	}

	var paymentID string
	if v, ok := in.Metadata["paymentId"].(string); ok {
		paymentID = strings.TrimSpace(v)
	}
	if paymentID != "" {
		p, err := s.Store.GetPayment(ctx, paymentID)
		if err != nil {
			return paystack.InitializeResult{}, err
		}
		if p.Status != domain.PaymentPending {
			return paystack.InitializeResult{}, domain.ReconciliationConflict{Resource: "payment", From: string(p.Status), Msg: "pembayaran tidak lagi pending"}
		}
		if in.AmountMinor != paystack.ToMinor(p.TotalAmount) {
			utils.LogSecurity(utils.RequestIDFrom(ctx), "paystack", "initialize", "amount does not match payment="+p.ID)
			return paystack.InitializeResult{}, domain.ValidationError{Field: "amount", Msg: "jumlah tidak sesuai dengan pembayaran"}
		}
		if in.Reference == "" {
			in.Reference = p.PaystackReference
		}
		if in.Reference != p.PaystackReference {
			return paystack.InitializeResult{}, domain.ValidationError{Field: "reference", Msg: "reference tidak cocok dengan pembayaran"}
		}
	}
	if in.Reference == "" {
		return paystack.InitializeResult{}, domain.ValidationError{Field: "reference", Msg: "reference wajib diisi"}
	}

	res, err := s.Gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       strings.TrimSpace(in.Email),
		AmountMinor: in.AmountMinor,
		Reference:   in.Reference,
		CallbackURL: utils.FirstNonEmpty(in.CallbackURL, defaultCallback),
		Metadata:    in.Metadata,
	})
	if err != nil {
		return paystack.InitializeResult{}, err
	}
	if paymentID != "" {
		if err := s.Store.SetPaymentInitReference(ctx, paymentID, res.AccessCode); err != nil {
			utils.LogError(utils.RequestIDFrom(ctx), "paystack", "initialize", "store access code", err)
		}
	}
	return res, nil
}

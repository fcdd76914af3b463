package handlers

import (
	"io"
	"net/http"
	"strings"

	"freight-backend/internal/domain"
	"freight-backend/internal/http/middleware"
	"freight-backend/internal/services"
	"freight-backend/internal/utils"
	"freight-backend/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const maxWebhookBody = 1 << 20

// PaystackHandler serves the gateway-facing routes.
type PaystackHandler struct {
	Reconcile   services.ReconciliationService
	CallbackURL string
}

// Initialize POST /api/paystack/initialize
func (h PaystackHandler) Initialize(c *gin.Context) {
	var in services.InitializeInput
	if !BindJSONOrError(c, &in) {
		return
	}
	res, err := h.Reconcile.InitializeTransaction(c.Request.Context(), in, h.CallbackURL)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authorization_url": res.AuthorizationURL,
		"access_code":       res.AccessCode,
		"reference":         res.Reference,
	})
}

// Verify GET /api/paystack/verify/:reference
func (h PaystackHandler) Verify(c *gin.Context) {
	ref := strings.TrimSpace(c.Param("reference"))
	if ref == "" {
		respondError(c, http.StatusBadRequest, "invalid_reference", "reference tidak valid", nil)
		return
	}
	out, err := h.Reconcile.VerifyReference(c.Request.Context(), ref)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Webhook POST /api/paystack/webhook. The signature covers the raw body, so
// it is read before any decoding.
func (h PaystackHandler) Webhook(c *gin.Context) {
	reqID := middleware.GetRequestID(c)
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", "body tidak dapat dibaca", nil)
		return
	}

	res, err := h.Reconcile.HandleWebhook(c.Request.Context(), raw, c.GetHeader(webhook.SignatureHeader))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true, "event": res.Event, "action": res.Action})
	case domain.IsAuthorization(err):
		respondError(c, http.StatusUnauthorized, "invalid_signature", "signature tidak valid", nil)
	case domain.IsValidation(err), domain.IsNotFound(err), domain.IsConflict(err), domain.IsReconciliationConflict(err):
		utils.LogWarn(reqID, "paystack", "webhook", "acknowledged with error: "+err.Error())
		c.JSON(http.StatusOK, gin.H{"received": true, "error": err.Error()})
	default:
		RespondDomainError(c, err)
	}
}

// Refund POST /api/paystack/refund (server-to-server).
func (h PaystackHandler) Refund(c *gin.Context) {
	var req services.RefundRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	res, err := h.Reconcile.Refund(c.Request.Context(), req)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type transferPayload struct {
	Amount        decimal.Decimal `json:"amount"`
	RecipientCode string          `json:"recipientCode"`
	Reason        string          `json:"reason"`
	Reference     string          `json:"reference"`
	Metadata      map[string]any  `json:"metadata"`
}

// Transfer POST /api/paystack/transfer. Amount is in rand.
func (h PaystackHandler) Transfer(c *gin.Context) {
	var p transferPayload
	if !BindJSONOrError(c, &p) {
		return
	}
	paymentID, _ := p.Metadata["paymentId"].(string)
	res, err := h.Reconcile.RequestPayout(c.Request.Context(), services.PayoutRequest{
		PaymentID:     paymentID,
		AmountMajor:   p.Amount,
		RecipientCode: p.RecipientCode,
		Reference:     p.Reference,
		Reason:        p.Reason,
		Metadata:      p.Metadata,
		Actor:         middleware.ActorFrom(c),
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreateRecipient POST /api/paystack/create-recipient
func (h PaystackHandler) CreateRecipient(c *gin.Context) {
	var in services.RecipientInput
	if !BindJSONOrError(c, &in) {
		return
	}
	rc, err := h.Reconcile.RegisterRecipient(c.Request.Context(), middleware.ActorFrom(c), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rc)
}

// ListRecipients GET /api/paystack/recipients?transporter_id=
func (h PaystackHandler) ListRecipients(c *gin.Context) {
	out, err := h.Reconcile.ListRecipients(c.Request.Context(), middleware.ActorFrom(c), c.Query("transporter_id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipients": out})
}

// ResolveAccount GET /api/paystack/resolve-account?account_number=&bank_code=
func (h PaystackHandler) ResolveAccount(c *gin.Context) {
	acct := strings.TrimSpace(c.Query("account_number"))
	bank := strings.TrimSpace(c.Query("bank_code"))
	if acct == "" || bank == "" {
		respondError(c, http.StatusBadRequest, "validation_error", "account_number dan bank_code wajib diisi", nil)
		return
	}
	gw := h.Reconcile.Gateway
	if gw == nil || !gw.Configured() {
		respondError(c, http.StatusInternalServerError, "internal_error", "PAYSTACK_SECRET_KEY belum dikonfigurasi", nil)
		return
	}
	res, err := gw.ResolveAccount(c.Request.Context(), acct, bank)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

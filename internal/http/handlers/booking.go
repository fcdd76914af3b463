package handlers

import (
	"net/http"
	"strings"

	"freight-backend/internal/domain"
	"freight-backend/internal/http/middleware"
	"freight-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// BookingHandler serves the reservation routes.
type BookingHandler struct {
	Ledger      services.LedgerService
	Compensator services.CompensatorService
	Docs        services.DocsService
}

type reservePayload struct {
	TripID      string `json:"tripId"`
	Email       string `json:"email"`
	CallbackURL string `json:"callbackUrl"`
}

// Reserve POST /api/booking/reserve
func (h BookingHandler) Reserve(c *gin.Context) {
	var p reservePayload
	if !BindJSONOrError(c, &p) {
		return
	}
	actor := middleware.ActorFrom(c)
	res, err := h.Ledger.StartBooking(c.Request.Context(), services.StartBookingRequest{
		TripID:      p.TripID,
		UserID:      actor.UserID,
		Email:       p.Email,
		CallbackURL: p.CallbackURL,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Get GET /api/booking/:id
func (h BookingHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	view, err := h.Ledger.GetReservation(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Confirm POST /api/booking/:id/confirm
func (h BookingHandler) Confirm(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Ledger.ConfirmBooking(c.Request.Context(), id, middleware.ActorFrom(c)); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": domain.ReservationBooked})
}

// Cancel POST /api/booking/:id/cancel
func (h BookingHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Ledger.CancelReservation(c.Request.Context(), id, middleware.ActorFrom(c)); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": domain.ReservationCancelled})
}

type statusPayload struct {
	Status string `json:"status"`
}

// AdvanceStatus POST /api/booking/:id/status
func (h BookingHandler) AdvanceStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var p statusPayload
	if !BindJSONOrError(c, &p) {
		return
	}
	to, ok := domain.ParseReservationStatus(strings.TrimSpace(p.Status))
	if !ok {
		RespondDomainError(c, domain.ValidationError{Field: "status", Msg: "status tidak dikenal"})
		return
	}
	if err := h.Ledger.AdvanceStatus(c.Request.Context(), id, to, middleware.ActorFrom(c)); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": to})
}

// Receipt GET /api/booking/:id/receipt
func (h BookingHandler) Receipt(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := h.Ledger.GetReservation(c.Request.Context(), id, middleware.ActorFrom(c)); err != nil {
		RespondDomainError(c, err)
		return
	}
	pdfBytes, filename, err := h.Docs.GenerateReceipt(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

// Cleanup POST /api/booking/cleanup. Partial failures are reported in
// details with status 200.
func (h BookingHandler) Cleanup(c *gin.Context) {
	var req services.CleanupRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	if err := h.authorizeCleanup(c, req); err != nil {
		RespondDomainError(c, err)
		return
	}
	res, err := h.Compensator.Cleanup(c.Request.Context(), req)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// authorizeCleanup lets the reserving user or an admin undo an attempt.
// Records that no longer exist pass through; cleanup reports them as skipped steps.
func (h BookingHandler) authorizeCleanup(c *gin.Context, req services.CleanupRequest) error {
	actor := middleware.ActorFrom(c)
	if actor.IsAdmin() {
		return nil
	}
	ctx := c.Request.Context()
	owner := ""
	if id := strings.TrimSpace(req.PurchaseTripID); id != "" {
		pt, err := h.Compensator.Store.GetPurchaseTrip(ctx, id)
		if err != nil && !domain.IsNotFound(err) {
			return err
		}
		owner = pt.UserID
	}
	if ref := strings.TrimSpace(req.PaystackReference); owner == "" && ref != "" {
		p, err := h.Compensator.Store.GetPaymentByReference(ctx, ref)
		if err != nil && !domain.IsNotFound(err) {
			return err
		}
		owner = p.UserID
	}
	if owner != "" && owner != actor.UserID {
		return domain.ForbiddenError{Msg: "bukan pemilik reservasi"}
	}
	return nil
}

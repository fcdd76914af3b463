package handlers

import (
	"errors"
	"net/http"

	"freight-backend/internal/domain"
	"freight-backend/internal/http/middleware"
	"freight-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	resp := ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	}
	reqID := middleware.GetRequestID(c)
	if reqID != "" {
		c.JSON(status, gin.H{
			"error":      resp.Error,
			"code":       resp.Code,
			"details":    resp.Details,
			"request_id": reqID,
			"message":    message,
		})
		return
	}
	c.JSON(status, resp)
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	if gwErr, ok := domain.AsGatewayError(err); ok {
		utils.LogError(middleware.GetRequestID(c), "http", "gateway", c.FullPath(), err)
		respondError(c, http.StatusBadGateway, "gateway_error", gwErr.Error(), gin.H{
			"gateway_status": gwErr.StatusCode,
			"gateway_body":   gwErr.Body,
		})
		return
	}

	var internal domain.InternalError
	switch {
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case domain.IsAuthorization(err):
		respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	case domain.IsForbidden(err):
		respondError(c, http.StatusForbidden, "forbidden", err.Error(), nil)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case domain.IsReconciliationConflict(err):
		respondError(c, http.StatusConflict, "reconciliation_conflict", err.Error(), nil)
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.As(err, &internal) && internal.Msg != "":
		utils.LogError(middleware.GetRequestID(c), "http", "internal", c.FullPath(), err)
		respondError(c, http.StatusInternalServerError, "internal_error", internal.Msg, nil)
	default:
		utils.LogError(middleware.GetRequestID(c), "http", "internal", c.FullPath(), err)
		respondError(c, http.StatusInternalServerError, "internal_error", "terjadi kesalahan", nil)
	}
}

package models

import (
	"time"

	"freight-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// Payment records one gateway transaction tied to a PurchaseTrip.
// Amounts are major units (ZAR).
type Payment struct {
	ID                    string               `json:"id"`
	UserID                string               `json:"userId"`
	TransporterID         string               `json:"transporterId"`
	TripID                string               `json:"tripId"`
	PurchaseTripID        string               `json:"purchaseTripId"`
	TotalAmount           decimal.Decimal      `json:"totalAmount"`
	PaystackReference     string               `json:"paystackReference"`
	PaystackInitReference string               `json:"paystackInitReference,omitempty"`
	Status                domain.PaymentStatus `json:"status"`
	RefundedAmount        decimal.Decimal      `json:"refundedAmount"`
	TransferReference     string               `json:"transferReference,omitempty"`
	AuthorizedAt          *time.Time           `json:"authorizedAt,omitempty"`
	ReleasedAt            *time.Time           `json:"releasedAt,omitempty"`
	RefundedAt            *time.Time           `json:"refundedAt,omitempty"`
	CreatedAt             time.Time            `json:"createdAt"`
	UpdatedAt             time.Time            `json:"updatedAt"`
}

// TransferRecipient is a transporter's registered payout destination.
type TransferRecipient struct {
	ID            string    `json:"id"`
	TransporterID string    `json:"transporterId"`
	RecipientCode string    `json:"recipientCode"`
	AccountName   string    `json:"accountName"`
	AccountNumber string    `json:"accountNumber"`
	BankCode      string    `json:"bankCode"`
	CreatedAt     time.Time `json:"createdAt"`
}

package models

import (
	"time"

	"freight-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// PurchaseTrip is one booking attempt by a client against a Trip.
type PurchaseTrip struct {
	ID            string                   `json:"id"`
	TripID        string                   `json:"tripId"`
	UserID        string                   `json:"userId"`
	TransporterID string                   `json:"transporterId"`
	Amount        decimal.Decimal          `json:"amount"`
	Status        domain.ReservationStatus `json:"status"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

// ActiveKey is the value of the unique active_key column while the
// reservation is active.
func ActiveKey(userID, tripID string) string {
	return userID + ":" + tripID
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trip is a transport offering listed by a transporter.
type Trip struct {
	ID            string          `json:"id"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureAt   time.Time       `json:"departureAt"`
	ArrivalAt     time.Time       `json:"arrivalAt"`
	Price         decimal.Decimal `json:"price"`
	TransporterID string          `json:"transporterId"`
	IsBooked      bool            `json:"isBooked"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

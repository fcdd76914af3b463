package domain

// ReservationStatus is the PurchaseTrip lifecycle.
type ReservationStatus string

const (
	ReservationAwaitingConfirmation ReservationStatus = "AwaitingConfirmation"
	ReservationBooked               ReservationStatus = "Booked"
	ReservationDispatched           ReservationStatus = "Dispatched"
	ReservationDelivered            ReservationStatus = "Delivered"
	ReservationCancelled            ReservationStatus = "Cancelled"
	ReservationRefunded             ReservationStatus = "Refunded"
)

// Active reservations hold the (user, trip) uniqueness slot.
func (s ReservationStatus) Active() bool {
	switch s {
	case ReservationAwaitingConfirmation, ReservationBooked, ReservationDispatched, ReservationDelivered:
		return true
	}
	return false
}

// HoldsTrip reports whether the reservation owns Trip.isBooked.
func (s ReservationStatus) HoldsTrip() bool {
	switch s {
	case ReservationBooked, ReservationDispatched, ReservationDelivered:
		return true
	}
	return false
}

// DiscardableReservations never held the trip nor settled money, so the
// compensator may delete them.
var DiscardableReservations = []ReservationStatus{ReservationAwaitingConfirmation, ReservationCancelled}

func (s ReservationStatus) Discardable() bool {
	return s == ReservationAwaitingConfirmation || s == ReservationCancelled
}

// Terminal states accept no further transitions.
func (s ReservationStatus) Terminal() bool {
	switch s {
	case ReservationDelivered, ReservationCancelled, ReservationRefunded:
		return true
	}
	return false
}

// NextFulfilment returns the forward transition a transporter may apply.
func (s ReservationStatus) NextFulfilment() (ReservationStatus, bool) {
	switch s {
	case ReservationBooked:
		return ReservationDispatched, true
	case ReservationDispatched:
		return ReservationDelivered, true
	}
	return "", false
}

func ParseReservationStatus(v string) (ReservationStatus, bool) {
	switch s := ReservationStatus(v); s {
	case ReservationAwaitingConfirmation, ReservationBooked, ReservationDispatched,
		ReservationDelivered, ReservationCancelled, ReservationRefunded:
		return s, true
	}
	return "", false
}

// PaymentStatus is the gateway-facing payment lifecycle.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentAuthorized    PaymentStatus = "authorized"
	PaymentReleased      PaymentStatus = "released"
	PaymentRefundPending PaymentStatus = "refund_pending"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentRefundFailed  PaymentStatus = "refund_failed"
)

// MoneyMoved is true once the gateway has captured funds for the payment.
func (s PaymentStatus) MoneyMoved() bool {
	switch s {
	case PaymentAuthorized, PaymentReleased, PaymentRefundPending, PaymentRefunded, PaymentRefundFailed:
		return true
	}
	return false
}

// Refundable states may be claimed for a refund.
func (s PaymentStatus) Refundable() bool {
	return s == PaymentAuthorized || s == PaymentRefundFailed
}

// Role names issued by the identity provider.
const (
	RoleClient      = "client"
	RoleTransporter = "transporter"
	RoleAdmin       = "admin"
)

// Actor is the authenticated caller of a ledger operation.
type Actor struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

package repositories

import (
	"context"
	"database/sql"
	"time"

	intconfig "freight-backend/internal/config"
	intdb "freight-backend/internal/db"
	"freight-backend/internal/domain"
	"freight-backend/internal/domain/models"

	"github.com/shopspring/decimal"
)

// Store is the ledger persistence surface used by the services. Every
// status change is conditional: the bool result is false when the row was
// not in one of the expected states.
type Store interface {
	GetTrip(ctx context.Context, id string) (models.Trip, error)
	MarkTripBooked(ctx context.Context, id string) (bool, error)
	ReleaseTrip(ctx context.Context, id, exceptPurchaseTripID string) (bool, error)

	CreatePurchaseTrip(ctx context.Context, p models.PurchaseTrip) error
	GetPurchaseTrip(ctx context.Context, id string) (models.PurchaseTrip, error)
	LatestAwaitingByTrip(ctx context.Context, tripID string) (models.PurchaseTrip, error)
	TransitionPurchaseTrip(ctx context.Context, id string, from []domain.ReservationStatus, to domain.ReservationStatus) (bool, error)
	// DeletePurchaseTrip only removes AwaitingConfirmation or Cancelled rows.
	DeletePurchaseTrip(ctx context.Context, id string) (bool, error)
	// ListExpiredHolds skips reservations whose payment is past pending.
	ListExpiredHolds(ctx context.Context, before time.Time, limit int) ([]models.PurchaseTrip, error)

	CreatePayment(ctx context.Context, p models.Payment) error
	GetPayment(ctx context.Context, id string) (models.Payment, error)
	GetPaymentByReference(ctx context.Context, reference string) (models.Payment, error)
	GetPaymentByPurchaseTrip(ctx context.Context, purchaseTripID string) (models.Payment, error)
	GetPaymentByTransferReference(ctx context.Context, reference string) (models.Payment, error)
	TransitionPayment(ctx context.Context, id string, from []domain.PaymentStatus, to domain.PaymentStatus) (bool, error)
	MarkPaymentRefunded(ctx context.Context, id string, amount decimal.Decimal) (bool, error)
	SetPaymentInitReference(ctx context.Context, id, accessCode string) error
	// ClaimRefund refuses payments with an outstanding payout claim.
	ClaimRefund(ctx context.Context, id string) (bool, error)
	ClaimTransfer(ctx context.Context, id, reference string) (bool, error)
	ClearTransfer(ctx context.Context, id, reference string) (bool, error)
	// DeletePayment only removes a pending payment.
	DeletePayment(ctx context.Context, id string) (bool, error)

	SaveRecipient(ctx context.Context, rc models.TransferRecipient) error
	ListRecipients(ctx context.Context, transporterID string) ([]models.TransferRecipient, error)

	// WithTx runs fn against a transactional view of the store. Returning
	// an error rolls back everything fn wrote.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// MySQLStore wires the table repositories behind Store.
type MySQLStore struct {
	DB   *sql.DB
	conn intdb.DBTX

	trips      TripRepository
	purchases  PurchaseTripRepository
	payments   PaymentRepository
	recipients RecipientRepository
}

// NewMySQLStore uses db, or the process-wide connection when db is nil.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	if db == nil {
		db = intconfig.DB
	}
	if db == nil {
		return newMySQLStore(nil, nil)
	}
	return newMySQLStore(db, db)
}

func newMySQLStore(db *sql.DB, conn intdb.DBTX) *MySQLStore {
	return &MySQLStore{
		DB:         db,
		conn:       conn,
		trips:      TripRepository{DB: conn},
		purchases:  PurchaseTripRepository{DB: conn},
		payments:   PaymentRepository{DB: conn},
		recipients: RecipientRepository{DB: conn},
	}
}

func (s *MySQLStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if _, nested := s.conn.(*sql.Tx); nested {
		return fn(s)
	}
	return intdb.WithinTransaction(ctx, s.DB, func(tx *sql.Tx) error {
		return fn(newMySQLStore(s.DB, tx))
	})
}

func (s *MySQLStore) GetTrip(ctx context.Context, id string) (models.Trip, error) {
	return s.trips.GetByID(ctx, id)
}

func (s *MySQLStore) MarkTripBooked(ctx context.Context, id string) (bool, error) {
	return s.trips.MarkBooked(ctx, id)
}

func (s *MySQLStore) ReleaseTrip(ctx context.Context, id, exceptPurchaseTripID string) (bool, error) {
	return s.trips.Release(ctx, id, exceptPurchaseTripID)
}

func (s *MySQLStore) CreatePurchaseTrip(ctx context.Context, p models.PurchaseTrip) error {
	return s.purchases.Create(ctx, p)
}

func (s *MySQLStore) GetPurchaseTrip(ctx context.Context, id string) (models.PurchaseTrip, error) {
	return s.purchases.GetByID(ctx, id)
}

func (s *MySQLStore) LatestAwaitingByTrip(ctx context.Context, tripID string) (models.PurchaseTrip, error) {
	return s.purchases.LatestAwaitingByTrip(ctx, tripID)
}

func (s *MySQLStore) TransitionPurchaseTrip(ctx context.Context, id string, from []domain.ReservationStatus, to domain.ReservationStatus) (bool, error) {
	return s.purchases.Transition(ctx, id, from, to)
}

func (s *MySQLStore) DeletePurchaseTrip(ctx context.Context, id string) (bool, error) {
	return s.purchases.Delete(ctx, id)
}

func (s *MySQLStore) ListExpiredHolds(ctx context.Context, before time.Time, limit int) ([]models.PurchaseTrip, error) {
	return s.purchases.ListExpired(ctx, before, limit)
}

func (s *MySQLStore) CreatePayment(ctx context.Context, p models.Payment) error {
	return s.payments.Create(ctx, p)
}

func (s *MySQLStore) GetPayment(ctx context.Context, id string) (models.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *MySQLStore) GetPaymentByReference(ctx context.Context, reference string) (models.Payment, error) {
	return s.payments.GetByReference(ctx, reference)
}

func (s *MySQLStore) GetPaymentByPurchaseTrip(ctx context.Context, purchaseTripID string) (models.Payment, error) {
	return s.payments.GetByPurchaseTripID(ctx, purchaseTripID)
}

func (s *MySQLStore) GetPaymentByTransferReference(ctx context.Context, reference string) (models.Payment, error) {
	return s.payments.GetByTransferReference(ctx, reference)
}

func (s *MySQLStore) TransitionPayment(ctx context.Context, id string, from []domain.PaymentStatus, to domain.PaymentStatus) (bool, error) {
	return s.payments.Transition(ctx, id, from, to)
}

func (s *MySQLStore) MarkPaymentRefunded(ctx context.Context, id string, amount decimal.Decimal) (bool, error) {
	return s.payments.MarkRefunded(ctx, id, amount)
}

func (s *MySQLStore) SetPaymentInitReference(ctx context.Context, id, accessCode string) error {
	return s.payments.SetInitReference(ctx, id, accessCode)
}

func (s *MySQLStore) ClaimRefund(ctx context.Context, id string) (bool, error) {
	return s.payments.ClaimRefund(ctx, id)
}

func (s *MySQLStore) ClaimTransfer(ctx context.Context, id, reference string) (bool, error) {
	return s.payments.ClaimTransfer(ctx, id, reference)
}

func (s *MySQLStore) ClearTransfer(ctx context.Context, id, reference string) (bool, error) {
	return s.payments.ClearTransfer(ctx, id, reference)
}

func (s *MySQLStore) DeletePayment(ctx context.Context, id string) (bool, error) {
	return s.payments.Delete(ctx, id)
}

func (s *MySQLStore) SaveRecipient(ctx context.Context, rc models.TransferRecipient) error {
	return s.recipients.Save(ctx, rc)
}

func (s *MySQLStore) ListRecipients(ctx context.Context, transporterID string) ([]models.TransferRecipient, error) {
	return s.recipients.ListByTransporter(ctx, transporterID)
}

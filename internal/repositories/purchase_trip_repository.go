package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	intdb "freight-backend/internal/db"
	"freight-backend/internal/domain"
	"freight-backend/internal/domain/models"
)

// PurchaseTripRepository persists reservations. active_key is non-NULL only
// while the reservation is active, and its UNIQUE index rejects a second
// active reservation for the same (user, trip).
type PurchaseTripRepository struct {
	DB intdb.DBTX
}

func (r PurchaseTripRepository) db() intdb.DBTX { return pick(r.DB) }

const purchaseTripColumns = `id, trip_id, user_id, transporter_id, amount, status, created_at, updated_at`

func scanPurchaseTrip(row interface{ Scan(...any) error }) (models.PurchaseTrip, error) {
	var (
		p      models.PurchaseTrip
		status string
	)
	if err := row.Scan(&p.ID, &p.TripID, &p.UserID, &p.TransporterID, &p.Amount, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.PurchaseTrip{}, err
	}
	p.Status = domain.ReservationStatus(status)
	return p, nil
}

func (r PurchaseTripRepository) Create(ctx context.Context, p models.PurchaseTrip) error {
	db := r.db()
	if db == nil {
		return fmt.Errorf("db tidak tersedia")
	}
	var activeKey any
	if p.Status.Active() {
		activeKey = models.ActiveKey(p.UserID, p.TripID)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO purchase_trips (id, trip_id, user_id, transporter_id, amount, status, active_key, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ID, p.TripID, p.UserID, p.TransporterID, p.Amount, string(p.Status), activeKey, p.CreatedAt, p.CreatedAt,
	)
	if err != nil {
		if intdb.IsDuplicateKey(err) {
			return domain.ConflictError{Resource: "reservation", Msg: "reservasi aktif untuk trip ini sudah ada", Err: err}
		}
		return fmt.Errorf("insert purchase trip: %w", err)
	}
	return nil
}

func (r PurchaseTripRepository) GetByID(ctx context.Context, id string) (models.PurchaseTrip, error) {
	return r.getOne(ctx, `SELECT `+purchaseTripColumns+` FROM purchase_trips WHERE id=? LIMIT 1`, id)
}

// LatestAwaitingByTrip returns the newest reservation still awaiting
// confirmation for tripID.
func (r PurchaseTripRepository) LatestAwaitingByTrip(ctx context.Context, tripID string) (models.PurchaseTrip, error) {
	return r.getOne(ctx, `
		SELECT `+purchaseTripColumns+` FROM purchase_trips
		WHERE trip_id=? AND status=?
		ORDER BY created_at DESC LIMIT 1`, tripID, string(domain.ReservationAwaitingConfirmation))
}

func (r PurchaseTripRepository) getOne(ctx context.Context, query string, args ...any) (models.PurchaseTrip, error) {
	db := r.db()
	if db == nil {
		return models.PurchaseTrip{}, fmt.Errorf("db tidak tersedia")
	}
	p, err := scanPurchaseTrip(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PurchaseTrip{}, domain.NotFoundError{Resource: "purchase trip", Err: err}
		}
		return models.PurchaseTrip{}, fmt.Errorf("get purchase trip: %w", err)
	}
	return p, nil
}

// Transition moves the reservation to `to` only when its current status is
// one of from. Leaving the active set frees the (user, trip) slot.
func (r PurchaseTripRepository) Transition(ctx context.Context, id string, from []domain.ReservationStatus, to domain.ReservationStatus) (bool, error) {
	db := r.db()
	if db == nil {
		return false, fmt.Errorf("db tidak tersedia")
	}
	if len(from) == 0 {
		return false, fmt.Errorf("transition without source status")
	}
	set := `status=?, updated_at=NOW()`
	if !to.Active() {
		set += `, active_key=NULL`
	}
	args := append([]any{string(to), id}, stringsOf(from)...)
	res, err := db.ExecContext(ctx, `UPDATE purchase_trips SET `+set+` WHERE id=? AND status IN (`+placeholders(len(from))+`)`, args...)
	if err != nil {
		return false, fmt.Errorf("transition purchase trip: %w", err)
	}
	return intdb.Affected(res) == 1, nil
}

// Delete removes a reservation that never held the trip. Booked, fulfilled
// and refunded reservations are left alone.
func (r PurchaseTripRepository) Delete(ctx context.Context, id string) (bool, error) {
	db := r.db()
	if db == nil {
		return false, fmt.Errorf("db tidak tersedia")
	}
	args := append([]any{id}, stringsOf(domain.DiscardableReservations)...)
	res, err := db.ExecContext(ctx, `DELETE FROM purchase_trips WHERE id=? AND status IN (`+placeholders(len(domain.DiscardableReservations))+`)`, args...)
	if err != nil {
		return false, fmt.Errorf("delete purchase trip: %w", err)
	}
	return intdb.Affected(res) == 1, nil
}

// ListExpired returns reservations still awaiting confirmation that were
// created before `before`, oldest first. Reservations whose payment already
// captured money are waiting on the transporter, not the customer, and are
// excluded.
func (r PurchaseTripRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]models.PurchaseTrip, error) {
	db := r.db()
	if db == nil {
		return nil, fmt.Errorf("db tidak tersedia")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+purchaseTripColumns+` FROM purchase_trips
		WHERE status=? AND created_at < ?
		  AND NOT EXISTS (
			SELECT 1 FROM payments
			WHERE payments.purchase_trip_id=purchase_trips.id AND payments.status<>?
		  )
		ORDER BY created_at ASC LIMIT ?`,
		string(domain.ReservationAwaitingConfirmation), before, string(domain.PaymentPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list expired purchase trips: %w", err)
	}
	defer rows.Close()

	out := []models.PurchaseTrip{}
	for rows.Next() {
		p, err := scanPurchaseTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase trip: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	intdb "freight-backend/internal/db"
	"freight-backend/internal/domain"
	"freight-backend/internal/domain/models"
)

type TripRepository struct {
	DB intdb.DBTX
}

func (r TripRepository) db() intdb.DBTX { return pick(r.DB) }

func (r TripRepository) GetByID(ctx context.Context, id string) (models.Trip, error) {
	if id == "" {
		return models.Trip{}, domain.ValidationError{Field: "trip_id", Msg: "id tidak valid"}
	}
	db := r.db()
	if db == nil {
		return models.Trip{}, fmt.Errorf("db tidak tersedia")
	}

	var (
		t         models.Trip
		departure sql.NullTime
		arrival   sql.NullTime
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, COALESCE(origin,''), COALESCE(destination,''), departure_at, arrival_at,
		       price, transporter_id, is_booked, created_at, updated_at
		FROM trips
		WHERE id=? LIMIT 1`, id).Scan(
		&t.ID, &t.Origin, &t.Destination, &departure, &arrival,
		&t.Price, &t.TransporterID, &t.IsBooked, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Trip{}, domain.NotFoundError{Resource: "trip", Err: err}
		}
		return models.Trip{}, fmt.Errorf("get trip: %w", err)
	}
	if departure.Valid {
		t.DepartureAt = departure.Time
	}
	if arrival.Valid {
		t.ArrivalAt = arrival.Time
	}
	return t, nil
}

// MarkBooked flips is_booked in a single conditional update. False means
// the trip was already booked (or does not exist).
func (r TripRepository) MarkBooked(ctx context.Context, id string) (bool, error) {
	db := r.db()
	if db == nil {
		return false, fmt.Errorf("db tidak tersedia")
	}
	res, err := db.ExecContext(ctx, `UPDATE trips SET is_booked=1, updated_at=NOW() WHERE id=? AND is_booked=0`, id)
	if err != nil {
		return false, fmt.Errorf("mark trip booked: %w", err)
	}
	return intdb.Affected(res) == 1, nil
}

// Release clears is_booked unless another reservation (other than
// exceptPurchaseTripID) still holds the trip.
func (r TripRepository) Release(ctx context.Context, id, exceptPurchaseTripID string) (bool, error) {
	db := r.db()
	if db == nil {
		return false, fmt.Errorf("db tidak tersedia")
	}
	res, err := db.ExecContext(ctx, `
		UPDATE trips SET is_booked=0, updated_at=NOW()
		WHERE id=? AND is_booked=1
		  AND NOT EXISTS (
			SELECT 1 FROM purchase_trips
			WHERE trip_id=? AND id<>? AND status IN (`+placeholders(len(holdingStatuses))+`)
		  )`,
		append([]any{id, id, exceptPurchaseTripID}, stringsOf(holdingStatuses)...)...,
	)
	if err != nil {
		return false, fmt.Errorf("release trip: %w", err)
	}
	return intdb.Affected(res) == 1, nil
}

var holdingStatuses = []domain.ReservationStatus{
	domain.ReservationBooked,
	domain.ReservationDispatched,
	domain.ReservationDelivered,
}

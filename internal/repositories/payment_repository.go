package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	intdb "freight-backend/internal/db"
	"freight-backend/internal/domain"
	"freight-backend/internal/domain/models"

	"github.com/shopspring/decimal"
)

// PaymentRepository persists gateway payments. Status changes are
// conditional on the current status so replays are detectable no-ops.
type PaymentRepository struct {
	DB intdb.DBTX
}

func (r PaymentRepository) db() intdb.DBTX { return pick(r.DB) }

const paymentColumns = `
	id, user_id, transporter_id, trip_id, purchase_trip_id, total_amount,
	paystack_reference, COALESCE(paystack_init_reference,''), status, refunded_amount,
	COALESCE(transfer_reference,''), authorized_at, released_at, refunded_at, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (models.Payment, error) {
	var (
		p                              models.Payment
		status                         string
		authorized, released, refunded sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.TransporterID, &p.TripID, &p.PurchaseTripID, &p.TotalAmount,
		&p.PaystackReference, &p.PaystackInitReference, &status, &p.RefundedAmount,
		&p.TransferReference, &authorized, &released, &refunded, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return models.Payment{}, err
	}
	p.Status = domain.PaymentStatus(status)
	p.AuthorizedAt = timePtr(authorized)
	p.ReleasedAt = timePtr(released)
	p.RefundedAt = timePtr(refunded)
	return p, nil
}

func (r PaymentRepository) Create(ctx context.Context, p models.Payment) error {
	db := r.db()
	if db == nil {
		return fmt.Errorf("db tidak tersedia")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO payments (id, user_id, transporter_id, trip_id, purchase_trip_id, total_amount,
		                      paystack_reference, status, refunded_amount, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,0,?,?)`,
		p.ID, p.UserID, p.TransporterID, p.TripID, p.PurchaseTripID, p.TotalAmount,
		p.PaystackReference, string(p.Status), p.CreatedAt, p.CreatedAt,
	)
	if err != nil {
		if intdb.IsDuplicateKey(err) {
			return domain.ConflictError{Resource: "payment", Msg: "referensi pembayaran sudah dipakai", Err: err}
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r PaymentRepository) GetByID(ctx context.Context, id string) (models.Payment, error) {
	return r.getOne(ctx, `WHERE id=?`, id)
}

func (r PaymentRepository) GetByReference(ctx context.Context, reference string) (models.Payment, error) {
	return r.getOne(ctx, `WHERE paystack_reference=?`, reference)
}

// GetByPurchaseTripID returns the newest payment for a reservation.
func (r PaymentRepository) GetByPurchaseTripID(ctx context.Context, purchaseTripID string) (models.Payment, error) {
	return r.getOne(ctx, `WHERE purchase_trip_id=? ORDER BY created_at DESC`, purchaseTripID)
}

func (r PaymentRepository) GetByTransferReference(ctx context.Context, reference string) (models.Payment, error) {
	return r.getOne(ctx, `WHERE transfer_reference=?`, reference)
}

func (r PaymentRepository) getOne(ctx context.Context, where string, args ...any) (models.Payment, error) {
	db := r.db()
	if db == nil {
		return models.Payment{}, fmt.Errorf("db tidak tersedia")
	}
	p, err := scanPayment(db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments `+where+` LIMIT 1`, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Payment{}, domain.NotFoundError{Resource: "payment", Err: err}
		}
		return models.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// Transition applies from -> to when the stored status is one of from.
func (r PaymentRepository) Transition(ctx context.Context, id string, from []domain.PaymentStatus, to domain.PaymentStatus) (bool, error) {
	db := r.db()
	if db == nil {
		return false, fmt.Errorf("db tidak tersedia")
	}
	if len(from) == 0 {
		return false, fmt.Errorf("transition without source status")
	}
	set := `status=?, updated_at=NOW()`
	switch to {
	case domain.PaymentAuthorized:
		set += `, authorized_at=NOW()`
	case domain.PaymentReleased:
		set += `, released_at=NOW()`
	}
	args := append([]any{string(to), id}, stringsOf(from)...)
	res, err := db.ExecContext(ctx, `UPDATE payments SET `+set+` WHERE id=? AND status IN (`+placeholders(len(from))+`)`, args...)
	if err != nil {
		return false, fmt.Errorf("transition payment: %w", err)
	}
	return intdb.Affected(res) == 1, nil
}

// MarkRefunded settles a claimed refund.
func (r PaymentRepository) MarkRefunded(ctx context.Context, id string, amount decimal.Decimal) (bool, error) {
	db := r.db()
	if db == nil {
		return false, fmt.Errorf("db tidak tersedia")
	}
	res, err := db.ExecContext(ctx, `
		UPDATE payments
		SET status=?, refunded_amount=?, refunded_at=NOW(), updated_at=NOW()
		WHERE id=? AND status=?`,
		string(domain.PaymentRefunded), amount, id, string(domain.PaymentRefundPending),
	)
	if err != nil {
		return false, fmt.Errorf("mark payment refunded: %w", err)
	}
	return intdb.Affected(res) == 1, nil
}

func (r PaymentRepository) SetInitReference(ctx context.Context, id, accessCode string) error {
	db := r.db()
	if db == nil {
		return fmt.Errorf("db tidak tersedia")
	}
	if _, err := db.ExecContext(ctx, `UPDATE payments SET paystack_init_reference=?, updated_at=NOW() WHERE id=?`, intdb.NullIfEmpty(accessCode), id); err != nil {
		return fmt.Errorf("set init reference: %w", err)
	}
	return nil
}

// ClaimTransfer records the payout reference once. False means a payout
// was already requested or the payment is no longer authorized.
func (r PaymentRepository) ClaimTransfer(ctx context.Context, id, reference string) (bool, error) {
	db := r.db()
	if db == nil {
		return false, fmt.Errorf("db tidak tersedia")
	}
	res, err := db.ExecContext(ctx, `
		UPDATE payments SET transfer_reference=?, updated_at=NOW()
		WHERE id=? AND status=? AND transfer_reference IS NULL`,
		reference, id, string(domain.PaymentAuthorized),
	)
	if err != nil {
		if intdb.IsDuplicateKey(err) {
			return false, domain.ConflictError{Resource: "transfer", Msg: "referensi transfer sudah dipakai", Err: err}
		}
		return false, fmt.Errorf("claim transfer: %w", err)
	}
	return intdb.Affected(res) == 1, nil
}

// ClearTransfer drops the payout claim if it still carries reference.
func (r PaymentRepository) ClearTransfer(ctx context.Context, id, reference string) (bool, error) {
	db := r.db()
	if db == nil {
		return false, fmt.Errorf("db tidak tersedia")
	}
	res, err := db.ExecContext(ctx, `
		UPDATE payments SET transfer_reference=NULL, updated_at=NOW()
		WHERE id=? AND transfer_reference=? AND status=?`,
		id, reference, string(domain.PaymentAuthorized),
	)
	if err != nil {
		return false, fmt.Errorf("clear transfer: %w", err)
	}
	return intdb.Affected(res) == 1, nil
}

// ClaimRefund moves a refundable payment to refund_pending. A payment with an
// outstanding payout claim is never claimed.
func (r PaymentRepository) ClaimRefund(ctx context.Context, id string) (bool, error) {
	db := r.db()
	if db == nil {
		return false, fmt.Errorf("db tidak tersedia")
	}
	res, err := db.ExecContext(ctx, `
		UPDATE payments SET status=?, updated_at=NOW()
		WHERE id=? AND status IN (?,?) AND transfer_reference IS NULL`,
		string(domain.PaymentRefundPending), id,
		string(domain.PaymentAuthorized), string(domain.PaymentRefundFailed),
	)
	if err != nil {
		return false, fmt.Errorf("claim refund: %w", err)
	}
	return intdb.Affected(res) == 1, nil
}

// Delete removes the payment only while it is still pending.
func (r PaymentRepository) Delete(ctx context.Context, id string) (bool, error) {
	db := r.db()
	if db == nil {
		return false, fmt.Errorf("db tidak tersedia")
	}
	res, err := db.ExecContext(ctx, `DELETE FROM payments WHERE id=? AND status=?`, id, string(domain.PaymentPending))
	if err != nil {
		return false, fmt.Errorf("delete payment: %w", err)
	}
	return intdb.Affected(res) == 1, nil
}

package repositories

import (
	"context"
	"fmt"

	intdb "freight-backend/internal/db"
	"freight-backend/internal/domain/models"
)

type RecipientRepository struct {
	DB intdb.DBTX
}

func (r RecipientRepository) db() intdb.DBTX { return pick(r.DB) }

// Save upserts the recipient keyed by (transporter_id, recipient_code).
func (r RecipientRepository) Save(ctx context.Context, rc models.TransferRecipient) error {
	db := r.db()
	if db == nil {
		return fmt.Errorf("db tidak tersedia")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO transfer_recipients (id, transporter_id, recipient_code, account_name, account_number, bank_code, created_at)
		VALUES (?,?,?,?,?,?,?)
		ON DUPLICATE KEY UPDATE account_name=VALUES(account_name), account_number=VALUES(account_number), bank_code=VALUES(bank_code)`,
		rc.ID, rc.TransporterID, rc.RecipientCode, rc.AccountName, rc.AccountNumber, rc.BankCode, rc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save transfer recipient: %w", err)
	}
	return nil
}

func (r RecipientRepository) ListByTransporter(ctx context.Context, transporterID string) ([]models.TransferRecipient, error) {
	db := r.db()
	if db == nil {
		return nil, fmt.Errorf("db tidak tersedia")
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, transporter_id, recipient_code, account_name, account_number, bank_code, created_at
		FROM transfer_recipients WHERE transporter_id=? ORDER BY created_at DESC`, transporterID)
	if err != nil {
		return nil, fmt.Errorf("list transfer recipients: %w", err)
	}
	defer rows.Close()

	out := []models.TransferRecipient{}
	for rows.Next() {
		var rc models.TransferRecipient
		if err := rows.Scan(&rc.ID, &rc.TransporterID, &rc.RecipientCode, &rc.AccountName, &rc.AccountNumber, &rc.BankCode, &rc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer recipient: %w", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

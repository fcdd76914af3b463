package db

import (
	"context"
	"database/sql"
	"fmt"
)

func HasTable(ctx context.Context, q DBTX, table string) bool {
	var name sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		LIMIT 1
	`, table).Scan(&name)
	if err != nil {
		return false
	}
	return name.Valid && name.String != ""
}

type tableDDL struct {
	name string
	ddl  string
}

var ledgerTables = []tableDDL{
	{"trips", `
CREATE TABLE IF NOT EXISTS trips (
	id VARCHAR(64) PRIMARY KEY,
	origin VARCHAR(255) NOT NULL DEFAULT '',
	destination VARCHAR(255) NOT NULL DEFAULT '',
	departure_at DATETIME NULL,
	arrival_at DATETIME NULL,
	price DECIMAL(14,2) NOT NULL DEFAULT 0,
	transporter_id VARCHAR(64) NOT NULL,
	is_booked TINYINT(1) NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	KEY idx_transporter (transporter_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"purchase_trips", `
CREATE TABLE IF NOT EXISTS purchase_trips (
	id VARCHAR(64) PRIMARY KEY,
	trip_id VARCHAR(64) NOT NULL,
	user_id VARCHAR(64) NOT NULL,
	transporter_id VARCHAR(64) NOT NULL,
	amount DECIMAL(14,2) NOT NULL,
	status VARCHAR(32) NOT NULL,
	active_key VARCHAR(160) NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	UNIQUE KEY uniq_active_user_trip (active_key),
	KEY idx_trip_status (trip_id, status),
	KEY idx_status_created (status, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"payments", `
CREATE TABLE IF NOT EXISTS payments (
	id VARCHAR(64) PRIMARY KEY,
	user_id VARCHAR(64) NOT NULL,
	transporter_id VARCHAR(64) NOT NULL,
	trip_id VARCHAR(64) NOT NULL,
	purchase_trip_id VARCHAR(64) NOT NULL,
	total_amount DECIMAL(14,2) NOT NULL,
	paystack_reference VARCHAR(128) NOT NULL,
	paystack_init_reference VARCHAR(128) NULL,
	status VARCHAR(32) NOT NULL,
	refunded_amount DECIMAL(14,2) NOT NULL DEFAULT 0,
	transfer_reference VARCHAR(128) NULL,
	authorized_at DATETIME NULL,
	released_at DATETIME NULL,
	refunded_at DATETIME NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	UNIQUE KEY uniq_reference (paystack_reference),
	UNIQUE KEY uniq_transfer_reference (transfer_reference),
	KEY idx_purchase_trip (purchase_trip_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"transfer_recipients", `
CREATE TABLE IF NOT EXISTS transfer_recipients (
	id VARCHAR(64) PRIMARY KEY,
	transporter_id VARCHAR(64) NOT NULL,
	recipient_code VARCHAR(64) NOT NULL,
	account_name VARCHAR(255) NOT NULL DEFAULT '',
	account_number VARCHAR(32) NOT NULL DEFAULT '',
	bank_code VARCHAR(16) NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE KEY uniq_transporter_recipient (transporter_id, recipient_code)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
}

// LedgerTables names the tables EnsureSchema manages, in creation order.
func LedgerTables() []string {
	out := make([]string, 0, len(ledgerTables))
	for _, t := range ledgerTables {
		out = append(out, t.name)
	}
	return out
}

// EnsureSchema creates missing ledger tables. Existing tables are left alone.
func EnsureSchema(ctx context.Context, q DBTX) ([]string, error) {
	created := []string{}
	for _, t := range ledgerTables {
		if HasTable(ctx, q, t.name) {
			continue
		}
		if _, err := q.ExecContext(ctx, t.ddl); err != nil {
			return created, fmt.Errorf("create table %s: %w", t.name, err)
		}
		created = append(created, t.name)
	}
	return created, nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

func TestEnsureSchemaCreatesOnlyMissingTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("information_schema\\.tables").WithArgs("trips").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("trips"))
	mock.ExpectQuery("information_schema\\.tables").WithArgs("purchase_trips").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS purchase_trips").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("information_schema\\.tables").WithArgs("payments").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("payments"))
	mock.ExpectQuery("information_schema\\.tables").WithArgs("transfer_recipients").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS transfer_recipients").
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := EnsureSchema(context.Background(), db)
	if err != nil {
		t.Fatalf("EnsureSchema error: %v", err)
	}
	if len(created) != 2 || created[0] != "purchase_trips" || created[1] != "transfer_recipients" {
		t.Fatalf("unexpected created tables: %v", created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithinTransactionRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE trips").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	errBoom := context.Canceled
	err = WithinTransaction(context.Background(), db, func(tx *sql.Tx) error {
		_, _ = tx.ExecContext(context.Background(), "UPDATE trips SET is_booked=1")
		return errBoom
	})
	if err != errBoom {
		t.Fatalf("expected callback error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithinTransactionCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE trips").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = WithinTransaction(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), "UPDATE trips SET is_booked=1")
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	if !IsDuplicateKey(dup) {
		t.Fatalf("wrapped 1062 should be detected")
	}
	if IsDuplicateKey(&mysql.MySQLError{Number: 1213}) {
		t.Fatalf("deadlock is not a duplicate key")
	}
	if IsDuplicateKey(nil) {
		t.Fatalf("nil is not a duplicate key")
	}
}

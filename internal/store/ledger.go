package store

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"hrledger/internal/ledger"
)

// Ledger is the Postgres adapter behind the attendance, leave, payroll and employee
// repository ports. Every statement is a single conditional read or write; company
// scoping joins through employees.
type Ledger struct {
	db *sql.DB
}

// NewLedger wraps an open connection pool.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// wrap maps driver errors onto the ledger taxonomy. sql.ErrNoRows becomes notFound.
func wrap(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) && notFound != nil {
		return notFound
	}
	return ledger.RepositoryFailure(op, err)
}

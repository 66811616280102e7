package db

import (
	"context"
)

// Database is the handle repositories hold. It hides *sql.DB so tests can
// swap in sqlmock without touching repository code.
type Database interface {
	Querier

	// Transaction runs fn in a transaction, committing when fn returns nil.
	Transaction(ctx context.Context, fn func(tx Transaction) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Transaction is a Querier bound to an open transaction.
type Transaction interface {
	Querier
	Commit() error
	Rollback() error
}

// Rows is an iterator over a query result.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Row is the result of QueryRow.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result summarizes an Exec.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

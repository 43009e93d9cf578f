package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/phrazzld/shelfsync/internal/platform/logger"
)

// TxFn is a function that executes within a database transaction.
// The transaction is committed if the function returns nil, or rolled back
// if it returns an error.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// TxRunner executes a function inside a database transaction. Services
// depend on this interface rather than *sql.DB so tests can substitute a
// pass-through runner.
type TxRunner interface {
	RunInTransaction(ctx context.Context, fn TxFn) error
}

type sqlTxRunner struct {
	db *sql.DB
}

// NewTxRunner returns a TxRunner over db.
func NewTxRunner(db *sql.DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r *sqlTxRunner) RunInTransaction(ctx context.Context, fn TxFn) error {
	return RunInTransaction(ctx, r.db, fn)
}

// RunInTransaction executes the given function within a database transaction.
// If the function returns an error, the transaction is rolled back;
// otherwise it is committed. Panics roll back before re-panicking.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", "error", err)
		return fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to roll back transaction after panic",
					"error", rbErr, "panic", p)
			}
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("failed to roll back transaction",
				"rollback_error", rbErr, "error", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", "error", err)
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}

	return nil
}

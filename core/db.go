package core

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx,
	// so repositories can run inside or outside of a transaction.
	DBExecutor interface {
		sqlx.ExtContext
	}

	// Transactor runs fn as a single unit of work.
	// Any error returned by fn (or a panic) rolls back every write fn made.
	Transactor interface {
		InTx(ctx context.Context, fn func(exec DBExecutor) error) error
	}
)

package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/storage/database"
)

// pq error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type repository struct {
	db *database.DB
}

// getExec returns the executor the caller passed in (usually a transaction) or the DB itself.
func (repo repository) getExec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return repo.db
}

func trapNoRowsErr(err error, notFoundErr error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFoundErr
	}
	return err
}

func hasPQCode(err error, code string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && string(pqErr.Code) == code
}

// trapConstraintErr maps unique violations to conflictErr and foreign key violations to missingErr.
func trapConstraintErr(err error, conflictErr, missingErr error) error {
	switch {
	case conflictErr != nil && hasPQCode(err, uniqueViolation):
		return conflictErr
	case missingErr != nil && hasPQCode(err, foreignKeyViolation):
		return missingErr
	}
	return err
}

// trapForeignKeyErr maps a foreign key violation to the error registered for its constraint.
func trapForeignKeyErr(err error, byConstraint map[string]error) error {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || string(pqErr.Code) != foreignKeyViolation {
		return err
	}
	if missingErr, ok := byConstraint[pqErr.Constraint]; ok {
		return missingErr
	}
	return err
}

// requireAffected returns notFoundErr when res reports no affected rows.
func requireAffected(res sql.Result, err error, notFoundErr error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}

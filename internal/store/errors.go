package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// RunExistsError is returned when creating or importing a run whose
// run_id is already present.
type RunExistsError struct {
	RunID string
}

func (e *RunExistsError) Error() string {
	return fmt.Sprintf("run %s already exists", e.RunID)
}

// RunNotFoundError is returned when an operation targets a run_id with
// no run row.
type RunNotFoundError struct {
	RunID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run %s not found", e.RunID)
}

// SequenceConflictError indicates a concurrent writer advanced the run
// between seq allocation and insert. The store is single-writer per run;
// seeing this error means that contract was broken by the caller.
type SequenceConflictError struct {
	RunID string
	Seq   int64
}

func (e *SequenceConflictError) Error() string {
	return fmt.Sprintf("sequence conflict on run %s at seq %d", e.RunID, e.Seq)
}

// IsRunExists reports whether the error chain contains a RunExistsError.
func IsRunExists(err error) bool {
	var re *RunExistsError
	return errors.As(err, &re)
}

// IsRunNotFound reports whether the error chain contains a RunNotFoundError.
func IsRunNotFound(err error) bool {
	var rnf *RunNotFoundError
	return errors.As(err, &rnf)
}

// IsSequenceConflict reports whether the error chain contains a
// SequenceConflictError.
func IsSequenceConflict(err error) bool {
	var sc *SequenceConflictError
	return errors.As(err, &sc)
}

// isUniqueViolation reports whether err is a SQLite unique or primary
// key constraint violation.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

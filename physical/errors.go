package physical

import "errors"

var (
	// ErrConditionFailed reports that a conditional write's precondition
	// did not hold. It is never retried: a failed precondition is a
	// semantically meaningful outcome, not a transient fault.
	ErrConditionFailed = errors.New("conditional check failed")

	// ErrTableExists reports a CreateTable against an existing table.
	ErrTableExists = errors.New("table already exists")

	// ErrTableNotFound reports an operation against a missing table.
	ErrTableNotFound = errors.New("table not found")

	// ErrTableStateTimeout reports that a table did not reach its target
	// state before the polling deadline elapsed.
	ErrTableStateTimeout = errors.New("timed out waiting for table state")
)

// Package sqlguard validates model-generated candidate queries before they
// may touch the database: single-statement SELECT shape, table allow-listing,
// tenant-scope enforcement over the WHERE tree, and injection heuristics on
// string literals. Nothing executes without an accepted verdict.
package sqlguard

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax means the candidate did not parse as SQL at all.
	ErrSyntax = errors.New("query is not valid SQL")

	// ErrUnsafeOperation means the statement is not a plain SELECT or uses
	// a construct the validator cannot reason about.
	ErrUnsafeOperation = errors.New("query contains an unsafe operation")

	// ErrMultipleStatements means more than one statement was supplied.
	ErrMultipleStatements = errors.New("multiple SQL statements are not allowed")

	// ErrMissingTenantScope means the WHERE clause does not provably
	// restrict every reachable row to the caller's tenant scope and no
	// unambiguous rewrite was possible.
	ErrMissingTenantScope = errors.New("query does not restrict rows to the caller's tenant scope")

	// ErrSuspiciousLiteral means a string literal matched a SQL injection
	// fingerprint.
	ErrSuspiciousLiteral = errors.New("query literal matches an injection pattern")
)

// DisallowedTableError reports a table reference outside the allow-list.
type DisallowedTableError struct {
	Table string
}

func (e *DisallowedTableError) Error() string {
	return fmt.Sprintf("table %q is not allow-listed", e.Table)
}

// SuspiciousLiteralError carries the libinjection fingerprint of the
// matching literal. It unwraps to ErrSuspiciousLiteral; the literal value
// itself is deliberately omitted from the message.
type SuspiciousLiteralError struct {
	Fingerprint string
}

func (e *SuspiciousLiteralError) Error() string {
	return fmt.Sprintf("query literal matches injection fingerprint %q", e.Fingerprint)
}

func (e *SuspiciousLiteralError) Unwrap() error {
	return ErrSuspiciousLiteral
}

package domain

import (
	"fmt"
	"strings"
)

// ValidationError indicates malformed input to the Normalizer. The cycle is
// rejected; the orchestration loop keeps running.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// InvariantError indicates an internal consistency violation (e.g. a stop
// loss computed on the profitable side of entry). The cycle is aborted and
// no order or shadow trade is produced.
type InvariantError struct {
	Check  string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Check, e.Detail)
}

// StateError indicates an attempted transition on a terminal entity, such as
// closing an already-closed shadow trade. The operation is dropped and the
// ledger left unchanged.
type StateError struct {
	Entity string
	ID     string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("illegal state transition on %s %s: %s", e.Entity, e.ID, e.Reason)
}

// AssertionError carries the accumulated correctness-assertion failures of an
// exhausted inference retry loop. The shadow cycle is skipped; the live path
// is unaffected.
type AssertionError struct {
	Attempts int
	Failures []string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("inference assertions failed after %d attempt(s): %s",
		e.Attempts, strings.Join(e.Failures, "; "))
}

// Package commit is the Commit Engine: the strong-consistency write path
// that serializes concurrent mutations to one edge identity through CAS on
// its snapshot-edge cell, then applies index mutations and degree
// increments outside the lock.
package commit

import "fmt"

// Outcome is the small integer result code a commit attempt resolves to:
// zero means success, non-zero distinguishes the ways an attempt can fail
// short of a hard error. These double as the retry predicate driving the
// caller's retry harness.
type Outcome uint8

const (
	OutcomeSuccess Outcome = iota
	OutcomeLockContended
	OutcomeMutateFailed
	OutcomeReleaseFailed
	OutcomeIncrementFailed
	OutcomeLockHeldByOther
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeLockContended:
		return "lock_contended"
	case OutcomeMutateFailed:
		return "mutate_failed"
	case OutcomeReleaseFailed:
		return "release_failed"
	case OutcomeIncrementFailed:
		return "increment_failed"
	case OutcomeLockHeldByOther:
		return "lock_held_by_other"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// Retryable reports whether the caller's retry harness should retry an
// attempt that returned this outcome rather than surfacing it as final.
func (o Outcome) Retryable() bool {
	switch o {
	case OutcomeLockContended, OutcomeLockHeldByOther, OutcomeMutateFailed, OutcomeReleaseFailed, OutcomeIncrementFailed:
		return true
	default:
		return false
	}
}

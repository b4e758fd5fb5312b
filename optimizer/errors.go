package optimizer

import (
	"fmt"
	"strings"
)

// ViolationKind identifies which constraint a lineup broke. Callers use the
// kind to target repair.
type ViolationKind string

const (
	ViolationDuplicatePlayer    ViolationKind = "duplicate_player"
	ViolationSlotCount          ViolationKind = "slot_count"
	ViolationIneligiblePosition ViolationKind = "ineligible_position"
	ViolationLockMissing        ViolationKind = "lock_missing"
	ViolationExcludePresent     ViolationKind = "exclude_present"
	ViolationSalaryExceeded     ViolationKind = "salary_exceeded"
	ViolationTeamCapExceeded    ViolationKind = "team_cap_exceeded"
)

// ConstraintViolation reports the first rule a lineup broke, with enough
// structure for the generator to attempt a targeted repair. It is almost
// always handled internally; callers only see one when every generation
// attempt in a request failed.
type ConstraintViolation struct {
	Kind      ViolationKind
	Detail    string
	PlayerIDs []string
}

func (v *ConstraintViolation) Error() string {
	if len(v.PlayerIDs) == 0 {
		return fmt.Sprintf("constraint violation (%s): %s", v.Kind, v.Detail)
	}
	return fmt.Sprintf("constraint violation (%s): %s [players: %s]",
		v.Kind, v.Detail, strings.Join(v.PlayerIDs, ", "))
}

// PoolExhaustedError is the terminal failure for an over-constrained
// request: no valid lineup assembled within the bounded retry budget.
type PoolExhaustedError struct {
	Attempts      int
	Requested     int
	Generated     int
	LastViolation *ConstraintViolation
}

func (e *PoolExhaustedError) Error() string {
	msg := fmt.Sprintf("candidate pool exhausted: %d of %d lineups after %d attempts",
		e.Generated, e.Requested, e.Attempts)
	if e.LastViolation != nil {
		msg += ": last failure: " + e.LastViolation.Error()
	}
	return msg
}

func (e *PoolExhaustedError) Unwrap() error {
	if e.LastViolation == nil {
		return nil
	}
	return e.LastViolation
}

// ScoringUnavailableError means the external scoring collaborator failed
// for an entire generation. Isolated failures degrade individual lineups to
// heuristic-only scoring instead; this error fires only when the whole
// search would silently degrade.
type ScoringUnavailableError struct {
	Generation int
	Failures   int
	Err        error
}

func (e *ScoringUnavailableError) Error() string {
	return fmt.Sprintf("scoring model unavailable for entire generation %d (%d failures): %v",
		e.Generation, e.Failures, e.Err)
}

func (e *ScoringUnavailableError) Unwrap() error {
	return e.Err
}

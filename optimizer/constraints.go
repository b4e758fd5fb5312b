package optimizer

import (
	"fmt"

	"github.com/stitts-dev/lineup-engine/types"
)

// validateLineup checks a candidate against the request's constraint spec.
// Pure function. Checks run in a fixed order and the first broken rule is
// returned, so repair can target exactly one violation kind at a time:
// duplicates, slot counts and eligibility, locks, excludes, salary cap,
// team cap.
func validateLineup(l *lineup, spec *types.ConstraintSpec) *ConstraintViolation {
	if v := checkDuplicates(l); v != nil {
		return v
	}
	if v := checkSlots(l, spec); v != nil {
		return v
	}
	if v := checkLocks(l, spec); v != nil {
		return v
	}
	if v := checkExcludes(l, spec); v != nil {
		return v
	}
	if v := checkSalaryCap(l, spec); v != nil {
		return v
	}
	return checkTeamCap(l, spec)
}

func checkDuplicates(l *lineup) *ConstraintViolation {
	seen := make(map[string]bool, len(l.players))
	for _, p := range l.players {
		if seen[p.ID] {
			return &ConstraintViolation{
				Kind:      ViolationDuplicatePlayer,
				Detail:    fmt.Sprintf("player %s rostered more than once", p.Name),
				PlayerIDs: []string{p.ID},
			}
		}
		seen[p.ID] = true
	}
	return nil
}

func checkSlots(l *lineup, spec *types.ConstraintSpec) *ConstraintViolation {
	if want := spec.LineupSize(); l.size() != want {
		return &ConstraintViolation{
			Kind:   ViolationSlotCount,
			Detail: fmt.Sprintf("lineup has %d players, spec requires %d", l.size(), want),
		}
	}

	counts := make(map[string]int, len(spec.Slots))
	for i, p := range l.players {
		if !l.slots[i].accepts(p.Position) {
			return &ConstraintViolation{
				Kind: ViolationIneligiblePosition,
				Detail: fmt.Sprintf("player %s (%s) cannot fill slot %s",
					p.Name, p.Position, l.slots[i].name),
				PlayerIDs: []string{p.ID},
			}
		}
		counts[p.Position]++
	}

	for tag, rule := range spec.Slots {
		n := counts[tag]
		if n < rule.Min || n > rule.Max {
			return &ConstraintViolation{
				Kind: ViolationSlotCount,
				Detail: fmt.Sprintf("position %s has %d players, allowed %d-%d",
					tag, n, rule.Min, rule.Max),
			}
		}
	}
	return nil
}

func checkLocks(l *lineup, spec *types.ConstraintSpec) *ConstraintViolation {
	for _, id := range spec.Locked {
		if !l.contains(id) {
			return &ConstraintViolation{
				Kind:      ViolationLockMissing,
				Detail:    "locked player missing from lineup",
				PlayerIDs: []string{id},
			}
		}
	}
	return nil
}

func checkExcludes(l *lineup, spec *types.ConstraintSpec) *ConstraintViolation {
	for _, id := range spec.Excluded {
		if l.contains(id) {
			return &ConstraintViolation{
				Kind:      ViolationExcludePresent,
				Detail:    "excluded player present in lineup",
				PlayerIDs: []string{id},
			}
		}
	}
	return nil
}

func checkSalaryCap(l *lineup, spec *types.ConstraintSpec) *ConstraintViolation {
	if spec.SalaryCap > 0 && l.salary > spec.SalaryCap {
		return &ConstraintViolation{
			Kind:   ViolationSalaryExceeded,
			Detail: fmt.Sprintf("total salary %d exceeds cap %d", l.salary, spec.SalaryCap),
		}
	}
	return nil
}

func checkTeamCap(l *lineup, spec *types.ConstraintSpec) *ConstraintViolation {
	if spec.MaxPerTeam <= 0 {
		return nil
	}
	teamCounts := make(map[string]int)
	for _, p := range l.players {
		if p.Team == "" {
			continue
		}
		teamCounts[p.Team]++
		if teamCounts[p.Team] > spec.MaxPerTeam {
			return &ConstraintViolation{
				Kind: ViolationTeamCapExceeded,
				Detail: fmt.Sprintf("team %s has more than %d players",
					p.Team, spec.MaxPerTeam),
			}
		}
	}
	return nil
}

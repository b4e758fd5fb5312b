package optimizer

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/lineup-engine/types"
)

// salary repair swaps strictly reduce total salary, so the loop terminates
// on its own; the cap is a hard backstop.
const maxRepairSwaps = 32

// populationGenerator assembles constraint-valid lineups from the candidate
// pool. All randomness flows through one rng owned by the caller, so a
// fixed seed reproduces the same draws.
type populationGenerator struct {
	spec            *types.ConstraintSpec
	slotOrder       []slotSpec
	byPosition      map[string][]types.Player
	locked          []types.Player
	lockedSet       map[string]bool
	retryMultiplier int
	rng             *rand.Rand
	log             *logrus.Entry
}

func newPopulationGenerator(pool []types.Player, spec *types.ConstraintSpec, retryMultiplier int, rng *rand.Rand, log *logrus.Entry) (*populationGenerator, error) {
	excluded := make(map[string]bool, len(spec.Excluded))
	for _, id := range spec.Excluded {
		excluded[id] = true
	}

	byPosition := make(map[string][]types.Player)
	byID := make(map[string]types.Player, len(pool))
	for _, p := range pool {
		if excluded[p.ID] {
			continue
		}
		byPosition[p.Position] = append(byPosition[p.Position], p)
		byID[p.ID] = p
	}

	// Deterministic candidate order: projection descending, ID as tiebreak.
	for pos := range byPosition {
		players := byPosition[pos]
		sort.Slice(players, func(i, j int) bool {
			if players[i].ProjectedPoints != players[j].ProjectedPoints {
				return players[i].ProjectedPoints > players[j].ProjectedPoints
			}
			return players[i].ID < players[j].ID
		})
	}

	locked := make([]types.Player, 0, len(spec.Locked))
	lockedSet := make(map[string]bool, len(spec.Locked))
	for _, id := range spec.Locked {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("locked player %s not present in candidate pool", id)
		}
		locked = append(locked, p)
		lockedSet[id] = true
	}

	return &populationGenerator{
		spec:            spec,
		slotOrder:       buildSlotOrder(spec),
		byPosition:      byPosition,
		locked:          locked,
		lockedSet:       lockedSet,
		retryMultiplier: retryMultiplier,
		rng:             rng,
		log:             log,
	}, nil
}

// Generate produces up to k valid lineups within the bounded retry budget.
// A short population is returned with a warning when the pool is tight; the
// error fires only when not a single valid lineup assembled.
func (g *populationGenerator) Generate(k int) ([]*lineup, error) {
	budget := g.retryMultiplier * k
	if budget < k {
		budget = k
	}

	population := make([]*lineup, 0, k)
	var lastViolation *ConstraintViolation
	attempts := 0

	for len(population) < k && attempts < budget {
		attempts++
		l, violation := g.draw()
		if violation != nil {
			lastViolation = violation
			continue
		}
		population = append(population, l)
	}

	if len(population) == 0 {
		return nil, &PoolExhaustedError{
			Attempts:      attempts,
			Requested:     k,
			Generated:     0,
			LastViolation: lastViolation,
		}
	}

	if len(population) < k {
		g.log.WithFields(logrus.Fields{
			"requested": k,
			"generated": len(population),
			"attempts":  attempts,
		}).Warn("Generated short population within retry budget")
	} else {
		g.log.WithFields(logrus.Fields{
			"generated": len(population),
			"attempts":  attempts,
		}).Debug("Initial population generated")
	}
	return population, nil
}

// draw assembles one lineup: locked players seeded first, then each slot in
// deterministic order filled by weighted random selection, flex slots last
// by construction of the slot order.
func (g *populationGenerator) draw() (*lineup, *ConstraintViolation) {
	n := len(g.slotOrder)
	players := make([]types.Player, n)
	filled := make([]bool, n)
	used := make(map[string]bool, n)

	for _, p := range g.locked {
		placed := false
		for i, slot := range g.slotOrder {
			if !filled[i] && slot.accepts(p.Position) {
				players[i] = p
				filled[i] = true
				used[p.ID] = true
				placed = true
				break
			}
		}
		if !placed {
			return nil, &ConstraintViolation{
				Kind:      ViolationSlotCount,
				Detail:    fmt.Sprintf("no open slot accepts locked player %s (%s)", p.Name, p.Position),
				PlayerIDs: []string{p.ID},
			}
		}
	}

	for i, slot := range g.slotOrder {
		if filled[i] {
			continue
		}
		candidates := g.eligible(slot, used)
		if len(candidates) == 0 {
			return nil, &ConstraintViolation{
				Kind:   ViolationSlotCount,
				Detail: fmt.Sprintf("no remaining candidates for slot %s", slot.name),
			}
		}
		pick := g.weightedPick(candidates)
		players[i] = pick
		filled[i] = true
		used[pick.ID] = true
	}

	l := newLineup(players, g.slotOrder)
	if g.spec.SalaryCap > 0 && l.salary > g.spec.SalaryCap {
		if v := g.repairSalary(l, used); v != nil {
			return nil, v
		}
	}

	if v := validateLineup(l, g.spec); v != nil {
		return nil, v
	}
	return l, nil
}

// eligible collects unused pool players the slot accepts, preserving the
// deterministic per-position ordering.
func (g *populationGenerator) eligible(slot slotSpec, used map[string]bool) []types.Player {
	var out []types.Player
	for _, pos := range slot.allowed {
		for _, p := range g.byPosition[pos] {
			if !used[p.ID] {
				out = append(out, p)
			}
		}
	}
	return out
}

// weightedPick selects a candidate with probability proportional to
// projection squared. Squaring biases draws strongly toward high projections
// while preserving randomness; this is a deliberate selection-pressure
// choice, not noise reduction.
func (g *populationGenerator) weightedPick(candidates []types.Player) types.Player {
	total := 0.0
	for _, p := range candidates {
		total += p.ProjectedPoints * p.ProjectedPoints
	}
	if total <= 0 {
		return candidates[g.rng.Intn(len(candidates))]
	}

	r := g.rng.Float64() * total
	for _, p := range candidates {
		r -= p.ProjectedPoints * p.ProjectedPoints
		if r <= 0 {
			return p
		}
	}
	return candidates[len(candidates)-1]
}

// repairSalary walks the lineup back under the cap by swapping the worst
// value-per-salary member for the best cheaper same-slot alternative,
// repeating until compliant or no swap remains. Locked players are never
// swapped out.
func (g *populationGenerator) repairSalary(l *lineup, used map[string]bool) *ConstraintViolation {
	for swaps := 0; l.salary > g.spec.SalaryCap && swaps < maxRepairSwaps; swaps++ {
		order := g.repairOrder(l)
		swapped := false
		for _, i := range order {
			current := l.players[i]
			if best, ok := g.cheaperAlternative(l.slots[i], current, used); ok {
				delete(used, current.ID)
				used[best.ID] = true
				l.replace(i, best)
				swapped = true
				break
			}
		}
		if !swapped {
			return &ConstraintViolation{
				Kind:   ViolationSalaryExceeded,
				Detail: fmt.Sprintf("no swap can bring salary %d under cap %d", l.salary, g.spec.SalaryCap),
			}
		}
	}

	if l.salary > g.spec.SalaryCap {
		return &ConstraintViolation{
			Kind:   ViolationSalaryExceeded,
			Detail: fmt.Sprintf("repair abandoned at salary %d, cap %d", l.salary, g.spec.SalaryCap),
		}
	}
	return nil
}

// repairOrder returns swappable member indices ordered worst value first.
func (g *populationGenerator) repairOrder(l *lineup) []int {
	idx := make([]int, 0, l.size())
	for i, p := range l.players {
		if !g.lockedSet[p.ID] {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, b int) bool {
		return valuePerSalary(l.players[idx[a]]) < valuePerSalary(l.players[idx[b]])
	})
	return idx
}

// cheaperAlternative finds the highest-projection unused candidate for the
// slot that costs strictly less than the current member.
func (g *populationGenerator) cheaperAlternative(slot slotSpec, current types.Player, used map[string]bool) (types.Player, bool) {
	var best types.Player
	found := false
	for _, pos := range slot.allowed {
		for _, p := range g.byPosition[pos] {
			if used[p.ID] || p.Salary >= current.Salary {
				continue
			}
			if !found || p.ProjectedPoints > best.ProjectedPoints {
				best = p
				found = true
			}
		}
	}
	return best, found
}

func valuePerSalary(p types.Player) float64 {
	if p.Salary <= 0 {
		return math.Inf(1)
	}
	return p.ProjectedPoints / float64(p.Salary)
}

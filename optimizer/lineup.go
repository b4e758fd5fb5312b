package optimizer

import (
	"sort"

	"github.com/stitts-dev/lineup-engine/types"
)

const defaultFlexName = "FLEX"

// slotSpec is one concrete roster slot to fill, in deterministic fill
// order: fixed-position slots sorted by tag, flex slots last.
type slotSpec struct {
	name    string
	allowed []string
}

// buildSlotOrder expands a ConstraintSpec into the ordered slot list every
// lineup of the request is aligned to. The order is deterministic so that
// crossover points mean the same thing across the whole population.
func buildSlotOrder(spec *types.ConstraintSpec) []slotSpec {
	tags := make([]string, 0, len(spec.Slots))
	for tag := range spec.Slots {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	order := make([]slotSpec, 0, spec.LineupSize())
	for _, tag := range tags {
		for i := 0; i < spec.Slots[tag].Min; i++ {
			order = append(order, slotSpec{name: tag, allowed: []string{tag}})
		}
	}
	if spec.Flex != nil {
		name := spec.Flex.Name
		if name == "" {
			name = defaultFlexName
		}
		for i := 0; i < spec.Flex.Count; i++ {
			order = append(order, slotSpec{name: name, allowed: spec.Flex.Positions})
		}
	}
	return order
}

func (s slotSpec) accepts(position string) bool {
	for _, p := range s.allowed {
		if p == position {
			return true
		}
	}
	return false
}

// lineup is the in-memory candidate solution the search recombines and
// discards. Index i holds the player filling slot i of the request's slot
// order.
type lineup struct {
	players []types.Player
	slots   []slotSpec

	salary    int
	projected float64
	floor     float64
	ceiling   float64
}

func newLineup(players []types.Player, slots []slotSpec) *lineup {
	l := &lineup{players: players, slots: slots}
	for _, p := range players {
		l.salary += p.Salary
		l.projected += p.ProjectedPoints
		l.floor += p.FloorPoints
		l.ceiling += p.CeilingPoints
	}
	return l
}

func (l *lineup) size() int { return len(l.players) }

func (l *lineup) contains(id string) bool {
	for _, p := range l.players {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (l *lineup) ids() []string {
	ids := make([]string, len(l.players))
	for i, p := range l.players {
		ids[i] = p.ID
	}
	return ids
}

func (l *lineup) usedSet() map[string]bool {
	used := make(map[string]bool, len(l.players))
	for _, p := range l.players {
		used[p.ID] = true
	}
	return used
}

func (l *lineup) clone() *lineup {
	players := make([]types.Player, len(l.players))
	copy(players, l.players)
	return &lineup{
		players:   players,
		slots:     l.slots,
		salary:    l.salary,
		projected: l.projected,
		floor:     l.floor,
		ceiling:   l.ceiling,
	}
}

// replace swaps the player at slot index i and updates aggregates.
func (l *lineup) replace(i int, p types.Player) {
	old := l.players[i]
	l.salary += p.Salary - old.Salary
	l.projected += p.ProjectedPoints - old.ProjectedPoints
	l.floor += p.FloorPoints - old.FloorPoints
	l.ceiling += p.CeilingPoints - old.CeilingPoints
	l.players[i] = p
}

// slotAssignments maps player ID to the slot name the player fills.
func (l *lineup) slotAssignments() map[string]string {
	out := make(map[string]string, len(l.players))
	for i, p := range l.players {
		out[p.ID] = l.slots[i].name
	}
	return out
}

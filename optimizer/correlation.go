package optimizer

import (
	"math"

	"github.com/stitts-dev/lineup-engine/types"
)

// Same-group correlation heuristics. Teammates' outcomes move together, and
// more so at the same position where shared game script dominates.
const (
	sameTeamCorrelation         = 0.18
	sameTeamPositionCorrelation = 0.30
)

type pairKey struct {
	a, b string // a < b
}

func makePairKey(id1, id2 string) pairKey {
	if id1 < id2 {
		return pairKey{a: id1, b: id2}
	}
	return pairKey{a: id2, b: id1}
}

// CorrelationTable holds pairwise interaction weights between pool players,
// keyed by unordered ID pair. It is built once per optimization request and
// is read-only afterward, so concurrent reads from the fitness worker pool
// need no synchronization.
type CorrelationTable struct {
	weights map[pairKey]float64
}

// NewCorrelationTable derives a table from the candidate pool using
// same-team heuristics. Pairs with no entry correlate at zero.
func NewCorrelationTable(pool []types.Player) *CorrelationTable {
	ct := &CorrelationTable{weights: make(map[pairKey]float64)}

	byTeam := make(map[string][]types.Player)
	for _, p := range pool {
		if p.Team == "" {
			continue
		}
		byTeam[p.Team] = append(byTeam[p.Team], p)
	}

	for _, teammates := range byTeam {
		for i := 0; i < len(teammates); i++ {
			for j := i + 1; j < len(teammates); j++ {
				w := sameTeamCorrelation
				if teammates[i].Position == teammates[j].Position {
					w = sameTeamPositionCorrelation
				}
				ct.weights[makePairKey(teammates[i].ID, teammates[j].ID)] = clampSigned(w)
			}
		}
	}
	return ct
}

// Pairwise returns the correlation weight between two players, zero when no
// entry exists.
func (ct *CorrelationTable) Pairwise(id1, id2 string) float64 {
	if id1 == id2 {
		return 1.0
	}
	return ct.weights[makePairKey(id1, id2)]
}

// LineupCorrelation returns the mean pairwise weight across all member
// pairs of a lineup.
func (ct *CorrelationTable) LineupCorrelation(players []types.Player) float64 {
	if len(players) < 2 {
		return 0
	}
	total := 0.0
	pairs := 0
	for i := 0; i < len(players); i++ {
		for j := i + 1; j < len(players); j++ {
			total += ct.Pairwise(players[i].ID, players[j].ID)
			pairs++
		}
	}
	return total / float64(pairs)
}

// Len returns the number of non-zero pair entries.
func (ct *CorrelationTable) Len() int {
	return len(ct.weights)
}

func clampSigned(v float64) float64 {
	return math.Max(-1.0, math.Min(1.0, v))
}

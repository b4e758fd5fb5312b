package types

// Player represents a selectable candidate supplied by the data provider.
// The engine treats players as immutable: projections, pricing, and risk
// numbers are resolved upstream, and lineups reference players by ID only.
type Player struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Team            string  `json:"team"`
	Position        string  `json:"position"`
	Salary          int     `json:"salary"`
	ProjectedPoints float64 `json:"projected_points"`
	FloorPoints     float64 `json:"floor_points"`
	CeilingPoints   float64 `json:"ceiling_points"`
	Ownership       float64 `json:"ownership"`      // projected field exposure, 0-1
	Confidence      float64 `json:"confidence"`     // projection confidence, 0-1
	InjuryRisk      float64 `json:"injury_risk"`    // 0-1
	MatchupRating   float64 `json:"matchup_rating"` // opponent/venue quality scalar
}

// Value returns projected points per thousand dollars of salary, the
// industry-standard value rating. Zero-salary players rate as zero.
func (p Player) Value() float64 {
	if p.Salary <= 0 {
		return 0
	}
	return p.ProjectedPoints / float64(p.Salary) * 1000
}

// SlotRule bounds how many players of one position a lineup may carry.
// Min players are drawn for the position directly; flex placement may raise
// the count further, up to Max.
type SlotRule struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// FlexSlot is a slot that accepts several positions, filled after all
// fixed-position slots.
type FlexSlot struct {
	Name      string   `json:"name"` // slot label, defaults to "FLEX"
	Positions []string `json:"positions"`
	Count     int      `json:"count"`
}

// PairingRule expresses a soft preference for (or against) rostering
// same-team players at two positions together. Pairings bias fitness;
// they are never hard constraints.
type PairingRule struct {
	PositionA string `json:"position_a"`
	PositionB string `json:"position_b"`
	Encourage bool   `json:"encourage"`
}

// ConstraintSpec declares what makes a lineup valid for one optimization
// request. The zero value of an optional field disables its check.
type ConstraintSpec struct {
	Slots      map[string]SlotRule `json:"slots"`
	Flex       *FlexSlot           `json:"flex,omitempty"`
	SalaryCap  int                 `json:"salary_cap,omitempty"`
	MaxPerTeam int                 `json:"max_per_team,omitempty"`
	Locked     []string            `json:"locked,omitempty"`
	Excluded   []string            `json:"excluded,omitempty"`
	Pairings   []PairingRule       `json:"pairings,omitempty"`
}

// ExactSlots builds a Slots map where every position requires exactly the
// given count.
func ExactSlots(counts map[string]int) map[string]SlotRule {
	slots := make(map[string]SlotRule, len(counts))
	for pos, n := range counts {
		slots[pos] = SlotRule{Min: n, Max: n}
	}
	return slots
}

// LineupSize returns the number of players a valid lineup must carry.
func (s *ConstraintSpec) LineupSize() int {
	size := 0
	for _, rule := range s.Slots {
		size += rule.Min
	}
	if s.Flex != nil {
		size += s.Flex.Count
	}
	return size
}

// StrategyType selects the optimization objective.
type StrategyType string

const (
	StrategyCeiling     StrategyType = "ceiling"     // tournaments - maximize upside
	StrategyFloor       StrategyType = "floor"       // cash games - maximize safety
	StrategyBalanced    StrategyType = "balanced"    // balanced risk/reward
	StrategyContrarian  StrategyType = "contrarian"  // low-ownership leverage
	StrategyCorrelation StrategyType = "correlation" // stack-seeking
)

// Strategy bundles the objective with its tuning weights.
type Strategy struct {
	Type              StrategyType `json:"type"`
	RiskTolerance     float64      `json:"risk_tolerance"`     // 0-1, higher weakens the risk penalty
	CorrelationWeight float64      `json:"correlation_weight"` // >= 0
	ExposureWeight    float64      `json:"exposure_weight"`    // >= 0, only meaningful with ownership data
}

// DefaultStrategy returns a balanced strategy with moderate weights.
func DefaultStrategy() Strategy {
	return Strategy{
		Type:              StrategyBalanced,
		RiskTolerance:     0.5,
		CorrelationWeight: 0.0,
		ExposureWeight:    0.0,
	}
}

// LineupFeatures is the fixed-shape feature summary handed to the external
// scoring model. Every field is numeric; a lineup that cannot populate the
// struct is rejected at the boundary rather than zero-padded.
type LineupFeatures struct {
	LineupSize         float64 `json:"lineup_size"`
	TotalProjected     float64 `json:"total_projected"`
	TotalFloor         float64 `json:"total_floor"`
	TotalCeiling       float64 `json:"total_ceiling"`
	FloorCeilingSpread float64 `json:"floor_ceiling_spread"`
	MeanConfidence     float64 `json:"mean_confidence"`
	MeanInjuryRisk     float64 `json:"mean_injury_risk"`
	MeanMatchupRating  float64 `json:"mean_matchup_rating"`
	PositionSpread     float64 `json:"position_spread"` // distinct positions / lineup size
	TeamDiversity      float64 `json:"team_diversity"`  // distinct teams / lineup size
	MeanOwnership      float64 `json:"mean_ownership"`
	OwnershipStdDev    float64 `json:"ownership_std_dev"`
	PointsPerSalary    float64 `json:"points_per_salary"` // projected points per $1k
}

// ScoredLineup is a constraint-valid lineup plus everything the fitness
// evaluator derived for it.
type ScoredLineup struct {
	PlayerIDs        []string          `json:"player_ids"` // slot order
	SlotAssignments  map[string]string `json:"slot_assignments"`
	TotalProjected   float64           `json:"total_projected"`
	TotalFloor       float64           `json:"total_floor"`
	TotalCeiling     float64           `json:"total_ceiling"`
	TotalSalary      int               `json:"total_salary"`
	Fitness          float64           `json:"fitness"` // 0-1 ordering key
	BaseScore        float64           `json:"base_score"`
	RiskScore        float64           `json:"risk_score"`
	CorrelationScore float64           `json:"correlation_score"`
	Degraded         bool              `json:"degraded"` // scored without the external model
}

// Contains reports whether the lineup rosters the given player.
func (sl ScoredLineup) Contains(id string) bool {
	for _, pid := range sl.PlayerIDs {
		if pid == id {
			return true
		}
	}
	return false
}

// Overlap returns the fraction of this lineup's players also present in
// other, using this lineup's size as the denominator.
func (sl ScoredLineup) Overlap(other ScoredLineup) float64 {
	if len(sl.PlayerIDs) == 0 {
		return 0
	}
	shared := 0
	for _, id := range sl.PlayerIDs {
		if other.Contains(id) {
			shared++
		}
	}
	return float64(shared) / float64(len(sl.PlayerIDs))
}

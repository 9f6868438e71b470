package catalog

import "sort"

// MatchResult is one catalog entry retained by the matcher for one tier.
// An entry with multiple tiers yields one MatchResult per tier; the entry
// fields are identical across them and only ActiveTier differs.
type MatchResult struct {
	Entry
	Score      float64 `json:"match_score"`
	ActiveTier int     `json:"active_tier"`
}

// MatchSet is the matcher output: retained entries grouped by tier, plus
// matched skills kept as advisory references. It is recomputed per call and
// never persisted by the pipeline itself, though it round-trips through JSON
// between the match and sequence commands.
type MatchSet struct {
	Project             string                 `json:"project,omitempty"`
	RequirementsSummary string                 `json:"requirements_summary"`
	MatchedAgents       map[string]MatchResult `json:"matched_agents"`
	MatchedSkills       map[string]MatchResult `json:"matched_skills,omitempty"`
	ByTier              map[int][]MatchResult  `json:"by_tier"`
	TotalMatched        int                    `json:"total_matched"`
}

// SortedTiers returns the tiers present in the grouped matches in ascending
// order.
func (m *MatchSet) SortedTiers() []int {
	tiers := make([]int, 0, len(m.ByTier))
	for tier := range m.ByTier {
		tiers = append(tiers, tier)
	}
	sort.Ints(tiers)
	return tiers
}

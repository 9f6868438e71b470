// Package matcher scores catalog entries against free-text work requirements
// and groups the retained matches by execution tier. Matching is a pure
// function of the requirement text, a catalog snapshot, the project scope and
// the threshold; it keeps no state and is fully reproducible.
package matcher

import (
	"regexp"
	"sort"
	"strings"

	"github.com/stagehand-dev/stagehand/pkg/types/catalog"
)

// DefaultThreshold is the minimum score an entry must reach to be retained.
const DefaultThreshold = 5.0

// Score weights. For each requirement token only the single highest-weight
// bucket counts: a token relating to both a trigger and a capability scores
// 10, not 15.
const (
	triggerWeight     = 10.0
	capabilityWeight  = 5.0
	descriptionWeight = 1.0
)

const summaryLimit = 500

var tokenPattern = regexp.MustCompile(`\b[a-z][a-z0-9-]+\b`)

// Tokenize splits text into the set of lowercase alphanumeric/hyphen tokens
// of length two or more. Duplicates collapse, so repeating a token in the
// requirement text does not amplify scores.
func Tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, token := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		tokens[token] = true
	}
	return tokens
}

// relates reports whether a requirement token relates to a tag: either
// contains the other, case-insensitively (tags are stored lowercased or
// lowered here).
func relates(token, tag string) bool {
	tag = strings.ToLower(tag)
	if tag == "" {
		return false
	}
	return strings.Contains(tag, token) || strings.Contains(token, tag)
}

// Score computes the match score of one entry against the tokenized
// requirement text.
func Score(tokens map[string]bool, entry *catalog.Entry) float64 {
	descTokens := Tokenize(entry.Description)

	score := 0.0
	for token := range tokens {
		switch {
		case anyRelates(token, entry.Triggers):
			score += triggerWeight
		case anyRelates(token, entry.Capabilities):
			score += capabilityWeight
		case descTokens[token]:
			score += descriptionWeight
		}
	}
	return score
}

func anyRelates(token string, tags []string) bool {
	for _, tag := range tags {
		if relates(token, tag) {
			return true
		}
	}
	return false
}

// MergedPool returns the effective entry pools for a project: shared entries
// with project entries of the same name shadowing them. An empty project
// name yields the shared pools unchanged.
func MergedPool(cat *catalog.Catalog, project string) (agents, skills map[string]*catalog.Entry) {
	agents = make(map[string]*catalog.Entry)
	skills = make(map[string]*catalog.Entry)

	if cat.Shared != nil {
		for name, entry := range cat.Shared.Agents {
			agents[name] = entry
		}
		for name, entry := range cat.Shared.Skills {
			skills[name] = entry
		}
	}

	if scope := cat.Project(project); scope != nil {
		for name, entry := range scope.Agents {
			agents[name] = entry
		}
		for name, entry := range scope.Skills {
			skills[name] = entry
		}
	}

	return agents, skills
}

// Match scores the catalog against the requirement text and groups retained
// entries by tier. Agents with an empty tier set are grouped under the
// default implementation tier; skills with an empty tier set are never
// grouped and are returned as advisory references only.
func Match(requirements string, cat *catalog.Catalog, project string, threshold float64) *catalog.MatchSet {
	tokens := Tokenize(requirements)
	agents, skills := MergedPool(cat, project)

	result := &catalog.MatchSet{
		Project:             project,
		RequirementsSummary: truncate(requirements, summaryLimit),
		MatchedAgents:       make(map[string]catalog.MatchResult),
		MatchedSkills:       make(map[string]catalog.MatchResult),
		ByTier:              make(map[int][]catalog.MatchResult),
	}

	for _, name := range sortedNames(agents) {
		entry := agents[name]
		score := Score(tokens, entry)
		if score < threshold {
			continue
		}

		match := catalog.MatchResult{Entry: *entry, Score: score}
		result.MatchedAgents[name] = match

		tiers := entry.Tiers
		if len(tiers) == 0 {
			tiers = []int{catalog.DefaultAgentTier}
		}
		explodeTiers(result, match, tiers)
	}

	for _, name := range sortedNames(skills) {
		entry := skills[name]
		score := Score(tokens, entry)
		if score < threshold {
			continue
		}

		match := catalog.MatchResult{Entry: *entry, Score: score}
		result.MatchedSkills[name] = match

		// Only skills with explicit tiers join the tier grouping.
		if len(entry.Tiers) > 0 {
			explodeTiers(result, match, entry.Tiers)
		}
	}

	for tier := range result.ByTier {
		group := result.ByTier[tier]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Score > group[j].Score
		})
		result.ByTier[tier] = group
	}

	result.TotalMatched = len(result.MatchedAgents) + len(result.MatchedSkills)
	return result
}

// explodeTiers maps one retained entry to one MatchResult per tier. The
// match is copied per tier; the original entry is never mutated.
func explodeTiers(result *catalog.MatchSet, match catalog.MatchResult, tiers []int) {
	for _, tier := range tiers {
		exploded := match
		exploded.ActiveTier = tier
		result.ByTier[tier] = append(result.ByTier[tier], exploded)
	}
}

// DetectProject returns the first project whose detection keywords appear in
// the requirement text, or "" when none match. Projects are checked in name
// order so detection is reproducible.
func DetectProject(requirements string, cat *catalog.Catalog) string {
	lowered := strings.ToLower(requirements)

	names := make([]string, 0, len(cat.Projects))
	for name := range cat.Projects {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, keyword := range cat.Projects[name].Keywords {
			if keyword != "" && strings.Contains(lowered, strings.ToLower(keyword)) {
				return name
			}
		}
	}
	return ""
}

func sortedNames(entries map[string]*catalog.Entry) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

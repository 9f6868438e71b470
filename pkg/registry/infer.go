package registry

import (
	"regexp"
	"strings"
)

// tierRule maps word-stem patterns to a tier. Rules are evaluated in tier
// order and a tier is matched at most once per entry; an entry may match
// several tiers.
type tierRule struct {
	tier     int
	patterns []*regexp.Regexp
}

// tierRules associates description/name word stems with execution tiers.
// Stems are used so "researcher" matches "research" and so on. `\bgit\b`
// does not match "github": there is no word boundary inside the word.
var tierRules = []tierRule{
	{0, compileAll(`\bgit\b`, `\bbranch`, `\brelease`, `\bversion`)},
	{1, compileAll(`\bexplor`, `\bsearch`, `\bresearch`, `\binvestigat`, `\bdiscover`, `\bfind\b`)},
	{2, compileAll(`\bexpert`, `\barchitect`, `\bdesign`, `\badvis`, `\bspecialist`, `\badmin`, `\bauditor`)},
	{3, compileAll(`\bplan`, `\bdecompos`, `\bbreakdown`, `\bstrateg`)},
	{4, compileAll(`\bimplement`, `\bengineers?\b`, `\bdevelop`, `\bprogramm`, `\bbuild\b`, `\bcreat`, `\bmodif`)},
	{5, compileAll(`\btest`, `\breview`, `\bvalid`, `\bverif`, `\bcheck\b`)},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// categoryRule maps substrings to a category. Rules are evaluated
// top-to-bottom, first match wins.
type categoryRule struct {
	category string
	keywords []string
}

var categoryRules = []categoryRule{
	{"git", []string{"git", "branch", "commit", "release", "version", "merge"}},
	{"explore", []string{"explore", "search", "find", "discover", "trace"}},
	{"research", []string{"research", "investigate", "study", "analyze"}},
	{"expertise", []string{"expert", "architect", "designer", "specialist", "advisor", "admin"}},
	{"planning", []string{"plan", "decompos", "breakdown", "strategy", "coordinate"}},
	{"implementation", []string{"implement", "engineer", "develop", "programm", "build", "code"}},
	{"validation", []string{"test", "review", "valid", "verif", "check", "audit", "quality"}},
	{"documentation", []string{"document", "write", "technical writer", "docs"}},
	{"utility", []string{"utility", "helper", "tool"}},
}

// defaultCategory is used when no category rule matches.
const defaultCategory = "general"

// capabilityKeywords are scanned in order against the description; the first
// maxCapabilities hits are kept.
var capabilityKeywords = []string{
	"coordination", "delegation", "monitoring", "validation",
	"implementation", "review", "testing", "documentation",
	"search", "discovery", "analysis", "design", "optimization",
	"debugging", "security", "performance", "database", "api",
	"frontend", "backend", "deployment", "migration",
}

// triggerPhrases are key phrases extracted from descriptions as triggers.
// Multi-word phrases become hyphenated tags.
var triggerPhrases = []string{
	"complex task", "multi-file", "refactor", "security",
	"database", "api", "frontend", "backend", "test",
	"performance", "deployment", "documentation",
}

// frameworkKeywords are product/framework names recognized for project
// detection.
var frameworkKeywords = []string{
	"heroui", "nextui", "react", "vue", "angular", "tailwind", "prisma",
}

const (
	maxCapabilities   = 5
	maxTriggers       = 6
	maxDescriptionLen = 200
)

// inferTiers returns every tier whose rule matches the entry's name or
// description. No match leaves the tier set empty.
func inferTiers(name, description string) []int {
	text := strings.ToLower(name + " " + description)

	var matched []int
	for _, rule := range tierRules {
		for _, pattern := range rule.patterns {
			if pattern.MatchString(text) {
				matched = append(matched, rule.tier)
				break
			}
		}
	}
	return matched
}

// inferCategory returns the first matching category, or defaultCategory.
func inferCategory(name, description string) string {
	text := strings.ToLower(name + " " + description)

	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(text, keyword) {
				return rule.category
			}
		}
	}
	return defaultCategory
}

// inferCapabilities extracts up to maxCapabilities capability tags from the
// description.
func inferCapabilities(description string) []string {
	desc := strings.ToLower(description)

	var capabilities []string
	for _, keyword := range capabilityKeywords {
		if strings.Contains(desc, keyword) {
			capabilities = append(capabilities, keyword)
			if len(capabilities) == maxCapabilities {
				break
			}
		}
	}
	return capabilities
}

// inferTriggers derives up to maxTriggers trigger tags from name tokens,
// leading capabilities and key description phrases, deduplicated in
// discovery order.
func inferTriggers(name, description string, capabilities []string) []string {
	var triggers []string
	seen := make(map[string]bool)

	add := func(t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		triggers = append(triggers, t)
	}

	for _, part := range nameTokens(name) {
		add(part)
	}

	for i, capability := range capabilities {
		if i == 3 {
			break
		}
		add(capability)
	}

	desc := strings.ToLower(description)
	for _, phrase := range triggerPhrases {
		if strings.Contains(desc, phrase) {
			add(strings.ReplaceAll(phrase, " ", "-"))
		}
	}

	if len(triggers) > maxTriggers {
		triggers = triggers[:maxTriggers]
	}
	return triggers
}

// extractKeywords derives project detection keywords from an entry's name and
// description.
func extractKeywords(name, description string) []string {
	text := strings.ToLower(name + " " + description)

	var keywords []string
	seen := make(map[string]bool)

	for _, part := range nameTokens(name) {
		if !seen[part] {
			seen[part] = true
			keywords = append(keywords, part)
		}
	}

	for _, fw := range frameworkKeywords {
		if strings.Contains(text, fw) && !seen[fw] {
			seen[fw] = true
			keywords = append(keywords, fw)
		}
	}
	return keywords
}

// nameTokens splits a hyphen/underscore separated name into tokens longer
// than two characters.
func nameTokens(name string) []string {
	cleaned := strings.NewReplacer("-", " ", "_", " ").Replace(name)

	var tokens []string
	for _, part := range strings.Fields(cleaned) {
		if len(part) > 2 {
			tokens = append(tokens, part)
		}
	}
	return tokens
}

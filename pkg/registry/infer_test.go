package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stagehand-dev/stagehand/pkg/types/catalog"
)

func TestInferTiers(t *testing.T) {
	tests := []struct {
		name        string
		agentName   string
		description string
		expected    []int
	}{
		{
			name:        "git setup",
			agentName:   "git-flow-manager",
			description: "Manages branches and git flow",
			expected:    []int{0},
		},
		{
			name:        "github does not trigger git tier",
			agentName:   "github-integrator",
			description: "Connects repositories to external services",
			expected:    nil,
		},
		{
			name:        "researcher matches explore stem",
			agentName:   "api-researcher",
			description: "Researches external API documentation",
			expected:    []int{1},
		},
		{
			name:        "engineer matches implementation",
			agentName:   "backend-engineer",
			description: "Writes server side code",
			expected:    []int{4},
		},
		{
			name:        "engineering alone does not match",
			agentName:   "staff-meeting-notes",
			description: "Notes about the engineering org",
			expected:    nil,
		},
		{
			name:        "multiple tiers",
			agentName:   "plan-reviewer",
			description: "Reviews delivery plans before work starts",
			expected:    []int{3, 5},
		},
		{
			name:        "no match leaves tiers empty",
			agentName:   "mascot",
			description: "Waves at the camera",
			expected:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, inferTiers(tt.agentName, tt.description))
		})
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		name        string
		agentName   string
		description string
		expected    string
	}{
		{"git wins first", "release-manager", "Cuts releases and tags versions", "git"},
		{"explore", "code-searcher", "Searches the codebase for usages", "explore"},
		{"expertise", "database-architect", "Designs schemas", "expertise"},
		{"implementation", "frontend-developer", "Builds UI components", "implementation"},
		{"validation", "test-runner", "Runs the test suite", "validation"},
		{"default", "mascot", "Waves at the camera", "general"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, inferCategory(tt.agentName, tt.description))
		})
	}
}

func TestInferCapabilities(t *testing.T) {
	caps := inferCapabilities("Handles testing, review, debugging, security, performance and deployment work")
	assert.Len(t, caps, maxCapabilities)
	assert.Contains(t, caps, "review")
	assert.Contains(t, caps, "testing")

	assert.Empty(t, inferCapabilities("Nothing recognizable here"))
}

func TestInferTriggers(t *testing.T) {
	t.Run("name tokens come first", func(t *testing.T) {
		triggers := inferTriggers("database-architect", "Designs database schemas", nil)
		assert.Equal(t, []string{"database", "architect"}, triggers[:2])
	})

	t.Run("phrases become hyphenated", func(t *testing.T) {
		triggers := inferTriggers("helper", "Handles any complex task quickly", nil)
		assert.Contains(t, triggers, "complex-task")
	})

	t.Run("deduplicated and capped", func(t *testing.T) {
		triggers := inferTriggers(
			"api-backend-frontend-database",
			"api backend frontend database test performance deployment security refactor",
			[]string{"api", "security", "testing"},
		)
		assert.LessOrEqual(t, len(triggers), maxTriggers)
		seen := make(map[string]bool)
		for _, trigger := range triggers {
			assert.False(t, seen[trigger], "duplicate trigger %s", trigger)
			seen[trigger] = true
		}
	})

	t.Run("at most three capabilities", func(t *testing.T) {
		triggers := inferTriggers("x", "", []string{"one", "two", "three", "four"})
		assert.Equal(t, []string{"one", "two", "three"}, triggers)
	})
}

func TestExtractKeywords(t *testing.T) {
	keywords := extractKeywords("heroui-component-builder", "Builds HeroUI components on top of React")
	assert.Contains(t, keywords, "heroui")
	assert.Contains(t, keywords, "component")
	assert.Contains(t, keywords, "react")
	assert.NotContains(t, keywords, "on")
}

func TestNameTokens(t *testing.T) {
	assert.Equal(t, []string{"database", "schema", "admin"}, nameTokens("database_schema-admin"))
	assert.Empty(t, nameTokens("a-to-b"))
}

func TestSortedTierSet(t *testing.T) {
	assert.Equal(t, []int{1, 4}, sortedTierSet([]int{4, 1, 4}))
	assert.Equal(t, []int{0, 5}, sortedTierSet([]int{5, 0, 9, -1}))
	assert.Empty(t, sortedTierSet([]int{42}))
	assert.Equal(t, []int{catalog.TierValidation}, sortedTierSet([]int{5}))
}

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrontmatter(t *testing.T) {
	content := []byte(`---
name: database-architect
description: Designs database schemas and migrations
tier: 2
capabilities:
  - database
  - design
triggers: [database, schema, migration]
parallel: false
---

# Database Architect

Body text.
`)

	f, err := parseFrontmatter(content)
	require.NoError(t, err)
	assert.False(t, f.heuristic)

	assert.Equal(t, "database-architect", f.str("name", ""))
	assert.Equal(t, "Designs database schemas and migrations", f.str("description", ""))
	assert.Equal(t, []string{"database", "design"}, f.strList("capabilities"))
	assert.Equal(t, []string{"database", "schema", "migration"}, f.strList("triggers"))
	assert.False(t, f.boolean("parallel", true))

	tiers, ok := f.intList("tier")
	require.True(t, ok)
	assert.Equal(t, []int{2}, tiers)
}

func TestParseFrontmatterHeuristicFallback(t *testing.T) {
	content := []byte(`# Code Reviewer

short

Reviews pull requests for style and correctness issues.
`)

	f, err := parseFrontmatter(content)
	require.NoError(t, err)
	assert.True(t, f.heuristic)

	assert.Equal(t, "Code Reviewer", f.str("name", ""))
	assert.Equal(t, "Reviews pull requests for style and correctness issues.", f.str("description", ""))
	assert.False(t, f.has("tier"))
}

func TestFirstQualifyingParagraph(t *testing.T) {
	t.Run("skips headings and short lines", func(t *testing.T) {
		content := "# Title\n## Sub\ntiny\nlowercase line that is certainly long enough\nA proper description sentence here.\n"
		assert.Equal(t, "A proper description sentence here.", firstQualifyingParagraph(content))
	})

	t.Run("nothing qualifies", func(t *testing.T) {
		assert.Equal(t, "", firstQualifyingParagraph("# Only\nshort\n"))
	})
}

func TestFieldsStrList(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected []string
	}{
		{"sequence", []interface{}{"a", "b"}, []string{"a", "b"}},
		{"flow string", "[a, b, c]", []string{"a", "b", "c"}},
		{"comma string", "a, b", []string{"a", "b"}},
		{"quoted elements", `["a", 'b']`, []string{"a", "b"}},
		{"ints in sequence", []interface{}{1, 2}, []string{"1", "2"}},
		{"empty string", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fields{values: map[string]interface{}{"key": tt.value}}
			assert.Equal(t, tt.expected, f.strList("key"))
		})
	}

	t.Run("absent key", func(t *testing.T) {
		f := &fields{values: map[string]interface{}{}}
		assert.Nil(t, f.strList("key"))
	})
}

func TestFieldsIntList(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected []int
	}{
		{"scalar", 3, []int{3}},
		{"sequence", []interface{}{1, 4}, []int{1, 4}},
		{"string forms", "[1, 4]", []int{1, 4}},
		{"non-numeric dropped", []interface{}{"x", 2}, []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fields{values: map[string]interface{}{"key": tt.value}}
			got, ok := f.intList("key")
			require.True(t, ok)
			assert.Equal(t, tt.expected, got)
		})
	}

	t.Run("absent key", func(t *testing.T) {
		f := &fields{values: map[string]interface{}{}}
		_, ok := f.intList("key")
		assert.False(t, ok)
	})
}

func TestFieldsBoolean(t *testing.T) {
	f := &fields{values: map[string]interface{}{
		"plain":   true,
		"yes":     "yes",
		"one":     "1",
		"no":      "no",
		"garbage": 12,
	}}

	assert.True(t, f.boolean("plain", false))
	assert.True(t, f.boolean("yes", false))
	assert.True(t, f.boolean("one", false))
	assert.False(t, f.boolean("no", true))
	assert.True(t, f.boolean("garbage", true))
	assert.False(t, f.boolean("absent", false))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abcd", 2))
}

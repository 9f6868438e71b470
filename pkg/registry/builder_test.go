package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-dev/stagehand/pkg/types/catalog"
)

func writeAgent(t *testing.T, root, name, content string) string {
	t.Helper()
	dir := filepath.Join(root, agentsDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name+".md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeSkill(t *testing.T, root, name, content string) string {
	t.Helper()
	dir := filepath.Join(root, skillsDir, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, skillFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewBuilder(t *testing.T) {
	t.Run("defaults to current directory", func(t *testing.T) {
		b, err := NewBuilder()
		require.NoError(t, err)
		assert.Equal(t, ".", b.basePath)
	})

	t.Run("with base path", func(t *testing.T) {
		b, err := NewBuilder(WithBasePath("/tmp/workspaces"))
		require.NoError(t, err)
		assert.Equal(t, "/tmp/workspaces", b.basePath)
	})

	t.Run("rejects empty base path", func(t *testing.T) {
		_, err := NewBuilder(WithBasePath(""))
		assert.Error(t, err)
	})
}

func TestSyncDiscoversSharedAndProjects(t *testing.T) {
	base := t.TempDir()
	sharedRoot := filepath.Join(base, markerDir)

	writeAgent(t, sharedRoot, "backend-engineer", `---
description: Implements backend services and APIs
tier: 4
---
`)
	writeSkill(t, sharedRoot, "code-review", `---
description: Reviews code for correctness
---
`)

	projectRoot := filepath.Join(base, "shop", markerDir)
	writeAgent(t, projectRoot, "checkout-specialist", `---
description: Domain expert for the checkout flow
tier: 2
---
`)

	// A directory without a marker dir is not a project.
	require.NoError(t, os.MkdirAll(filepath.Join(base, "scratch"), 0o755))

	b, err := NewBuilder(WithBasePath(base))
	require.NoError(t, err)

	cat, stats, warn := b.Sync(context.Background(), nil)
	require.NoError(t, warn)

	assert.Equal(t, 3, stats.Added)
	assert.Zero(t, stats.Unchanged)
	assert.Zero(t, stats.Modified)
	assert.Zero(t, stats.Removed)
	require.NotNil(t, cat.LastSynced)

	agent, ok := cat.Shared.Agents["backend-engineer"]
	require.True(t, ok)
	assert.Equal(t, catalog.KindAgent, agent.Kind)
	assert.Equal(t, []int{4}, agent.Tiers)
	assert.True(t, agent.Parallel)
	assert.Positive(t, agent.ModTime)

	skill, ok := cat.Shared.Skills["code-review"]
	require.True(t, ok)
	assert.Equal(t, catalog.KindSkill, skill.Kind)
	assert.Empty(t, skill.Tiers)

	require.Contains(t, cat.Projects, "shop")
	assert.NotContains(t, cat.Projects, "scratch")
	assert.Contains(t, cat.Projects["shop"].Agents, "checkout-specialist")
}

func TestSyncIsIncremental(t *testing.T) {
	base := t.TempDir()
	sharedRoot := filepath.Join(base, markerDir)
	path := writeAgent(t, sharedRoot, "tester", `---
description: Runs the validation suite
tier: 5
---
`)
	writeAgent(t, sharedRoot, "planner", `---
description: Breaks work into ordered tasks
tier: 3
---
`)

	b, err := NewBuilder(WithBasePath(base))
	require.NoError(t, err)

	first, stats, warn := b.Sync(context.Background(), nil)
	require.NoError(t, warn)
	assert.Equal(t, 2, stats.Added)

	// No changes: everything is carried forward verbatim.
	second, stats, warn := b.Sync(context.Background(), first)
	require.NoError(t, warn)
	assert.Equal(t, 2, stats.Unchanged)
	assert.Zero(t, stats.Added)
	assert.Zero(t, stats.Modified)
	assert.Same(t, first.Shared.Agents["tester"], second.Shared.Agents["tester"])

	// Bump one file's mtime past the stored value.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	third, stats, warn := b.Sync(context.Background(), second)
	require.NoError(t, warn)
	assert.Equal(t, 1, stats.Unchanged)
	assert.Equal(t, 1, stats.Modified)
	assert.NotSame(t, second.Shared.Agents["tester"], third.Shared.Agents["tester"])
}

func TestSyncCountsRemoved(t *testing.T) {
	base := t.TempDir()
	sharedRoot := filepath.Join(base, markerDir)
	path := writeAgent(t, sharedRoot, "temp-agent", `---
description: Exists only briefly
---
`)
	projectRoot := filepath.Join(base, "legacy", markerDir)
	writeAgent(t, projectRoot, "old-hand", `---
description: Belongs to a project about to vanish
---
`)

	b, err := NewBuilder(WithBasePath(base))
	require.NoError(t, err)

	first, _, warn := b.Sync(context.Background(), nil)
	require.NoError(t, warn)

	require.NoError(t, os.Remove(path))
	require.NoError(t, os.RemoveAll(filepath.Join(base, "legacy")))

	second, stats, warn := b.Sync(context.Background(), first)
	require.NoError(t, warn)
	assert.Equal(t, 2, stats.Removed)
	assert.Empty(t, second.Shared.Agents)
	assert.NotContains(t, second.Projects, "legacy")
}

func TestSyncSkipsUnreadableFiles(t *testing.T) {
	base := t.TempDir()
	sharedRoot := filepath.Join(base, markerDir)
	writeAgent(t, sharedRoot, "good", `---
description: A perfectly readable agent
---
`)
	// A directory matching the glob cannot be read as a file.
	require.NoError(t, os.MkdirAll(filepath.Join(sharedRoot, agentsDir, "broken.md"), 0o755))

	b, err := NewBuilder(WithBasePath(base))
	require.NoError(t, err)

	cat, stats, warn := b.Sync(context.Background(), nil)
	require.Error(t, warn)
	assert.Contains(t, warn.Error(), "broken.md")

	assert.Equal(t, 1, stats.Added)
	assert.Contains(t, cat.Shared.Agents, "good")
	assert.NotContains(t, cat.Shared.Agents, "broken")
}

func TestSyncSkillDiscovery(t *testing.T) {
	base := t.TempDir()
	sharedRoot := filepath.Join(base, markerDir)

	writeSkill(t, sharedRoot, "deploy", `---
description: Deploys the service
tier: 4
category: automation
---
`)
	// Flat skill file alongside the nested layout.
	flatDir := filepath.Join(sharedRoot, skillsDir)
	require.NoError(t, os.MkdirAll(flatDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(flatDir, "lint.md"), []byte(`---
description: Lints the tree
---
`), 0o644))
	// A flat file shadowed by a nested skill of the same name loses.
	require.NoError(t, os.WriteFile(filepath.Join(flatDir, "deploy.md"), []byte(`---
description: The flat impostor
---
`), 0o644))

	b, err := NewBuilder(WithBasePath(base))
	require.NoError(t, err)

	cat, _, warn := b.Sync(context.Background(), nil)
	require.NoError(t, warn)

	deploy, ok := cat.Shared.Skills["deploy"]
	require.True(t, ok)
	assert.Equal(t, "Deploys the service", deploy.Description)
	assert.Equal(t, []int{4}, deploy.Tiers)
	assert.Equal(t, "automation", deploy.Category)

	lint, ok := cat.Shared.Skills["lint"]
	require.True(t, ok)
	// Skills never infer tiers and default to the utility category.
	assert.Empty(t, lint.Tiers)
	assert.Equal(t, "utility", lint.Category)
}

func TestSyncKeywords(t *testing.T) {
	base := t.TempDir()
	writeAgent(t, filepath.Join(base, markerDir), "shared-helper", `---
description: General purpose helper
---
`)
	projectRoot := filepath.Join(base, "storefront", markerDir)
	writeAgent(t, projectRoot, "heroui-builder", `---
description: Builds storefront pages with HeroUI and React
---
`)

	b, err := NewBuilder(WithBasePath(base))
	require.NoError(t, err)

	cat, _, warn := b.Sync(context.Background(), nil)
	require.NoError(t, warn)

	// Detection keywords are collected for projects only.
	assert.Empty(t, cat.Shared.Keywords)
	keywords := cat.Projects["storefront"].Keywords
	assert.Contains(t, keywords, "heroui")
	assert.Contains(t, keywords, "react")
	assert.Contains(t, keywords, "builder")
}

func TestProcessFileResolution(t *testing.T) {
	base := t.TempDir()
	b, err := NewBuilder(WithBasePath(base))
	require.NoError(t, err)

	t.Run("registry key is the file name", func(t *testing.T) {
		path := writeAgent(t, filepath.Join(base, markerDir), "file-name", `---
name: frontmatter-name
description: The frontmatter name only feeds inference
---
`)
		entry, err := b.processFile(path, "file-name", catalog.KindAgent)
		require.NoError(t, err)
		assert.Equal(t, "file-name", entry.Name)
	})

	t.Run("explicit fields win over inference", func(t *testing.T) {
		path := writeAgent(t, filepath.Join(base, markerDir), "explicit", `---
description: Researches and implements everything
tiers: [0, 5]
category: custom
capabilities: [one, two]
triggers: [alpha]
parallel: false
---
`)
		entry, err := b.processFile(path, "explicit", catalog.KindAgent)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 5}, entry.Tiers)
		assert.Equal(t, "custom", entry.Category)
		assert.Equal(t, []string{"one", "two"}, entry.Capabilities)
		assert.Equal(t, []string{"alpha"}, entry.Triggers)
		assert.False(t, entry.Parallel)
	})

	t.Run("agents fall back to inference", func(t *testing.T) {
		path := writeAgent(t, filepath.Join(base, markerDir), "api-researcher", `---
description: Researches external API behavior and limits
---
`)
		entry, err := b.processFile(path, "api-researcher", catalog.KindAgent)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, entry.Tiers)
		assert.Equal(t, "explore", entry.Category)
		assert.Contains(t, entry.Triggers, "api")
		assert.True(t, entry.Parallel)
	})

	t.Run("long descriptions are capped", func(t *testing.T) {
		long := make([]byte, 300)
		for i := range long {
			long[i] = 'x'
		}
		path := writeAgent(t, filepath.Join(base, markerDir), "verbose", "---\ndescription: "+string(long)+"\n---\n")
		entry, err := b.processFile(path, "verbose", catalog.KindAgent)
		require.NoError(t, err)
		assert.Len(t, entry.Description, maxDescriptionLen)
	})
}

package registry

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/stagehand-dev/stagehand/pkg/logger"
	"github.com/stagehand-dev/stagehand/pkg/types/catalog"
)

const (
	// markerDir is the directory that identifies a scope root: the shared
	// root is <base>/<markerDir> and any first-level directory of the base
	// containing one is a project scope.
	markerDir = ".stagehand"

	agentsDir   = "agents"
	skillsDir   = "skills"
	commandsDir = "commands"

	skillFileName = "SKILL.md"
)

// Builder scans definition files under a base path and incrementally updates
// a catalog. An entry is reprocessed only when its source file's modification
// time exceeds the stored value; otherwise the prior record is copied forward
// verbatim, preserving manual edits to the persisted catalog.
type Builder struct {
	basePath string
}

// Option configures a Builder.
type Option func(*Builder) error

// WithBasePath sets the directory scanned for shared and project scopes.
func WithBasePath(path string) Option {
	return func(b *Builder) error {
		if path == "" {
			return errors.New("base path must not be empty")
		}
		b.basePath = path
		return nil
	}
}

// NewBuilder creates a registry builder. Without options it scans the current
// directory.
func NewBuilder(opts ...Option) (*Builder, error) {
	b := &Builder{basePath: "."}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, errors.Wrap(err, "failed to apply registry builder option")
		}
	}
	return b, nil
}

// Sync scans the base path and returns the updated catalog together with
// change counts. The existing catalog is never mutated. Unreadable definition
// files are skipped; they are logged, aggregated into the returned warning
// and never abort the sync. The returned catalog and stats are valid even
// when the warning is non-nil.
func (b *Builder) Sync(ctx context.Context, existing *catalog.Catalog) (*catalog.Catalog, *catalog.SyncStats, error) {
	if existing == nil {
		existing = catalog.New()
	}

	stats := &catalog.SyncStats{}
	var warnings *multierror.Error

	updated := catalog.New()
	updated.Version = existing.Version

	sharedRoot := filepath.Join(b.basePath, markerDir)
	updated.Shared = b.syncScope(ctx, sharedRoot, existing.Shared, stats, &warnings)
	// Detection keywords are a per-project concern.
	updated.Shared.Keywords = nil

	for _, project := range b.findProjects(ctx) {
		prior := existing.Project(project.name)
		scope := b.syncScope(ctx, project.root, prior, stats, &warnings)
		if prior != nil {
			scope.Keywords = mergeKeywords(prior.Keywords, scope.Keywords)
		}
		updated.Projects[project.name] = scope
	}

	// Entries of projects whose marker directory disappeared count as
	// removed along with everything else absent from the current scan.
	for name, scope := range existing.Projects {
		if _, ok := updated.Projects[name]; !ok {
			stats.Removed += len(scope.Agents) + len(scope.Skills)
		}
	}

	now := time.Now()
	updated.LastSynced = &now

	return updated, stats, warnings.ErrorOrNil()
}

type projectDir struct {
	name string
	root string
}

// findProjects returns every first-level directory of the base path that
// contains a marker directory. Hidden directories are not considered.
func (b *Builder) findProjects(ctx context.Context) []projectDir {
	entries, err := os.ReadDir(b.basePath)
	if err != nil {
		logger.G(ctx).WithField("path", b.basePath).WithError(err).Warn("could not enumerate projects")
		return nil
	}

	var projects []projectDir
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		root := filepath.Join(b.basePath, entry.Name(), markerDir)
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			projects = append(projects, projectDir{name: entry.Name(), root: root})
		}
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].name < projects[j].name })
	return projects
}

// syncScope processes one scope root (shared or project), carrying unchanged
// records forward from prior and counting changes into stats.
func (b *Builder) syncScope(ctx context.Context, root string, prior *catalog.Scope, stats *catalog.SyncStats, warnings **multierror.Error) *catalog.Scope {
	relRoot, err := filepath.Rel(b.basePath, root)
	if err != nil {
		relRoot = root
	}
	scope := catalog.NewScope(relRoot)

	if prior == nil {
		prior = catalog.NewScope(relRoot)
	}

	b.syncAgents(ctx, root, prior, scope, stats, warnings)
	b.syncSkills(ctx, root, prior, scope, stats, warnings)
	b.syncCommands(ctx, root, scope)

	stats.Removed += countRemoved(prior.Agents, scope.Agents)
	stats.Removed += countRemoved(prior.Skills, scope.Skills)

	return scope
}

func (b *Builder) syncAgents(ctx context.Context, root string, prior, scope *catalog.Scope, stats *catalog.SyncStats, warnings **multierror.Error) {
	files, _ := filepath.Glob(filepath.Join(root, agentsDir, "*.md"))
	sort.Strings(files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".md")
		existing := prior.Agents[name]

		if !needsUpdate(existing, file) {
			scope.Agents[name] = existing
			stats.Unchanged++
			continue
		}

		entry, err := b.processFile(file, name, catalog.KindAgent)
		if err != nil {
			logger.G(ctx).WithField("path", file).WithError(err).Warn("skipping unreadable agent definition")
			*warnings = multierror.Append(*warnings, errors.Wrapf(err, "agent %s", file))
			continue
		}

		scope.Agents[name] = entry
		scope.Keywords = mergeKeywords(scope.Keywords, extractKeywords(name, entry.Description))
		if existing == nil {
			stats.Added++
		} else {
			stats.Modified++
		}
	}
}

func (b *Builder) syncSkills(ctx context.Context, root string, prior, scope *catalog.Scope, stats *catalog.SyncStats, warnings **multierror.Error) {
	nested, _ := filepath.Glob(filepath.Join(root, skillsDir, "*", skillFileName))
	flat, _ := filepath.Glob(filepath.Join(root, skillsDir, "*.md"))
	sort.Strings(nested)
	sort.Strings(flat)
	// Nested skills go first so a flat file of the same name never shadows
	// one.
	files := append(nested, flat...)

	for _, file := range files {
		var name string
		if filepath.Base(file) == skillFileName {
			name = filepath.Base(filepath.Dir(file))
		} else {
			name = strings.TrimSuffix(filepath.Base(file), ".md")
		}

		if _, ok := scope.Skills[name]; ok {
			continue
		}
		existing := prior.Skills[name]

		if !needsUpdate(existing, file) {
			scope.Skills[name] = existing
			stats.Unchanged++
			continue
		}

		entry, err := b.processFile(file, name, catalog.KindSkill)
		if err != nil {
			logger.G(ctx).WithField("path", file).WithError(err).Warn("skipping unreadable skill definition")
			*warnings = multierror.Append(*warnings, errors.Wrapf(err, "skill %s", file))
			continue
		}

		scope.Skills[name] = entry
		if existing == nil {
			stats.Added++
		} else {
			stats.Modified++
		}
	}
}

// syncCommands tracks project command files by path and mtime only; commands
// carry no matching metadata and are refreshed on every pass.
func (b *Builder) syncCommands(ctx context.Context, root string, scope *catalog.Scope) {
	files, _ := filepath.Glob(filepath.Join(root, commandsDir, "*.md"))
	if len(files) == 0 {
		return
	}

	scope.Commands = make(map[string]catalog.CommandRef, len(files))
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			logger.G(ctx).WithField("path", file).WithError(err).Debug("skipping command file")
			continue
		}
		name := strings.TrimSuffix(filepath.Base(file), ".md")
		scope.Commands[name] = catalog.CommandRef{
			Path:    b.relPath(file),
			ModTime: info.ModTime().UnixNano(),
		}
	}
}

// needsUpdate reports whether the source file must be reprocessed: the entry
// is new or the file's mtime exceeds the stored value.
func needsUpdate(existing *catalog.Entry, file string) bool {
	if existing == nil {
		return true
	}
	info, err := os.Stat(file)
	if err != nil {
		return true
	}
	return info.ModTime().UnixNano() > existing.ModTime
}

// processFile reads one definition file and resolves every metadata field as
// explicit value > inferred value > default.
func (b *Builder) processFile(file, name string, kind catalog.Kind) (*catalog.Entry, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read definition file")
	}

	info, err := os.Stat(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat definition file")
	}

	f, err := parseFrontmatter(content)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse definition file")
	}

	// The registry key stays the file-derived name; a frontmatter or
	// heading name only feeds inference.
	inferName := f.str("name", name)
	description := truncate(f.str("description", ""), maxDescriptionLen)

	entry := &catalog.Entry{
		Name:        name,
		Kind:        kind,
		Description: description,
		Path:        b.relPath(file),
		Parallel:    true,
		ModTime:     info.ModTime().UnixNano(),
	}

	entry.Tiers = b.resolveTiers(f, inferName, description, kind)
	entry.Category = b.resolveCategory(f, inferName, description, kind)

	capabilities := f.strList("capabilities")
	if len(capabilities) == 0 {
		capabilities = inferCapabilities(description)
	}
	if len(capabilities) > maxCapabilities {
		capabilities = capabilities[:maxCapabilities]
	}
	entry.Capabilities = capabilities

	triggers := f.strList("triggers")
	if len(triggers) == 0 {
		triggers = inferTriggers(inferName, description, capabilities)
	}
	if len(triggers) > maxTriggers {
		triggers = triggers[:maxTriggers]
	}
	entry.Triggers = triggers

	if kind == catalog.KindAgent {
		entry.Parallel = f.boolean("parallel", true)
	}

	return entry, nil
}

// resolveTiers resolves the tier set: explicit "tiers" > explicit "tier" >
// inference for agents. Skills with no explicit tier stay permanently
// untiered; tier inference applies to agents only.
func (b *Builder) resolveTiers(f *fields, name, description string, kind catalog.Kind) []int {
	if tiers, ok := f.intList("tiers"); ok {
		return sortedTierSet(tiers)
	}
	if tiers, ok := f.intList("tier"); ok {
		return sortedTierSet(tiers)
	}
	if kind == catalog.KindSkill {
		return nil
	}
	return sortedTierSet(inferTiers(name, description))
}

func (b *Builder) resolveCategory(f *fields, name, description string, kind catalog.Kind) string {
	if category := f.str("category", ""); category != "" {
		return category
	}
	if kind == catalog.KindSkill {
		// Skills default straight to utility, no inference.
		return "utility"
	}
	return inferCategory(name, description)
}

// sortedTierSet sorts and deduplicates tiers, dropping values outside the
// fixed 0..5 set.
func sortedTierSet(tiers []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, t := range tiers {
		if t < catalog.TierGitSetup || t > catalog.TierValidation || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

func countRemoved(prior, current map[string]*catalog.Entry) int {
	removed := 0
	for name := range prior {
		if _, ok := current[name]; !ok {
			removed++
		}
	}
	return removed
}

func mergeKeywords(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(extra))
	for _, kw := range existing {
		if !seen[kw] {
			seen[kw] = true
			out = append(out, kw)
		}
	}
	for _, kw := range extra {
		if !seen[kw] {
			seen[kw] = true
			out = append(out, kw)
		}
	}
	sort.Strings(out)
	return out
}

func (b *Builder) relPath(file string) string {
	rel, err := filepath.Rel(b.basePath, file)
	if err != nil {
		return file
	}
	return filepath.ToSlash(rel)
}

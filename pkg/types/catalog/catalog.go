// Package catalog defines the data model shared by the registry builder,
// requirement matcher and sequence builder: catalog entries and scopes,
// match results grouped by tier, and tier-ordered execution plans.
package catalog

import "time"

// Kind discriminates agents from skills.
type Kind string

const (
	// KindAgent marks an autonomous task-execution agent definition.
	KindAgent Kind = "agent"
	// KindSkill marks a skill definition.
	KindSkill Kind = "skill"
)

// Tier numbers form a fixed closed set with fixed semantics.
const (
	TierGitSetup       = 0
	TierExplore        = 1
	TierExpertise      = 2
	TierPlanning       = 3
	TierImplementation = 4
	TierValidation     = 5
)

// DefaultAgentTier is where untiered agents are grouped at match time.
// Untiered skills are never assigned a tier.
const DefaultAgentTier = TierImplementation

// TierNames maps tier numbers to their display names.
var TierNames = map[int]string{
	TierGitSetup:       "Git Setup",
	TierExplore:        "Explore & Research",
	TierExpertise:      "Domain Expertise",
	TierPlanning:       "Planning",
	TierImplementation: "Implementation",
	TierValidation:     "Validation",
}

// Entry is a discovered agent or skill with the metadata used for matching
// and scheduling. Entries are keyed by Name within a scope.
type Entry struct {
	Name         string   `json:"name"`
	Kind         Kind     `json:"kind"`
	Tiers        []int    `json:"tiers"`
	Category     string   `json:"category"`
	Capabilities []string `json:"capabilities"`
	Triggers     []string `json:"triggers"`
	Description  string   `json:"description"`
	Path         string   `json:"path"`
	Parallel     bool     `json:"parallel"`
	ModTime      int64    `json:"mtime"`
}

// CommandRef tracks a project command file. Commands carry no matching
// metadata; only their location and freshness are recorded.
type CommandRef struct {
	Path    string `json:"path"`
	ModTime int64  `json:"mtime"`
}

// Scope holds the entries of one catalog scope (shared or one project).
type Scope struct {
	BasePath string                `json:"base_path"`
	Keywords []string              `json:"keywords,omitempty"`
	Agents   map[string]*Entry     `json:"agents"`
	Skills   map[string]*Entry     `json:"skills"`
	Commands map[string]CommandRef `json:"commands,omitempty"`
}

// NewScope returns an empty scope rooted at basePath.
func NewScope(basePath string) *Scope {
	return &Scope{
		BasePath: basePath,
		Agents:   make(map[string]*Entry),
		Skills:   make(map[string]*Entry),
	}
}

// Catalog is the persisted registry of all known agents and skills, keyed by
// scope. Project entries shadow shared entries of the same name only in that
// project's merged view.
type Catalog struct {
	Version    string            `json:"version"`
	LastSynced *time.Time        `json:"last_synced"`
	Shared     *Scope            `json:"shared"`
	Projects   map[string]*Scope `json:"projects"`
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		Version:  "1.0",
		Shared:   NewScope(""),
		Projects: make(map[string]*Scope),
	}
}

// Project returns the named project scope, or nil if unknown.
func (c *Catalog) Project(name string) *Scope {
	if c.Projects == nil {
		return nil
	}
	return c.Projects[name]
}

// SyncStats reports the outcome of one registry sync pass.
type SyncStats struct {
	Unchanged int `json:"unchanged"`
	Added     int `json:"added"`
	Modified  int `json:"modified"`
	Removed   int `json:"removed"`
}

// Package sequencer turns tier-grouped match results into a validated,
// tier-ordered execution plan with parallel/sequential grouping. It only
// plans; it never runs anything.
package sequencer

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/stagehand-dev/stagehand/pkg/docstate"
	"github.com/stagehand-dev/stagehand/pkg/logger"
	"github.com/stagehand-dev/stagehand/pkg/types/catalog"
)

// Builder assembles execution plans. The document-state checker is the only
// external collaborator; a nil checker behaves as permanently unavailable
// (every prerequisite check fails open).
type Builder struct {
	checker docstate.Checker
}

// NewBuilder creates a sequence builder using the given prerequisite
// checker.
func NewBuilder(checker docstate.Checker) *Builder {
	return &Builder{checker: checker}
}

// Options configures one plan build.
type Options struct {
	// SkipValidation marks every stage "skipped" instead of consulting
	// the collaborator.
	SkipValidation bool
	// FeaturePath is handed to the collaborator; when empty the match
	// set's project name is used, falling back to ".".
	FeaturePath string
}

// Build constructs the execution plan for a match set. Stages appear in
// ascending tier order; a blocked stage is still included in the plan, it is
// only marked. Per-tier validation failures never abort the build.
func (b *Builder) Build(ctx context.Context, matches *catalog.MatchSet, opts Options) (*catalog.Plan, error) {
	if matches == nil {
		return nil, errors.New("match results are required")
	}

	featurePath := opts.FeaturePath
	if featurePath == "" {
		featurePath = matches.Project
	}
	if featurePath == "" {
		featurePath = "."
	}

	plan := &catalog.Plan{
		ID:                  uuid.NewString(),
		Project:             matches.Project,
		RequirementsSummary: matches.RequirementsSummary,
		Validation: catalog.PlanValidation{
			AllValid:       true,
			SkipValidation: opts.SkipValidation,
			Errors:         []catalog.ValidationError{},
		},
		Stages:          []catalog.Stage{},
		AvailableSkills: skillReferences(matches),
	}

	for _, tier := range matches.SortedTiers() {
		group := matches.ByTier[tier]
		if len(group) == 0 {
			continue
		}

		stage := b.buildStage(ctx, tier, group, featurePath, opts.SkipValidation)
		plan.Stages = append(plan.Stages, stage)
		plan.TotalAgents += len(group)

		if !stage.Validation.Valid {
			plan.Validation.AllValid = false
			plan.Validation.Errors = append(plan.Validation.Errors, catalog.ValidationError{
				Tier:    tier,
				Message: stage.Validation.Message,
			})
		}
	}

	plan.TotalStages = len(plan.Stages)
	plan.ExecutionNotes = executionNotes(plan.Stages)

	return plan, nil
}

func (b *Builder) buildStage(ctx context.Context, tier int, group []catalog.MatchResult, featurePath string, skipValidation bool) catalog.Stage {
	def, ok := tierDefinitions[tier]
	if !ok {
		def = tierDefinition{
			Name:           fmt.Sprintf("Tier %d", tier),
			Description:    "Unknown tier",
			Wait:           true,
			ParallelWithin: true,
		}
	}

	var validation catalog.StageValidation
	if skipValidation {
		validation = catalog.StageValidation{Valid: true, Skipped: true}
	} else {
		validation = b.validateTier(ctx, tier, featurePath)
	}

	var parallel, sequential []catalog.StageAgent
	for _, match := range group {
		agent := catalog.StageAgent{
			Name:     match.Name,
			Path:     match.Path,
			Category: match.Category,
			Tiers:    match.Tiers,
			Score:    match.Score,
		}
		if match.Parallel {
			parallel = append(parallel, agent)
		} else {
			sequential = append(sequential, agent)
		}
	}

	// The group arrives score-descending; partition preserves that, but
	// sort again so hand-assembled match sets behave the same.
	sortByScore(parallel)
	sortByScore(sequential)

	return catalog.Stage{
		Tier:              tier,
		Name:              def.Name,
		Description:       def.Description,
		WaitForCompletion: def.Wait,
		Validation:        validation,
		ParallelAgents:    emptyIfNil(parallel),
		SequentialAgents:  emptyIfNil(sequential),
	}
}

// validateTier checks the tier's document prerequisites. Three outcomes are
// preserved exactly: collaborator unavailable fails open to valid,
// invalid/timeout/garbled responses block the tier with a message, and a
// clean verdict passes through.
func (b *Builder) validateTier(ctx context.Context, tier int, featurePath string) catalog.StageValidation {
	requirement, ok := docRequirements[tier]
	if !ok {
		return catalog.StageValidation{Valid: true}
	}

	for _, docType := range requirement.Required {
		if b.checker == nil {
			return catalog.StageValidation{Valid: true}
		}

		result, err := b.checker.Check(ctx, docType, featurePath)
		switch {
		case errors.Is(err, docstate.ErrUnavailable):
			// Fail open: planning proceeds without the collaborator.
			logger.G(ctx).WithField("tier", tier).Debug("document collaborator unavailable, skipping prerequisite check")
			return catalog.StageValidation{Valid: true}
		case errors.Is(err, docstate.ErrTimeout):
			return catalog.StageValidation{
				Valid:   false,
				Message: fmt.Sprintf("Timeout validating %s document", docType),
			}
		case errors.Is(err, docstate.ErrInvalidResponse):
			return catalog.StageValidation{
				Valid:   false,
				Message: fmt.Sprintf("Invalid response validating %s document", docType),
			}
		case err != nil:
			return catalog.StageValidation{Valid: false, Message: err.Error()}
		case !result.Valid:
			return catalog.StageValidation{Valid: false, Message: requirement.Message}
		}
	}

	return catalog.StageValidation{Valid: true}
}

// skillReferences returns the advisory skill references of a match set:
// matched skills without tiers, which are never scheduled into a stage.
func skillReferences(matches *catalog.MatchSet) []catalog.SkillReference {
	names := make([]string, 0, len(matches.MatchedSkills))
	for name, skill := range matches.MatchedSkills {
		if len(skill.Tiers) == 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	refs := make([]catalog.SkillReference, 0, len(names))
	for _, name := range names {
		skill := matches.MatchedSkills[name]
		refs = append(refs, catalog.SkillReference{
			Name:     name,
			Path:     skill.Path,
			Category: skill.Category,
		})
	}
	return refs
}

// executionNotes generates one human-readable note per stage. Notes are
// descriptive only; nothing in the planner consumes them.
func executionNotes(stages []catalog.Stage) []string {
	notes := make([]string, 0, len(stages))

	for _, stage := range stages {
		parallelCount := len(stage.ParallelAgents)
		sequentialCount := len(stage.SequentialAgents)

		switch {
		case parallelCount > 0 && sequentialCount > 0:
			notes = append(notes, fmt.Sprintf(
				"Tier %d (%s): Run %d sequential agent(s) first, then %d in parallel",
				stage.Tier, stage.Name, sequentialCount, parallelCount))
		case parallelCount > 1:
			notes = append(notes, fmt.Sprintf(
				"Tier %d (%s): Run %d agents in parallel",
				stage.Tier, stage.Name, parallelCount))
		case parallelCount == 1:
			notes = append(notes, fmt.Sprintf(
				"Tier %d (%s): Run %s",
				stage.Tier, stage.Name, stage.ParallelAgents[0].Name))
		case sequentialCount > 0:
			notes = append(notes, fmt.Sprintf(
				"Tier %d (%s): Run %d agent(s) sequentially",
				stage.Tier, stage.Name, sequentialCount))
		}
	}

	return notes
}

func sortByScore(agents []catalog.StageAgent) {
	sort.SliceStable(agents, func(i, j int) bool {
		return agents[i].Score > agents[j].Score
	})
}

func emptyIfNil(agents []catalog.StageAgent) []catalog.StageAgent {
	if agents == nil {
		return []catalog.StageAgent{}
	}
	return agents
}

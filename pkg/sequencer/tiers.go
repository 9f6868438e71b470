package sequencer

import "github.com/stagehand-dev/stagehand/pkg/types/catalog"

// tierDefinition is the fixed metadata of one execution tier.
type tierDefinition struct {
	Name           string
	Description    string
	Wait           bool
	ParallelWithin bool
}

// tierDefinitions covers the closed tier set 0..5.
var tierDefinitions = map[int]tierDefinition{
	catalog.TierGitSetup: {
		Name:           "Git Setup",
		Description:    "Branch creation and git flow setup",
		Wait:           true,
		ParallelWithin: false,
	},
	catalog.TierExplore: {
		Name:           "Explore & Research",
		Description:    "Codebase exploration and external research",
		Wait:           true,
		ParallelWithin: true,
	},
	catalog.TierExpertise: {
		Name:           "Domain Expertise",
		Description:    "Consult domain experts for guidance",
		Wait:           true,
		ParallelWithin: true,
	},
	catalog.TierPlanning: {
		Name:           "Planning",
		Description:    "Create implementation plans from gathered context",
		Wait:           true,
		ParallelWithin: false,
	},
	catalog.TierImplementation: {
		Name:           "Implementation",
		Description:    "Execute implementation tasks",
		Wait:           true,
		ParallelWithin: true,
	},
	catalog.TierValidation: {
		Name:           "Validation",
		Description:    "Testing, review, and verification",
		Wait:           true,
		ParallelWithin: true,
	},
}

// docRequirement names the documents a tier needs before it may run.
type docRequirement struct {
	Required []string
	Message  string
}

// docRequirements lists tier prerequisites checked against the document
// state collaborator. Planning needs an investigation from the research
// tier; implementation needs a plan from the planning tier.
var docRequirements = map[int]docRequirement{
	catalog.TierPlanning: {
		Required: []string{"investigation"},
		Message:  "Planning requires investigation. Run Tier 1 first.",
	},
	catalog.TierImplementation: {
		Required: []string{"plan"},
		Message:  "Implementation requires valid plan. Run Tier 3 first.",
	},
}

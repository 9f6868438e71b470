package catalog

// StageValidation records the prerequisite-validation outcome of one stage.
// Exactly one of three terminal states applies per plan build: valid
// (Valid=true, Skipped=false), skipped (Valid=true, Skipped=true) or blocked
// (Valid=false, with Message set). A later rebuild with updated external
// state may reclassify.
type StageValidation struct {
	Valid   bool   `json:"valid"`
	Skipped bool   `json:"skipped"`
	Message string `json:"message"`
}

// StageAgent is the scheduling view of a matched entry within one stage.
// Tiers lists every tier the entry belongs to, not just the stage's.
type StageAgent struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Category string  `json:"category"`
	Tiers    []int   `json:"tiers"`
	Score    float64 `json:"match_score"`
}

// Stage is one tier's worth of the execution plan. The external runtime is
// expected to run SequentialAgents in listed order before launching all
// ParallelAgents concurrently, and to complete the whole stage before the
// next one starts.
type Stage struct {
	Tier              int             `json:"tier"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	WaitForCompletion bool            `json:"wait_for_completion"`
	Validation        StageValidation `json:"validation"`
	ParallelAgents    []StageAgent    `json:"parallel_agents"`
	SequentialAgents  []StageAgent    `json:"sequential_agents"`
}

// ValidationError pairs a blocked tier with its message.
type ValidationError struct {
	Tier    int    `json:"tier"`
	Message string `json:"message"`
}

// PlanValidation aggregates per-stage validation outcomes.
type PlanValidation struct {
	AllValid       bool              `json:"all_valid"`
	SkipValidation bool              `json:"skip_validation"`
	Errors         []ValidationError `json:"errors"`
}

// SkillReference is an advisory pointer to a matched skill. Skills are never
// scheduled into a stage; they are surfaced for the runtime to consult.
type SkillReference struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Category string `json:"category"`
}

// Plan is the ordered execution plan emitted by the sequence builder.
type Plan struct {
	ID                  string           `json:"id"`
	Project             string           `json:"project,omitempty"`
	RequirementsSummary string           `json:"requirements_summary"`
	TotalAgents         int              `json:"total_agents"`
	TotalStages         int              `json:"total_stages"`
	Validation          PlanValidation   `json:"validation"`
	Stages              []Stage          `json:"stages"`
	AvailableSkills     []SkillReference `json:"available_skills"`
	ExecutionNotes      []string         `json:"execution_notes"`
}

package sequencer

import (
	"fmt"
	"strings"

	"github.com/stagehand-dev/stagehand/pkg/types/catalog"
)

// RenderPrompt renders an execution plan as a markdown prompt for a workflow
// orchestrator: per-stage sequential and parallel listings followed by
// execution instructions.
func RenderPrompt(plan *catalog.Plan, requirements string) string {
	project := plan.Project
	if project == "" {
		project = "shared"
	}
	if len(requirements) > 1000 {
		requirements = requirements[:1000]
	}

	var sb strings.Builder
	w := func(format string, args ...interface{}) {
		fmt.Fprintf(&sb, format+"\n", args...)
	}

	w("## Workflow Execution Plan")
	w("")
	w("**Project**: %s", project)
	w("**Total Agents**: %d", plan.TotalAgents)
	w("**Stages**: %d", plan.TotalStages)
	w("")
	w("### Requirements")
	w("%s", requirements)
	w("")
	w("### Execution Sequence")
	w("")

	for _, stage := range plan.Stages {
		w("#### Stage %d: %s", stage.Tier, stage.Name)
		w("*%s*", stage.Description)
		w("")

		if len(stage.SequentialAgents) > 0 {
			w("**Sequential (run in order):**")
			for _, agent := range stage.SequentialAgents {
				w("1. `%s` - %s", agent.Name, agent.Category)
			}
			w("")
		}

		if len(stage.ParallelAgents) > 0 {
			w("**Parallel (run simultaneously):**")
			for _, agent := range stage.ParallelAgents {
				w("- `%s` - %s", agent.Name, agent.Category)
			}
			w("")
		}
	}

	if len(plan.AvailableSkills) > 0 {
		w("### Available Skills")
		for _, skill := range plan.AvailableSkills {
			w("- `%s` (%s)", skill.Name, skill.Category)
		}
		w("")
	}

	w("### Execution Instructions")
	w("")
	w("1. Execute each stage in order (Tier 0 through Tier 5)")
	w("2. Within each stage, run sequential agents first")
	w("3. Then launch parallel agents simultaneously")
	w("4. Wait for all agents in a stage to complete before proceeding")
	w("5. Pass relevant outputs from earlier stages to later ones")
	w("6. Use available skills as needed for reference")

	return sb.String()
}

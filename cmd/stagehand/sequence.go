package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/pkg/matcher"
	"github.com/stagehand-dev/stagehand/pkg/presenter"
	"github.com/stagehand-dev/stagehand/pkg/sequencer"
	"github.com/stagehand-dev/stagehand/pkg/types/catalog"
)

// SequenceConfig holds configuration for the sequence command.
type SequenceConfig struct {
	Requirements   string
	Project        string
	Threshold      float64
	FeaturePath    string
	SkipValidation bool
	JSONOutput     bool
	PromptOutput   bool
}

// NewSequenceConfig creates a SequenceConfig with default values.
func NewSequenceConfig() *SequenceConfig {
	return &SequenceConfig{
		Threshold: matcher.DefaultThreshold,
	}
}

var sequenceCmd = &cobra.Command{
	Use:   "sequence [match-file]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Build a tier-ordered execution plan from matches",
	Long: `Turn a match set into a validated, tier-ordered execution plan. Matches
are read as JSON from the given file, or from stdin when piped; with
--requirements the registry is loaded and matched first. Stage prerequisites
are validated against the document-state checker unless --skip-validation is
given.`,
	Run: func(cmd *cobra.Command, args []string) {
		config := getSequenceConfigFromFlags(cmd)
		ctx := cmd.Context()

		matches, err := resolveMatches(cmd, config, args)
		if err != nil {
			presenter.Error(err, "Failed to resolve matches")
			os.Exit(1)
		}

		builder := sequencer.NewBuilder(checkerFromViper())
		plan, err := builder.Build(ctx, matches, sequencer.Options{
			SkipValidation: config.SkipValidation,
			FeaturePath:    config.FeaturePath,
		})
		if err != nil {
			presenter.Error(err, "Failed to build execution plan")
			os.Exit(1)
		}

		switch {
		case config.PromptOutput:
			fmt.Println(sequencer.RenderPrompt(plan, matches.RequirementsSummary))
		case config.JSONOutput:
			out, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				presenter.Error(err, "Failed to format plan")
				os.Exit(1)
			}
			fmt.Println(string(out))
		default:
			printPlan(plan)
		}

		if !plan.Validation.AllValid {
			os.Exit(2)
		}
	},
}

func init() {
	defaults := NewSequenceConfig()
	sequenceCmd.Flags().StringP("requirements", "r", defaults.Requirements, "Match these requirements instead of reading matches from stdin")
	sequenceCmd.Flags().StringP("project", "p", defaults.Project, "Project scope to merge over the shared scope (with --requirements)")
	sequenceCmd.Flags().Float64P("threshold", "t", defaults.Threshold, "Minimum match score (with --requirements)")
	sequenceCmd.Flags().String("feature-path", defaults.FeaturePath, "Feature directory passed to document validation")
	sequenceCmd.Flags().Bool("skip-validation", defaults.SkipValidation, "Skip document-state validation of stage prerequisites")
	sequenceCmd.Flags().Bool("json", defaults.JSONOutput, "Output the plan as JSON")
	sequenceCmd.Flags().Bool("prompt", defaults.PromptOutput, "Output the plan as a runtime prompt")
	rootCmd.AddCommand(sequenceCmd)
}

func getSequenceConfigFromFlags(cmd *cobra.Command) *SequenceConfig {
	config := NewSequenceConfig()
	if requirements, err := cmd.Flags().GetString("requirements"); err == nil {
		config.Requirements = requirements
	}
	if project, err := cmd.Flags().GetString("project"); err == nil {
		config.Project = project
	}
	if threshold, err := cmd.Flags().GetFloat64("threshold"); err == nil {
		config.Threshold = threshold
	}
	if featurePath, err := cmd.Flags().GetString("feature-path"); err == nil {
		config.FeaturePath = featurePath
	}
	if skip, err := cmd.Flags().GetBool("skip-validation"); err == nil {
		config.SkipValidation = skip
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}
	if prompt, err := cmd.Flags().GetBool("prompt"); err == nil {
		config.PromptOutput = prompt
	}
	return config
}

// resolveMatches obtains the match set the plan is built from, either by
// matching fresh requirements against the stored registry or by decoding a
// match set piped on stdin.
func resolveMatches(cmd *cobra.Command, config *SequenceConfig, args []string) (*catalog.MatchSet, error) {
	if requirements := strings.TrimSpace(config.Requirements); requirements != "" {
		store, err := openStore(cmd.Context())
		if err != nil {
			return nil, err
		}
		defer store.Close()

		cat, err := store.Load(cmd.Context())
		if err != nil {
			return nil, err
		}
		return matcher.Match(requirements, cat, config.Project, config.Threshold), nil
	}

	var raw string
	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, errors.Wrap(err, "reading match file")
		}
		raw = string(data)
	} else {
		raw = readStdinIfPiped()
	}
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("no matches given: pass a match file, pipe matches on stdin, or use --requirements")
	}
	var matches catalog.MatchSet
	if err := json.Unmarshal([]byte(raw), &matches); err != nil {
		return nil, errors.Wrap(err, "decoding match set")
	}
	return &matches, nil
}

func printPlan(plan *catalog.Plan) {
	presenter.Section(fmt.Sprintf("Execution plan: %d agents across %d stages", plan.TotalAgents, plan.TotalStages))

	switch {
	case plan.Validation.SkipValidation:
		presenter.Warning("Validation: SKIPPED")
	case plan.Validation.AllValid:
		presenter.Success("Validation: PASSED")
	default:
		presenter.Warning("Validation: FAILED")
		for _, failure := range plan.Validation.Errors {
			presenter.Warning(fmt.Sprintf("  Tier %d: %s", failure.Tier, failure.Message))
		}
	}

	for _, stage := range plan.Stages {
		marker := ""
		switch {
		case stage.Validation.Skipped:
			marker = " [SKIPPED]"
		case !stage.Validation.Valid:
			marker = " [BLOCKED]"
		}
		presenter.Info(fmt.Sprintf("Stage %d: %s%s", stage.Tier, stage.Name, marker))
		if !stage.Validation.Valid && stage.Validation.Message != "" {
			presenter.Warning("  " + stage.Validation.Message)
		}
		for _, agent := range stage.SequentialAgents {
			presenter.Info(fmt.Sprintf("  - %s (score: %.1f)", agent.Name, agent.Score))
		}
		for _, agent := range stage.ParallelAgents {
			presenter.Info(fmt.Sprintf("  - %s (score: %.1f, parallel)", agent.Name, agent.Score))
		}
	}

	if len(plan.AvailableSkills) > 0 {
		presenter.Info("Available skills:")
		for _, skill := range plan.AvailableSkills {
			presenter.Info(fmt.Sprintf("  - %s (%s)", skill.Name, skill.Path))
		}
	}

	for _, note := range plan.ExecutionNotes {
		presenter.Info("Note: " + note)
	}
}

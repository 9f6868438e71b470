package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/pkg/matcher"
	"github.com/stagehand-dev/stagehand/pkg/presenter"
	"github.com/stagehand-dev/stagehand/pkg/types/catalog"
)

// MatchConfig holds configuration for the match command.
type MatchConfig struct {
	Project       string
	Threshold     float64
	DetectProject bool
	JSONOutput    bool
}

// NewMatchConfig creates a MatchConfig with default values.
func NewMatchConfig() *MatchConfig {
	return &MatchConfig{
		Threshold: matcher.DefaultThreshold,
	}
}

var matchCmd = &cobra.Command{
	Use:   "match [requirements]",
	Short: "Match work requirements against the registry",
	Long: `Score every cataloged agent and skill against free-text requirements and
group the entries that clear the threshold by execution tier. Requirements are
read from the arguments, or from stdin when piped.`,
	Run: func(cmd *cobra.Command, args []string) {
		config := getMatchConfigFromFlags(cmd)
		ctx := cmd.Context()

		requirements := strings.TrimSpace(strings.Join(args, " "))
		if requirements == "" {
			requirements = strings.TrimSpace(readStdinIfPiped())
		}
		if requirements == "" {
			presenter.Error(errors.New("no requirements provided"), "Pass requirements as arguments or pipe them on stdin")
			os.Exit(1)
		}

		store, err := openStore(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open registry store")
			os.Exit(1)
		}
		defer store.Close()

		cat, err := store.Load(ctx)
		if err != nil {
			presenter.Error(err, "Failed to load registry")
			os.Exit(1)
		}

		project := config.Project
		if project == "" && config.DetectProject {
			if project = matcher.DetectProject(requirements, cat); project != "" {
				presenter.Info("Detected project: " + project)
			}
		}

		matches := matcher.Match(requirements, cat, project, config.Threshold)

		if config.JSONOutput {
			out, err := json.MarshalIndent(matches, "", "  ")
			if err != nil {
				presenter.Error(err, "Failed to format matches")
				os.Exit(1)
			}
			fmt.Println(string(out))
			return
		}

		printMatches(matches)
	},
}

func init() {
	defaults := NewMatchConfig()
	matchCmd.Flags().StringP("project", "p", defaults.Project, "Project scope to merge over the shared scope")
	matchCmd.Flags().Float64P("threshold", "t", defaults.Threshold, "Minimum score an entry must reach to be retained")
	matchCmd.Flags().Bool("detect-project", defaults.DetectProject, "Detect the project from keywords in the requirements")
	matchCmd.Flags().Bool("json", defaults.JSONOutput, "Output matches as JSON")
	rootCmd.AddCommand(matchCmd)
}

func getMatchConfigFromFlags(cmd *cobra.Command) *MatchConfig {
	config := NewMatchConfig()
	if project, err := cmd.Flags().GetString("project"); err == nil {
		config.Project = project
	}
	if threshold, err := cmd.Flags().GetFloat64("threshold"); err == nil {
		config.Threshold = threshold
	}
	if detect, err := cmd.Flags().GetBool("detect-project"); err == nil {
		config.DetectProject = detect
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}
	return config
}

func printMatches(matches *catalog.MatchSet) {
	tiers := matches.SortedTiers()
	presenter.Section(fmt.Sprintf("Matched %d agents and %d skills across %d tiers",
		len(matches.MatchedAgents), len(matches.MatchedSkills), len(tiers)))

	for _, tier := range tiers {
		name, ok := catalog.TierNames[tier]
		if !ok {
			name = fmt.Sprintf("Tier %d", tier)
		}
		presenter.Info(fmt.Sprintf("Tier %d: %s", tier, name))
		for _, match := range matches.ByTier[tier] {
			suffix := ""
			if match.Parallel {
				suffix = ", parallel"
			}
			presenter.Info(fmt.Sprintf("  - %s (score: %.1f%s)", match.Name, match.Score, suffix))
		}
	}

	advisory := make([]string, 0, len(matches.MatchedSkills))
	for name, match := range matches.MatchedSkills {
		if len(match.Tiers) == 0 {
			advisory = append(advisory, name)
		}
	}
	if len(advisory) > 0 {
		sort.Strings(advisory)
		presenter.Info("Available skills:")
		for _, name := range advisory {
			presenter.Info("  - " + name)
		}
	}

	if matches.TotalMatched == 0 {
		presenter.Warning("No entries cleared the threshold")
	}
}

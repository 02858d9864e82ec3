package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jingkaihe/skillet/pkg/history"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/jingkaihe/skillet/pkg/selector"
	"github.com/spf13/cobra"
)

// SelectConfig holds configuration for the select command
type SelectConfig struct {
	All    bool
	Record bool
	JSON   bool
}

// NewSelectConfig creates a new SelectConfig with default values
func NewSelectConfig() *SelectConfig {
	return &SelectConfig{}
}

var selectCmd = withTracing(&cobra.Command{
	Use:   "select <text...>",
	Short: "Pick the skill that fits a request",
	Long: `Score every skill against the request text and print the one that fits best.
Nothing is selected when no skill reaches the minimum score.

Examples:
  skillet select "How does this authentication middleware work?"
  skillet select --all why is the import so slow`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSelect(cmd.Context(), strings.Join(args, " "), getSelectConfigFromFlags(cmd))
	},
})

func init() {
	defaults := NewSelectConfig()
	selectCmd.Flags().Bool("all", defaults.All, "Show every skill that scored, best first")
	selectCmd.Flags().Bool("record", defaults.Record, "Record the selection in the history database")
	selectCmd.Flags().Bool("json", defaults.JSON, "Print the result as JSON")
	rootCmd.AddCommand(selectCmd)
}

func getSelectConfigFromFlags(cmd *cobra.Command) *SelectConfig {
	config := NewSelectConfig()
	if all, err := cmd.Flags().GetBool("all"); err == nil {
		config.All = all
	}
	if record, err := cmd.Flags().GetBool("record"); err == nil {
		config.Record = record
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	return config
}

// selectOutput is the JSON form of a selection.
type selectOutput struct {
	Selected   bool              `json:"selected"`
	Skill      string            `json:"skill,omitempty"`
	Score      float64           `json:"score,omitempty"`
	Reasons    []string          `json:"reasons,omitempty"`
	Candidates []selectCandidate `json:"candidates,omitempty"`
}

type selectCandidate struct {
	Skill   string   `json:"skill"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

func runSelect(ctx context.Context, text string, config *SelectConfig) error {
	mode := historyIfEnabled
	if config.Record {
		mode = historyOn
	}
	a, err := newApp(ctx, mode)
	if err != nil {
		return err
	}
	defer a.Close()

	sel, ok := a.service.Select(ctx, text, history.SurfaceCLI)
	var ranked []selector.Selection
	if config.All {
		ranked = a.service.Rank(ctx, text)
	}

	if config.JSON {
		if err := printSelectJSON(sel, ok, ranked); err != nil {
			return err
		}
		if !ok {
			return errSilentFailure
		}
		return nil
	}

	if config.All {
		printRanking(ranked)
	}

	if !ok {
		presenter.Warning("No skill matched")
		return errSilentFailure
	}

	presenter.Print(sel.Skill.Name + "\n")
	presenter.Info(fmt.Sprintf("score %.1f: %s", sel.Score, strings.Join(sel.Reasons, ", ")))
	return nil
}

func printRanking(ranked []selector.Selection) {
	if len(ranked) == 0 {
		return
	}
	rows := make([][]string, 0, len(ranked))
	for _, r := range ranked {
		rows = append(rows, []string{r.Skill.Name, fmt.Sprintf("%.1f", r.Score), strings.Join(r.Reasons, ", ")})
	}
	presenter.Table([]string{"SKILL", "SCORE", "REASONS"}, rows)
}

func printSelectJSON(sel *selector.Selection, ok bool, ranked []selector.Selection) error {
	out := selectOutput{Selected: ok}
	if ok {
		out.Skill = sel.Skill.Name
		out.Score = sel.Score
		out.Reasons = sel.Reasons
	}
	for _, r := range ranked {
		out.Candidates = append(out.Candidates, selectCandidate{Skill: r.Skill.Name, Score: r.Score, Reasons: r.Reasons})
	}

	return printJSON(out)
}

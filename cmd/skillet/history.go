package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jingkaihe/skillet/pkg/history"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// HistoryListConfig holds configuration for the history list command
type HistoryListConfig struct {
	Limit int
	Skill string
	JSON  bool
}

// NewHistoryListConfig creates a new HistoryListConfig with default values
func NewHistoryListConfig() *HistoryListConfig {
	return &HistoryListConfig{Limit: 20}
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded skill selections",
	Long: `Inspect the selections recorded in the history database. Selections are
recorded when history.enabled is set or select is run with --record.`,
}

var historyListCmd = withTracing(&cobra.Command{
	Use:   "list",
	Short: "List recorded selections, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runHistoryList(cmd.Context(), getHistoryListConfigFromFlags(cmd))
	},
})

var historyStatsCmd = withTracing(&cobra.Command{
	Use:   "stats",
	Short: "Show how often each skill was selected",
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return runHistoryStats(cmd.Context(), asJSON)
	},
})

func init() {
	defaults := NewHistoryListConfig()
	historyListCmd.Flags().IntP("limit", "n", defaults.Limit, "Maximum number of selections to show")
	historyListCmd.Flags().String("skill", defaults.Skill, "Only show selections of this skill")
	historyListCmd.Flags().Bool("json", defaults.JSON, "Print the selections as JSON")
	historyStatsCmd.Flags().Bool("json", false, "Print the statistics as JSON")

	historyCmd.AddCommand(historyListCmd, historyStatsCmd)
	rootCmd.AddCommand(historyCmd)
}

func getHistoryListConfigFromFlags(cmd *cobra.Command) *HistoryListConfig {
	config := NewHistoryListConfig()
	if limit, err := cmd.Flags().GetInt("limit"); err == nil {
		config.Limit = limit
	}
	if skill, err := cmd.Flags().GetString("skill"); err == nil {
		config.Skill = skill
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	return config
}

func openHistory(ctx context.Context) (*history.Store, error) {
	return history.Open(ctx, viper.GetString("history.db_path"))
}

func runHistoryList(ctx context.Context, config *HistoryListConfig) error {
	if config.Limit < 0 {
		return errors.Errorf("limit cannot be negative: %d", config.Limit)
	}

	store, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(ctx, history.ListOptions{Limit: config.Limit, Skill: config.Skill})
	if err != nil {
		return err
	}

	if config.JSON {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		presenter.Info("No selections recorded")
		return nil
	}
	presenter.Table([]string{"TIME", "SURFACE", "SKILL", "SCORE", "TEXT"}, historyRows(entries))
	return nil
}

func runHistoryStats(ctx context.Context, asJSON bool) error {
	store, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(stats)
	}

	presenter.Section("Selections")
	presenter.Info(fmt.Sprintf("%d total, %d unmatched", stats.Total, stats.Unmatched))
	if len(stats.Skills) == 0 {
		return nil
	}
	presenter.Table([]string{"SKILL", "COUNT", "AVG SCORE", "LAST SELECTED"}, statsRows(stats.Skills))
	return nil
}

func historyRows(entries []history.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		skill := e.Skill
		if skill == "" {
			skill = "-"
		}
		rows = append(rows, []string{
			e.CreatedAt.Local().Format(time.DateTime),
			string(e.Surface),
			skill,
			fmt.Sprintf("%.1f", e.Score),
			truncate(e.Text, 60),
		})
	}
	return rows
}

func statsRows(stats []history.SkillStat) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			s.Skill,
			fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%.2f", s.AvgScore),
			s.LastSelected.Local().Format(time.DateTime),
		})
	}
	return rows
}

// truncate shortens s to at most n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	presenter.Print(string(data) + "\n")
	return nil
}

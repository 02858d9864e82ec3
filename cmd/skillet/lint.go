package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jingkaihe/skillet/pkg/lint"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// LintConfig holds configuration for the lint command
type LintConfig struct {
	Strict   bool
	Watch    bool
	Builtin  bool
	JSON     bool
	Diff     bool
	Debounce time.Duration
}

// NewLintConfig creates a new LintConfig with default values
func NewLintConfig() *LintConfig {
	return &LintConfig{
		Debounce: lint.DefaultWatchDebounce,
	}
}

// Validate validates the LintConfig
func (c *LintConfig) Validate() error {
	if c.Watch && c.Builtin {
		return errors.New("--watch cannot be combined with --builtin")
	}
	if c.Debounce < 0 {
		return errors.Errorf("debounce cannot be negative: %s", c.Debounce)
	}
	return nil
}

var lintCmd = withTracing(&cobra.Command{
	Use:   "lint [paths or globs...]",
	Short: "Check skill files",
	Long: `Check skill files for problems: front-matter that does not parse or does not
survive a byte-identical round trip, missing name or description, files that
are not in canonical format, duplicate names, invalid triggers, and template
sections whose order differs from the README next to the skill.

Directories are searched recursively for SKILL.md; globs support **.
Warnings only fail the run with --strict.

Examples:
  skillet lint
  skillet lint .skillet/skills --strict
  skillet lint 'skills/**/SKILL.md' --watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLint(cmd.Context(), args, getLintConfigFromFlags(cmd))
	},
})

func init() {
	defaults := NewLintConfig()
	lintCmd.Flags().Bool("strict", defaults.Strict, "Fail on warnings too")
	lintCmd.Flags().BoolP("watch", "w", defaults.Watch, "Re-run whenever a file changes")
	lintCmd.Flags().Bool("builtin", defaults.Builtin, "Lint the built-in skills")
	lintCmd.Flags().Bool("json", defaults.JSON, "Print the report as JSON")
	lintCmd.Flags().Bool("diff", defaults.Diff, "Show the formatting diff of format issues")
	lintCmd.Flags().Duration("debounce", defaults.Debounce, "Quiet period before re-running in watch mode")
	rootCmd.AddCommand(lintCmd)
}

func getLintConfigFromFlags(cmd *cobra.Command) *LintConfig {
	config := NewLintConfig()
	if strict, err := cmd.Flags().GetBool("strict"); err == nil {
		config.Strict = strict
	}
	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	if builtin, err := cmd.Flags().GetBool("builtin"); err == nil {
		config.Builtin = builtin
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	if diff, err := cmd.Flags().GetBool("diff"); err == nil {
		config.Diff = diff
	}
	if debounce, err := cmd.Flags().GetDuration("debounce"); err == nil {
		config.Debounce = debounce
	}
	return config
}

func runLint(ctx context.Context, patterns []string, config *LintConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	var opts []lint.Option
	if config.Builtin {
		opts = append(opts, lint.WithFS(skills.BuiltinFS()))
	}
	linter := lint.New(opts...)

	if config.Watch {
		ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer cancel()

		presenter.Info("Watching for changes. Press Ctrl+C to stop.")
		return linter.Watch(ctx, config.Debounce, func(report *lint.Report, err error) {
			if err != nil {
				presenter.Error(err, "Lint failed")
				return
			}
			presenter.Separator()
			_ = printLintReport(os.Stdout, report, config)
		}, patterns...)
	}

	report, err := linter.Lint(ctx, patterns...)
	if err != nil {
		return err
	}
	if err := printLintReport(os.Stdout, report, config); err != nil {
		return err
	}
	if report.Err(config.Strict) != nil {
		return errSilentFailure
	}
	return nil
}

func printLintReport(w io.Writer, report *lint.Report, config *LintConfig) error {
	if config.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return errors.Wrap(err, "failed to encode lint report")
		}
		return nil
	}

	for _, issue := range report.Issues {
		fmt.Fprintf(w, "%s %s\n", severityLabel(issue.Severity), issue.Error())
		if config.Diff && issue.Diff != "" {
			presenter.Diff(issue.Diff)
		}
	}

	errs, warnings := report.Count()
	summary := fmt.Sprintf("%d file(s) checked, %d error(s), %d warning(s)", len(report.Files), errs, warnings)
	switch {
	case errs > 0 || (config.Strict && warnings > 0):
		presenter.Warning(summary)
	default:
		presenter.Success(summary)
	}
	return nil
}

func severityLabel(s lint.Severity) string {
	if s == lint.SeverityError {
		return "error:  "
	}
	return "warning:"
}

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/aymanbagabas/go-udiff"
	"github.com/jingkaihe/skillet/pkg/frontmatter"
	"github.com/jingkaihe/skillet/pkg/lint"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
	"github.com/spf13/cobra"
)

// FmtConfig holds configuration for the fmt command
type FmtConfig struct {
	Write bool
	Diff  bool
}

// NewFmtConfig creates a new FmtConfig with default values
func NewFmtConfig() *FmtConfig {
	return &FmtConfig{}
}

var fmtCmd = withTracing(&cobra.Command{
	Use:   "fmt [paths or globs...]",
	Short: "Rewrite skill files in canonical format",
	Long: `Check that skill files are in canonical format: name and description first,
block style front-matter with two-space indentation, LF line endings, one
blank line before the body and a single trailing newline.

Without --write the files are left untouched and the command fails when any
of them would change.

Examples:
  skillet fmt --diff
  skillet fmt .skillet/skills --write`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFmt(cmd.Context(), args, getFmtConfigFromFlags(cmd))
	},
})

func init() {
	defaults := NewFmtConfig()
	fmtCmd.Flags().BoolP("write", "w", defaults.Write, "Write the formatted files in place")
	fmtCmd.Flags().BoolP("diff", "d", defaults.Diff, "Show the changes as a unified diff")
	rootCmd.AddCommand(fmtCmd)
}

func getFmtConfigFromFlags(cmd *cobra.Command) *FmtConfig {
	config := NewFmtConfig()
	if write, err := cmd.Flags().GetBool("write"); err == nil {
		config.Write = write
	}
	if diff, err := cmd.Flags().GetBool("diff"); err == nil {
		config.Diff = diff
	}
	return config
}

// fmtResult is the outcome of formatting one file.
type fmtResult struct {
	Path    string
	Changed bool
	Diff    string
}

func runFmt(ctx context.Context, patterns []string, config *FmtConfig) error {
	files, err := lint.New().Expand(patterns...)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		presenter.Warning("No skill files found")
		return nil
	}

	var unformatted, failed int
	for _, path := range files {
		result, err := formatFile(path, config.Write)
		if err != nil {
			failed++
			presenter.Error(err, path)
			continue
		}
		if !result.Changed {
			logger.G(ctx).WithField("path", path).Debug("already formatted")
			continue
		}

		unformatted++
		if config.Write {
			presenter.Success("formatted " + path)
		} else {
			presenter.Print(path + "\n")
		}
		if config.Diff {
			presenter.Diff(result.Diff)
		}
	}

	switch {
	case failed > 0:
		return errSilentFailure
	case unformatted > 0 && !config.Write:
		presenter.Warning(fmt.Sprintf("%d of %d file(s) need formatting", unformatted, len(files)))
		return errSilentFailure
	}
	return nil
}

// formatFile computes the canonical form of path. With write set the file is
// rewritten under a file lock.
func formatFile(path string, write bool) (fmtResult, error) {
	result := fmtResult{Path: path}
	format := func(content []byte) ([]byte, error) {
		formatted, err := frontmatter.Format(content)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(content, formatted) {
			result.Changed = true
			result.Diff = udiff.Unified(path, path+" (formatted)", string(content), string(formatted))
		}
		return formatted, nil
	}

	if write {
		if err := lockedfile.Transform(path, format); err != nil {
			return result, errors.Wrapf(err, "failed to format %s", path)
		}
		return result, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return result, errors.Wrapf(err, "failed to read %s", path)
	}
	if _, err := format(content); err != nil {
		return result, errors.Wrapf(err, "failed to format %s", path)
	}
	return result, nil
}

package main

import (
	"context"
	"os"

	"github.com/jingkaihe/skillet/pkg/config"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// errSilentFailure makes the process exit non-zero after the command has
// already reported the problem itself.
var errSilentFailure = errors.New("command failed")

var rootCmd = &cobra.Command{
	Use:   "skillet",
	Short: "Select, render and lint skill files",
	Long: `Skillet manages skill files: markdown documents whose front-matter names and
describes a skill and whose body carries the response template the skill is
answered with. It picks the skill that fits a request, renders its template,
and lints skill files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.Configure(logger.Options{
			Level:  viper.GetString("log_level"),
			Format: viper.GetString("log_format"),
			Output: os.Stderr,
		}); err != nil {
			return err
		}
		if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
			presenter.SetQuiet(true)
		}

		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to initialize tracing")
			return nil
		}
		tracingShutdown = shutdown
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func init() {
	if err := config.Init(viper.GetViper()); err != nil {
		presenter.Error(err, "Failed to load configuration")
		os.Exit(1)
	}

	rootCmd.PersistentFlags().String("log-level", config.Defaults().LogLevel, "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", config.Defaults().LogFormat, "Log format (text, json)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress informational output")
	rootCmd.PersistentFlags().String("db", "", "Path to the history database (default ~/.skillet/storage.db)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("history.db_path", rootCmd.PersistentFlags().Lookup("db"))
}

func main() {
	ctx := context.Background()
	err := rootCmd.ExecuteContext(ctx)

	if tracingShutdown != nil {
		if serr := tracingShutdown(ctx); serr != nil {
			logger.G(ctx).WithError(serr).Debug("failed to shut down tracing")
		}
	}
	if err != nil {
		if !errors.Is(err, errSilentFailure) {
			presenter.Error(err, "")
		}
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/jingkaihe/skillet/pkg/server"
	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Host  string
	Port  int
	Watch bool
}

// NewServeConfig creates a new ServeConfig with default values
func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host:  "localhost",
		Port:  8080,
		Watch: true,
	}
}

var serveCmd = withTracing(&cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start a local HTTP server exposing the skill catalog: list and inspect skills,
select the skill for a request and render its template. When history is
enabled the recorded selections are served as well.

The server will be available at http://localhost:8080 by default.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context(), getServeConfigFromFlags(cmd))
	},
})

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().String("host", defaults.Host, "Host to bind the server to")
	serveCmd.Flags().Int("port", defaults.Port, "Port to bind the server to")
	serveCmd.Flags().Bool("watch", defaults.Watch, "Reload skills when their files change")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	rootCmd.AddCommand(serveCmd)
}

// getServeConfigFromFlags extracts serve configuration from flags and the
// bound configuration keys
func getServeConfigFromFlags(cmd *cobra.Command) *ServeConfig {
	config := NewServeConfig()
	config.Host = viper.GetString("server.host")
	config.Port = viper.GetInt("server.port")
	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	return config
}

func validateServeConfig(config *ServeConfig) error {
	if config.Host == "" {
		return errors.New("host cannot be empty")
	}

	if config.Host != "localhost" && config.Host != "0.0.0.0" {
		if ip := net.ParseIP(config.Host); ip == nil {
			if strings.Contains(config.Host, " ") || strings.Contains(config.Host, ":") {
				return errors.Errorf("invalid host: %s", config.Host)
			}
		}
	}

	if config.Port < 1 || config.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", config.Port)
	}

	if config.Port < 1024 {
		logger.G(context.Background()).WithField("port", config.Port).Warn("using privileged port (< 1024) may require elevated permissions")
	}
	return nil
}

func runServe(ctx context.Context, config *ServeConfig) error {
	if err := validateServeConfig(config); err != nil {
		return errors.Wrap(err, "invalid server configuration")
	}

	a, err := newApp(ctx, historyIfEnabled)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg.Server
	cfg.Host = config.Host
	cfg.Port = config.Port

	var opts []server.Option
	if a.history != nil {
		opts = append(opts, server.WithHistory(a.history))
	}
	srv, err := server.NewServer(cfg, a.service, opts...)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if config.Watch {
		go func() {
			if err := a.service.Catalog().Watch(ctx, skills.DefaultReloadDebounce); err != nil {
				logger.G(ctx).WithError(err).Warn("skill watcher stopped")
			}
		}()
	}

	logger.G(ctx).WithFields(map[string]interface{}{
		"host":   cfg.Host,
		"port":   cfg.Port,
		"skills": a.service.Catalog().Len(),
	}).Info("starting server")

	presenter.Success(fmt.Sprintf("Server starting on http://%s:%d", cfg.Host, cfg.Port))
	presenter.Info("Press Ctrl+C to stop the server")

	if err := srv.Start(ctx); err != nil {
		return errors.Wrap(err, "server failed")
	}

	presenter.Info("Server stopped")
	return nil
}

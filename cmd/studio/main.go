// Command studio is the terminal client for the agent studio backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/studio-client/internal/config"
	"github.com/bizmatters/agent-builder/studio-client/internal/logging"
	"github.com/bizmatters/agent-builder/studio-client/internal/studio"
)

// app carries the flags and the components built from them
type app struct {
	configPath string
	apiURL     string
	token      string
	logLevel   string
	timeout    time.Duration
	trace      bool

	cfg            *config.Config
	logger         *zap.Logger
	studio         *studio.Studio
	shutdownTracer func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "studio",
		Short: "Terminal client for the agent studio",
		Long: `Browse projects and their deliverables, chat with the studio agents
and query the shared knowledge base.

Configuration comes from --config (YAML), a local .env file and
STUDIO_* environment variables; flags win over all of them.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "backend API root, including /api")
	rootCmd.PersistentFlags().StringVar(&a.token, "token", "", "bearer token sent with every request")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Second, "timeout of each operation")
	rootCmd.PersistentFlags().BoolVar(&a.trace, "trace", false, "print OpenTelemetry spans to stderr")

	rootCmd.AddCommand(
		newProjectsCmd(a),
		newDeliverablesCmd(a),
		newAgentsCmd(a),
		newChatCmd(a),
		newKnowledgeCmd(a),
		newTokenCmd(a),
		newHealthCmd(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.API.BaseURL = a.apiURL
	}
	if flags.Changed("token") {
		cfg.API.Token = a.token
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("trace") {
		cfg.Trace = a.trace
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.logger = logger

	shutdown, err := initTracer(cfg.Trace, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.shutdownTracer = shutdown

	s, err := studio.New(cfg, logger)
	if err != nil {
		return err
	}
	a.studio = s
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) error {
	if a.shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTracer(ctx); err != nil {
			a.logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
	if a.logger != nil {
		// stderr cannot be synced on some platforms
		_ = a.logger.Sync()
	}
	return nil
}

// opContext bounds one backend operation
func (a *app) opContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

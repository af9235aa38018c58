// Command devserver runs the in-memory studio backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/studio-client/internal/auth"
	"github.com/bizmatters/agent-builder/studio-client/internal/config"
	"github.com/bizmatters/agent-builder/studio-client/internal/devserver"
	"github.com/bizmatters/agent-builder/studio-client/internal/logging"
	"github.com/bizmatters/agent-builder/studio-client/internal/models"
)

func main() {
	var (
		configPath string
		addr       string
		demo       bool
	)

	rootCmd := &cobra.Command{
		Use:          "devserver",
		Short:        "Serve the studio API from memory",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.DevServer.Addr = addr
			}
			return serve(cmd.Context(), cfg, demo)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.Flags().StringVar(&addr, "addr", ":5001", "listen address")
	rootCmd.Flags().BoolVar(&demo, "demo", false, "seed a started demo project")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, demo bool) error {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Trace {
		tp, err := initTracer()
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	var jwtManager *auth.JWTManager
	if cfg.DevServer.JWTSecret != "" {
		jwtManager, err = auth.NewJWTManager(cfg.DevServer.JWTSecret)
		if err != nil {
			return fmt.Errorf("failed to initialize JWT manager: %w", err)
		}
		token, err := jwtManager.GenerateToken(ctx, "dev", 24*time.Hour)
		if err != nil {
			return err
		}
		logger.Info("authentication enabled; development token issued", zap.String("token", token))
	} else {
		logger.Warn("DEVSERVER_JWT_SECRET not set; API is open")
	}

	store := devserver.NewStore()
	if demo {
		if err := seedDemo(store); err != nil {
			return err
		}
		logger.Info("demo project seeded")
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	return devserver.NewServer(store, jwtManager, logger).Run(ctx, cfg.DevServer.Addr)
}

func seedDemo(store *devserver.Store) error {
	p, err := store.CreateProject(models.ProjectForm{
		Name:           "Demo Storefront",
		Description:    "An online storefront for a local bakery",
		Objectives:     "Take pre-orders and showcase seasonal products",
		TargetAudience: "Neighbourhood customers on mobile",
		Deadline:       "8 weeks",
	})
	if err != nil {
		return fmt.Errorf("failed to seed demo project: %w", err)
	}
	return store.StartWorkflow(p.ID)
}

// initTracer prints spans to stderr
func initTracer() (*trace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}
	tp := trace.NewTracerProvider(trace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp, nil
}

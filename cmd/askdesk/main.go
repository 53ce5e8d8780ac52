package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/liliang-cn/askdesk/internal/api"
	"github.com/liliang-cn/askdesk/internal/app"
	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/logger"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "askdesk",
		Short:         "Document question answering with human escalation",
		SilenceUsage: true,
	}
	addGlobalFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServeCmd(),
		newAskCmd(),
		newIngestCmd(),
		newRepairTextCmd(),
	)
	return cmd
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Path to config file")
	fs.String("log.level", "info", "Log level (debug, info, warn, error)")
	fs.Bool("log.development", false, "Human readable console logs")
}

// setup loads configuration and builds the logger and application
func setup(cmd *cobra.Command) (*app.App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	if _, err := maxprocs.Set(maxprocs.Logger(log.Sugar().Infof)); err != nil {
		log.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}

	return app.New(cmd.Context(), cfg, log)
}

func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		a.Logger.Warn("shutdown finished with errors", zap.Error(err))
	}
	_ = a.Logger.Sync()
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().Int("server.port", 8080, "HTTP port")
	cmd.Flags().String("server.host", "0.0.0.0", "HTTP host")
	return cmd
}

func serve(ctx context.Context, a *app.App) error {
	cfg := a.Config
	router := api.SetupRouter(a.Services(), api.RouterConfig{
		APIKey:       cfg.Admin.APIKey,
		AllowOrigins: cfg.Server.AllowOrigins,
		Logger:       a.Logger,
	})

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LLM.Timeout*time.Duration(max(cfg.LLM.Attempts, 1))*2 + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("Starting AskDesk server", zap.String("address", cfg.Address()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.Logger.Info("Server exited")
	return nil
}

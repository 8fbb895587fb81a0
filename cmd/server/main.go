package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/config"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sidesnap/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "sidesnap-server",
		Usage: "serve stored sidebar snapshots over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load configuration from `FILE` (TOML or YAML)"},
			&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen `PORT`"},
			&cli.StringFlag{Name: "host", Usage: "listen `HOST`"},
			&cli.StringFlag{Name: "db", Usage: "SQLite database `PATH`"},
			&cli.StringFlag{Name: "log-level", Usage: "minimum log `LEVEL`"},
			&cli.BoolFlag{Name: "dev", Usage: "development mode (colored logs, debug level)"},
		},
		Action: run,
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sidesnap-server: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers flags over file and environment configuration
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if path := cmd.String("config"); path != "" {
		if err := os.Setenv(config.FileEnv, path); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("port") {
		cfg.Server.Port = cmd.String("port")
	}
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("db") {
		cfg.Storage.Path = cmd.String("db")
	}
	if cmd.IsSet("log-level") {
		cfg.Logging.Level = cmd.String("log-level")
	}
	if cmd.Bool("dev") {
		cfg.Logging.Development = true
		if !cmd.IsSet("log-level") {
			cfg.Logging.Level = "debug"
		}
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.For(cfg.Logging.Level, cfg.Logging.Development)
	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		if err != nil {
			logger.Error("Server error", zap.Error(err))
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.ShutdownTimeout())
		defer cancel()
		if cerr := srv.Shutdown(shutdownCtx); cerr != nil {
			logger.Warn("Cleanup after server error failed", zap.Error(cerr))
		}
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	return <-errChan
}

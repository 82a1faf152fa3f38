package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sun-rs/three/catalog"
	"github.com/sun-rs/three/config"
	"github.com/sun-rs/three/orchestrate"
	"github.com/sun-rs/three/process"
	"github.com/sun-rs/three/session"
	"github.com/sun-rs/three/store"
	"github.com/sun-rs/three/toolserver"
)

func newServeCmd() *cobra.Command {
	var client string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, client)
		},
	}
	cmd.Flags().StringVar(&client, "client", "", "client hint for config file selection (overrides THREE_CLIENT)")
	return cmd
}

func runServe(cmd *cobra.Command, client string) error {
	logLevel, _ := cmd.Flags().GetString("log-level")
	logFormat, _ := cmd.Flags().GetString("log-format")
	configDir, _ := cmd.Flags().GetString("config-dir")
	statePath, _ := cmd.Flags().GetString("state-file")

	logger, err := buildLogger(logLevel, logFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if client == "" {
		client = config.ClientFromEnv()
	}

	projectDir := configDir
	if projectDir == "" {
		projectDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}

	doc, path, err := config.Load(projectDir, homeDir, client)
	if err != nil {
		return err
	}
	logger.Info("config loaded", zap.String("path", path), zap.Int("roles", len(doc.Roles)))

	st, err := store.Open(statePath)
	if err != nil {
		return err
	}

	cat := catalog.Default()
	resolver := config.NewResolver(doc, cat)
	coord := session.NewCoordinator(st, cat)
	engine := orchestrate.NewEngine(resolver, cat, coord, process.Options{}, logger)

	srv := toolserver.New(engine, version, logger)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("three serving over stdio", zap.String("version", version))
	return srv.ServeStdio(ctx)
}

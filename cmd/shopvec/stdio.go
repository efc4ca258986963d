package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	shopvec "github.com/shopvec/shopvec"
	"github.com/shopvec/shopvec/internal/log"
	"github.com/shopvec/shopvec/internal/mcp"
)

func stdioCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This allows AI assistants to search the product catalog.
Configuration is loaded from environment variables and .env file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func runStdio(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Setup logger to file (can't use stdout for MCP)
	logger := log.NewLogger(cfg)
	slogger := logger.Slog()

	slogger.Info("starting MCP server",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir()),
	)

	opts, err := clientOptions(cfg)
	if err != nil {
		return err
	}
	opts = append(opts, shopvec.WithLogger(slogger))

	client, err := shopvec.New(opts...)
	if err != nil {
		return fmt.Errorf("create shopvec client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close shopvec client", slog.Any("error", err))
		}
	}()

	mcpServer := mcp.NewServer(client.Index, client.Records, client.Connectors, version, slogger)

	return mcpServer.ServeStdio()
}

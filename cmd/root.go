// Package cmd contains the CLI commands. main.go stays a minimal entry point;
// all command routing and initialization lives here.
package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jupiterlabs/reengage/internal/config"
	"github.com/jupiterlabs/reengage/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "reengage",
	Short: "Conversational re-engagement agent for the Edge+ card funnel",
	Long: `reengage answers applicant questions about the Jupiter Edge+ CSB Bank
RuPay credit card and nudges hesitant applicants back into the application
funnel. Every product answer is grounded in the embedded card corpus.

Running reengage without a subcommand starts the HTTP server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from config and installs it as the
// slog default.
func newLogger(cfg *config.Config) log.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := log.New(log.Config{Level: level, JSON: cfg.LogJSON})
	slog.SetDefault(logger)
	return logger
}

// Package main is the entry point for the lotboard CLI.
//
// LotBoard can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	lotboard serve -c config.yaml     # Start the tracker server
//	lotboard watch -c config.yaml     # Poll the server and print lot stats
//	lotboard simulate -c config.yaml  # Feed the server with random readings
//	lotboard validate -c config.yaml  # Validate configuration
//	lotboard version                  # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "lotboard",
	Short: "A parking-space occupancy tracker",
	Long: `LotBoard tracks per-space parking availability.

Sensors (or a simulated feed) POST readings to the server, which persists
the latest known state per (sensor, lot) key. Clients poll the snapshot
endpoint and reconcile partial updates into a consistent grid view.

Quick start:
  1. Run the server:        lotboard serve
  2. Feed it some data:     lotboard simulate
  3. Watch a lot fill up:   lotboard watch
  4. Or open the dashboard: http://localhost:8080`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// optional .env file for PORT and database credentials
		_ = godotenv.Load()
	},
}

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this lotboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lotboard %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/lotboard"
	"github.com/jpalmerr/lotboard/config"
)

// watchCmd runs the client board in the terminal.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the tracker and print lot statistics",
	Long: `Run the LotBoard client against a tracker server.

The board polls the snapshot endpoint at the configured interval,
reconciles each snapshot into its in-memory lot model, and prints
per-lot statistics after every cycle. Connectivity transitions are
printed as they happen; a lost connection is retried on the next tick.

Runs until interrupted (Ctrl+C) or SIGTERM.

Example:
  lotboard watch
  lotboard watch -c config.yaml`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("config", "c", "", "path to config file (optional)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	seeds := make([]lotboard.LotSeed, 0, len(cfg.Lots))
	for _, lot := range cfg.Lots {
		seeds = append(seeds, lotboard.LotSeed{
			ID:       lot.ID,
			Name:     lot.Name,
			Location: lot.Location,
			Capacity: lot.Capacity,
		})
	}

	board, err := lotboard.New(
		lotboard.WithServerURL(cfg.ServerURL),
		lotboard.WithPollInterval(cfg.PollInterval.Duration()),
		lotboard.WithLots(seeds...),
		lotboard.WithLogger(logger),
		lotboard.WithConnCallback(func(state lotboard.ConnState) {
			fmt.Printf("connectivity: %s\n", state)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// print stats on the polling cadence while the board runs
	go printStats(ctx, board)

	if err := board.Start(ctx); err != nil {
		return fmt.Errorf("board error: %w", err)
	}
	return nil
}

// printStats renders per-lot statistics once per polling interval.
func printStats(ctx context.Context, board *lotboard.Board) {
	ticker := time.NewTicker(board.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if board.State() != lotboard.StateConnected {
				continue
			}
			for _, lot := range board.Model().Lots() {
				stats := board.Model().Stats(lot.ID)
				fmt.Printf("%-20s %3d free / %3d occupied of %3d (%d%% full)\n",
					lot.Name, stats.Available, stats.Occupied, stats.Total, stats.OccupancyRate)
			}
			fmt.Println()
		}
	}
}

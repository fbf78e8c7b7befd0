package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/lotboard/config"
)

// simulatedReading matches the ingest endpoint's wire format.
type simulatedReading struct {
	IDSensor  int  `json:"idSensor"`
	Lot       int  `json:"lot"`
	Available bool `json:"available"`
}

// simulateCmd feeds the server with random sensor readings.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Feed the tracker with random sensor readings",
	Long: `Run a simulated sensor feed against a tracker server.

Each tick posts a random mix of readings - sometimes a single object,
sometimes a batch array - covering the configured lots and a sensor id
range. Useful for demoing the dashboard and exercising the ingest path
without real hardware.

Runs until interrupted (Ctrl+C) or SIGTERM.

Example:
  lotboard simulate
  lotboard simulate -c config.yaml --sensors 30 --interval 500ms`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringP("config", "c", "", "path to config file (optional)")
	simulateCmd.Flags().Int("sensors", 20, "sensor ids to simulate per lot (1..N)")
	simulateCmd.Flags().Duration("interval", time.Second, "time between posts")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sensors, _ := cmd.Flags().GetInt("sensors")
	interval, _ := cmd.Flags().GetDuration("interval")
	if sensors < 1 {
		return fmt.Errorf("sensors must be at least 1, got %d", sensors)
	}

	lotIDs := make([]int, 0, len(cfg.Lots))
	for _, lot := range cfg.Lots {
		lotIDs = append(lotIDs, lot.ID)
	}
	if len(lotIDs) == 0 {
		lotIDs = []int{1}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("simulated feed starting",
		"target", cfg.ServerURL,
		"lots", len(lotIDs),
		"sensors_per_lot", sensors,
		"interval", interval.String(),
	)

	client := &http.Client{Timeout: 10 * time.Second}
	posted, failed := 0, 0

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("simulated feed stopped", "posted", posted, "failed", failed)
			return nil
		case <-ticker.C:
			if err := postRandom(ctx, client, cfg.ServerURL, lotIDs, sensors); err != nil {
				failed++
				logger.Warn("post failed", "error", err.Error())
				continue
			}
			posted++
		}
	}
}

// postRandom sends one randomly shaped ingest request: a single reading or a
// small batch, targeting random sensors in random lots.
func postRandom(ctx context.Context, client *http.Client, baseURL string, lotIDs []int, sensors int) error {
	randomReading := func() simulatedReading {
		return simulatedReading{
			IDSensor:  rand.Intn(sensors) + 1,
			Lot:       lotIDs[rand.Intn(len(lotIDs))],
			Available: rand.Intn(2) == 0,
		}
	}

	var payload any
	if rand.Intn(2) == 0 {
		payload = randomReading()
	} else {
		batch := make([]simulatedReading, rand.Intn(5)+1)
		for i := range batch {
			batch[i] = randomReading()
		}
		payload = batch
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/sensors", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}

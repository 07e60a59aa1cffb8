package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"mqttlat/internal/batch"
	"mqttlat/internal/dummy"
	"mqttlat/internal/trial"
)

// selftestCmd exercises the whole pipeline against an in-process simulated
// broker: no network, no certificates. Useful as a smoke test of the
// harness itself.
var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run a batch against a built-in simulated broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := setupLog()

		fleet := dummy.Fleet{
			1883: {
				ConnectLatency: 30 * time.Millisecond,
				PublishLatency: 10 * time.Millisecond,
			},
			1884: {
				ConnectLatency: 45 * time.Millisecond,
				PublishLatency: 15 * time.Millisecond,
				DropPublishAck: true,
			},
		}

		cfg := batch.Config{
			Iterations: iterations,
			Delay:      50 * time.Millisecond,
			Runner: trial.Options{
				PayloadSize:    1024,
				ConnectTimeout: 2 * time.Second,
				PublishTimeout: 250 * time.Millisecond,
			},
			Configurations: []trial.Config{
				{Name: "sim_healthy", Host: "sim", Port: 1883},
				{Name: "sim_lossy", Host: "sim", Port: 1884},
			},
			OutPrefix: outPrefix,
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		return runBatch(cmd.Context(), cfg, fleet.NewClient, log)
	},
}

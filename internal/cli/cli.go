// Package cli runs a batch headless: a progress line while trials run,
// then per-configuration summary tables, file reports and a history entry.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"mqttlat/internal/batch"
	"mqttlat/internal/export"
	"mqttlat/internal/mqtt"
	"mqttlat/internal/stats"
	"mqttlat/internal/storage"
	"mqttlat/internal/trial"
)

// Run executes cfg against clients from factory and reports to stdout.
// A nil store skips history recording.
func Run(ctx context.Context, cfg batch.Config, factory mqtt.Factory, store *storage.Store, log *logrus.Entry) error {
	printHeader(cfg)

	runner := trial.NewRunner(cfg.Runner, factory, log)
	updates := make(batch.UpdateChan, 100)
	orch := batch.NewOrchestrator(cfg, runner, updates, log)

	type outcome struct {
		res batch.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := orch.Run(ctx)
		done <- outcome{res, err}
	}()

	total := len(cfg.Configurations) * cfg.Iterations
	for {
		select {
		case s := <-updates:
			pct := float64(s.Trials) / float64(total)
			fmt.Printf("\r%s %3.0f%% | %s (%d/%d) | iter %d/%d | OK: %d | Err: %d | p95 hs: %.1fms",
				progressBar(pct, 20), pct*100,
				s.ConfigName, s.ConfigIndex, s.ConfigCount,
				s.Iteration, s.Iterations,
				s.Success, s.Fail,
				s.P95HandshakeMs,
			)
		case o := <-done:
			fmt.Println()
			if o.err != nil {
				fmt.Printf("\n⚠️  Batch cancelled: %v\n", o.err)
			}
			if err := Report(cfg, o.res, store); err != nil {
				return err
			}
			return o.err
		}
	}
}

// Report prints the per-configuration summaries and persists the batch:
// file reports when an output prefix is set, a history record when a
// store is given. Shared by the headless and TUI paths.
func Report(cfg batch.Config, res batch.Result, store *storage.Store) error {
	printSummary(res)

	if len(res.Order) == 0 {
		return nil
	}
	if cfg.OutPrefix != "" {
		sink := export.FileSink{Prefix: cfg.OutPrefix}
		if err := sink.Flush(res); err != nil {
			return err
		}
		fmt.Printf("💾 Reports saved with prefix %s\n", cfg.OutPrefix)
	}
	if store != nil {
		if err := store.Save(storage.NewRecord(cfg, res)); err != nil {
			return err
		}
	}
	return nil
}

func printHeader(cfg batch.Config) {
	fmt.Printf("\n🔐 STARTING MQTT LATENCY BATCH\n")
	fmt.Printf("======================================================================\n")
	fmt.Printf("Configurations : %d\n", len(cfg.Configurations))
	for _, tc := range cfg.Configurations {
		mode := "plain"
		if tc.TLS {
			mode = "mTLS"
			if tc.Cipher != "" {
				mode = "mTLS/" + tc.Cipher
			}
		}
		fmt.Printf("  - %-32s %s:%d (%s)\n", tc.Name, tc.Host, tc.Port, mode)
	}
	fmt.Printf("Iterations     : %d per configuration\n", cfg.Iterations)
	fmt.Printf("Delay          : %s between trials\n", cfg.Delay)
	fmt.Printf("======================================================================\n\n")
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func printSummary(res batch.Result) {
	fmt.Printf("\n📊 BATCH RESULTS\n")
	fmt.Printf("======================================================================\n")
	for _, name := range res.Order {
		s := export.Summarize(res.PerConfig[name])
		fmt.Printf("%s\n", name)
		fmt.Printf("   Runs    : %d ok / %d failed\n", s.Successful, s.Failed)
		printSeries("Handshake", s.Handshake)
		printSeries("PubAck", s.PubAck)
		printSeries("Total", s.Total)
		fmt.Println()
	}
	fmt.Printf("======================================================================\n")
}

func printSeries(label string, s stats.Summary) {
	if s.Count == 0 {
		fmt.Printf("   %-9s: no valid samples\n", label)
		return
	}
	fmt.Printf("   %-9s: mean %.2fms | median %.2fms | stddev %.2fms | min %.2fms | max %.2fms | p95 %.2fms\n",
		label, *s.Mean, *s.Median, *s.StdDev, *s.Min, *s.Max, *s.P95)
}

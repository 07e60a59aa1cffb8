package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mqttlat/internal/banner"
	"mqttlat/internal/batch"
	"mqttlat/internal/cli"
	"mqttlat/internal/mqtt"
	"mqttlat/internal/storage"
	"mqttlat/internal/trial"
	"mqttlat/internal/tui"
)

var (
	cfgFile string

	// CLI Flags
	iterations  int
	delay       time.Duration
	timeout     time.Duration
	payloadSize int
	topic       string
	outPrefix   string
	useTUI      bool
	verbose     bool
	noHistory   bool
)

var rootCmd = &cobra.Command{
	Use:   "mqttlat",
	Short: "mqttlat - MQTT TLS handshake and publish latency benchmark",
	Long: `
mqttlat measures connect and publish-acknowledgement latency of an MQTT
broker across repeated trials and multiple TLS cipher/certificate
configurations, then reduces the samples to summary statistics.

Configurations live in a YAML config file (default $HOME/.mqttlat.yaml);
flags tune iterations, pacing and output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadBatchConfig()
		if err != nil {
			return err
		}
		log := setupLog()
		factory := mqtt.NewPahoClient(log)
		return runBatch(cmd.Context(), cfg, factory, log)
	},
	SilenceUsage: true,
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(selftestCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(historyCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mqttlat.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "skip recording the batch in the history store")

	rootCmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "Trials per configuration (overrides config file)")
	rootCmd.Flags().DurationVar(&delay, "delay", -1, "Delay between trials (overrides config file)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "Connect and publish-ack wait timeout")
	rootCmd.Flags().IntVar(&payloadSize, "payload-size", 0, "Telemetry payload size in bytes")
	rootCmd.Flags().StringVar(&topic, "topic", "", "Publish topic")
	rootCmd.Flags().StringVarP(&outPrefix, "out", "o", "", "Output filename prefix for reports")
	rootCmd.Flags().BoolVar(&useTUI, "tui", false, "Live terminal dashboard instead of the plain progress line")

	selftestCmd.Flags().IntVarP(&iterations, "iterations", "n", 5, "Trials per simulated configuration")
	selftestCmd.Flags().BoolVar(&useTUI, "tui", false, "Live terminal dashboard")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".mqttlat")
		}
	}
	viper.SetEnvPrefix("MQTTLAT")
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

func setupLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		// Keep the progress line clean; failures still surface in results.
		l.SetLevel(logrus.WarnLevel)
	}
	return logrus.NewEntry(l)
}

func loadBatchConfig() (batch.Config, error) {
	var cfg batch.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	applyFlagOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyFlagOverrides(cfg *batch.Config) {
	if iterations > 0 {
		cfg.Iterations = iterations
	} else if cfg.Iterations == 0 {
		cfg.Iterations = 1
	}
	if delay >= 0 {
		cfg.Delay = delay
	}
	if timeout > 0 {
		cfg.Runner.ConnectTimeout = timeout
		cfg.Runner.PublishTimeout = timeout
	}
	if payloadSize > 0 {
		cfg.Runner.PayloadSize = payloadSize
	}
	if topic != "" {
		cfg.Runner.Topic = topic
	}
	if outPrefix != "" {
		cfg.OutPrefix = outPrefix
	}
}

func runBatch(ctx context.Context, cfg batch.Config, factory mqtt.Factory, log *logrus.Entry) error {
	var store *storage.Store
	if !noHistory {
		var err error
		store, err = storage.Open("")
		if err != nil {
			log.WithError(err).Warn("history store unavailable, continuing without it")
		} else {
			defer store.Close()
		}
	}

	if useTUI {
		return runTUI(ctx, cfg, factory, store, log)
	}
	return cli.Run(ctx, cfg, factory, store, log)
}

func runTUI(ctx context.Context, cfg batch.Config, factory mqtt.Factory, store *storage.Store, log *logrus.Entry) error {
	runner := trial.NewRunner(cfg.Runner, factory, log)
	updates := make(batch.UpdateChan, 100)
	orch := batch.NewOrchestrator(cfg, runner, updates, log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := tui.NewModel(updates, len(cfg.Configurations)*cfg.Iterations)
	p := tea.NewProgram(m, tea.WithAltScreen())

	type outcome struct {
		res batch.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := orch.Run(ctx)
		done <- outcome{res, err}
		p.Send(tui.DoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		return err
	}
	// Quitting the TUI early cancels the batch; the orchestrator stops at
	// its next checkpoint and reports what completed.
	cancel()
	o := <-done

	if o.err != nil {
		fmt.Printf("\n⚠️  Batch cancelled: %v\n", o.err)
	}
	if err := cli.Report(cfg, o.res, store); err != nil {
		return err
	}
	return o.err
}

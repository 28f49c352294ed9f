package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jihwankim/promemu/internal/demoload"
	"github.com/jihwankim/promemu/pkg/config"
	"github.com/jihwankim/promemu/pkg/eventbus"
	"github.com/jihwankim/promemu/pkg/logging"
	"github.com/jihwankim/promemu/pkg/mixer"
	"github.com/jihwankim/promemu/pkg/reporting"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Run the emulation engine against a demo host population",
	Long:  `Loads a demo host population from YAML and drives a Pushgateway with it until every host's TTL elapses.`,
	RunE:  runEngine,
}

func init() {
	runCmd.Flags().String("hosts", "", "path to demo host population YAML file")
	runCmd.Flags().String("gateway-url", "", "Pushgateway URL (overrides config and PROMEMU_PUSHGATEWAY_URL)")
	runCmd.Flags().Duration("push-interval", 0, "push interval (overrides config and PROMEMU_PUSH_INTERVAL)")
	_ = runCmd.MarkFlagRequired("hosts")
}

func runEngine(cmd *cobra.Command, args []string) error {
	hostsPath, _ := cmd.Flags().GetString("hosts")
	gatewayURLFlag, _ := cmd.Flags().GetString("gateway-url")
	pushIntervalFlag, _ := cmd.Flags().GetDuration("push-interval")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if gatewayURLFlag != "" {
		cfg.Pushgateway.URL = gatewayURLFlag
	}
	if pushIntervalFlag > 0 {
		cfg.Pushgateway.PushInterval = pushIntervalFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logLevel := logging.Level(cfg.Logging.Level)
	if verbose {
		logLevel = logging.LevelDebug
	}
	log := logging.New(logging.Config{Level: logLevel, Pretty: true, Output: os.Stdout})

	log.Info().Str("version", version).Msg("promemu-runner starting")

	hosts, err := demoload.LoadFile(hostsPath)
	if err != nil {
		return fmt.Errorf("failed to load demo host population: %w", err)
	}
	log.Info().Int("hosts", len(hosts)).Str("file", hostsPath).Msg("loaded demo host population")

	bus := eventbus.New(log)

	m, err := mixer.New(mixer.Config{
		Hosts:           hosts,
		PushgatewayURL:  cfg.Pushgateway.URL,
		PushInterval:    cfg.Pushgateway.PushInterval,
		CleanupOnStart:  cfg.Pushgateway.CleanupOnStart,
		CleanupOnFinish: cfg.Pushgateway.CleanupOnFinish,
	}, bus, log)
	if err != nil {
		return fmt.Errorf("failed to build mixer: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Status.ShowHosts || cfg.Status.ShowMetrics {
		go printStatusPeriodically(ctx, m, cfg.Status.ShowHosts, cfg.Pushgateway.PushInterval)
	}

	m.RunUntilComplete(ctx)
	log.Info().Msg("promemu-runner finished")
	return nil
}

func printStatusPeriodically(ctx context.Context, m *mixer.Mixer, includeHosts bool, interval time.Duration) {
	formatter := reporting.NewFormatter(os.Stdout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = formatter.Write(m.Status(includeHosts), reporting.FormatText)
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Agrid-Dev/venstar-mqtt/cmd/app"
	"github.com/Agrid-Dev/venstar-mqtt/internal/bridge"
	httpctrl "github.com/Agrid-Dev/venstar-mqtt/internal/controllers/http"
	mqttctrl "github.com/Agrid-Dev/venstar-mqtt/internal/controllers/mqtt"
	"github.com/Agrid-Dev/venstar-mqtt/internal/events"
	"github.com/Agrid-Dev/venstar-mqtt/internal/health"
	"github.com/Agrid-Dev/venstar-mqtt/internal/metrics"
	"github.com/Agrid-Dev/venstar-mqtt/internal/schedule"
	"github.com/Agrid-Dev/venstar-mqtt/internal/venstar"
)

var (
	configPath string
	envFile    string
	debug      bool

	rootCmd = &cobra.Command{
		Use:          "venstar-mqtt",
		Short:        "Bridge a Venstar thermostat to MQTT",
		SilenceUsage: true,
		RunE:         run,
	}
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE:  printConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (.yaml/.yml/.json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default ./.env if present)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (app.Config, error) {
	if err := app.LoadEnvFile(envFile); err != nil {
		return app.Config{}, err
	}
	return app.Load(configPath)
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := app.NewLogger(cfg.Log, debug, os.Stderr)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	monitor := health.New(logger.With("component", "health"))
	publisher := events.NewPublisher(logger.With("component", "events"))

	client := venstar.New(cfg.Venstar.Host, venstar.WithHTTPClient(&http.Client{
		Timeout:   cfg.Venstar.Timeout,
		Transport: m.InstrumentTransport(nil),
	}))
	engine := bridge.New(client, monitor, publisher, m, cfg.Venstar.UpdateDelay, logger.With("component", "bridge"))

	sched, err := schedule.New(engine, schedule.Config{
		Interval:        cfg.Venstar.QueryInterval,
		RuntimeSchedule: cfg.Venstar.RuntimeSchedule,
	}, logger.With("component", "schedule"))
	if err != nil {
		return err
	}

	mq, err := mqttctrl.New(engine, publisher, mqttctrl.Config{
		BrokerURL:   cfg.MQTT.BrokerURL,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		QoS:         cfg.MQTT.QoS,
		Retain:      cfg.MQTT.Retain,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
	}, monitor, m, logger.With("component", "mqtt"))
	if err != nil {
		return err
	}

	logger.Info("venstar-mqtt starting",
		"venstar", cfg.Venstar.Host,
		"broker", cfg.MQTT.BrokerURL,
		"prefix", cfg.MQTT.TopicPrefix,
		"interval", cfg.Venstar.QueryInterval,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return mq.Run(ctx) })
	if cfg.HTTP.Addr != "" {
		srv := httpctrl.New(engine, cfg.HTTP.Addr, monitor, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logger.With("component", "http"))
		g.Go(func() error { return srv.Run(ctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("venstar-mqtt failed", "err", err)
		return err
	}
	logger.Info("venstar-mqtt stopped")
	return nil
}

func printConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.MQTT.Password != "" {
		cfg.MQTT.Password = "********"
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return nil
}

package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantumtravel/chathub/pkg/chathub"
	"github.com/quantumtravel/chathub/pkg/config"
	"github.com/quantumtravel/chathub/pkg/engine"
	"github.com/quantumtravel/chathub/pkg/webapi"
)

func main() {
	root := &cobra.Command{
		Use:   "chathub",
		Short: "Real-time chat session hub with a simulated response engine",
	}
	root.AddCommand(newServeCommand())
	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func newServeCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API and websocket endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			setupLogging(cfg.LogLevel)
			return runServer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())

	store := chathub.NewConversationStore()
	registry := chathub.NewConnectionRegistry(cfg.DisconnectGrace)
	notices := chathub.NewNoticeBus()
	defer func() { _ = notices.Close() }()

	hub, err := chathub.NewHub(chathub.HubConfig{
		Store:             store,
		Registry:          registry,
		Generator:         engine.NewQuantum(engine.WithLatency(cfg.SimulatedLatency)),
		Notices:           notices,
		Metrics:           chathub.NewMetrics(promReg),
		MaxMessageBytes:   cfg.MaxMessageBytes,
		GenerationTimeout: cfg.GenerationTimeout,
	})
	if err != nil {
		return err
	}

	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	registry.StartPurgeLoop(srvCtx, cfg.DisconnectGrace)
	if err := notices.Run(srvCtx, registry); err != nil {
		return err
	}

	return webapi.NewServer(cfg, hub, promReg).Run(srvCtx)
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

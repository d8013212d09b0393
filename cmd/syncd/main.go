package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skorokithakis/middle/internal/artifact"
	"github.com/skorokithakis/middle/internal/audio"
	"github.com/skorokithakis/middle/internal/ble"
	"github.com/skorokithakis/middle/internal/config"
	"github.com/skorokithakis/middle/internal/metrics"
	"github.com/skorokithakis/middle/internal/pendant"
	"github.com/skorokithakis/middle/internal/server"
	"github.com/skorokithakis/middle/internal/session"
	"github.com/skorokithakis/middle/internal/transcription"
	"github.com/skorokithakis/middle/internal/transfer"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("Starting pendant sync service",
		slog.String("device_name", cfg.BLE.DeviceName),
		slog.String("recordings_dir", cfg.Output.RecordingsDir))

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	decoder, err := audio.NewDecoder(audio.Encoding(cfg.Audio.Codec))
	if err != nil {
		logger.Error("Failed to create decoder", slog.String("error", err.Error()))
		os.Exit(1)
	}

	encoder, err := audio.NewMP3Encoder(audio.EncoderConfig{
		SampleRate:  cfg.Audio.SampleRate,
		BitrateKbps: cfg.Audio.BitrateKbps,
		Quality:     cfg.Audio.Quality,
	})
	if err != nil {
		logger.Error("Failed to create encoder", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := artifact.NewStore(cfg.Output.RecordingsDir)
	if err != nil {
		logger.Error("Failed to create artifact store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	transcriber := initTranscriber(cfg.Transcription, logger, m)

	transport, err := ble.NewTransport(cfg.BLE.DeviceName, logger)
	if err != nil {
		logger.Error("Failed to initialize bluetooth", slog.String("error", err.Error()))
		os.Exit(1)
	}

	transferCfg := transfer.Config{
		StallTimeout:      cfg.Transfer.StallTimeout(),
		TotalTimeout:      cfg.Transfer.TotalTimeout(),
		MaxAttempts:       cfg.Transfer.MaxAttempts,
		SizePollInterval:  cfg.Transfer.SizePollInterval(),
		SizeSettleTimeout: cfg.Transfer.SizeSettleTimeout(),
	}

	syncFn := func(ctx context.Context, p pendant.Peripheral) (transfer.Result, error) {
		return transfer.NewOrchestrator(
			p, decoder, encoder, store, transcriber, logger, m, transferCfg,
		).SyncAll(ctx)
	}

	manager := session.NewManager(transport, syncFn, logger, m, session.Config{
		ScanWindow:     cfg.BLE.ScanWindow(),
		ScanInterval:   cfg.BLE.ScanInterval(),
		ConnectTimeout: cfg.BLE.ConnectTimeout(),
	})

	httpServer := server.NewHTTPServer(cfg.HTTP.Address(), manager, logger, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		manager.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("Received signal, shutting down", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	cancel()
	<-loopDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}

	logger.Info("Shutdown complete")
}

// initTranscriber builds the transcription collaborator, or nil when it is
// disabled or no credential is present in the environment.
func initTranscriber(cfg config.TranscriptionConfig, logger *slog.Logger, m *metrics.Metrics) transfer.Transcriber {
	if !cfg.Enabled {
		logger.Info("Transcription disabled by configuration")
		return nil
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Warn("OPENAI_API_KEY not set, transcription disabled")
		return nil
	}

	return transcription.NewClient(transcription.Config{
		APIURL:        cfg.APIURL,
		APIKey:        apiKey,
		Model:         cfg.Model,
		Timeout:       cfg.Timeout(),
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay(),
	}, logger, m)
}

func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

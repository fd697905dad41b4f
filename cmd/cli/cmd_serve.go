package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sguter90/heatmaestro/pkg/arbiter"
	"github.com/sguter90/heatmaestro/pkg/database"
	"github.com/sguter90/heatmaestro/pkg/decoder"
	"github.com/sguter90/heatmaestro/pkg/ingest"
	"github.com/sguter90/heatmaestro/pkg/logging"
	"github.com/sguter90/heatmaestro/pkg/metrics"
	"github.com/sguter90/heatmaestro/pkg/models"
	"github.com/sguter90/heatmaestro/pkg/mqttsub"
	"github.com/sguter90/heatmaestro/pkg/settings"
	"github.com/sguter90/heatmaestro/pkg/simulator"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HeatMaestro server",
	Long: `Start the HeatMaestro server: the ingestion API, the dashboard query API,
the reading simulator and, when configured, the MQTT device subscriber.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := settings.Load()

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, "heatmaestro")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	m := metrics.NewMetrics()

	var mirror database.ReadingMirror
	if cfg.Influx.Enabled() {
		influx, err := database.NewInfluxMirror(cfg.Influx)
		if err != nil {
			return fmt.Errorf("failed to initialize influx mirror: %w", err)
		}
		defer influx.Close()
		mirror = influx
		logger.Info("Mirroring readings to InfluxDB", zap.String("url", cfg.Influx.URL), zap.String("bucket", cfg.Influx.Bucket))
	}

	arb := arbiter.New(arbiter.Options{
		SimulatorEnabled: cfg.Simulator.Enabled,
		DeviceMarker:     cfg.Simulator.DeviceMarker,
		Inactivity:       cfg.Simulator.Inactivity,
		Logger:           logger.Named("arbiter"),
		OnChange: func(s arbiter.Snapshot) {
			m.SetSimulatorActive(s.SimulatorActive)
		},
	})
	m.SetSimulatorActive(arb.SimulatorActive())

	service := ingest.NewService(ingest.Options{
		Store:   store,
		Arbiter: arb,
		Mirror:  mirror,
		Metrics: m,
		Logger:  logger.Named("ingest"),
	})

	ingestFunc := func(ctx context.Context, in models.ReadingInput) error {
		_, err := service.Ingest(ctx, in)
		return err
	}

	// a saved interval wins over SIMULATOR_INTERVAL
	interval := cfg.Simulator.Interval
	if active, found, err := service.ActiveConfig(ctx); err == nil && found && active.IntervalSeconds > 0 {
		interval = active.SampleInterval()
	}

	generator := simulator.NewGenerator(simulator.Options{
		Ingest:   ingestFunc,
		Active:   service.SimulatorActive,
		Interval: interval,
		Logger:   logger.Named("simulator"),
	})
	service.OnIntervalChange(generator.SetInterval)
	if cfg.Simulator.Enabled {
		generator.Start()
		defer generator.Stop()
	} else {
		logger.Info("Simulator disabled, waiting for device readings")
	}

	if cfg.MQTT.Enabled() {
		subscriber := mqttsub.NewSubscriber(cfg.MQTT, ingestFunc, logger.Named("mqtt"))
		if err := subscriber.Start(ctx); err != nil {
			logger.Error("MQTT subscriber unavailable, continuing with HTTP ingestion only", zap.Error(err))
		} else {
			defer subscriber.Close()
		}
	}

	routeManager := NewRouteManager(service, decoder.DefaultRegistry(), m, cfg.Server, logger.Named("http"))
	routeManager.Setup()

	addr := ":" + cfg.Server.Port
	server := &http.Server{
		Handler:      routeManager.Handler(),
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     zap.NewStdLog(logger.Named("http")),
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HeatMaestro server",
			zap.String("addr", addr),
			zap.Bool("tls", cfg.Server.TLSEnabled()),
			zap.String("backend", store.Backend()),
			zap.Duration("interval", interval))

		var err error
		if cfg.Server.TLSEnabled() {
			err = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	return nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trafficgrid/sumo-modbus-bridge/internal/bridge"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/config"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/logging"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/modbusd"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/observability"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/registers"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/sim"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/traci"
)

func main() {
	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Error(ctx, "invalid configuration", logging.String("error", err.Error()))
		os.Exit(1)
	}

	collector, err := observability.NewBridgeCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	store := registers.NewStore()

	modbusSrv, err := modbusd.NewServer(cfg.ModbusAddr(), store, log)
	if err != nil {
		log.Error(ctx, "failed to create modbus server", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if err := modbusSrv.Start(ctx); err != nil {
		log.Error(ctx, "failed to start modbus server", logging.String("error", err.Error()))
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dial := func(ctx context.Context) (bridge.Simulation, error) {
		client, err := traci.Dial(cfg.SumoHost, cfg.SumoPort, cfg.DialTimeout)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "connected to simulation",
			logging.String("addr", cfg.SumoAddr()),
			logging.Int("api_version", client.APIVersion),
			logging.String("server_version", client.ServerVersion),
		)
		return sim.NewAdapter(client), nil
	}

	supervisor := bridge.NewSupervisor(dial, cfg.ConnectBackoff, log)
	simulation, session, err := supervisor.Connect(runCtx, cfg.MaxConnectAttempts)
	if err != nil {
		log.Error(ctx, "could not reach simulation", logging.String("error", err.Error()))
		shutdownServers(ctx, modbusSrv, metricsSrv, log)
		os.Exit(1)
	}

	engine := bridge.NewEngine(simulation, store, session,
		bridge.WithLogger(log),
		bridge.WithMetrics(collector),
		bridge.WithTickInterval(cfg.TickInterval),
		bridge.WithDiagnosticInterval(cfg.DiagnosticInterval),
	)

	log.Info(ctx, "starting bridge",
		logging.String("modbus_addr", cfg.ModbusAddr()),
		logging.Int("intersections", len(session.Intersections)),
	)
	if err := engine.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "bridge stopped", logging.String("error", err.Error()))
	}

	log.Info(ctx, "shutting down bridge")
	if closer, ok := simulation.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	shutdownServers(ctx, modbusSrv, metricsSrv, log)
}

func serveMetrics(addr string, collector *observability.BridgeCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func shutdownServers(ctx context.Context, modbusSrv *modbusd.Server, metricsSrv *http.Server, log logging.Logger) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if modbusSrv != nil {
		if err := modbusSrv.Stop(shutdownCtx); err != nil {
			log.Warn(ctx, "modbus shutdown failed", logging.String("error", err.Error()))
		}
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

// Package main runs the request-guard demo service: a guarded executor
// driving a simulated upstream, with Prometheus metrics, gRPC health, and
// OTLP tracing around it.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/auth-platform/platform/request-guard/internal/config"
	"github.com/auth-platform/platform/request-guard/internal/domain"
	"github.com/auth-platform/platform/request-guard/internal/executor"
	"github.com/auth-platform/platform/request-guard/internal/health"
	"github.com/auth-platform/platform/request-guard/internal/infra/metrics"
	"github.com/auth-platform/platform/request-guard/internal/infra/otel"
	"github.com/auth-platform/platform/request-guard/internal/server"
	"github.com/auth-platform/platform/request-guard/internal/simulator"
)

func main() {
	configPath := flag.String("config", "", "path to yaml configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tracerProvider *otel.Provider
	if cfg.OTEL.Endpoint != "" {
		tracerProvider, err = otel.NewProvider(ctx, otel.Config{
			ServiceName: cfg.OTEL.ServiceName,
			Endpoint:    cfg.OTEL.Endpoint,
			Insecure:    cfg.OTEL.Insecure,
		})
		if err != nil {
			logger.Error("setup tracing", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Warn("tracer shutdown", slog.Any("error", err))
			}
		}()
	}

	guard := executor.New(executor.Config{
		Target:  cfg.Guard.Target,
		Policy:  cfg.Guard.Policy,
		Breaker: cfg.Guard.Breaker,
		Logger:  logger,
		Tracer:  tracerProvider.Tracer(),
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	recorder := metrics.New("request_guard", registry)
	guard.Subscribe(recorder.Observe)
	guard.Subscribe(logEvents(logger))

	grpcServer := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, health.NewServer(map[string]health.StateFunc{
		cfg.Guard.Target: func() domain.CircuitState {
			state, _ := guard.CircuitState()
			return state
		},
	}))

	listener, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("listen grpc", slog.String("addr", cfg.Server.GRPCAddr), slog.Any("error", err))
		os.Exit(1)
	}
	go func() {
		logger.Info("grpc health server listening", slog.String("addr", cfg.Server.GRPCAddr))
		if err := grpcServer.Serve(listener); err != nil {
			logger.Error("grpc serve", slog.Any("error", err))
		}
	}()

	metricsServer := &http.Server{
		Addr:    cfg.Server.MetricsAddr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		logger.Info("metrics server listening", slog.String("addr", cfg.Server.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics serve", slog.Any("error", err))
		}
	}()

	drain := server.NewDrainManager()
	go runDemoTraffic(ctx, cfg, guard, drain, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := drain.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		logger.Warn("drain timed out", slog.Any("error", err))
	}
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", slog.Any("error", err))
	}
}

// runDemoTraffic periodically drives the guard against the simulated
// upstream so the metrics and health surfaces have something to show.
func runDemoTraffic(ctx context.Context, cfg *config.Config, guard *executor.Guard, drain *server.DrainManager, logger *slog.Logger) {
	sim := simulator.New(simulator.Config{
		FailureRate: cfg.Simulator.FailureRate,
		MinLatency:  cfg.Simulator.MinLatency,
		MaxLatency:  cfg.Simulator.MaxLatency,
	})

	ticker := time.NewTicker(cfg.Simulator.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !drain.ExecutionStarted() {
			return
		}

		resp, err := executor.Run(ctx, guard, sim.Call)
		drain.ExecutionFinished()

		if err != nil {
			logger.Info("guarded call failed",
				slog.String("target", guard.Target()),
				slog.Int("attempts", domain.AttemptCount(err)),
				slog.Bool("circuit_tripped", domain.IsCircuitOpen(err)),
				slog.Any("error", err))
			continue
		}
		logger.Debug("guarded call succeeded", slog.Int("status", resp.StatusCode))
	}
}

// logEvents bridges the guard event stream onto the structured logger.
func logEvents(logger *slog.Logger) func(domain.GuardEvent) {
	return func(event domain.GuardEvent) {
		switch event.Type {
		case domain.EventCircuitOpened, domain.EventCircuitHalfOpened, domain.EventCircuitClosed:
			logger.Info("circuit transition",
				slog.String("target", event.Target),
				slog.String("event", string(event.Type)),
				slog.Any("metadata", event.Metadata))
		default:
			logger.Debug("guard event",
				slog.String("target", event.Target),
				slog.String("event", string(event.Type)),
				slog.Any("metadata", event.Metadata))
		}
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}

	var handler slog.Handler
	switch cfg.Log.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

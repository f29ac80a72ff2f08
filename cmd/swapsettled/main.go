package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"swapsettle/config"
	"swapsettle/core/events"
	"swapsettle/native/swap"
	"swapsettle/observability/logging"
	"swapsettle/observability/metrics"
	"swapsettle/rpc"
	"swapsettle/storage"
)

const envName = "SWAPSETTLE_ENV"

// eventLogger mirrors every engine event into the structured log.
type eventLogger struct {
	logger *slog.Logger
}

func (l eventLogger) Emit(evt events.Event) {
	if l.logger == nil || evt == nil {
		return
	}
	payload, ok := evt.(*swap.Event)
	if !ok {
		return
	}
	attrs := make([]any, 0, len(payload.Attributes)*2)
	for key, value := range payload.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	l.logger.With(attrs...).Info(payload.Type)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envName))
	cfg, err := config.Load(*configFile)
	if err != nil {
		logging.Setup("swapsettled", env).Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.Setup("swapsettled", env, logging.Options{FilePath: cfg.LogFile})

	var db storage.Database
	if strings.TrimSpace(cfg.DataDir) == ":memory:" {
		db = storage.NewMemDB()
	} else {
		leveldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("Failed to open database", slog.Any("error", err))
			os.Exit(1)
		}
		db = leveldb
	}
	defer db.Close()

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		logger.Error("Invalid engine configuration", slog.Any("error", err))
		os.Exit(1)
	}
	vault, err := cfg.Vault()
	if err != nil {
		logger.Error("Invalid vault address", slog.Any("error", err))
		os.Exit(1)
	}
	authorizer, err := cfg.Authorizer()
	if err != nil {
		logger.Error("Invalid role configuration", slog.Any("error", err))
		os.Exit(1)
	}

	recorder := events.NewRecorder(0)
	engine := swap.NewEngine(swap.NewState(db))
	engine.SetVault(vault)
	engine.SetAuthorizer(authorizer)
	engine.SetEmitter(events.NewMultiplexer(recorder, metrics.Swap(), eventLogger{logger: logger}))
	if err := engine.EnsureConfig(engineCfg); err != nil {
		logger.Error("Failed to seed engine configuration", slog.Any("error", err))
		os.Exit(1)
	}

	rpcServer := rpc.NewServer(engine, recorder)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           rpcServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Starting JSON-RPC server", slog.String("addr", cfg.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	if strings.TrimSpace(cfg.MetricsAddress) != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("Starting metrics server", slog.String("addr", cfg.MetricsAddress))
			if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
				logger.Error("Metrics server failed", slog.Any("error", err))
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("RPC shutdown failed", slog.Any("error", err))
	}
	logger.Info("Shutdown complete")
}

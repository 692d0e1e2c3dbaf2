package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopilotstack/autopilot-core/internal/api"
	"github.com/autopilotstack/autopilot-core/internal/config"
	"github.com/autopilotstack/autopilot-core/internal/engine"
	"github.com/autopilotstack/autopilot-core/internal/ingest"
	"github.com/autopilotstack/autopilot-core/internal/metrics"
	"github.com/autopilotstack/autopilot-core/internal/safety"
	"github.com/autopilotstack/autopilot-core/internal/services"
	"github.com/autopilotstack/autopilot-core/internal/store"
	"github.com/autopilotstack/autopilot-core/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting decision engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var stor store.Provider
	if cfg.Store.Addr != "" {
		redisStore, err := store.NewRedisStore(store.RedisConfig{
			Addr:         cfg.Store.Addr,
			Username:     cfg.Store.Username,
			Password:     cfg.Store.Password,
			DB:           cfg.Store.DB,
			DialTimeout:  cfg.Store.DialTimeout,
			ReadTimeout:  cfg.Store.ReadTimeout,
			WriteTimeout: cfg.Store.WriteTimeout,
			MaxRetries:   cfg.Store.MaxRetries,
		})
		if err != nil {
			logger.Error("store unavailable", slog.String("addr", cfg.Store.Addr), slog.Any("error", err))
			os.Exit(1)
		}
		stor = redisStore
	} else {
		logger.Warn("no store address configured, using in-process store; signals and decisions will not survive restarts")
		stor = store.NewMemoryStore()
	}
	defer stor.Close()

	evaluator := safety.NewEvaluator(logger, stor)
	if cfg.Safety.RulePackPath != "" {
		loaded, err := safety.LoadRulePack(context.Background(), cfg.Safety.RulePackPath, evaluator)
		if err != nil {
			logger.Error("failed to load safety rule pack", slog.String("path", cfg.Safety.RulePackPath), slog.Any("error", err))
			os.Exit(1)
		}
		if loaded > 0 {
			logger.Info("safety rule pack loaded", slog.Int("rules", loaded))
		}
	}

	correlator := engine.NewCorrelator(cfg.Correlation.WindowSeconds, cfg.Correlation.MinScore)
	synthesizer := engine.NewSynthesizer(cfg.Decision.TTL)
	decisionService := services.NewDecisionService(logger, stor, correlator, synthesizer)
	executor := services.NewDryRunExecutor(logger)

	server := api.NewServer(cfg.Server, decisionService, evaluator, executor, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Kafka.Enabled {
		consumer, err := ingest.NewKafkaConsumer(ingest.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, decisionService, logger)
		if err != nil {
			logger.Error("failed to create kafka consumer", slog.Any("error", err))
			os.Exit(1)
		}
		go func() {
			if runErr := consumer.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
				logger.Error("kafka consumer exited", slog.Any("error", runErr))
				stop()
			}
		}()
	}

	if cfg.Decision.ProcessInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Decision.ProcessInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					decisions, err := decisionService.ProcessAndDecide(ctx)
					if err != nil {
						logger.Warn("background decide run failed", slog.Any("error", err))
						continue
					}
					if len(decisions) > 0 {
						logger.Info("background decide run complete", slog.Int("decisions", len(decisions)))
					}
				}
			}
		}()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("api server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("decision engine stopped")
}

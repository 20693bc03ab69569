package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mqtt-session-manager/config"
	"mqtt-session-manager/internal/logger"
	"mqtt-session-manager/internal/metrics"
	"mqtt-session-manager/internal/session"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to config file")

	// Optional override flags
	logLevelOverride := flag.String("log-level", "", "override log level (empty = use config)")
	metricsAddrOverride := flag.String("metrics-addr", "", "override metrics server address (empty = use config)")
	metricsPathOverride := flag.String("metrics-path", "", "override metrics endpoint path (empty = use config)")
	metricsIntervalOverride := flag.Duration("metrics-interval", 0, "override metrics collection interval (0 = use config)")

	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Apply any command line overrides
	cfg.ApplyOverrides(
		*logLevelOverride,
		*metricsAddrOverride,
		*metricsPathOverride,
		*metricsIntervalOverride,
	)

	// Initialize logger
	logger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	// Setup metrics if enabled
	var metricsService *metrics.Metrics
	var metricsCollector *metrics.MetricsCollector
	var metricsServer *http.Server

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metricsService, err = metrics.NewMetrics(reg)
		if err != nil {
			logger.Fatal("failed to create metrics service", "error", err)
		}

		updateInterval, err := time.ParseDuration(cfg.Metrics.UpdateInterval)
		if err != nil {
			logger.Fatal("invalid metrics update interval", "error", err)
		}

		metricsCollector = metrics.NewMetricsCollector(metricsService, updateInterval)
		metricsCollector.Start()
		defer metricsCollector.Stop()

		// Setup metrics HTTP server
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			Registry:          reg,
			EnableOpenMetrics: true,
		}))

		metricsServer = &http.Server{
			Addr:    cfg.Metrics.Address,
			Handler: mux,
		}

		go func() {
			logger.Info("starting metrics server",
				"address", cfg.Metrics.Address,
				"path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Setup signal handlers
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Create and wire up the session
	sess := session.New(cfg, logger, metricsService)
	sess.SetConnectionListener(&loggingConnectionListener{log: logger})
	sess.SetSubscriptionListener(&loggingSubscriptionListener{log: logger})
	sess.SetMessageListener(&loggingMessageListener{log: logger})

	if err := sess.Init(); err != nil {
		logger.Fatal("failed to initialize session", "error", err)
	}

	connected := make(chan error, 1)
	sess.Connect(&session.Callback{
		OnSuccess: func() { connected <- nil },
		OnFailure: func(err error) { connected <- err },
	})
	if err := <-connected; err != nil {
		logger.Fatal("failed to connect", "error", err)
	}

	// Subscribe to configured topics
	for _, sub := range cfg.Subscriptions {
		topic := sub.Topic
		sess.Subscribe(topic, sub.QoS, &session.Callback{
			OnFailure: func(err error) {
				logger.Error("startup subscription failed", "topic", topic, "error", err)
			},
		})
	}

	logger.Info("mqtt-session-manager started",
		"transport", cfg.Transport,
		"subscriptions", len(cfg.Subscriptions),
		"metricsEnabled", cfg.Metrics.Enabled)

	<-sigChan
	logger.Info("shutting down...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if cfg.Metrics.Enabled && metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}

	sess.Close()
}

// loggingConnectionListener reports connection lifecycle events to the log
type loggingConnectionListener struct {
	log *logger.Logger
}

func (l *loggingConnectionListener) OnConnected(reconnected bool, serverURI string) {
	l.log.Info("connected", "server", serverURI, "reconnected", reconnected)
}

func (l *loggingConnectionListener) OnConnectionLost(err error) {
	l.log.Warn("connection lost", "error", err)
}

func (l *loggingConnectionListener) OnConnectFailed(err error) {
	l.log.Error("connect failed", "error", err)
}

func (l *loggingConnectionListener) OnDisconnected() {
	l.log.Info("disconnected")
}

type loggingSubscriptionListener struct {
	log *logger.Logger
}

func (l *loggingSubscriptionListener) OnSubscribed(topic string) {
	l.log.Info("subscribed", "topic", topic)
}

func (l *loggingSubscriptionListener) OnSubscribeFailed(topic string, err error) {
	l.log.Error("subscribe failed", "topic", topic, "error", err)
}

func (l *loggingSubscriptionListener) OnUnsubscribed(topic string) {
	l.log.Info("unsubscribed", "topic", topic)
}

type loggingMessageListener struct {
	log *logger.Logger
}

func (l *loggingMessageListener) OnMessageArrived(topic string, payload []byte) {
	l.log.Debug("message arrived", "topic", topic, "bytes", len(payload))
}

func (l *loggingMessageListener) OnDeliveryComplete(topic string, payload []byte) {
	l.log.Debug("delivery complete", "topic", topic, "bytes", len(payload))
}

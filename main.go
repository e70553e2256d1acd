package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vertex-claude-proxy/auth"
	"vertex-claude-proxy/circuitbreaker"
	"vertex-claude-proxy/config"
	"vertex-claude-proxy/httpapi"
	"vertex-claude-proxy/logger"
	"vertex-claude-proxy/metrics"
	"vertex-claude-proxy/upstream"
)

func main() {
	fmt.Println(GetBuildInfo())
	fmt.Println()

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadWithDotEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	loggerCfg := logger.NewConfigAdapter(cfg.LogLevel, true)
	logger.Configure(loggerCfg.GetMinLogLevel())
	startupLog := logger.New(context.Background(), loggerCfg)

	ctx := context.Background()
	provider, err := auth.NewProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize credentials: %v", err)
	}
	startupLog.Info("%s Credentials loaded for %s", logger.EmojiAuth, provider.ClientEmail())

	backend := upstream.NewVertexBackend(cfg.UpstreamURL, cfg.UpstreamModel, cfg.EchoModelName, auth.Source{Provider: provider, Log: startupLog})

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	breaker := circuitbreaker.NewHealthManager(circuitbreaker.Config{
		FailureThreshold:   cfg.CircuitBreaker.FailureThreshold,
		BackoffDuration:    cfg.CircuitBreaker.BackoffDuration,
		MaxBackoffDuration: cfg.CircuitBreaker.MaxBackoffDuration,
		ResetTimeout:       cfg.CircuitBreaker.ResetTimeout,
	})
	breaker.InitializeEndpoints([]string{backend.RawPredictURL(), backend.StreamRawPredictURL()})

	client := upstream.NewClient(backend, upstream.RetryPolicy{Enabled: cfg.RetryEnabled, MaxAttempts: cfg.MaxRetryAttempts}, m)

	handler := httpapi.NewHandler(cfg, backend, client, breaker, m, loggerCfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", handler.ChatCompletions)
	mux.HandleFunc("/v1/models", handler.Models)
	mux.HandleFunc("/health", handler.Health)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr: ":" + cfg.Port,
		// No WriteTimeout: streaming responses are bounded by the
		// upstream client's own idle timeout, not by wall-clock duration.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		Handler:           httpapi.Recovery(mux),
	}

	startupLog.Info("%s %s listening on :%s (upstream model %s)", logger.EmojiLaunch, GetVersionInfo(), cfg.Port, cfg.UpstreamModel)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	case <-stop:
		startupLog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Graceful shutdown failed: %v", err)
		}
	}
}

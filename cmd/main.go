package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/UnknownOlympus/geodist/internal/certs"
	"github.com/UnknownOlympus/geodist/internal/config"
	"github.com/UnknownOlympus/geodist/internal/geodesy"
	"github.com/UnknownOlympus/geodist/internal/metrics"
	"github.com/UnknownOlympus/geodist/internal/server"
	"github.com/UnknownOlympus/geodist/internal/static"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

const shutdownTimeout = 5 * time.Second

// Outcome labels for certificate provisioning.
const (
	certReused      = "reused"
	certGenerated   = "generated"
	certToolMissing = "tool_missing"
	certToolFailed  = "tool_failed"
	certError       = "error"
	certSkipped     = "skipped"
)

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad(os.Args[1:])

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	provider, err := geodesy.NewProvider(geodesy.ProviderConfig{
		BaseURL: cfg.UpstreamURL,
		Timeout: cfg.UpstreamTimeout,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("Failed to create distance provider: %v", err)
	}

	files, err := static.New(cfg.Dir, logger)
	if err != nil {
		log.Fatalf("Failed to open static directory: %v", err)
	}
	defer files.Close()

	// Certificates are provisioned before the listener accepts anything.
	pair := provisionCertificate(ctx, logger, cfg, appMetrics)

	srv := server.New(logger, provider, files, appMetrics)
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.HealthPort > 0 {
		go startMonitoringServer(ctx, logger, reg, cfg.HealthPort)
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received. Stopping server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "error", err)
		}
	}()

	logger.InfoContext(ctx, "Serving files", "dir", cfg.Dir)

	if pair != nil {
		logger.InfoContext(ctx, "Starting HTTPS development server",
			"url", fmt.Sprintf("https://localhost:%d", cfg.Port),
			"certificate", "self-signed (development only)",
		)
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		err = httpServer.ListenAndServeTLS(pair.CertFile, pair.KeyFile)
	} else {
		logger.InfoContext(ctx, "Starting HTTP development server",
			"url", fmt.Sprintf("http://localhost:%d", cfg.Port),
			"tunnel", cfg.Tunnel,
		)
		err = httpServer.ListenAndServe()
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		return
	}

	logger.Info("Server stopped gracefully.")
}

// provisionCertificate returns the certificate pair to serve TLS with, or nil
// when the server must run plain HTTP. Tunnel mode never provisions: the tunnel
// terminates TLS itself. Provisioning failures are logged and never fatal.
func provisionCertificate(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	appMetrics *metrics.Metrics,
	opts ...certs.Option,
) *certs.Pair {
	if cfg.Tunnel {
		logger.InfoContext(ctx, "Tunnel mode enabled, TLS is terminated by the tunnel")
		appMetrics.CertProvisioning.WithLabelValues(certSkipped).Inc()
		return nil
	}

	provisioner := certs.NewProvisioner(logger, opts...)
	pair, err := provisioner.Ensure(ctx, filepath.Join(cfg.Dir, certs.DefaultDir))

	switch {
	case errors.Is(err, certs.ErrToolNotFound):
		appMetrics.CertProvisioning.WithLabelValues(certToolMissing).Inc()
		logger.WarnContext(ctx, "OpenSSL not found. Falling back to HTTP.", "error", err)
		return nil
	case errors.Is(err, certs.ErrToolFailed):
		appMetrics.CertProvisioning.WithLabelValues(certToolFailed).Inc()
		logger.ErrorContext(ctx, "Failed to create SSL certificate. Falling back to HTTP.", "error", err)
		return nil
	case err != nil:
		appMetrics.CertProvisioning.WithLabelValues(certError).Inc()
		logger.ErrorContext(ctx, "Certificate provisioning failed. Falling back to HTTP.", "error", err)
		return nil
	case pair.Generated:
		appMetrics.CertProvisioning.WithLabelValues(certGenerated).Inc()
	default:
		appMetrics.CertProvisioning.WithLabelValues(certReused).Inc()
	}

	return pair
}

// startMonitoringServer starts an HTTP server that provides health check and metrics endpoints.
// It listens on the specified port and stops when the context is canceled.
//
// Parameters:
// - ctx: A context.Context for managing cancellation and timeouts.
// - log: A logger for logging server events and errors.
// - reg: A registry with Prometheus collectors.
// - port: The port number on which the server will listen.
func startMonitoringServer(
	ctx context.Context,
	log *slog.Logger,
	reg *prometheus.Registry,
	port int,
) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		if _, err := writer.Write([]byte("OK")); err != nil {
			log.ErrorContext(ctx, "failed to write reply", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.InfoContext(ctx, "Starting monitoring server", "port", port)
	readTimeout := 5
	writeTimeout := 10
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorContext(ctx, "Monitoring server failed", "error", err)
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}

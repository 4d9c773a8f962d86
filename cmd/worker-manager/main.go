// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"application-board/internal/backend"
	"application-board/internal/common/camunda"
	"application-board/internal/common/config"
	"application-board/internal/common/logger"
	"application-board/internal/common/observability"

	la "application-board/internal/workers/board/list-applications"
	uas "application-board/internal/workers/board/update-application-status"
)

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = backend.RetryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init stores with retry ---
	stores, err := backend.Open(ctx, cfg, backend.Options{MaxRetries: 15, InitialDelay: 2 * time.Second}, zapLog, log)
	if err != nil {
		zapLog.Fatal("stores failed after retries", zap.Error(err))
	}
	defer stores.Close()

	// --- Register board workers ---
	var workers []worker.JobWorker

	listHandler := la.NewHandler(
		&la.Config{Timeout: config.GetDuration(config.GetWorkerConfig(cfg, la.TaskType).Timeout)},
		stores.Repository, log,
	)
	if w := camunda.StartWorker(zeebe.GetClient(), la.TaskType, config.GetWorkerConfig(cfg, la.TaskType), listHandler.Handle, zapLog); w != nil {
		workers = append(workers, w)
	}

	updateHandler := uas.NewHandler(
		&uas.Config{Timeout: config.GetDuration(config.GetWorkerConfig(cfg, uas.TaskType).Timeout)},
		stores.Repository, log,
	)
	if w := camunda.StartWorker(zeebe.GetClient(), uas.TaskType, config.GetWorkerConfig(cfg, uas.TaskType), updateHandler.Handle, zapLog); w != nil {
		workers = append(workers, w)
	}
	zapLog.Info("Board workers registered", zap.Int("count", len(workers)))

	// --- Health, Activity & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := stores.Ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		if err := zeebe.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/activity", func(w http.ResponseWriter, r *http.Request) {
		if stores.Recorder == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "activity log disabled"})
			return
		}
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId is required"})
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		events, err := stores.Recorder.Recent(r.Context(), userID, limit)
		if err != nil {
			zapLog.Error("activity query failed", zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "activity unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, events)
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: ":8080", Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

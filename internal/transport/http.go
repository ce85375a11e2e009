package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fanout-server/internal/chainstate"
	"fanout-server/internal/config"
	"fanout-server/internal/message"
	"fanout-server/internal/metrics"
	"fanout-server/internal/session"
	"fanout-server/internal/wire"
)

// serverVersion is reported by GetVersion; set at build time in a real
// release pipeline, left as a constant here since this module has none.
const serverVersion = "fanout-server/dev"

// RunHTTPServer serves the ancillary unary endpoints (spec.md §6), the
// Prometheus metrics endpoint, and a health check, the way the teacher's
// runHTTPServer serves /health and /metrics alongside the WebSocket
// listener.
func RunHTTPServer(ctx context.Context, cfg config.Config, hub *session.Hub, tracker *chainstate.Tracker, metricsRegistry *metrics.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, wire.HealthCheckResponse{Status: "healthy"})
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, wire.GetVersionResponse{Version: serverVersion})
	})

	mux.HandleFunc("/get_slot", func(w http.ResponseWriter, r *http.Request) {
		commitment := parseCommitment(r)
		slot, ok := tracker.LatestSlot(commitment)
		if !ok {
			http.Error(w, "no slot observed yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, wire.GetSlotResponse{Slot: uint64(slot)})
	})

	mux.HandleFunc("/get_block_height", func(w http.ResponseWriter, r *http.Request) {
		height, ok := tracker.BlockHeight()
		if !ok {
			http.Error(w, "no block observed yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, wire.GetBlockHeightResponse{BlockHeight: height})
	})

	mux.HandleFunc("/get_latest_blockhash", func(w http.ResponseWriter, r *http.Request) {
		blockhash, lastValid, ok := tracker.LatestBlockhash()
		if !ok {
			http.Error(w, "no block observed yet", http.StatusServiceUnavailable)
			return
		}
		slot, _ := tracker.LatestSlot(message.Finalized)
		writeJSON(w, wire.GetLatestBlockhashResponse{
			Slot:                 uint64(slot),
			Blockhash:            blockhash,
			LastValidBlockHeight: lastValid,
		})
	})

	mux.HandleFunc("/is_blockhash_valid", func(w http.ResponseWriter, r *http.Request) {
		blockhash := r.URL.Query().Get("blockhash")
		slot, _ := tracker.LatestSlot(message.Processed)
		writeJSON(w, wire.IsBlockhashValidResponse{
			Slot:  uint64(slot),
			Valid: tracker.IsBlockhashValid(blockhash),
		})
	})

	mux.Handle(cfg.Metrics.Endpoint, metricsRegistry.Handler())

	httpServer := &http.Server{
		Addr:         cfg.Metrics.ListenAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ancillary http server starting", zap.String("addr", cfg.Metrics.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ancillary http server shutdown error", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func parseCommitment(r *http.Request) message.CommitmentLevel {
	q := r.URL.Query().Get("commitment")
	switch q {
	case "finalized":
		return message.Finalized
	case "confirmed":
		return message.Confirmed
	default:
		return message.Processed
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

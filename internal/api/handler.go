package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/fraudscore/internal/engine"
	"github.com/gyaneshwarpardhi/fraudscore/internal/logging"
	"github.com/gyaneshwarpardhi/fraudscore/internal/metrics"
	"github.com/gyaneshwarpardhi/fraudscore/internal/scoring"
	"github.com/gyaneshwarpardhi/fraudscore/internal/transaction"
)

// DefaultMaxBatchSize bounds POST /v1/predict/batch.
const DefaultMaxBatchSize = 100

// Reloader rebuilds the scoring service from the configured artifacts.
type Reloader func(ctx context.Context) (*scoring.Service, error)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng      *engine.Engine
	reload   Reloader
	maxBatch int
	mux      *http.ServeMux
}

// New creates an HTTP handler and registers all routes. reload may be nil,
// in which case the reload endpoint reports 501.
func New(eng *engine.Engine, reload Reloader, maxBatch int) http.Handler {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	h := &Handler{eng: eng, reload: reload, maxBatch: maxBatch, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /predict", h.predict)
	h.mux.HandleFunc("POST /v1/predict/batch", h.predictBatch)
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.HandleFunc("GET /model-info", h.modelInfo)
	h.mux.HandleFunc("POST /v1/model/reload", h.reloadModel)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return requestIDMiddleware(loggingMiddleware(h.mux))
}

// POST /predict: synchronous single-transaction scoring.
func (h *Handler) predict(w http.ResponseWriter, r *http.Request) {
	var tx transaction.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if err := tx.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.eng.ScoreSync(r.Context(), &tx)
	if err != nil {
		logging.L(r.Context()).Info("scoring failed", "user_id", tx.UserID, "err", err)
		writeScoringError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /v1/predict/batch: async scoring through the queue (up to maxBatch).
func (h *Handler) predictBatch(w http.ResponseWriter, r *http.Request) {
	var txs []*transaction.Transaction
	if err := json.NewDecoder(r.Body).Decode(&txs); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(txs) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one transaction")
		return
	}
	if len(txs) > h.maxBatch {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(txs), h.maxBatch))
		return
	}

	jobID := uuid.New().String()
	logger := logging.L(r.Context()).With("job_id", jobID)
	queued, invalid := 0, 0
	for i, tx := range txs {
		if tx == nil || tx.Validate() != nil {
			invalid++
			continue
		}
		ok := h.eng.ScoreAsync(tx, func(res scoring.Result, err error) {
			if err != nil {
				logger.Warn("batch item failed", "index", i, "user_id", tx.UserID, "err", err)
				return
			}
			logger.Info("batch item scored", "index", i, "user_id", tx.UserID,
				"fraud_probability", res.Probability, "fraud_label", res.Label)
		})
		if ok {
			queued++
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   jobID,
		"total":    len(txs),
		"queued":   queued,
		"invalid":  invalid,
		"rejected": len(txs) - queued - invalid,
	})
}

// GET /health: model status summary.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	info := h.eng.Service().Info()
	status := "healthy"
	if !info.ModelLoaded {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       status,
		"model_loaded": info.ModelLoaded,
		"features":     info.NFeatures,
	})
}

// GET /model-info: loaded feature columns and model metadata.
func (h *Handler) modelInfo(w http.ResponseWriter, r *http.Request) {
	info := h.eng.Service().Info()
	if !info.ModelLoaded {
		writeJSON(w, http.StatusServiceUnavailable, info)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// POST /v1/model/reload: reload artifacts and swap the service. A failed
// reload keeps the current service.
func (h *Handler) reloadModel(w http.ResponseWriter, r *http.Request) {
	if h.reload == nil {
		writeError(w, http.StatusNotImplemented, "model reload is not configured")
		return
	}
	svc, err := h.reload(r.Context())
	if err != nil {
		logging.L(r.Context()).Warn("model reload failed, keeping current model", "err", err)
		writeScoringError(w, err)
		return
	}
	h.eng.SwapService(svc)
	info := svc.Info()
	logging.L(r.Context()).Info("model reloaded", "artifact_id", info.ArtifactID, "features", info.NFeatures)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":    true,
		"artifact_id": info.ArtifactID,
		"n_features":  info.NFeatures,
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 without a model or when the queue is over 80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	switch {
	case !h.eng.Service().Available():
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "model_unavailable",
			"queue_utilization": util,
		})
	case util > 0.8:
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":            "ready",
			"queue_utilization": util,
		})
	}
}

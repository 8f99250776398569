package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cardioserve/db"
	"cardioserve/ml"
	"cardioserve/monitoring"
	"cardioserve/serving"
	"go.uber.org/zap"
)

const (
	// PersistedHeader is set to "false" when a prediction was returned but
	// not recorded.
	PersistedHeader = "X-Prediction-Persisted"

	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// History reads stored predictions. *db.Store implements it.
type History interface {
	ListPredictions(ctx context.Context, limit int) ([]db.PredictionRecord, error)
	GetPrediction(ctx context.Context, id int64) (*db.PredictionRecord, error)
}

// Handlers holds the dependencies of the API routes. Metrics and Feed may be
// nil.
type Handlers struct {
	Service      *serving.Service
	History      History
	Metrics      *monitoring.MetricsCollector
	Feed         *monitoring.PredictionFeed
	Logger       *zap.Logger
	RequireWrite bool
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /predict/heart", h.handlePredict)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/model/info", h.handleModelInfo)
	mux.HandleFunc("GET /api/predictions", h.handleListPredictions)
	mux.HandleFunc("GET /api/predictions/{id}", h.handleGetPrediction)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	if h.Feed != nil {
		mux.HandleFunc("GET /api/ws/predictions", h.Feed.HandleWebSocket)
	}
}

func (h *Handlers) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *Handlers) recordFailure(class string) {
	if h.Metrics != nil {
		h.Metrics.RecordFailure(class)
	}
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	requestID := GetRequestID(ctx)
	logger := h.logger().With(zap.String("request_id", requestID))
	if h.Metrics != nil {
		h.Metrics.RecordRequest()
	}

	record, err := decodePredictRequest(r)
	if err != nil {
		var schemaErr *SchemaError
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &schemaErr):
			h.recordFailure(ClassSchema)
			writeError(w, http.StatusUnprocessableEntity, "invalid request body", schemaErr.Details...)
		case errors.As(err, &maxBytesErr):
			h.recordFailure(ClassSchema)
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		default:
			h.recordFailure(ClassSchema)
			writeError(w, http.StatusBadRequest, "could not read request body")
		}
		return
	}

	outcome, err := h.Service.Serve(ctx, record)
	if err != nil {
		status, class, message := classify(err)
		h.recordFailure(class)
		if status >= http.StatusInternalServerError {
			logger.Error("predict failed", zap.String("class", class), zap.Error(err))
		} else {
			logger.Info("predict rejected", zap.String("class", class), zap.Error(err))
		}
		writeError(w, status, message)
		return
	}

	stored, err := h.Service.Record(ctx, requestID, record, outcome)
	if err != nil {
		logger.Error("prediction not recorded", zap.Error(err))
		if h.RequireWrite {
			status, class, message := classify(err)
			h.recordFailure(class)
			writeError(w, status, message)
			return
		}
		w.Header().Set(PersistedHeader, "false")
	} else if h.Feed != nil {
		if err := h.Feed.Publish(monitoring.PredictionEvent, stored); err != nil {
			logger.Warn("feed publish failed", zap.Error(err))
		}
	}

	if h.Metrics != nil {
		h.Metrics.RecordPrediction(outcome.Label, time.Since(start))
	}
	logger.Debug("prediction served",
		zap.String("label", outcome.Label),
		zap.Float64("probability", outcome.Probability))
	writeJSON(w, http.StatusOK, outcome.Response())
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"artifacts_loaded": h.Service.Loaded(),
	})
}

type modelInfo struct {
	ModelType         string   `json:"model_type"`
	BundleKind        string   `json:"bundle_kind"`
	TransformerSource string   `json:"transformer_source"`
	NumFeatures       int      `json:"num_features"`
	FeatureNames      []string `json:"feature_names"`
	Labels            []string `json:"labels"`
}

func (h *Handlers) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	artifacts := h.Service.Artifacts()
	if artifacts == nil {
		writeError(w, http.StatusServiceUnavailable, "Model not loaded")
		return
	}
	writeJSON(w, http.StatusOK, modelInfo{
		ModelType:         artifacts.ModelType,
		BundleKind:        artifacts.Kind.String(),
		TransformerSource: artifacts.TransformerSource,
		NumFeatures:       artifacts.Transformer.Width(),
		FeatureNames:      artifacts.Transformer.FeatureNames(),
		Labels:            []string{ml.LabelFor(ml.ClassNormal), ml.LabelFor(ml.ClassHeartDisease)},
	})
}

func (h *Handlers) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}

	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(l, maxHistoryLimit)
	}

	records, err := h.History.ListPredictions(r.Context(), limit)
	if err != nil {
		h.logger().Error("list predictions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load predictions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(records),
		"data":  records,
	})
}

func (h *Handlers) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	record, err := h.History.GetPrediction(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "prediction not found")
		return
	}
	if err != nil {
		h.logger().Error("get prediction failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load prediction")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.Metrics == nil {
		writeError(w, http.StatusNotFound, "metrics disabled")
		return
	}
	if r.URL.Query().Get("format") == "prometheus" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte(h.Metrics.ExportPrometheus()))
		return
	}
	writeJSON(w, http.StatusOK, h.Metrics.Snapshot())
}

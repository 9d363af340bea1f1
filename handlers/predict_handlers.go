package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ospi/api/logger"
	"ospi/api/metrics"
	"ospi/api/middleware"
	"ospi/api/models"
	"ospi/api/prediction"
)

// Predictor is the external purchase-intent classifier.
type Predictor interface {
	Predict(ctx context.Context, req prediction.Request) (*prediction.Result, error)
	ModelMetrics(ctx context.Context) (map[string]prediction.ModelMetrics, error)
}

type PredictHandlers struct {
	Predictor    Predictor
	DefaultModel string
	Metrics      *metrics.Metrics
	Log          logger.Logger
}

type predictResponse struct {
	*prediction.Result
	Features prediction.Request `json:"features"`
}

// Predict scores the caller's session with the requested model. A failed
// prediction leaves the session untouched.
func (h *PredictHandlers) Predict(c *gin.Context) {
	var req models.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.ModelName == "" {
		req.ModelName = h.DefaultModel
	}

	tracker := middleware.TrackerFrom(c)
	log := h.Log.With(logger.String("session_id", tracker.ID()), logger.String("model", req.ModelName))

	snapCtx, cancel := context.WithTimeout(c.Request.Context(), dispatchTimeout)
	state, err := tracker.Snapshot(snapCtx)
	cancel()
	if err != nil {
		dispatchFailed(c, h.Log, tracker.ID(), err, nil)
		return
	}

	features, err := prediction.Build(state, req.ModelName)
	switch {
	case errors.Is(err, prediction.ErrInvalidModel):
		h.Metrics.ObservePrediction(req.ModelName, metrics.OutcomeInvalidModel, 0)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "models": prediction.AllowedModels()})
		return
	case errors.Is(err, prediction.ErrIncompleteSession):
		h.Metrics.ObservePrediction(req.ModelName, metrics.OutcomeIncomplete, 0)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Error("Failed to build prediction request", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build prediction request"})
		return
	}

	start := time.Now()
	result, err := h.Predictor.Predict(c.Request.Context(), features)
	elapsed := time.Since(start)
	if err != nil {
		h.Metrics.ObservePrediction(req.ModelName, metrics.OutcomeUnavailable, elapsed)
		log.Warn("Prediction unavailable", logger.Duration("elapsed", elapsed), logger.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Prediction service unavailable"})
		return
	}
	h.Metrics.ObservePrediction(req.ModelName, metrics.OutcomeSuccess, elapsed)

	log.Info("Prediction served",
		logger.Int("prediction", result.Prediction),
		logger.Float64("confidence", result.Confidence),
		logger.Duration("elapsed", elapsed),
	)
	c.JSON(http.StatusOK, predictResponse{Result: result, Features: features})
}

// ListModels reports the model allow-list and the default model.
func (h *PredictHandlers) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":  prediction.AllowedModels(),
		"default": h.DefaultModel,
	})
}

// ModelMetrics relays the classifier's accuracy and ROC AUC per model.
func (h *PredictHandlers) ModelMetrics(c *gin.Context) {
	out, err := h.Predictor.ModelMetrics(c.Request.Context())
	if err != nil {
		h.Log.Warn("Model metrics unavailable", logger.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Prediction service unavailable"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// ListFeatures names the classifier inputs in wire order.
func ListFeatures(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"features": prediction.FeatureNames()})
}

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ospi/api/config"
	"ospi/api/logger"
)

func setupRouter(t *testing.T) (*gin.Engine, *app) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	predictor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/predict":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["model_name"] == nil {
				http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"prediction":0,"confidence":0.64,"result":"No Purchase"}`))
		case "/health":
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(predictor.Close)

	cfg := &config.Config{
		Server:  config.ServerConfig{Port: "0", GinMode: gin.TestMode, FEOrigin: "http://localhost:3000"},
		Session: config.SessionConfig{TTL: time.Minute, TickInterval: 10 * time.Millisecond, TokenSecret: "s3cret", TokenTTL: time.Hour},
		Predictor: config.PredictorConfig{
			URL:          predictor.URL,
			Timeout:      time.Second,
			DefaultModel: "Random_Forest",
		},
		Stats: config.StatsConfig{APIKey: "stats-key"},
	}
	require.NoError(t, cfg.Validate())

	a := newApp(cfg, logger.NewNop())
	t.Cleanup(a.sessions.Close)
	return a.setupRouter(), a
}

func request(t *testing.T, r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0 Safari/537.36")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionFlow(t *testing.T) {
	r, a := setupRouter(t)

	w := request(t, r, http.MethodPost, "/api/sessions", "", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = request(t, r, http.MethodPost, "/api/session/events", created.Token,
		`[{"type":"visit_page","page_id":"home"},{"type":"visit_page","page_id":"product-7"},{"type":"add_to_cart","item":{"id":"7","name":"Mug","price":9.5,"quantity":1}}]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = request(t, r, http.MethodPost, "/api/session/predict", created.Token, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var predicted struct {
		Prediction int     `json:"prediction"`
		Confidence float64 `json:"confidence"`
		Features   struct {
			Browser   int    `json:"Browser"`
			ModelName string `json:"model_name"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &predicted))
	assert.Equal(t, 0, predicted.Prediction)
	assert.Equal(t, 1, predicted.Features.Browser)
	assert.Equal(t, "Random_Forest", predicted.Features.ModelName)

	w = request(t, r, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	text := w.Body.String()
	assert.True(t, strings.Contains(text, "ospi_sessions_active 1"))
	assert.True(t, strings.Contains(text, `ospi_session_events_applied_total{kind="add_to_cart"} 1`))
	assert.True(t, strings.Contains(text, `ospi_predictions_total{model="Random_Forest",outcome="success"} 1`))

	w = request(t, r, http.MethodDelete, "/api/session", created.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, a.sessions.Count())
}

func TestStatsRoutes(t *testing.T) {
	r, _ := setupRouter(t)

	w := request(t, r, http.MethodGet, "/api/stats/top-paths", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/top-paths", http.NoBody)
	req.Header.Set("X-API-KEY", "stats-key")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "no event log configured")
}

func TestHealthRoute(t *testing.T) {
	r, _ := setupRouter(t)

	w := request(t, r, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","sessions":0,"predictor":"ok"}`, w.Body.String())
}

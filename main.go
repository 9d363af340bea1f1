package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"ospi/api/config"
	"ospi/api/database"
	"ospi/api/handlers"
	"ospi/api/logger"
	"ospi/api/metrics"
	"ospi/api/middleware"
	"ospi/api/models"
	"ospi/api/prediction"
	"ospi/api/session"
	"ospi/api/store"
	"ospi/api/utils"
)

// app bundles everything the router needs.
type app struct {
	cfg       *config.Config
	log       logger.Logger
	metrics   *metrics.Metrics
	sessions  *store.SessionStore
	tokens    *utils.TokenIssuer
	predictor *prediction.Client
	eventLog  *store.EventLog
	stats     handlers.StatsReader
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Server.GinMode != gin.ReleaseMode,
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", logger.Error(err))
		os.Exit(1)
	}

	gin.SetMode(cfg.Server.GinMode)

	a := newApp(cfg, log)

	// --- Optional ClickHouse event log ---
	if cfg.ClickHouse.Enabled() {
		chClient, err := database.NewClickHouseDB(context.Background(), cfg.ClickHouse, log)
		if err != nil {
			log.Error("Failed to initialize ClickHouse, event log disabled", logger.Error(err))
		} else {
			defer chClient.Close()
			analyticsStore := store.NewAnalyticsStore(chClient, log)
			a.stats = analyticsStore
			a.eventLog = store.NewEventLog(analyticsStore, store.EventLogOptions{
				OnFlush: a.observeFlush,
			}, log)
			defer a.eventLog.Close()
		}
	} else {
		log.Info("CLICKHOUSE_HOST not set, event log disabled")
	}
	defer a.sessions.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("API server starting", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("API server failed", logger.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}

	log.Info("Server exiting")
}

func newApp(cfg *config.Config, log logger.Logger) *app {
	m := metrics.New()

	sessions := store.NewSessionStore(cfg.Session.TTL, cfg.Session.TTL/2, log, func(string) {
		m.SessionsClosed.Inc()
	})
	m.RegisterActiveSessions(sessions.Count)

	return &app{
		cfg:       cfg,
		log:       log,
		metrics:   m,
		sessions:  sessions,
		tokens:    utils.NewTokenIssuer(cfg.Session.TokenSecret, cfg.Session.TokenTTL),
		predictor: prediction.NewClient(cfg.Predictor.URL, cfg.Predictor.Timeout, log),
	}
}

func (a *app) newTracker(sessionID, userAgent string) *session.Tracker {
	return session.NewTracker(sessionID, session.Options{
		Sampler:      session.NewEnvironmentSampler(userAgent, nil),
		TickInterval: a.cfg.Session.TickInterval,
		Logger:       a.log,
		OnApply: func(_ string, ev session.Event, _ models.SessionState) {
			a.metrics.EventsApplied.WithLabelValues(string(ev.Kind())).Inc()
		},
	})
}

func (a *app) observeFlush(n int, err error) {
	if err != nil {
		a.metrics.RecordFailures.Inc()
		return
	}
	a.metrics.EventsRecorded.Add(float64(n))
}

func (a *app) setupRouter() *gin.Engine {
	sessionHandlers := &handlers.SessionHandlers{
		Sessions:     a.sessions,
		Tokens:       a.tokens,
		NewTracker:   a.newTracker,
		Metrics:      a.metrics,
		Log:          a.log,
		SecureCookie: a.cfg.Session.SecureCookie,
	}
	if a.eventLog != nil {
		sessionHandlers.Recorder = a.eventLog
	}
	predictHandlers := &handlers.PredictHandlers{
		Predictor:    a.predictor,
		DefaultModel: a.cfg.Predictor.DefaultModel,
		Metrics:      a.metrics,
		Log:          a.log,
	}
	healthHandlers := &handlers.HealthHandlers{Predictor: a.predictor, Sessions: a.sessions}
	statsHandlers := handlers.NewStatsHandlers(a.stats, a.log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(a.cfg.Server.FEOrigin))

	r.GET("/health", healthHandlers.Health)
	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	api := r.Group("/api")
	{
		api.POST("/sessions", sessionHandlers.CreateSession)
		api.GET("/models", predictHandlers.ListModels)
		api.GET("/models/metrics", predictHandlers.ModelMetrics)
		api.GET("/features", handlers.ListFeatures)

		current := api.Group("/session")
		current.Use(middleware.SessionRequired(a.tokens, a.sessions, a.log))
		{
			current.GET("", sessionHandlers.GetSession)
			current.DELETE("", sessionHandlers.EndSession)
			current.POST("/events", sessionHandlers.TrackEvents)
			current.POST("/reset", sessionHandlers.ResetSession)
			current.POST("/predict", predictHandlers.Predict)
		}

		statsGroup := api.Group("/stats")
		statsGroup.Use(middleware.StatsKeyRequired(a.cfg.Stats.APIKey))
		{
			statsGroup.GET("/event-counts", statsHandlers.GetEventCountsOverTime)
			statsGroup.GET("/unique-sessions", statsHandlers.GetUniqueSessionsOverTime)
			statsGroup.GET("/average-page-value", statsHandlers.GetAveragePageValue)
			statsGroup.GET("/top-paths", statsHandlers.GetTopNPagePaths)
		}
	}

	return r
}

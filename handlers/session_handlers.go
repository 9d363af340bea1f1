package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ospi/api/logger"
	"ospi/api/metrics"
	"ospi/api/middleware"
	"ospi/api/models"
	"ospi/api/session"
	"ospi/api/utils"
)

// dispatchTimeout bounds how long a request waits on its session's queue.
const dispatchTimeout = 5 * time.Second

// TrackerFactory starts a tracker for a new session.
type TrackerFactory func(sessionID, userAgent string) *session.Tracker

// SessionRegistry holds live trackers.
type SessionRegistry interface {
	Save(tr *session.Tracker) error
	Delete(sessionID string) error
}

// TokenGenerator issues session tokens.
type TokenGenerator interface {
	GenerateSessionToken(sessionID string) (string, time.Time, error)
}

// Recorder receives applied events for the interaction log. Record must not
// block.
type Recorder interface {
	Record(ev models.AnalyticsEvent) bool
}

type SessionHandlers struct {
	Sessions     SessionRegistry
	Tokens       TokenGenerator
	NewTracker   TrackerFactory
	Recorder     Recorder
	Metrics      *metrics.Metrics
	Log          logger.Logger
	SecureCookie bool
}

type sessionResponse struct {
	SessionID string              `json:"sessionId"`
	Token     string              `json:"token,omitempty"`
	ExpiresAt *time.Time          `json:"expiresAt,omitempty"`
	State     models.SessionState `json:"state"`
}

type trackResponse struct {
	Applied int                 `json:"applied"`
	Ignored int                 `json:"ignored"`
	State   models.SessionState `json:"state"`
}

// CreateSession starts a tracked session for the caller and issues its token.
func (h *SessionHandlers) CreateSession(c *gin.Context) {
	sessionID := utils.GenerateSessionID()
	tracker := h.NewTracker(sessionID, c.Request.UserAgent())

	if err := h.Sessions.Save(tracker); err != nil {
		tracker.Close()
		h.Log.Error("Failed to register session", logger.String("session_id", sessionID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	token, expiresAt, err := h.Tokens.GenerateSessionToken(sessionID)
	if err != nil {
		_ = h.Sessions.Delete(sessionID)
		h.Log.Error("Failed to issue session token", logger.String("session_id", sessionID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dispatchTimeout)
	defer cancel()

	ev := session.StartSession{}
	state, err := tracker.Dispatch(ctx, ev)
	if err != nil {
		_ = h.Sessions.Delete(sessionID)
		h.Log.Error("Failed to start session", logger.String("session_id", sessionID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	h.record(c, sessionID, ev, state)
	h.Metrics.SessionsCreated.Inc()

	c.SetCookie(
		middleware.SessionCookie,
		token,
		int(time.Until(expiresAt)/time.Second),
		"/",
		"",
		h.SecureCookie,
		true,
	)

	h.Log.Info("Session created",
		logger.String("session_id", sessionID),
		logger.Int("browser", state.Features.BrowserCode),
		logger.Int("os", state.Features.OperatingSystemCode),
	)
	c.JSON(http.StatusCreated, sessionResponse{
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: &expiresAt,
		State:     state,
	})
}

// TrackEvents applies a batch of events in order. Events with an unknown
// type or a missing payload are skipped and counted as ignored.
func (h *SessionHandlers) TrackEvents(c *gin.Context) {
	var incoming []models.EventRequest
	if err := c.ShouldBindJSON(&incoming); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	tracker := middleware.TrackerFrom(c)
	sessionID := tracker.ID()

	ctx, cancel := context.WithTimeout(c.Request.Context(), dispatchTimeout)
	defer cancel()

	resp := trackResponse{}
	for _, req := range incoming {
		ev, ok := session.ParseEvent(req)
		// Dwell ticks only come from the session's own timer.
		if !ok || ev.Kind() == session.KindUpdateProductDuration {
			resp.Ignored++
			h.Metrics.EventsIgnored.Inc()
			continue
		}

		state, err := tracker.Dispatch(ctx, ev)
		if err != nil {
			// Events before this one stay applied.
			dispatchFailed(c, h.Log, sessionID, err, gin.H{"applied": resp.Applied, "ignored": resp.Ignored})
			return
		}
		h.record(c, sessionID, ev, state)
		resp.Applied++
		resp.State = state
	}

	if resp.Applied == 0 {
		state, err := tracker.Snapshot(ctx)
		if err != nil {
			dispatchFailed(c, h.Log, sessionID, err, gin.H{"applied": 0, "ignored": resp.Ignored})
			return
		}
		resp.State = state
	}

	c.JSON(http.StatusOK, resp)
}

// GetSession returns a snapshot of the caller's session.
func (h *SessionHandlers) GetSession(c *gin.Context) {
	tracker := middleware.TrackerFrom(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), dispatchTimeout)
	defer cancel()

	state, err := tracker.Snapshot(ctx)
	if err != nil {
		dispatchFailed(c, h.Log, tracker.ID(), err, nil)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{SessionID: tracker.ID(), State: state})
}

// ResetSession clears the session's history and samples a fresh
// environment. The session must be started again before predicting.
func (h *SessionHandlers) ResetSession(c *gin.Context) {
	tracker := middleware.TrackerFrom(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), dispatchTimeout)
	defer cancel()

	ev := session.ResetSession{}
	state, err := tracker.Dispatch(ctx, ev)
	if err != nil {
		dispatchFailed(c, h.Log, tracker.ID(), err, nil)
		return
	}
	h.record(c, tracker.ID(), ev, state)
	c.JSON(http.StatusOK, sessionResponse{SessionID: tracker.ID(), State: state})
}

// EndSession stops the caller's tracker and clears the session cookie.
func (h *SessionHandlers) EndSession(c *gin.Context) {
	sessionID := c.GetString(middleware.SessionIDKey)

	if err := h.Sessions.Delete(sessionID); err != nil {
		h.Log.Debug("Session already gone", logger.String("session_id", sessionID), logger.Error(err))
	}

	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.SecureCookie, true)
	h.Log.Info("Session ended", logger.String("session_id", sessionID))
	c.JSON(http.StatusOK, gin.H{"message": "Session ended"})
}

// dispatchFailed maps a tracker error to a response. Fields in extra are
// merged into the error body.
func dispatchFailed(c *gin.Context, log logger.Logger, sessionID string, err error, extra gin.H) {
	var (
		status int
		body   gin.H
	)
	switch {
	case errors.Is(err, session.ErrTrackerClosed):
		status, body = http.StatusGone, gin.H{"error": "Session has ended"}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		log.Warn("Session dispatch timed out", logger.String("session_id", sessionID), logger.Error(err))
		status, body = http.StatusServiceUnavailable, gin.H{"error": "Session is busy, try again"}
	default:
		log.Error("Session dispatch failed", logger.String("session_id", sessionID), logger.Error(err))
		status, body = http.StatusInternalServerError, gin.H{"error": "Failed to apply event"}
	}

	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func (h *SessionHandlers) record(c *gin.Context, sessionID string, ev session.Event, state models.SessionState) {
	if h.Recorder == nil {
		return
	}

	out := models.AnalyticsEvent{
		EventID:   utils.GenerateEventID(),
		EventType: string(ev.Kind()),
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
		PageValue: state.Features.PageValue,
	}

	switch ev := ev.(type) {
	case session.VisitPage:
		out.PagePath = ev.PageID
	case session.AddToCart:
		out.ProductID = ev.Item.ID
		if data, err := json.Marshal(ev.Item); err == nil {
			out.EventData = data
		}
	case session.RemoveFromCart:
		out.ProductID = ev.ProductID
	}

	h.Recorder.Record(out)
}

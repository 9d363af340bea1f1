package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ospi/api/logger"
	"ospi/api/models"
	"ospi/api/store"
	"ospi/api/utils"
)

const (
	defaultStatsWindow = 7 * 24 * time.Hour
	statsQueryTimeout  = 10 * time.Second
)

// StatsReader queries the interaction event log.
type StatsReader interface {
	GetEventCountsOverTime(ctx context.Context, interval string, start, end time.Time, eventTypeFilter string) ([]store.EventTypeCountByTime, error)
	GetUniqueSessionsOverTime(ctx context.Context, interval string, start, end time.Time) ([]store.EventTypeCountByTime, error)
	GetAveragePageValue(ctx context.Context, eventTypeFilter string, start, end time.Time) (float64, error)
	GetTopNPagePaths(ctx context.Context, start, end time.Time, limit uint64) ([]models.TopPathResult, error)
}

// StatsHandlers serve reports over the event log. With a nil Store every
// report answers 503.
type StatsHandlers struct {
	Store StatsReader
	Log   logger.Logger
	now   func() time.Time
}

func NewStatsHandlers(s StatsReader, log logger.Logger) *StatsHandlers {
	return &StatsHandlers{Store: s, Log: log, now: time.Now}
}

func (h *StatsHandlers) GetEventCountsOverTime(c *gin.Context) {
	if !h.available(c) {
		return
	}
	interval, ok := h.parseInterval(c)
	if !ok {
		return
	}
	start, end, ok := h.parseTimeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsQueryTimeout)
	defer cancel()

	results, err := h.Store.GetEventCountsOverTime(ctx, interval, start, end, c.Query("eventType"))
	if err != nil {
		h.queryFailed(c, "event counts", err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *StatsHandlers) GetUniqueSessionsOverTime(c *gin.Context) {
	if !h.available(c) {
		return
	}
	interval, ok := h.parseInterval(c)
	if !ok {
		return
	}
	start, end, ok := h.parseTimeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsQueryTimeout)
	defer cancel()

	results, err := h.Store.GetUniqueSessionsOverTime(ctx, interval, start, end)
	if err != nil {
		h.queryFailed(c, "unique sessions", err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *StatsHandlers) GetAveragePageValue(c *gin.Context) {
	if !h.available(c) {
		return
	}
	start, end, ok := h.parseTimeRange(c)
	if !ok {
		return
	}
	eventTypeFilter := c.Query("eventType")

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsQueryTimeout)
	defer cancel()

	avg, err := h.Store.GetAveragePageValue(ctx, eventTypeFilter, start, end)
	if err != nil {
		h.queryFailed(c, "average page value", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"eventType":        eventTypeFilter,
		"startDate":        start.Format(time.RFC3339),
		"endDate":          end.Format(time.RFC3339),
		"averagePageValue": avg,
	})
}

func (h *StatsHandlers) GetTopNPagePaths(c *gin.Context) {
	if !h.available(c) {
		return
	}
	start, end, ok := h.parseTimeRange(c)
	if !ok {
		return
	}

	var limit uint64 = 10
	if limitParam := c.Query("limit"); limitParam != "" {
		parsedLimit, err := strconv.ParseUint(limitParam, 10, 64)
		if err != nil || parsedLimit == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = parsedLimit
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsQueryTimeout)
	defer cancel()

	results, err := h.Store.GetTopNPagePaths(ctx, start, end, limit)
	if err != nil {
		h.queryFailed(c, "top page paths", err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *StatsHandlers) available(c *gin.Context) bool {
	if h.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event log is not configured"})
		return false
	}
	return true
}

// parseInterval reads the required interval query parameter in any casing.
func (h *StatsHandlers) parseInterval(c *gin.Context) (string, bool) {
	raw := c.Query("interval")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval query parameter is required (e.g., 'day', 'hour')"})
		return "", false
	}
	interval, ok := utils.NormalizeInterval(raw)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval must be one of Minute, Hour, Day, Week, Month, Quarter, Year"})
		return "", false
	}
	return interval, true
}

// parseTimeRange reads RFC3339 start and end query parameters, defaulting
// to the last seven days. It writes the 400 response itself.
func (h *StatsHandlers) parseTimeRange(c *gin.Context) (time.Time, time.Time, bool) {
	end := h.now().UTC()
	start := end.Add(-defaultStatsWindow)

	if p := c.Query("start"); p != "" {
		t, err := time.Parse(time.RFC3339, p)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'start' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return time.Time{}, time.Time{}, false
		}
		start = t
	}
	if p := c.Query("end"); p != "" {
		t, err := time.Parse(time.RFC3339, p)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'end' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return time.Time{}, time.Time{}, false
		}
		end = t
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'end' must not be before 'start'"})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (h *StatsHandlers) queryFailed(c *gin.Context, what string, err error) {
	if errors.Is(err, store.ErrInvalidInterval) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Log.Error("Stats query failed", logger.String("report", what), logger.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve " + what + " statistics"})
}

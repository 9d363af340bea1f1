package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ospi/api/logger"
	"ospi/api/session"
	"ospi/api/utils"
)

// Context keys set by SessionRequired.
const (
	SessionIDKey = "session_id"
	TrackerKey   = "session_tracker"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "session_token"

// TokenValidator checks a session token.
type TokenValidator interface {
	ValidateSessionToken(token string) (*utils.SessionClaims, error)
}

// TrackerLookup finds the live tracker of a session.
type TrackerLookup interface {
	Get(sessionID string) (*session.Tracker, error)
}

// SessionRequired authenticates the session token from the cookie or an
// Authorization bearer header and loads the session's tracker.
func SessionRequired(tokens TokenValidator, trackers TrackerLookup, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(SessionCookie)
		if err != nil || tokenString == "" {
			tokenString = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
			if tokenString == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No session token provided"})
				return
			}
		}

		claims, err := tokens.ValidateSessionToken(tokenString)
		if err != nil {
			log.Debug("Rejected session token", logger.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired session token"})
			return
		}

		tracker, err := trackers.Get(claims.SessionID)
		if err != nil {
			log.Debug("Session token refers to an ended session",
				logger.String("session_id", claims.SessionID),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Session has ended"})
			return
		}

		c.Set(SessionIDKey, claims.SessionID)
		c.Set(TrackerKey, tracker)
		c.Next()
	}
}

// StatsKeyRequired guards the reporting endpoints with a shared X-API-KEY.
// An empty key closes them entirely.
func StatsKeyRequired(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader("X-API-KEY")
		if apiKey == "" || subtle.ConstantTimeCompare([]byte(given), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API key"})
			return
		}
		c.Next()
	}
}

// TrackerFrom returns the tracker loaded by SessionRequired.
func TrackerFrom(c *gin.Context) *session.Tracker {
	return c.MustGet(TrackerKey).(*session.Tracker)
}

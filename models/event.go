package models

import (
	"encoding/json"
	"time"
)

// AnalyticsEvent is one interaction event as recorded in the event log.
type AnalyticsEvent struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	PagePath  string          `json:"pagePath,omitempty"`
	ProductID string          `json:"productId,omitempty"`
	UserAgent string          `json:"userAgent"`
	IPAddress string          `json:"ipAddress"`
	PageValue float64         `json:"pageValue"`
	EventData json.RawMessage `json:"eventData,omitempty"`
}

type TopPathResult struct {
	PagePath string `json:"pagePath"`
	Count    uint64 `json:"count"`
}

// EventRequest is the wire form of a session event posted by the UI layer.
type EventRequest struct {
	Type      string    `json:"type"`
	PageID    string    `json:"page_id,omitempty"`
	ProductID string    `json:"product_id,omitempty"`
	Item      *CartItem `json:"item,omitempty"`
}

type PredictRequest struct {
	ModelName string `json:"model_name"`
}

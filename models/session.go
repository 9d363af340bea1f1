package models

import "time"

// FeatureVector is the derived analytics record for one browsing session,
// shaped after the purchase-intent classifier's input schema.
type FeatureVector struct {
	AdministrativePages    int     `json:"administrativePages"`
	AdministrativeDuration float64 `json:"administrativeDuration"`
	InformationalPages     int     `json:"informationalPages"`
	InformationalDuration  float64 `json:"informationalDuration"`
	ProductPages           int     `json:"productPages"`
	ProductDuration        float64 `json:"productDuration"`

	BounceRate float64 `json:"bounceRate"`
	ExitRate   float64 `json:"exitRate"`
	PageValue  float64 `json:"pageValue"`
	SpecialDay float64 `json:"specialDay"`

	// Context fields, sampled once when the session state is created.
	Month               string `json:"month"`
	OperatingSystemCode int    `json:"operatingSystemCode"`
	BrowserCode         int    `json:"browserCode"`
	RegionCode          int    `json:"regionCode"`
	TrafficTypeCode     int    `json:"trafficTypeCode"`
	VisitorTypeLabel    string `json:"visitorTypeLabel"`
	IsWeekend           bool   `json:"isWeekend"`
}

// CartItem is one cart line. Adding the same product twice yields two lines.
type CartItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// SessionState owns a session's feature vector plus the history the
// aggregation rules need.
type SessionState struct {
	Features         FeatureVector `json:"features"`
	PageVisits       []string      `json:"pageVisits"`
	SessionStartedAt time.Time     `json:"sessionStartedAt"`
	// ActiveProductPageSince is the dwell timer baseline; nil unless the most
	// recent navigation landed on a product page.
	ActiveProductPageSince *time.Time `json:"activeProductPageSince,omitempty"`
	CartItems              []CartItem `json:"cartItems"`
	Started                bool       `json:"started"`
}

// NewSessionState returns an unstarted state seeded with the given features.
func NewSessionState(features FeatureVector) SessionState {
	return SessionState{
		Features:   features,
		PageVisits: []string{},
		CartItems:  []CartItem{},
	}
}

// Clone returns a deep copy that shares no memory with s.
func (s SessionState) Clone() SessionState {
	out := s
	out.PageVisits = append(make([]string, 0, len(s.PageVisits)), s.PageVisits...)
	out.CartItems = append(make([]CartItem, 0, len(s.CartItems)), s.CartItems...)
	if s.ActiveProductPageSince != nil {
		since := *s.ActiveProductPageSince
		out.ActiveProductPageSince = &since
	}
	return out
}

// DistinctPageCount returns the number of distinct page ids visited.
func (s SessionState) DistinctPageCount() int {
	seen := make(map[string]struct{}, len(s.PageVisits))
	for _, p := range s.PageVisits {
		seen[p] = struct{}{}
	}
	return len(seen)
}

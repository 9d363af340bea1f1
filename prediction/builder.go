// Package prediction packages session features for the external
// purchase-intent classifier and talks to it over HTTP.
package prediction

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"ospi/api/models"
	"ospi/api/session"
)

var (
	// ErrInvalidModel is returned for a model identifier outside the allow-list.
	ErrInvalidModel = errors.New("invalid model")
	// ErrIncompleteSession is returned when the session has not started or its
	// features cannot be encoded.
	ErrIncompleteSession = errors.New("incomplete session")
	// ErrPredictionUnavailable wraps every transport, status and decoding
	// failure of the prediction service.
	ErrPredictionUnavailable = errors.New("prediction unavailable")
)

// Per-page duration estimates, in seconds, for the categories that have no
// real-time tracking.
const (
	AdministrativeSecondsPerPage = 30
	InformationalSecondsPerPage  = 45

	administrativeMarker = "admin"
	informationalMarker  = "info"
)

var allowedModels = []string{
	"Gradient_Boosting",
	"Random_Forest",
	"XGBoost",
	"Adaboost",
	"Logistic_Regression",
}

// AllowedModels returns a copy of the model allow-list.
func AllowedModels() []string {
	return slices.Clone(allowedModels)
}

func IsAllowedModel(modelID string) bool {
	return slices.Contains(allowedModels, modelID)
}

var featureNames = []string{
	"Administrative", "Administrative_Duration",
	"Informational", "Informational_Duration",
	"ProductRelated", "ProductRelated_Duration",
	"BounceRates", "ExitRates", "PageValues", "SpecialDay",
	"Month", "OperatingSystems", "Browser", "Region", "TrafficType",
	"VisitorType", "Weekend",
}

// FeatureNames lists the classifier inputs in the order of Request.
func FeatureNames() []string {
	return slices.Clone(featureNames)
}

// Request is the exact body accepted by the predictor's /predict endpoint.
// It holds values only, so a built Request is unaffected by later session
// events.
type Request struct {
	Administrative         int     `json:"Administrative"`
	AdministrativeDuration float64 `json:"Administrative_Duration"`
	Informational          int     `json:"Informational"`
	InformationalDuration  float64 `json:"Informational_Duration"`
	ProductRelated         int     `json:"ProductRelated"`
	ProductRelatedDuration float64 `json:"ProductRelated_Duration"`
	BounceRates            float64 `json:"BounceRates"`
	ExitRates              float64 `json:"ExitRates"`
	PageValues             float64 `json:"PageValues"`
	SpecialDay             float64 `json:"SpecialDay"`
	Month                  int     `json:"Month"`
	OperatingSystems       int     `json:"OperatingSystems"`
	Browser                int     `json:"Browser"`
	Region                 int     `json:"Region"`
	TrafficType            int     `json:"TrafficType"`
	VisitorType            string  `json:"VisitorType"`
	Weekend                int     `json:"Weekend"`
	ModelName              string  `json:"model_name"`
}

// Build maps a session snapshot to a predictor Request for modelID.
func Build(state models.SessionState, modelID string) (Request, error) {
	if !IsAllowedModel(modelID) {
		return Request{}, fmt.Errorf("%w: %q is not one of %s", ErrInvalidModel, modelID, strings.Join(allowedModels, ", "))
	}
	if !state.Started {
		return Request{}, fmt.Errorf("%w: session has not started", ErrIncompleteSession)
	}

	f := state.Features
	month := session.MonthNumber(f.Month)
	if month == 0 {
		return Request{}, fmt.Errorf("%w: unknown month %q", ErrIncompleteSession, f.Month)
	}
	if err := checkFeatures(f); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrIncompleteSession, err)
	}

	admin := countContaining(state.PageVisits, administrativeMarker)
	info := countContaining(state.PageVisits, informationalMarker)

	weekend := 0
	if f.IsWeekend {
		weekend = 1
	}

	return Request{
		Administrative:         admin,
		AdministrativeDuration: float64(admin * AdministrativeSecondsPerPage),
		Informational:          info,
		InformationalDuration:  float64(info * InformationalSecondsPerPage),
		ProductRelated:         f.ProductPages,
		ProductRelatedDuration: f.ProductDuration,
		BounceRates:            f.BounceRate,
		ExitRates:              f.ExitRate,
		PageValues:             f.PageValue,
		SpecialDay:             f.SpecialDay,
		Month:                  month,
		OperatingSystems:       f.OperatingSystemCode,
		Browser:                f.BrowserCode,
		Region:                 f.RegionCode,
		TrafficType:            f.TrafficTypeCode,
		VisitorType:            f.VisitorTypeLabel,
		Weekend:                weekend,
		ModelName:              modelID,
	}, nil
}

// checkFeatures rejects values the classifier cannot have been trained on.
func checkFeatures(f models.FeatureVector) error {
	for name, v := range map[string]float64{
		"product duration": f.ProductDuration,
		"bounce rate":      f.BounceRate,
		"exit rate":        f.ExitRate,
		"page value":       f.PageValue,
		"special day":      f.SpecialDay,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s is %v", name, v)
		}
	}
	if f.ExitRate == 0 || f.ExitRate > 1 || f.BounceRate > 1 || f.SpecialDay > 1 {
		return errors.New("rate outside [0, 1]")
	}
	if f.ProductPages < 0 || f.VisitorTypeLabel == "" {
		return errors.New("missing context fields")
	}
	return nil
}

func countContaining(pages []string, marker string) int {
	n := 0
	for _, p := range pages {
		if strings.Contains(p, marker) {
			n++
		}
	}
	return n
}

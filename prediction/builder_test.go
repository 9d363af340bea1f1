package prediction

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ospi/api/models"
	"ospi/api/session"
)

func startedState() models.SessionState {
	s := models.NewSessionState(models.FeatureVector{
		ProductPages:        2,
		ProductDuration:     12.5,
		BounceRate:          0,
		ExitRate:            0.25,
		PageValue:           0.7,
		Month:               "Oct",
		OperatingSystemCode: session.OSMac,
		BrowserCode:         session.BrowserSafari,
		RegionCode:          4,
		TrafficTypeCode:     11,
		VisitorTypeLabel:    session.VisitorReturning,
		IsWeekend:           true,
	})
	s.Started = true
	s.SessionStartedAt = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	s.PageVisits = []string{"home", "admin-orders", "info-shipping", "product-1", "product-2", "info-returns"}
	return s
}

func TestBuild(t *testing.T) {
	req, err := Build(startedState(), "XGBoost")
	require.NoError(t, err)

	assert.Equal(t, Request{
		Administrative:         1,
		AdministrativeDuration: 30,
		Informational:          2,
		InformationalDuration:  90,
		ProductRelated:         2,
		ProductRelatedDuration: 12.5,
		BounceRates:            0,
		ExitRates:              0.25,
		PageValues:             0.7,
		SpecialDay:             0,
		Month:                  10,
		OperatingSystems:       session.OSMac,
		Browser:                session.BrowserSafari,
		Region:                 4,
		TrafficType:            11,
		VisitorType:            session.VisitorReturning,
		Weekend:                1,
		ModelName:              "XGBoost",
	}, req)
}

func TestBuild_WireFieldNames(t *testing.T) {
	req, err := Build(startedState(), "Random_Forest")
	require.NoError(t, err)

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	for _, name := range append(FeatureNames(), "model_name") {
		assert.Contains(t, fields, name)
	}
	assert.Len(t, fields, 18)
	assert.Len(t, FeatureNames(), 17)
	assert.Equal(t, "Random_Forest", fields["model_name"])
}

func TestBuild_InvalidModel(t *testing.T) {
	for _, model := range []string{"", "SVM", "xgboost"} {
		_, err := Build(startedState(), model)
		assert.ErrorIs(t, err, ErrInvalidModel, model)
	}

	// The model is checked before the session.
	_, err := Build(models.SessionState{}, "SVM")
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestBuild_IncompleteSession(t *testing.T) {
	cases := map[string]func(*models.SessionState){
		"not started":      func(s *models.SessionState) { s.Started = false },
		"unknown month":    func(s *models.SessionState) { s.Features.Month = "" },
		"nan duration":     func(s *models.SessionState) { s.Features.ProductDuration = math.NaN() },
		"negative value":   func(s *models.SessionState) { s.Features.PageValue = -1 },
		"exit rate zero":   func(s *models.SessionState) { s.Features.ExitRate = 0 },
		"bounce above one": func(s *models.SessionState) { s.Features.BounceRate = 1.5 },
		"no visitor type":  func(s *models.SessionState) { s.Features.VisitorTypeLabel = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := startedState()
			mutate(&s)
			_, err := Build(s, "Adaboost")
			assert.ErrorIs(t, err, ErrIncompleteSession)
			assert.NotErrorIs(t, err, ErrInvalidModel)
		})
	}
}

func TestBuild_WeekdayAndFreshSession(t *testing.T) {
	s := startedState()
	s.Features.IsWeekend = false
	s.PageVisits = nil

	req, err := Build(s, "Logistic_Regression")
	require.NoError(t, err)
	assert.Equal(t, 0, req.Weekend)
	assert.Zero(t, req.Administrative)
	assert.Zero(t, req.InformationalDuration)
}

func TestBuild_RequestIsDetachedFromState(t *testing.T) {
	s := startedState()
	req, err := Build(s, "Gradient_Boosting")
	require.NoError(t, err)

	s.Features.ProductPages = 99
	s.PageVisits = append(s.PageVisits, "admin-users")

	assert.Equal(t, 2, req.ProductRelated)
	assert.Equal(t, 1, req.Administrative)
}

func TestAllowedModels(t *testing.T) {
	list := AllowedModels()
	assert.Len(t, list, 5)
	assert.True(t, IsAllowedModel("Gradient_Boosting"))
	assert.False(t, IsAllowedModel("gradient_boosting"))

	list[0] = "changed"
	assert.Equal(t, "Gradient_Boosting", AllowedModels()[0])
}

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ospi/api/models"
)

func TestParseEvent(t *testing.T) {
	item := &models.CartItem{ID: "p1", Name: "Lamp", Price: 19.5, Quantity: 1}

	cases := []struct {
		name string
		req  models.EventRequest
		want Event
		ok   bool
	}{
		{"start", models.EventRequest{Type: "start_session"}, StartSession{}, true},
		{"visit", models.EventRequest{Type: "visit_page", PageID: "home"}, VisitPage{PageID: "home"}, true},
		{"visit without page", models.EventRequest{Type: "visit_page"}, nil, false},
		{"add", models.EventRequest{Type: "add_to_cart", Item: item}, AddToCart{Item: *item}, true},
		{"add without item", models.EventRequest{Type: "add_to_cart"}, nil, false},
		{"add without id", models.EventRequest{Type: "add_to_cart", Item: &models.CartItem{Name: "x"}}, nil, false},
		{"remove", models.EventRequest{Type: "remove_from_cart", ProductID: "p1"}, RemoveFromCart{ProductID: "p1"}, true},
		{"remove without id", models.EventRequest{Type: "remove_from_cart"}, nil, false},
		{"tick", models.EventRequest{Type: "update_product_duration"}, UpdateProductDuration{}, true},
		{"reset", models.EventRequest{Type: "reset_session"}, ResetSession{}, true},
		{"unknown", models.EventRequest{Type: "scroll"}, nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseEvent(tc.req)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
			if ok {
				assert.Equal(t, Kind(tc.req.Type), got.Kind())
			}
		})
	}
}

package session

import "ospi/api/models"

// Kind names an event type. The values double as the wire "type" field and
// the event_type column of the event log.
type Kind string

const (
	KindStartSession          Kind = "start_session"
	KindVisitPage             Kind = "visit_page"
	KindAddToCart             Kind = "add_to_cart"
	KindRemoveFromCart        Kind = "remove_from_cart"
	KindUpdateProductDuration Kind = "update_product_duration"
	KindResetSession          Kind = "reset_session"
)

// Event is the closed set of inputs the engine understands. Only the types
// in this file implement it.
type Event interface {
	Kind() Kind
	sealed()
}

type StartSession struct{}

type VisitPage struct {
	PageID string
}

type AddToCart struct {
	Item models.CartItem
}

type RemoveFromCart struct {
	ProductID string
}

// UpdateProductDuration is emitted by the DurationTicker.
type UpdateProductDuration struct{}

type ResetSession struct{}

func (StartSession) Kind() Kind          { return KindStartSession }
func (VisitPage) Kind() Kind             { return KindVisitPage }
func (AddToCart) Kind() Kind             { return KindAddToCart }
func (RemoveFromCart) Kind() Kind        { return KindRemoveFromCart }
func (UpdateProductDuration) Kind() Kind { return KindUpdateProductDuration }
func (ResetSession) Kind() Kind          { return KindResetSession }

func (StartSession) sealed()          {}
func (VisitPage) sealed()             {}
func (AddToCart) sealed()             {}
func (RemoveFromCart) sealed()        {}
func (UpdateProductDuration) sealed() {}
func (ResetSession) sealed()          {}

// ParseEvent converts a wire event into an Event. It reports false for
// unknown types and for events missing the field they need.
func ParseEvent(req models.EventRequest) (Event, bool) {
	switch Kind(req.Type) {
	case KindStartSession:
		return StartSession{}, true
	case KindVisitPage:
		if req.PageID == "" {
			return nil, false
		}
		return VisitPage{PageID: req.PageID}, true
	case KindAddToCart:
		if req.Item == nil || req.Item.ID == "" {
			return nil, false
		}
		return AddToCart{Item: *req.Item}, true
	case KindRemoveFromCart:
		if req.ProductID == "" {
			return nil, false
		}
		return RemoveFromCart{ProductID: req.ProductID}, true
	case KindUpdateProductDuration:
		return UpdateProductDuration{}, true
	case KindResetSession:
		return ResetSession{}, true
	default:
		return nil, false
	}
}

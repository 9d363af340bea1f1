package session

import (
	"strings"
	"time"

	"ospi/api/models"
)

// Category is the engagement class of a page.
type Category int

const (
	CategoryOther Category = iota
	CategoryProduct
	// CategoryCart covers both cart and checkout pages.
	CategoryCart
)

// PageValue increments per qualifying event.
const (
	ProductPageValue = 0.1
	CartPageValue    = 0.5
	AddToCartValue   = 0.3
)

// PageClassifier decides the category of a page id.
type PageClassifier func(pageID string) Category

// ClassifyByName applies the page naming convention. Product detail pages
// are "product" or "product-<id>" ("products" is the listing and is not a
// product page); ids containing "cart" or "checkout" are cart pages.
func ClassifyByName(pageID string) Category {
	switch {
	case pageID == "product", strings.HasPrefix(pageID, "product-"), strings.HasPrefix(pageID, "product/"):
		return CategoryProduct
	case strings.Contains(pageID, "cart"), strings.Contains(pageID, "checkout"):
		return CategoryCart
	default:
		return CategoryOther
	}
}

// Engine applies events to a SessionState. Apply is a pure function of its
// inputs apart from the environment sample drawn on reset.
type Engine struct {
	classify PageClassifier
	sampler  Sampler
}

// NewEngine builds an Engine. A nil classifier uses ClassifyByName.
func NewEngine(classify PageClassifier, sampler Sampler) *Engine {
	if classify == nil {
		classify = ClassifyByName
	}
	return &Engine{classify: classify, sampler: sampler}
}

// NewState returns a fresh, unstarted state with a new environment sample.
func (e *Engine) NewState(now time.Time) models.SessionState {
	return models.NewSessionState(e.sampler.Sample(now))
}

// Apply returns the state that results from applying ev to s at time now.
// s is never modified. Unknown and nil events return a copy of s.
func (e *Engine) Apply(s models.SessionState, ev Event, now time.Time) models.SessionState {
	next := s.Clone()

	switch ev := ev.(type) {
	case StartSession:
		next.Started = true
		next.SessionStartedAt = now

	case VisitPage:
		e.visitPage(&next, ev.PageID, now)

	case AddToCart:
		next.CartItems = append(next.CartItems, ev.Item)
		next.Features.PageValue += AddToCartValue

	case RemoveFromCart:
		kept := next.CartItems[:0]
		for _, item := range next.CartItems {
			if item.ID != ev.ProductID {
				kept = append(kept, item)
			}
		}
		next.CartItems = kept

	case UpdateProductDuration:
		foldDwell(&next, now)

	case ResetSession:
		next = e.NewState(now)
	}

	return next
}

func (e *Engine) visitPage(s *models.SessionState, pageID string, now time.Time) {
	s.PageVisits = append(s.PageVisits, pageID)

	distinct := s.DistinctPageCount()
	if distinct == 1 {
		s.Features.BounceRate = 1.0
	} else {
		s.Features.BounceRate = 0
	}
	s.Features.ExitRate = 1 / float64(max(1, distinct))

	category := e.classify(pageID)
	if category == CategoryProduct {
		s.Features.ProductPages++
		// Product to product navigation closes the previous dwell slice.
		// Leaving for any other page drops the unfolded remainder, which the
		// ticker keeps below one interval.
		foldDwell(s, now)
		since := now
		s.ActiveProductPageSince = &since
	} else {
		s.ActiveProductPageSince = nil
	}

	switch category {
	case CategoryProduct:
		s.Features.PageValue += ProductPageValue
	case CategoryCart:
		s.Features.PageValue += CartPageValue
	}
}

// foldDwell adds the time elapsed since the dwell baseline to
// ProductDuration and moves the baseline to now.
func foldDwell(s *models.SessionState, now time.Time) {
	if s.ActiveProductPageSince == nil {
		return
	}
	if elapsed := now.Sub(*s.ActiveProductPageSince); elapsed > 0 {
		s.Features.ProductDuration += elapsed.Seconds()
	}
	since := now
	s.ActiveProductPageSince = &since
}

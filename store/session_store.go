package store

import (
	"errors"
	"time"

	"github.com/patrickmn/go-cache"

	"ospi/api/logger"
	"ospi/api/session"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned when saving a tracker under an id already held.
var ErrSessionExists = errors.New("session already exists")

// EvictedHook is called once for every tracker leaving the store, whether it
// was deleted or expired. The tracker is already closed.
type EvictedHook func(sessionID string)

// SessionStore keeps live session trackers in memory with a sliding TTL.
// A tracker leaving the store is always closed, so no dwell ticker outlives
// its session.
type SessionStore struct {
	cache *cache.Cache
	log   logger.Logger
}

// NewSessionStore creates a store whose entries expire ttl after their last
// use. Expired entries are purged every cleanup interval.
func NewSessionStore(ttl, cleanup time.Duration, log logger.Logger, onEvicted EvictedHook) *SessionStore {
	if log == nil {
		log = logger.NewNop()
	}

	c := cache.New(ttl, cleanup)
	c.OnEvicted(func(id string, v interface{}) {
		if tr, ok := v.(*session.Tracker); ok {
			tr.Close()
		}
		log.Debug("Session removed from store", logger.String("session_id", id))
		if onEvicted != nil {
			onEvicted(id)
		}
	})

	return &SessionStore{cache: c, log: log}
}

// Save registers a new tracker under its id.
func (s *SessionStore) Save(tr *session.Tracker) error {
	if err := s.cache.Add(tr.ID(), tr, cache.DefaultExpiration); err != nil {
		return ErrSessionExists
	}
	return nil
}

// Get returns the tracker for sessionID and restarts its TTL.
func (s *SessionStore) Get(sessionID string) (*session.Tracker, error) {
	x, found := s.cache.Get(sessionID)
	if !found {
		return nil, ErrSessionNotFound
	}
	tr := x.(*session.Tracker)

	// Replace fails if the entry expired since Get, which keeps a closed
	// tracker from being revived.
	if err := s.cache.Replace(sessionID, tr, cache.DefaultExpiration); err != nil {
		return nil, ErrSessionNotFound
	}
	return tr, nil
}

// Delete closes and removes the tracker for sessionID.
func (s *SessionStore) Delete(sessionID string) error {
	if _, found := s.cache.Get(sessionID); !found {
		return ErrSessionNotFound
	}
	s.cache.Delete(sessionID)
	return nil
}

// Count reports the number of held sessions, including expired ones not yet
// purged.
func (s *SessionStore) Count() int {
	return s.cache.ItemCount()
}

// Close removes every session, closing each tracker.
func (s *SessionStore) Close() {
	items := s.cache.Items()
	for id := range items {
		s.cache.Delete(id)
	}
	s.log.Info("Session store closed", logger.Int("sessions", len(items)))
}

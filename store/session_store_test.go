package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ospi/api/session"
)

type evictions struct {
	mu  sync.Mutex
	ids []string
}

func (e *evictions) hook(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, id)
}

func (e *evictions) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ids...)
}

func newTracker(id string) *session.Tracker {
	return session.NewTracker(id, session.Options{TickInterval: 5 * time.Millisecond})
}

func TestSessionStore_SaveGetDelete(t *testing.T) {
	ev := &evictions{}
	s := NewSessionStore(time.Minute, time.Minute, nil, ev.hook)
	t.Cleanup(s.Close)

	tr := newTracker("a")
	require.NoError(t, s.Save(tr))
	assert.ErrorIs(t, s.Save(tr), ErrSessionExists)
	assert.Equal(t, 1, s.Count())

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Same(t, tr, got)

	require.NoError(t, s.Delete("a"))
	assert.ErrorIs(t, s.Delete("a"), ErrSessionNotFound)
	_, err = s.Get("a")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Equal(t, []string{"a"}, ev.list())
	_, err = tr.Dispatch(context.Background(), session.StartSession{})
	assert.ErrorIs(t, err, session.ErrTrackerClosed, "deleting closes the tracker")
}

func TestSessionStore_ExpiryClosesTracker(t *testing.T) {
	ev := &evictions{}
	s := NewSessionStore(20*time.Millisecond, 5*time.Millisecond, nil, ev.hook)
	t.Cleanup(s.Close)

	tr := newTracker("b")
	require.NoError(t, s.Save(tr))
	_, err := tr.Dispatch(context.Background(), session.VisitPage{PageID: "product-1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(ev.list()) == 1 }, time.Second, 5*time.Millisecond)

	_, err = tr.Dispatch(context.Background(), session.VisitPage{PageID: "home"})
	assert.ErrorIs(t, err, session.ErrTrackerClosed)
	assert.Zero(t, s.Count())
}

func TestSessionStore_GetSlidesExpiry(t *testing.T) {
	s := NewSessionStore(60*time.Millisecond, 10*time.Millisecond, nil, nil)
	t.Cleanup(s.Close)

	require.NoError(t, s.Save(newTracker("c")))
	for i := 0; i < 6; i++ {
		time.Sleep(20 * time.Millisecond)
		_, err := s.Get("c")
		require.NoError(t, err, "touch %d", i)
	}
}

func TestSessionStore_CloseClosesAll(t *testing.T) {
	ev := &evictions{}
	s := NewSessionStore(time.Minute, time.Minute, nil, ev.hook)

	for _, id := range []string{"x", "y", "z"} {
		require.NoError(t, s.Save(newTracker(id)))
	}
	s.Close()

	assert.ElementsMatch(t, []string{"x", "y", "z"}, ev.list())
	assert.Zero(t, s.Count())
}

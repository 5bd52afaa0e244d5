package session

import (
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultHistorySize is how many distinct queries a session remembers.
	DefaultHistorySize = 8
	// DefaultMaxSessions bounds the number of sessions kept in memory.
	DefaultMaxSessions = 1024
	// Anonymous is the session used when the client does not send one.
	Anonymous = "anonymous"
)

// Entry is one successful query.
type Entry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind,omitempty"`
	Formatted string    `json:"formatted,omitempty"`
	At        time.Time `json:"at"`
}

// History is a bounded list of distinct query ids. Recording an id again moves it to
// the front.
type History struct {
	cache *lru.Cache[string, Entry]
}

// NewHistory returns a history holding at most size entries.
func NewHistory(size int) (*History, error) {
	if size <= 0 {
		size = DefaultHistorySize
	}
	c, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &History{cache: c}, nil
}

// Record adds e, dropping the oldest entry when full.
func (h *History) Record(e Entry) {
	e.ID = strings.TrimSpace(e.ID)
	if e.ID == "" {
		return
	}
	// Remove first so a repeated id is re-inserted as the newest.
	h.cache.Remove(e.ID)
	h.cache.Add(e.ID, e)
}

// Recent returns entries most recent first.
func (h *History) Recent() []Entry {
	out := h.cache.Values()
	slices.Reverse(out)
	return out
}

// Store keeps one History per session. Sessions are evicted least recently used.
type Store struct {
	mu          sync.Mutex
	sessions    *lru.Cache[string, *History]
	historySize int
	now         func() time.Time
}

// NewStore builds a store. Non-positive sizes use the defaults.
func NewStore(maxSessions, historySize int) (*Store, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	c, err := lru.New[string, *History](maxSessions)
	if err != nil {
		return nil, err
	}
	return &Store{sessions: c, historySize: historySize, now: time.Now}, nil
}

// Record stores e in the history of session. A zero At is stamped with the current time.
func (s *Store) Record(session string, e Entry) {
	if e.At.IsZero() {
		e.At = s.now()
	}
	h := s.history(session, true)
	if h != nil {
		h.Record(e)
	}
}

// Recent returns the history of session, most recent first.
func (s *Store) Recent(session string) []Entry {
	h := s.history(session, false)
	if h == nil {
		return []Entry{}
	}
	return h.Recent()
}

func (s *Store) history(session string, create bool) *History {
	session = strings.TrimSpace(session)
	if session == "" {
		session = Anonymous
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.sessions.Get(session); ok {
		return h
	}
	if !create {
		return nil
	}
	h, err := NewHistory(s.historySize)
	if err != nil {
		return nil
	}
	s.sessions.Add(session, h)
	return h
}

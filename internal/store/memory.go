package store

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/session"
)

type memoryEntry struct {
	user    *domain.User
	cookies []*http.Cookie
	expires time.Time
}

// MemoryStore keeps sessions in process. Sessions do not survive a restart.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) entry(sid string, create bool) *memoryEntry {
	e, ok := s.entries[sid]
	if ok && s.ttl > 0 && s.now().After(e.expires) {
		delete(s.entries, sid)
		e, ok = nil, false
	}
	if !ok && create {
		e = &memoryEntry{}
		s.entries[sid] = e
	}
	if e != nil && create && s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	return e
}

func (s *MemoryStore) Load(_ context.Context, sid string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(sid, false)
	if e == nil || e.user == nil {
		return nil, session.ErrNotFound
	}
	u := *e.user
	return &u, nil
}

func (s *MemoryStore) Save(_ context.Context, sid string, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(sid, true).user = &user
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sid)
	return nil
}

func (s *MemoryStore) LoadCookies(_ context.Context, sid string) ([]*http.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(sid, false)
	if e == nil || e.cookies == nil {
		return nil, session.ErrNotFound
	}
	return append([]*http.Cookie(nil), e.cookies...), nil
}

func (s *MemoryStore) SaveCookies(_ context.Context, sid string, cookies []*http.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(sid, true).cookies = append([]*http.Cookie(nil), cookies...)
	return nil
}

func (s *MemoryStore) Health(context.Context) error { return nil }

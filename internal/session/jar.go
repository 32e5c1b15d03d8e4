package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Jar is the cookie jar of one session's backend client. A console session
// talks to a single backend, so cookies are keyed by name only. Every change
// is written through to the JarStore so the credential survives a restart.
type Jar struct {
	sid    string
	store  JarStore
	logger *slog.Logger
	now    func() time.Time

	// saveMu orders writes to the store; mu only guards the map.
	saveMu sync.Mutex
	closed bool

	mu      sync.Mutex
	cookies map[string]*http.Cookie
}

// NewJar loads the cookies persisted for sid. A load failure yields an empty
// jar; the startup verify call will then fail and log the session out.
func NewJar(ctx context.Context, sid string, store JarStore, logger *slog.Logger) *Jar {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Jar{
		sid:     sid,
		store:   store,
		logger:  logger,
		now:     time.Now,
		cookies: make(map[string]*http.Cookie),
	}
	stored, err := store.LoadCookies(ctx, sid)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn("load session cookies failed", "sid", shortID(sid), "err", err)
		}
		return j
	}
	for _, c := range stored {
		j.cookies[c.Name] = c
	}
	return j
}

func (j *Jar) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	j.saveMu.Lock()
	defer j.saveMu.Unlock()
	if j.closed {
		return
	}

	j.mu.Lock()
	now := j.now()
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			delete(j.cookies, c.Name)
			continue
		}
		stored := &http.Cookie{Name: c.Name, Value: c.Value, Expires: c.Expires}
		if c.MaxAge > 0 {
			stored.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		j.cookies[c.Name] = stored
	}
	snapshot := j.snapshotLocked(now)
	j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := j.store.SaveCookies(ctx, j.sid, snapshot); err != nil {
		j.logger.Warn("persist session cookies failed", "sid", shortID(j.sid), "err", err)
	}
}

// Close empties the jar and stops all further writes to the store. It waits
// for a save in progress, so clearing the store afterwards is final.
func (j *Jar) Close() {
	j.saveMu.Lock()
	j.closed = true
	j.saveMu.Unlock()

	j.mu.Lock()
	j.cookies = make(map[string]*http.Cookie)
	j.mu.Unlock()
}

func (j *Jar) Cookies(_ *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked(j.now())
}

func (j *Jar) snapshotLocked(now time.Time) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(j.cookies))
	for name, c := range j.cookies {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			delete(j.cookies, name)
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value, Expires: c.Expires})
	}
	return out
}

package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/apiclient"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/dashboard"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/fetchguard"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/session"
)

// dictionaryTTL bounds how long store/employee/customer dropdown data is
// reused before it is fetched again.
const dictionaryTTL = 2 * time.Minute

const (
	FlashSuccess = "success"
	FlashError   = "error"
)

type Flash struct {
	Kind    string
	Message string
}

// Entry is everything the console keeps for one logged-in browser: the
// session state machine, the backend client bound to it, and the page
// snapshots that may be reused until invalidated.
type Entry struct {
	ID        string
	Session   *session.Manager
	API       *apiclient.Client
	Stores    *fetchguard.Cache[[]domain.Store]
	Employees *fetchguard.Cache[[]domain.Employee]
	Customers *fetchguard.Cache[[]domain.Customer]
	Dashboard *DashboardView

	jar *session.Jar

	mu       sync.Mutex
	flash    *Flash
	lastSeen time.Time
}

func (e *Entry) User() *domain.User {
	return e.Session.User()
}

func (e *Entry) SetFlash(kind, message string) {
	e.mu.Lock()
	e.flash = &Flash{Kind: kind, Message: message}
	e.mu.Unlock()
}

// TakeFlash returns the pending flash message once.
func (e *Entry) TakeFlash() *Flash {
	e.mu.Lock()
	defer e.mu.Unlock()
	f := e.flash
	e.flash = nil
	return f
}

func (e *Entry) touch(now time.Time) {
	e.mu.Lock()
	e.lastSeen = now
	e.mu.Unlock()
}

func (e *Entry) idleSince() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeen
}

func (e *Entry) invalidateAll() {
	e.Stores.Invalidate()
	e.Employees.Invalidate()
	e.Customers.Invalidate()
	e.Dashboard.Invalidate()
}

// DashboardView remembers the trend selection and the aggregate last fetched
// for it. A fetch only becomes the remembered view if no newer selection was
// started while it was in flight.
type DashboardView struct {
	latest fetchguard.Latest

	mu        sync.Mutex
	selection dashboard.Selection
	metric    dashboard.Metric
	data      *domain.Dashboard
	dataKey   string
}

func newDashboardView() *DashboardView {
	return &DashboardView{selection: dashboard.Default(), metric: dashboard.MetricAmount}
}

func (d *DashboardView) Metric() dashboard.Metric {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.metric
}

// SetMetric switches the charted series. The remembered aggregate is kept.
func (d *DashboardView) SetMetric(m dashboard.Metric) {
	d.mu.Lock()
	d.metric = m
	d.mu.Unlock()
}

func (d *DashboardView) Selection() dashboard.Selection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selection
}

// Cached returns the remembered aggregate if it belongs to the remembered
// selection.
func (d *DashboardView) Cached() (dashboard.Selection, *domain.Dashboard) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.data == nil || d.dataKey != d.selection.Key() {
		return d.selection, nil
	}
	return d.selection, d.data
}

// Invalidate drops the remembered aggregate and discards any fetch still in
// flight, so the next dashboard load reflects the latest writes.
func (d *DashboardView) Invalidate() {
	d.latest.Begin()
	d.mu.Lock()
	d.data = nil
	d.dataKey = ""
	d.mu.Unlock()
}

func (d *DashboardView) Begin() fetchguard.Ticket {
	return d.latest.Begin()
}

// Commit records sel and its aggregate unless a later Begin superseded t.
func (d *DashboardView) Commit(t fetchguard.Ticket, sel dashboard.Selection, data *domain.Dashboard) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.latest.Current(t) {
		return false
	}
	d.selection = sel
	d.data = data
	d.dataKey = sel.Key()
	return true
}

// Registry maps console session ids to live entries. Entries are rebuilt
// from the session store after a restart and start out Unknown.
type Registry struct {
	store   session.Store
	apiOpts apiclient.Options
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry
}

func NewRegistry(store session.Store, apiOpts apiclient.Options, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:   store,
		apiOpts: apiOpts,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*Entry),
	}
}

// Open returns the live entry for sid, building an Unknown one from the
// session store when the console has not seen sid since it started. The
// store is read outside the registry lock; when two requests race to build
// the same sid the first insert wins.
func (r *Registry) Open(ctx context.Context, sid string) *Entry {
	r.mu.Lock()
	e, ok := r.entries[sid]
	r.mu.Unlock()
	if !ok {
		built := r.build(ctx, sid)
		r.mu.Lock()
		if e, ok = r.entries[sid]; !ok {
			e = built
			r.entries[sid] = e
		}
		r.mu.Unlock()
	}
	e.touch(r.now())
	return e
}

func (r *Registry) build(ctx context.Context, sid string) *Entry {
	jar := session.NewJar(ctx, sid, r.store, r.logger)
	e := &Entry{
		ID:        sid,
		Session:   session.NewManager(sid, r.store, r.logger),
		API:       apiclient.New(r.apiOpts, jar, r.logger),
		Stores:    fetchguard.NewCache[[]domain.Store](dictionaryTTL),
		Employees: fetchguard.NewCache[[]domain.Employee](dictionaryTTL),
		Customers: fetchguard.NewCache[[]domain.Customer](dictionaryTTL),
		Dashboard: newDashboardView(),
		jar:       jar,
	}
	e.Session.OnTeardown(jar.Close)
	e.API.OnUnauthorized(func(ctx context.Context) {
		if e.Session.Expire(ctx) {
			e.invalidateAll()
			r.remove(sid, e)
		}
	})
	return e
}

// Remove forgets sid. The persisted session is left alone.
func (r *Registry) Remove(sid string) {
	r.mu.Lock()
	delete(r.entries, sid)
	r.mu.Unlock()
}

// remove forgets sid only if it still maps to e.
func (r *Registry) remove(sid string, e *Entry) {
	r.mu.Lock()
	if r.entries[sid] == e {
		delete(r.entries, sid)
	}
	r.mu.Unlock()
}

// Discard forgets sid and wipes whatever was persisted for it.
func (r *Registry) Discard(ctx context.Context, sid string) {
	r.mu.Lock()
	e := r.entries[sid]
	delete(r.entries, sid)
	r.mu.Unlock()
	if e != nil {
		e.jar.Close()
	}
	if err := r.store.Clear(ctx, sid); err != nil {
		r.logger.Warn("discard session failed", "err", err)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops entries idle for longer than idle. Their persisted state is
// kept, so a returning browser is restored through the startup verify call.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for sid, e := range r.entries {
		if e.idleSince().Before(cutoff) {
			delete(r.entries, sid)
			n++
		}
	}
	return n
}

// RunSweeper sweeps every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 {
				r.logger.Debug("swept idle sessions", "count", n)
			}
		}
	}
}

package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/apiclient"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/backendtest"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/session"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPhone    = "13800000000"
	testPassword = "secret1"
)

type fixture struct {
	backend *backendtest.Backend
	store   *store.MemoryStore
	reg     *Registry
	auth    AuthService
}

func newFixture(t *testing.T) fixture {
	b := backendtest.New(t)
	b.AddUser(testPhone, testPassword, domain.RoleAdmin)
	st := store.NewMemoryStore(time.Hour)
	reg := NewRegistry(st, apiclient.Options{BaseURL: b.URL(), VerifyPath: "/api/auth/verify"}, nil)
	return fixture{backend: b, store: st, reg: reg, auth: AuthService{Sessions: reg}}
}

func TestLoginPersistsIdentityAndCookie(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.auth.Login(ctx, " "+testPhone+" ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, session.Authenticated, e.Session.State())
	assert.Equal(t, domain.RoleAdmin, e.User().Role)

	u, err := f.store.Load(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, testPhone, u.Phone)
	cookies, err := f.store.LoadCookies(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, backendtest.TokenCookie, cookies[0].Name)
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Login(ctx, testPhone, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Zero(t, f.reg.Len(), "failed logins leave no session behind")

	before := f.backend.TotalCalls()
	_, err = f.auth.Login(ctx, "", testPassword)
	assert.True(t, apiclient.IsKind(err, apiclient.KindValidation))
	assert.Equal(t, before, f.backend.TotalCalls())
}

func TestResolveAfterRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := f.auth.Login(ctx, testPhone, testPassword)
	require.NoError(t, err)

	// A new registry over the same store is a console restart.
	restarted := AuthService{Sessions: NewRegistry(f.store, apiclient.Options{BaseURL: f.backend.URL(), VerifyPath: "/api/auth/verify"}, nil)}
	got := restarted.Resolve(ctx, e.ID)
	assert.Equal(t, session.Authenticated, got.Session.State())
	assert.Equal(t, testPhone, got.User().Phone)
	assert.Equal(t, 1, f.backend.Calls(http.MethodGet, "/api/auth/verify"))

	// Resolving again does not verify again.
	restarted.Resolve(ctx, e.ID)
	assert.Equal(t, 1, f.backend.Calls(http.MethodGet, "/api/auth/verify"))
}

func TestResolveRejectedByBackend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := f.auth.Login(ctx, testPhone, testPassword)
	require.NoError(t, err)
	f.backend.RejectAll(true)

	restarted := AuthService{Sessions: NewRegistry(f.store, apiclient.Options{BaseURL: f.backend.URL(), VerifyPath: "/api/auth/verify"}, nil)}
	got := restarted.Resolve(ctx, e.ID)
	assert.Equal(t, session.Unauthenticated, got.Session.State())
	assert.Zero(t, restarted.Sessions.Len())
	_, err = f.store.Load(ctx, e.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestResolveUnknownSessionSkipsVerify(t *testing.T) {
	f := newFixture(t)
	got := f.auth.Resolve(context.Background(), "never-seen")
	assert.Equal(t, session.Unauthenticated, got.Session.State())
	assert.Zero(t, f.backend.TotalCalls())
	assert.Zero(t, f.reg.Len())
}

func TestUnauthorizedTearsDownEntryOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := f.auth.Login(ctx, testPhone, testPassword)
	require.NoError(t, err)
	_, err = e.ListStores(ctx)
	require.NoError(t, err)
	f.backend.RejectAll(true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.API.ListCustomers(ctx, domain.CustomerListParams{})
		}()
	}
	wg.Wait()

	assert.Equal(t, session.Unauthenticated, e.Session.State())
	assert.Zero(t, f.reg.Len())
	_, ok := e.Stores.Peek(allKey)
	assert.False(t, ok, "cached lists are dropped with the session")
	_, err = f.store.Load(ctx, e.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	// The same cookie no longer resolves to a session.
	f.backend.RejectAll(false)
	got := f.auth.Resolve(ctx, e.ID)
	assert.Equal(t, session.Unauthenticated, got.Session.State())
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := f.auth.Login(ctx, testPhone, testPassword)
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, e))
	assert.Equal(t, session.Unauthenticated, e.Session.State())
	assert.Zero(t, f.reg.Len())
	_, err = f.store.Load(ctx, e.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := f.auth.Login(ctx, testPhone, testPassword)
	require.NoError(t, err)

	u, err := f.auth.Register(ctx, e, domain.RegisterInput{Phone: "13900000000", Password: "123456", Role: domain.RoleStaff})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaff, u.Role)

	_, err = f.auth.Register(ctx, e, domain.RegisterInput{Phone: "13900000000", Password: "123456"})
	assert.True(t, apiclient.IsKind(err, apiclient.KindConflict))
}

package store

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ session.Store = (*MemoryStore)(nil)
var _ session.Store = (*RedisStore)(nil)
var _ session.Store = (*PostgresStore)(nil)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)

	_, err := s.Load(ctx, "sid")
	require.ErrorIs(t, err, session.ErrNotFound)
	_, err = s.LoadCookies(ctx, "sid")
	require.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, s.Save(ctx, "sid", domain.User{ID: 1, Phone: "138", Role: domain.RoleStaff}))
	require.NoError(t, s.SaveCookies(ctx, "sid", []*http.Cookie{{Name: "token", Value: "v"}}))

	u, err := s.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "138", u.Phone)
	cookies, err := s.LoadCookies(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "v", cookies[0].Value)

	require.NoError(t, s.Clear(ctx, "sid"))
	_, err = s.Load(ctx, "sid")
	require.ErrorIs(t, err, session.ErrNotFound)
	_, err = s.LoadCookies(ctx, "sid")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryStore(time.Hour)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, "sid", domain.User{ID: 1}))
	now = now.Add(59 * time.Minute)
	require.NoError(t, s.SaveCookies(ctx, "sid", nil))

	now = now.Add(59 * time.Minute)
	_, err := s.Load(ctx, "sid")
	require.NoError(t, err, "every write renews the session")

	now = now.Add(2 * time.Hour)
	_, err = s.Load(ctx, "sid")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestCookieCodec(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	raw, err := encodeCookies([]*http.Cookie{{Name: "a", Value: "1", Expires: exp}, {Name: "b", Value: "2"}})
	require.NoError(t, err)
	got, err := decodeCookies(raw)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, exp.Equal(got[0].Expires))
	assert.True(t, got[1].Expires.IsZero())
}

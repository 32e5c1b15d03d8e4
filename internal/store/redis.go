package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/session"
	"github.com/go-redis/redis/v8"
)

const keyPrefix = "console:session:"

// RedisStore keeps sessions in Redis so several console instances share them.
type RedisStore struct {
	c   *redis.Client
	ttl time.Duration
}

func NewRedisStore(c *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{c: c, ttl: ttl}
}

func userKey(sid string) string { return keyPrefix + sid + ":user" }
func jarKey(sid string) string { return keyPrefix + sid + ":jar" }

func (r *RedisStore) get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

func (r *RedisStore) Load(ctx context.Context, sid string) (*domain.User, error) {
	raw, err := r.get(ctx, userKey(sid))
	if err != nil {
		return nil, err
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		// A corrupt identity is as good as none.
		_ = r.c.Del(ctx, userKey(sid)).Err()
		return nil, session.ErrNotFound
	}
	return &u, nil
}

func (r *RedisStore) Save(ctx context.Context, sid string, user domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := r.c.Set(ctx, userKey(sid), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, sid string) error {
	return r.c.Del(ctx, userKey(sid), jarKey(sid)).Err()
}

func (r *RedisStore) LoadCookies(ctx context.Context, sid string) ([]*http.Cookie, error) {
	raw, err := r.get(ctx, jarKey(sid))
	if err != nil {
		return nil, err
	}
	return decodeCookies(raw)
}

func (r *RedisStore) SaveCookies(ctx context.Context, sid string, cookies []*http.Cookie) error {
	raw, err := encodeCookies(cookies)
	if err != nil {
		return err
	}
	return r.c.Set(ctx, jarKey(sid), raw, r.ttl).Err()
}

func (r *RedisStore) Health(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

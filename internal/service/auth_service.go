package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/apiclient"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/session"
	"github.com/google/uuid"
)

var ErrInvalidCredentials = errors.New("invalid phone or password")

type AuthService struct {
	Sessions *Registry
	Logger   *slog.Logger
}

// Login exchanges credentials under a brand new console session id, so an
// id seen before login is never reused after it.
func (s AuthService) Login(ctx context.Context, phone, password string) (*Entry, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return nil, &domain.ValidationError{Field: "phone", Message: "phone and password are required"}
	}

	sid := uuid.NewString()
	e := s.Sessions.Open(ctx, sid)
	user, err := e.API.Login(ctx, phone, password)
	if err != nil {
		s.Sessions.Discard(ctx, sid)
		if apiclient.IsKind(err, apiclient.KindUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := e.Session.Login(ctx, *user); err != nil {
		s.Sessions.Discard(ctx, sid)
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return e, nil
}

// Resolve returns the entry for sid, restoring it through the backend verify call
// when the console has not seen it yet. Entries that did not end up
// authenticated are dropped.
func (s AuthService) Resolve(ctx context.Context, sid string) *Entry {
	e := s.Sessions.Open(ctx, sid)
	if st := e.Session.Restore(ctx, e.API); st != session.Authenticated {
		s.Sessions.remove(sid, e)
	}
	return e
}

func (s AuthService) Logout(ctx context.Context, e *Entry) error {
	user := e.User()
	err := e.Session.Logout(ctx)
	s.Sessions.remove(e.ID, e)
	if user != nil {
		s.logger().Info("session logged out", "user_id", user.ID)
	}
	return err
}

// Register creates a backend account using the caller's session.
func (s AuthService) Register(ctx context.Context, e *Entry, in domain.RegisterInput) (*domain.User, error) {
	return e.API.Register(ctx, in)
}

func (s AuthService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

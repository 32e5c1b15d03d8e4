package authctx

import (
	"context"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/service"
)

type contextKey string

const entryContextKey contextKey = "consoleSession"

func WithEntry(ctx context.Context, e *service.Entry) context.Context {
	return context.WithValue(ctx, entryContextKey, e)
}

func FromContext(ctx context.Context) *service.Entry {
	e, ok := ctx.Value(entryContextKey).(*service.Entry)
	if !ok {
		return nil
	}
	return e
}

// CurrentUser is the authenticated identity of the request, or nil.
func CurrentUser(ctx context.Context) *domain.User {
	e := FromContext(ctx)
	if e == nil {
		return nil
	}
	return e.User()
}

package server

import (
	"net/http"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/handler"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/server/authctx"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/service"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/session"
)

// SessionMiddleware resolves the console cookie to a live session and puts it
// in the request context. A session seen for the first time since startup is
// restored through the backend verify call before the request continues, so no
// page ever renders while the state is still unknown. Cookies that do not
// lead to an authenticated session are cleared.
func SessionMiddleware(auth *service.AuthService, cookies service.CookieCodec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := r.Cookie(service.CookieName); err != nil {
				next.ServeHTTP(w, r)
				return
			}
			sid, err := cookies.Read(r)
			if err != nil {
				cookies.Clear(w)
				next.ServeHTTP(w, r)
				return
			}
			e := auth.Resolve(r.Context(), sid)
			if e.Session.State() != session.Authenticated {
				cookies.Clear(w)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(authctx.WithEntry(r.Context(), e)))
		})
	}
}

// RequireAuth is the route guard: anything but an authenticated session is
// sent to the login page.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authctx.CurrentUser(r.Context()) == nil {
			handler.RedirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole ensures the user has one of the allowed roles.
func RequireRole(roles ...domain.UserRole) func(http.Handler) http.Handler {
	allowed := make(map[domain.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := authctx.CurrentUser(r.Context())
			if u == nil {
				handler.RedirectToLogin(w, r)
				return
			}
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[u.Role]; !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

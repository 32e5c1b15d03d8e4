package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/apiclient"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/service"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/view"
	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	Pages
	Service *service.AuthService
	Cookies service.CookieCodec
}

func (h AuthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/login", h.loginForm)
	r.Post("/logout", h.logout)
}

// RegisterLoginRoutes mounts the credential exchange, which the router rate
// limits separately.
func (h AuthHandler) RegisterLoginRoutes(r chi.Router) {
	r.Post("/login", h.login)
}

func (h AuthHandler) loginForm(w http.ResponseWriter, r *http.Request) {
	if entryFrom(r) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login", "Sign in", "", view.LoginData{})
}

func (h AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	phone := strings.TrimSpace(r.PostFormValue("phone"))
	e, err := h.Service.Login(r.Context(), phone, r.PostFormValue("password"))
	if err != nil {
		status, msg := loginFailure(err)
		h.render(w, r, status, "login", "Sign in", "", view.LoginData{Phone: phone, Error: msg})
		return
	}
	if err := h.Cookies.Issue(w, e.ID); err != nil {
		h.logger().Error("issue session cookie failed", "err", err)
		_ = h.Service.Logout(r.Context(), e)
		h.renderError(w, r, http.StatusInternalServerError, genericFailure)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func loginFailure(err error) (int, string) {
	if errors.Is(err, service.ErrInvalidCredentials) {
		return http.StatusUnauthorized, "invalid phone or password"
	}
	return statusFor(err), failureMessage(err, "login failed, please try again later")
}

// logout is idempotent: without a live session it only clears the cookie.
func (h AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if e := entryFrom(r); e != nil {
		if err := h.Service.Logout(r.Context(), e); err != nil {
			h.logger().Warn("logout cleanup failed", "err", err)
		}
	}
	h.Cookies.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

var accountRoles = []domain.UserRole{domain.RoleStaff, domain.RoleManager, domain.RoleAdmin}

// AccountHandler lets administrators create console accounts.
type AccountHandler struct {
	Pages
	Service *service.AuthService
}

func (h AccountHandler) RegisterRoutes(r chi.Router) {
	r.Get("/accounts", h.form)
	r.Post("/accounts", h.create)
}

func (h AccountHandler) form(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "accounts", "Accounts", "accounts", view.AccountsData{
		Role:  domain.RoleStaff,
		Roles: accountRoles,
	})
}

func (h AccountHandler) create(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	in := domain.RegisterInput{
		Phone:    r.PostFormValue("phone"),
		Password: r.PostFormValue("password"),
		Role:     domain.UserRole(r.PostFormValue("role")),
	}
	data := view.AccountsData{Phone: strings.TrimSpace(in.Phone), Role: in.Role, Roles: accountRoles}
	user, err := h.Service.Register(r.Context(), entryFrom(r), in)
	if err != nil {
		if apiclient.IsKind(err, apiclient.KindUnauthorized) {
			RedirectToLogin(w, r)
			return
		}
		data.Error = failureMessage(err, genericFailure)
		if apiclient.IsKind(err, apiclient.KindConflict) {
			data.Error = apiclient.MessageOr(err, "phone is already registered")
		}
		h.render(w, r, statusFor(err), "accounts", "Accounts", "accounts", data)
		return
	}
	h.render(w, r, http.StatusCreated, "accounts", "Accounts", "accounts", view.AccountsData{
		Role:    domain.RoleStaff,
		Roles:   accountRoles,
		Created: user,
	})
}

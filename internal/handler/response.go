package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/apiclient"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/server/authctx"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/service"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/view"
	"github.com/go-chi/chi/v5"
)

const genericFailure = "request failed, please try again later"

type apiError struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
}

type apiResponse struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Data    any       `json:"data"`
	Error   *apiError `json:"error,omitempty"`
}

func writeRawJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	writeRawJSON(w, status, apiResponse{
		Status:  "ok",
		Message: "",
		Data:    payload,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	if status < 400 {
		status = http.StatusInternalServerError
	}
	writeRawJSON(w, status, apiResponse{
		Status:  "error",
		Message: message,
		Data:    nil,
		Error: &apiError{
			Code:   status,
			Status: http.StatusText(status),
		},
	})
}

// RedirectToLogin sends the browser to the login page, replacing the current
// history entry. htmx requests get the header form of the same redirect.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Pages renders HTML pages for the handlers.
type Pages struct {
	View   *view.Renderer
	Logger *slog.Logger
}

func (p Pages) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p Pages) render(w http.ResponseWriter, r *http.Request, status int, page, title, active string, data any) {
	vp := view.Page{Title: title, Active: active, Data: data}
	if e := authctx.FromContext(r.Context()); e != nil {
		vp.User = e.User()
		if f := e.TakeFlash(); f != nil {
			vp.Flash = &view.Flash{Kind: f.Kind, Message: f.Message}
		}
	}
	var buf bytes.Buffer
	if err := p.View.Render(&buf, page, vp); err != nil {
		p.logger().Error("render failed", "page", page, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (p Pages) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	p.render(w, r, status, "error", http.StatusText(status), "", view.ErrorData{Status: status, Message: message})
}

// backendFailed handles an error that ends the request. Authorization
// failures were already turned into a session teardown by the client, so the
// browser is only sent to the login page.
func (p Pages) backendFailed(w http.ResponseWriter, r *http.Request, err error) {
	if apiclient.IsKind(err, apiclient.KindUnauthorized) {
		RedirectToLogin(w, r)
		return
	}
	p.renderError(w, r, statusFor(err), failureMessage(err, genericFailure))
}

// redirectWithFlash finishes a successful form submission.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, to, message string) {
	if e := authctx.FromContext(r.Context()); e != nil {
		e.SetFlash(service.FlashSuccess, message)
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// statusFor picks the status of a page re-rendered after a failed submission.
func statusFor(err error) int {
	switch apiclient.KindOf(err) {
	case apiclient.KindValidation, apiclient.KindBadRequest:
		return http.StatusUnprocessableEntity
	case apiclient.KindConflict:
		return http.StatusConflict
	case apiclient.KindNotFound:
		return http.StatusNotFound
	case apiclient.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

// failureMessage is the text shown for err when no endpoint-specific message
// applies.
func failureMessage(err error, fallback string) string {
	switch apiclient.KindOf(err) {
	case apiclient.KindValidation:
		return apiclient.MessageOr(err, "invalid input")
	case apiclient.KindNetwork:
		return "cannot reach the server, please try again later"
	case apiclient.KindNotFound:
		return apiclient.MessageOr(err, "the record no longer exists")
	}
	return apiclient.MessageOr(err, fallback)
}

func entryFrom(r *http.Request) *service.Entry {
	return authctx.FromContext(r.Context())
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

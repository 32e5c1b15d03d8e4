package handler

import (
	"context"
	"net/http"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/apiclient"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/service"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/view"
	"github.com/go-chi/chi/v5"
)

const (
	msgStoreCodeTaken     = "store code already exists"
	msgStoreHasDependents = "store has related employees or fulfillment records and cannot be deleted"
	msgStoreGone          = "store no longer exists"
)

var storeStatuses = []domain.StoreStatus{domain.StoreOpen, domain.StoreClosed}

type StoreHandler struct {
	Pages
}

func (h StoreHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stores", h.list)
	r.Get("/stores/new", h.newForm)
	r.Post("/stores", h.create)
	r.Get("/stores/{id}/edit", h.editForm)
	r.Post("/stores/{id}", h.update)
	r.Get("/stores/{id}/delete", h.confirmDelete)
	r.Post("/stores/{id}/delete", h.delete)
}

// list always reads through to the backend so a refused delete or a change
// made elsewhere is visible immediately.
func (h StoreHandler) list(w http.ResponseWriter, r *http.Request) {
	items, err := entryFrom(r).API.ListStores(r.Context())
	if err != nil {
		h.backendFailed(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "stores", "Stores", "stores", view.StoresData{Stores: items})
}

func (h StoreHandler) newForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, 0, domain.NewStoreInput(), "")
}

func (h StoreHandler) editForm(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	h.renderForm(w, r, http.StatusOK, s.ID, domain.StoreInputFrom(*s), "")
}

func (h StoreHandler) create(w http.ResponseWriter, r *http.Request) {
	in := storeInputFromForm(r)
	if _, err := entryFrom(r).API.CreateStore(r.Context(), in); err != nil {
		h.failed(w, r, 0, in, err)
		return
	}
	entryFrom(r).Stores.Invalidate()
	redirectWithFlash(w, r, "/stores", "store created")
}

func (h StoreHandler) update(w http.ResponseWriter, r *http.Request) {
	old, ok := h.load(w, r)
	if !ok {
		return
	}
	in := storeInputFromForm(r)
	if err := in.Validate(); err != nil {
		h.failed(w, r, old.ID, in, err)
		return
	}
	if _, err := entryFrom(r).API.UpdateStore(r.Context(), old.ID, domain.DiffStore(*old, in)); err != nil {
		h.failed(w, r, old.ID, in, err)
		return
	}
	entryFrom(r).Stores.Invalidate()
	redirectWithFlash(w, r, "/stores", "store updated")
}

func (h StoreHandler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "store_delete", "Delete store", "stores", view.StoreDeleteData{Store: *s})
}

// delete reports refusals on the store list, which is fetched again so the
// store that could not be deleted is still shown.
func (h StoreHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.renderError(w, r, http.StatusNotFound, msgStoreGone)
		return
	}
	e := entryFrom(r)
	err := e.API.DeleteStore(r.Context(), id)
	if err != nil && apiclient.IsKind(err, apiclient.KindUnauthorized) {
		RedirectToLogin(w, r)
		return
	}
	e.Stores.Invalidate()
	if err != nil {
		e.SetFlash(service.FlashError, storeDeleteMessage(err))
		http.Redirect(w, r, "/stores", http.StatusSeeOther)
		return
	}
	redirectWithFlash(w, r, "/stores", "store deleted")
}

// load finds the store named by the URL, rendering the failure itself.
func (h StoreHandler) load(w http.ResponseWriter, r *http.Request) (*domain.Store, bool) {
	id, ok := parseID(r)
	if !ok {
		h.renderError(w, r, http.StatusNotFound, msgStoreGone)
		return nil, false
	}
	s, err := findStore(r.Context(), entryFrom(r), id)
	if err != nil {
		h.backendFailed(w, r, err)
		return nil, false
	}
	return s, true
}

func (h StoreHandler) failed(w http.ResponseWriter, r *http.Request, id int64, in domain.StoreInput, err error) {
	if apiclient.IsKind(err, apiclient.KindUnauthorized) {
		RedirectToLogin(w, r)
		return
	}
	h.renderForm(w, r, statusFor(err), id, in, storeSaveMessage(err))
}

func (h StoreHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, id int64, in domain.StoreInput, msg string) {
	title := "New store"
	if id != 0 {
		title = "Edit store"
	}
	h.render(w, r, status, "store_form", title, "stores", view.StoreFormData{
		ID:       id,
		Input:    in,
		Statuses: storeStatuses,
		Error:    msg,
	})
}

func storeSaveMessage(err error) string {
	switch apiclient.KindOf(err) {
	case apiclient.KindConflict:
		return msgStoreCodeTaken
	case apiclient.KindNotFound:
		return msgStoreGone
	}
	return failureMessage(err, genericFailure)
}

func storeDeleteMessage(err error) string {
	switch apiclient.KindOf(err) {
	case apiclient.KindBadRequest:
		return msgStoreHasDependents
	case apiclient.KindNotFound:
		return msgStoreGone
	}
	return failureMessage(err, genericFailure)
}

func storeInputFromForm(r *http.Request) domain.StoreInput {
	_ = r.ParseForm()
	return domain.StoreInput{
		Code:    r.PostFormValue("code"),
		Name:    r.PostFormValue("name"),
		City:    r.PostFormValue("city"),
		Address: r.PostFormValue("address"),
		Status:  domain.NormalizeStoreStatus(r.PostFormValue("status")),
	}
}

func findStore(ctx context.Context, e *service.Entry, id int64) (*domain.Store, error) {
	items, err := e.API.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, &apiclient.Error{Kind: apiclient.KindNotFound, Status: http.StatusNotFound, Message: msgStoreGone}
}

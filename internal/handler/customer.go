package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/apiclient"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/service"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/view"
	"github.com/go-chi/chi/v5"
)

const listLimit = 500

var genders = []domain.Gender{domain.GenderFemale, domain.GenderMale, domain.GenderOther}

type CustomerHandler struct {
	Pages
}

func (h CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/customers", h.list)
	r.Get("/customers/export", h.export)
	r.Get("/customers/new", h.newForm)
	r.Post("/customers", h.create)
	r.Get("/customers/{id}/edit", h.editForm)
	r.Post("/customers/{id}", h.update)
}

func customerParams(r *http.Request) domain.CustomerListParams {
	return domain.CustomerListParams{
		ListParams: domain.ListParams{Limit: listLimit},
		Query:      strings.TrimSpace(r.URL.Query().Get("q")),
	}
}

func (h CustomerHandler) list(w http.ResponseWriter, r *http.Request) {
	p := customerParams(r)
	items, err := entryFrom(r).API.ListCustomers(r.Context(), p)
	if err != nil {
		h.backendFailed(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "customers", "Customers", "customers", view.CustomersData{
		Query:     p.Query,
		Customers: items,
	})
}

func (h CustomerHandler) export(w http.ResponseWriter, r *http.Request) {
	items, err := entryFrom(r).API.ListCustomers(r.Context(), customerParams(r))
	if err != nil {
		if apiclient.IsKind(err, apiclient.KindUnauthorized) {
			RedirectToLogin(w, r)
			return
		}
		writeError(w, http.StatusBadGateway, failureMessage(err, genericFailure))
		return
	}
	s := sheet{
		name:   "Customers",
		header: []string{"ID", "Name", "Phone", "Gender", "Birthday", "Source", "Tags", "Status", "Created"},
		widths: []float64{8, 18, 16, 10, 12, 14, 24, 10, 12},
	}
	for _, c := range items {
		s.rows = append(s.rows, []any{
			c.ID,
			c.Name,
			c.Phone,
			string(c.Gender),
			c.Birthday,
			c.Source,
			strings.Join(c.Tags, ", "),
			string(c.Status),
			c.CreatedAt.Format(dateLayout),
		})
	}
	writeExport(w, r, "customers", s)
}

func (h CustomerHandler) newForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, 0, domain.NewCustomerInput(), "")
}

func (h CustomerHandler) editForm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "customer not found")
		return
	}
	c, err := findCustomer(r.Context(), entryFrom(r), id)
	if err != nil {
		h.backendFailed(w, r, err)
		return
	}
	h.renderForm(w, r, http.StatusOK, id, domain.CustomerInputFrom(*c), "")
}

func (h CustomerHandler) create(w http.ResponseWriter, r *http.Request) {
	in := customerInputFromForm(r)
	if _, err := entryFrom(r).API.CreateCustomer(r.Context(), in); err != nil {
		h.failed(w, r, 0, in, err)
		return
	}
	entryFrom(r).Customers.Invalidate()
	entryFrom(r).Dashboard.Invalidate()
	redirectWithFlash(w, r, "/customers", "customer created")
}

func (h CustomerHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "customer not found")
		return
	}
	in := customerInputFromForm(r)
	if _, err := entryFrom(r).API.UpdateCustomer(r.Context(), id, in); err != nil {
		h.failed(w, r, id, in, err)
		return
	}
	entryFrom(r).Customers.Invalidate()
	entryFrom(r).Dashboard.Invalidate()
	redirectWithFlash(w, r, "/customers", "customer updated")
}

// failed keeps the form open with the submitted values and the reason.
func (h CustomerHandler) failed(w http.ResponseWriter, r *http.Request, id int64, in domain.CustomerInput, err error) {
	if apiclient.IsKind(err, apiclient.KindUnauthorized) {
		RedirectToLogin(w, r)
		return
	}
	h.renderForm(w, r, statusFor(err), id, in, customerMessage(err))
}

func (h CustomerHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, id int64, in domain.CustomerInput, msg string) {
	dicts, err := entryFrom(r).LoadDictionaries(r.Context(), false)
	if err != nil {
		h.backendFailed(w, r, err)
		return
	}
	title := "New customer"
	if id != 0 {
		title = "Edit customer"
	}
	h.render(w, r, status, "customer_form", title, "customers", view.CustomerFormData{
		ID:        id,
		Input:     in,
		TagsText:  strings.Join(in.Tags, ", "),
		Stores:    dicts.StoreOptions(),
		Employees: dicts.EmployeeOptions(),
		Genders:   genders,
		Error:     msg,
	})
}

func customerMessage(err error) string {
	switch apiclient.KindOf(err) {
	case apiclient.KindConflict:
		return apiclient.MessageOr(err, "a customer with this phone already exists")
	case apiclient.KindNotFound:
		return "customer no longer exists"
	}
	return failureMessage(err, genericFailure)
}

func customerInputFromForm(r *http.Request) domain.CustomerInput {
	_ = r.ParseForm()
	return domain.CustomerInput{
		Name:             r.PostFormValue("name"),
		Phone:            r.PostFormValue("phone"),
		Gender:           domain.Gender(r.PostFormValue("gender")),
		Birthday:         strings.TrimSpace(r.PostFormValue("birthday")),
		Source:           strings.TrimSpace(r.PostFormValue("source")),
		Tags:             formTags(r.PostFormValue("tags")),
		PreferredStoreID: formID(r, "preferredStoreId"),
		OwnerEmployeeID:  formID(r, "ownerEmployeeId"),
		Status:           domain.CustomerStatus(r.PostFormValue("status")),
	}
}

// findCustomer looks the record up in a fresh list; the backend has no
// single-customer endpoint.
func findCustomer(ctx context.Context, e *service.Entry, id int64) (*domain.Customer, error) {
	items, err := e.API.ListCustomers(ctx, domain.CustomerListParams{ListParams: domain.ListParams{Limit: listLimit}})
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, &apiclient.Error{Kind: apiclient.KindNotFound, Status: http.StatusNotFound, Message: "customer no longer exists"}
}

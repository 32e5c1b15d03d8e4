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
	"golang.org/x/sync/errgroup"
)

var fulfillmentStatuses = []domain.FulfillmentStatus{
	domain.FulfillmentOrdered,
	domain.FulfillmentFulfilled,
	domain.FulfillmentRefunded,
}

type FulfillmentHandler struct {
	Pages
}

func (h FulfillmentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/fulfillments", h.list)
	r.Get("/fulfillments/export", h.export)
	r.Get("/fulfillments/new", h.newForm)
	r.Post("/fulfillments", h.create)
	r.Get("/fulfillments/{id}/edit", h.editForm)
	r.Post("/fulfillments/{id}", h.update)
}

func statusFilter(r *http.Request) domain.FulfillmentStatus {
	s := domain.FulfillmentStatus(r.URL.Query().Get("status"))
	if !s.Valid() {
		return ""
	}
	return s
}

// loadRows fetches the list and the name dictionaries in parallel.
func loadRows(ctx context.Context, e *service.Entry, status domain.FulfillmentStatus) ([]view.FulfillmentRow, error) {
	var (
		items []domain.Fulfillment
		dicts service.Dictionaries
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = e.API.ListFulfillments(gctx, domain.FulfillmentListParams{
			ListParams: domain.ListParams{Limit: listLimit},
			Status:     status,
		})
		return err
	})
	g.Go(func() error {
		var err error
		dicts, err = e.LoadDictionaries(gctx, true)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make([]view.FulfillmentRow, 0, len(items))
	for _, f := range items {
		row := view.FulfillmentRow{Fulfillment: f}
		if f.Customer != nil {
			row.CustomerName = f.Customer.Name
		} else {
			row.CustomerName = dicts.CustomerName(f.CustomerID)
		}
		if f.Store != nil {
			row.StoreName = f.Store.Name
		} else {
			row.StoreName = dicts.StoreName(f.StoreID)
		}
		if f.Employee != nil {
			row.EmployeeName = f.Employee.Name
		} else if f.EmployeeID != nil {
			row.EmployeeName = dicts.EmployeeName(*f.EmployeeID)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (h FulfillmentHandler) list(w http.ResponseWriter, r *http.Request) {
	status := statusFilter(r)
	rows, err := loadRows(r.Context(), entryFrom(r), status)
	if err != nil {
		h.backendFailed(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "fulfillments", "Fulfillments", "fulfillments", view.FulfillmentsData{
		Status:       status,
		Statuses:     fulfillmentStatuses,
		Fulfillments: rows,
	})
}

func (h FulfillmentHandler) export(w http.ResponseWriter, r *http.Request) {
	rows, err := loadRows(r.Context(), entryFrom(r), statusFilter(r))
	if err != nil {
		if apiclient.IsKind(err, apiclient.KindUnauthorized) {
			RedirectToLogin(w, r)
			return
		}
		writeError(w, http.StatusBadGateway, failureMessage(err, genericFailure))
		return
	}
	s := sheet{
		name:   "Fulfillments",
		header: []string{"ID", "Customer", "Store", "Employee", "Amount", "Currency", "Status", "Channel", "Paid At", "Note", "Created"},
		widths: []float64{8, 18, 18, 16, 12, 10, 12, 14, 18, 28, 12},
	}
	for _, f := range rows {
		paid := ""
		if f.PaidAt != nil {
			paid = f.PaidAt.Local().Format("2006-01-02 15:04")
		}
		s.rows = append(s.rows, []any{
			f.ID,
			f.CustomerName,
			f.StoreName,
			f.EmployeeName,
			f.Amount,
			f.Currency,
			string(f.Status),
			f.Channel,
			paid,
			f.Note,
			f.CreatedAt.Format(dateLayout),
		})
	}
	writeExport(w, r, "fulfillments", s)
}

func (h FulfillmentHandler) newForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, view.FulfillmentFormData{Input: domain.NewFulfillmentInput()})
}

func (h FulfillmentHandler) editForm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "fulfillment record not found")
		return
	}
	f, err := findFulfillment(r.Context(), entryFrom(r), id)
	if err != nil {
		h.backendFailed(w, r, err)
		return
	}
	h.renderForm(w, r, http.StatusOK, view.FulfillmentFormData{ID: id, Update: domain.FulfillmentUpdateFrom(*f)})
}

func (h FulfillmentHandler) create(w http.ResponseWriter, r *http.Request) {
	in, err := fulfillmentInputFromForm(r)
	if err == nil {
		_, err = entryFrom(r).API.CreateFulfillment(r.Context(), in)
	}
	if err != nil {
		h.failed(w, r, view.FulfillmentFormData{Input: in}, err)
		return
	}
	entryFrom(r).Dashboard.Invalidate()
	redirectWithFlash(w, r, "/fulfillments", "fulfillment record created")
}

func (h FulfillmentHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "fulfillment record not found")
		return
	}
	_ = r.ParseForm()
	u := domain.FulfillmentUpdate{
		Status:  domain.FulfillmentStatus(r.PostFormValue("status")),
		Channel: strings.TrimSpace(r.PostFormValue("channel")),
		Note:    strings.TrimSpace(r.PostFormValue("note")),
	}
	paidAt, err := formTime(r, "paidAt")
	u.PaidAt = paidAt
	if err == nil {
		_, err = entryFrom(r).API.UpdateFulfillment(r.Context(), id, u)
	}
	if err != nil {
		h.failed(w, r, view.FulfillmentFormData{ID: id, Update: u}, err)
		return
	}
	entryFrom(r).Dashboard.Invalidate()
	redirectWithFlash(w, r, "/fulfillments", "fulfillment record updated")
}

func (h FulfillmentHandler) failed(w http.ResponseWriter, r *http.Request, data view.FulfillmentFormData, err error) {
	if apiclient.IsKind(err, apiclient.KindUnauthorized) {
		RedirectToLogin(w, r)
		return
	}
	switch apiclient.KindOf(err) {
	case apiclient.KindNotFound:
		data.Error = "fulfillment record, customer or store no longer exists"
	default:
		data.Error = failureMessage(err, genericFailure)
	}
	h.renderForm(w, r, statusFor(err), data)
}

func (h FulfillmentHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, data view.FulfillmentFormData) {
	data.Statuses = fulfillmentStatuses
	title := "Edit fulfillment"
	if data.ID == 0 {
		dicts, err := entryFrom(r).LoadDictionaries(r.Context(), true)
		if err != nil {
			h.backendFailed(w, r, err)
			return
		}
		data.Customers = dicts.CustomerOptions()
		data.Stores = dicts.StoreOptions()
		data.Employees = dicts.EmployeeOptions()
		title = "New fulfillment"
	}
	h.render(w, r, status, "fulfillment_form", title, "fulfillments", data)
}

func fulfillmentInputFromForm(r *http.Request) (domain.FulfillmentInput, error) {
	_ = r.ParseForm()
	in := domain.FulfillmentInput{
		CustomerID: formIDValue(r, "customerId"),
		StoreID:    formIDValue(r, "storeId"),
		EmployeeID: formID(r, "employeeId"),
		Currency:   r.PostFormValue("currency"),
		Status:     domain.FulfillmentStatus(r.PostFormValue("status")),
		Channel:    strings.TrimSpace(r.PostFormValue("channel")),
		Note:       strings.TrimSpace(r.PostFormValue("note")),
	}
	amount, err := formAmount(r, "amount")
	if err != nil {
		return in, err
	}
	in.Amount = amount
	paidAt, err := formTime(r, "paidAt")
	if err != nil {
		return in, err
	}
	in.PaidAt = paidAt
	return in, nil
}

func findFulfillment(ctx context.Context, e *service.Entry, id int64) (*domain.Fulfillment, error) {
	items, err := e.API.ListFulfillments(ctx, domain.FulfillmentListParams{ListParams: domain.ListParams{Limit: listLimit}})
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, &apiclient.Error{Kind: apiclient.KindNotFound, Status: http.StatusNotFound, Message: "fulfillment record no longer exists"}
}

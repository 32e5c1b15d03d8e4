package handler

import (
	"net/http"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/apiclient"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/dashboard"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/service"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/view"
	"github.com/go-chi/chi/v5"
)

const (
	chartWidth  = 640
	chartHeight = 200
)

type DashboardHandler struct {
	Pages
}

func (h DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", h.page)
	r.Get("/dashboard/data", h.data)
}

// resolve applies the range and metric controls of the request to the
// session's dashboard view. Switching metric alone reuses the remembered
// aggregate; every other load fetches it again.
func resolve(r *http.Request, e *service.Entry) (dashboard.Selection, dashboard.Metric, *domain.Dashboard, error) {
	q := r.URL.Query()
	toggle := false
	if raw := q.Get("metric"); raw != "" {
		if m, ok := dashboard.ParseMetric(raw); ok {
			e.Dashboard.SetMetric(m)
			toggle = true
		}
	}
	metric := e.Dashboard.Metric()

	current, cached := e.Dashboard.Cached()
	sel, changed, err := dashboard.ParseSelection(q, current)
	if err != nil {
		return current, metric, cached, &domain.ValidationError{Field: "range", Message: err.Error()}
	}
	if toggle && !changed && cached != nil {
		return sel, metric, cached, nil
	}

	t := e.Dashboard.Begin()
	data, err := e.API.Dashboard(r.Context(), sel.Params())
	if err != nil {
		return current, metric, cached, err
	}
	// A superseded response is still what this request asked for, but it
	// does not replace the remembered view.
	e.Dashboard.Commit(t, sel, data)
	return sel, metric, data, nil
}

func (h DashboardHandler) page(w http.ResponseWriter, r *http.Request) {
	sel, metric, data, err := resolve(r, entryFrom(r))
	if err != nil && apiclient.IsKind(err, apiclient.KindUnauthorized) {
		RedirectToLogin(w, r)
		return
	}
	status := http.StatusOK
	out := view.DashboardData{Selection: sel, Metric: metric, Metrics: dashboard.Metrics}
	if err != nil {
		status = statusFor(err)
		out.Error = failureMessage(err, "dashboard data could not be loaded, please try again later")
	}
	if data != nil {
		out.Today = data.Today
		out.Chart = dashboard.Project(data.Trend, metric, chartWidth, chartHeight)
		out.RecentOrders = data.RecentOrders
		out.RecentCustomers = data.RecentCustomers
	}
	h.render(w, r, status, "dashboard", "Dashboard", "dashboard", out)
}

func (h DashboardHandler) data(w http.ResponseWriter, r *http.Request) {
	sel, metric, data, err := resolve(r, entryFrom(r))
	if err != nil {
		if apiclient.IsKind(err, apiclient.KindUnauthorized) {
			RedirectToLogin(w, r)
			return
		}
		writeError(w, statusFor(err), failureMessage(err, genericFailure))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"range":     sel.Key(),
		"metric":    metric,
		"dashboard": data,
		"chart":     dashboard.Project(data.Trend, metric, chartWidth, chartHeight),
	})
}

package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/apiclient"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/backendtest"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/config"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/handler"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/metrics"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/service"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/session"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/store"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/view"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminPhone = "13800000000"
	staffPhone = "13900000000"
	password   = "secret1"
)

type console struct {
	t        *testing.T
	backend  *backendtest.Backend
	store    session.Store
	registry *service.Registry
	server   *httptest.Server
	client   *http.Client
}

func newConsole(t *testing.T, b *backendtest.Backend, st session.Store) *console {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pages, err := view.New()
	require.NoError(t, err)

	registry := service.NewRegistry(st, apiclient.Options{BaseURL: b.URL(), VerifyPath: "/api/auth/verify"}, logger)
	authSvc := &service.AuthService{Sessions: registry, Logger: logger}
	cookies := service.CookieCodec{Secret: []byte("test-secret"), TTL: time.Hour}
	base := handler.Pages{View: pages, Logger: logger}

	router := NewRouter(config.Config{}, logger, authSvc, cookies, Handlers{
		Health:       handler.HealthHandler{Store: st, Sessions: registry},
		Home:         handler.HomeHandler{},
		Auth:         handler.AuthHandler{Pages: base, Service: authSvc, Cookies: cookies},
		Accounts:     handler.AccountHandler{Pages: base, Service: authSvc},
		Customers:    handler.CustomerHandler{Pages: base},
		Fulfillments: handler.FulfillmentHandler{Pages: base},
		Stores:       handler.StoreHandler{Pages: base},
		Dashboard:    handler.DashboardHandler{Pages: base},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &console{t: t, backend: b, store: st, registry: registry, server: srv, client: client}
}

func setup(t *testing.T) *console {
	b := backendtest.New(t)
	b.AddUser(adminPhone, password, domain.RoleAdmin)
	b.AddUser(staffPhone, password, domain.RoleStaff)
	return newConsole(t, b, store.NewMemoryStore(time.Hour))
}

func (c *console) do(req *http.Request) (*http.Response, string) {
	c.t.Helper()
	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, string(body)
}

func (c *console) get(path string) (*http.Response, string) {
	req, err := http.NewRequest(http.MethodGet, c.server.URL+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *console) post(path string, form url.Values) (*http.Response, string) {
	req, err := http.NewRequest(http.MethodPost, c.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *console) login(phone string) {
	c.t.Helper()
	resp, body := c.post("/login", url.Values{"phone": {phone}, "password": {password}})
	require.Equal(c.t, http.StatusSeeOther, resp.StatusCode, body)
	require.Equal(c.t, "/dashboard", resp.Header.Get("Location"))
}

func assertRedirect(t *testing.T, resp *http.Response, to string) {
	t.Helper()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, to, resp.Header.Get("Location"))
}

func TestGuardRedirectsToLogin(t *testing.T) {
	c := setup(t)
	for _, path := range []string{"/", "/dashboard", "/customers", "/stores", "/fulfillments/new"} {
		resp, _ := c.get(path)
		assertRedirect(t, resp, "/login")
	}
	assert.Zero(t, c.backend.TotalCalls())

	resp, body := c.get("/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Sign in")
}

func TestLoginFailureStaysOnForm(t *testing.T) {
	c := setup(t)
	resp, body := c.post("/login", url.Values{"phone": {adminPhone}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "invalid phone or password")
	assert.Contains(t, body, adminPhone)

	resp, _ = c.get("/dashboard")
	assertRedirect(t, resp, "/login")
}

func TestLoginRedirectsAwayFromLoginPage(t *testing.T) {
	c := setup(t)
	c.login(adminPhone)
	resp, _ := c.get("/login")
	assertRedirect(t, resp, "/dashboard")
}

func TestCustomerRoundTrip(t *testing.T) {
	c := setup(t)
	s := c.backend.AddStore(domain.Store{Code: "SH-01", Name: "Flagship"})
	c.login(adminPhone)

	_, body := c.get("/customers")
	assert.Contains(t, body, "No customers yet")

	resp, _ := c.post("/customers", url.Values{
		"name":             {"Lin Yue"},
		"phone":            {"13700000000"},
		"gender":           {"female"},
		"tags":             {"vip, facial"},
		"preferredStoreId": {strconv.FormatInt(s.ID, 10)},
		"status":           {"active"},
	})
	assertRedirect(t, resp, "/customers")

	_, body = c.get("/customers")
	assert.Contains(t, body, "Lin Yue")
	assert.Contains(t, body, "customer created")

	customers := c.backend.Customers()
	require.Len(t, customers, 1)
	assert.Equal(t, []string{"vip", "facial"}, customers[0].Tags)
	id := strconv.FormatInt(customers[0].ID, 10)

	_, body = c.get("/customers/" + id + "/edit")
	assert.Contains(t, body, `value="Lin Yue"`)
	assert.Contains(t, body, "vip, facial")

	resp, _ = c.post("/customers/"+id, url.Values{"name": {"Lin Yue Jr"}, "phone": {"13700000000"}, "status": {"inactive"}})
	assertRedirect(t, resp, "/customers")

	_, body = c.get("/customers?q=jr")
	assert.Contains(t, body, "Lin Yue Jr")
	_, body = c.get("/customers?q=nobody")
	assert.Contains(t, body, "No customers match")
}

func TestCustomerEditClearsOptionalFields(t *testing.T) {
	c := setup(t)
	s := c.backend.AddStore(domain.Store{Code: "SH-01", Name: "Flagship"})
	cu := c.backend.AddCustomer(domain.Customer{
		Name:             "Lin",
		Phone:            "137",
		Gender:           domain.GenderFemale,
		Birthday:         "1990-05-01",
		Source:           "walk-in",
		Tags:             []string{"vip"},
		PreferredStoreID: &s.ID,
		Status:           domain.CustomerActive,
	})
	c.login(adminPhone)
	id := strconv.FormatInt(cu.ID, 10)

	resp, _ := c.post("/customers/"+id, url.Values{
		"name":             {"Lin"},
		"phone":            {"137"},
		"gender":           {""},
		"birthday":         {""},
		"source":           {""},
		"tags":             {""},
		"preferredStoreId": {""},
		"status":           {"active"},
	})
	assertRedirect(t, resp, "/customers")

	got := c.backend.Customers()[0]
	assert.Empty(t, got.Gender)
	assert.Empty(t, got.Birthday)
	assert.Empty(t, got.Source)
	assert.Empty(t, got.Tags)
	assert.Nil(t, got.PreferredStoreID)
	assert.Equal(t, "Lin", got.Name)
}

func TestCustomerValidationKeepsForm(t *testing.T) {
	c := setup(t)
	c.login(adminPhone)
	before := c.backend.Calls(http.MethodPost, "/api/customers")

	resp, body := c.post("/customers", url.Values{"name": {"Lin"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "phone is required")
	assert.Contains(t, body, `value="Lin"`)
	assert.Equal(t, before, c.backend.Calls(http.MethodPost, "/api/customers"))
}

func TestStoreCodeTooLongNeverReachesBackend(t *testing.T) {
	c := setup(t)
	c.login(adminPhone)

	resp, body := c.post("/stores", url.Values{"code": {strings.Repeat("A", 31)}, "name": {"Too long"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "at most 30")
	assert.Zero(t, c.backend.Calls(http.MethodPost, "/api/stores"))

	resp, _ = c.post("/stores", url.Values{"code": {strings.Repeat("A", 30)}, "name": {"Just right"}})
	assertRedirect(t, resp, "/stores")
	assert.Equal(t, 1, c.backend.Calls(http.MethodPost, "/api/stores"))
}

func TestStoreConflictIsDistinct(t *testing.T) {
	c := setup(t)
	c.backend.AddStore(domain.Store{Code: "SH-01", Name: "Flagship"})
	c.login(adminPhone)

	resp, body := c.post("/stores", url.Values{"code": {"SH-01"}, "name": {"Second"}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "store code already exists")
	assert.NotContains(t, body, "please try again later")
	assert.Contains(t, body, `value="Second"`, "the form stays open with the input")
}

func TestStoreEditSendsChangedFields(t *testing.T) {
	c := setup(t)
	s := c.backend.AddStore(domain.Store{Code: "SH-01", Name: "Flagship", City: "Shanghai"})
	c.login(adminPhone)
	id := strconv.FormatInt(s.ID, 10)

	_, body := c.get("/stores/" + id + "/edit")
	assert.Contains(t, body, `value="Shanghai"`)

	resp, _ := c.post("/stores/"+id, url.Values{"code": {"SH-01"}, "name": {"Flagship"}, "city": {""}, "status": {"closed"}})
	assertRedirect(t, resp, "/stores")
	got := c.backend.Stores()[0]
	assert.Equal(t, "", got.City)
	assert.Equal(t, domain.StoreClosed, got.Status)

	// Submitting without changes sends nothing.
	puts := c.backend.Calls(http.MethodPut, "/api/stores/"+id)
	resp, _ = c.post("/stores/"+id, url.Values{"code": {"SH-01"}, "name": {"Flagship"}, "status": {"closed"}})
	assertRedirect(t, resp, "/stores")
	assert.Equal(t, puts, c.backend.Calls(http.MethodPut, "/api/stores/"+id))
}

func TestStoreDeleteWithDependents(t *testing.T) {
	c := setup(t)
	s := c.backend.AddStore(domain.Store{Code: "SH-01", Name: "Flagship"})
	c.backend.AddEmployee(domain.Employee{Name: "Mia", StoreID: s.ID})
	c.login(adminPhone)
	id := strconv.FormatInt(s.ID, 10)

	_, body := c.get("/stores/" + id + "/delete")
	assert.Contains(t, body, "Flagship")

	resp, _ := c.post("/stores/"+id+"/delete", nil)
	assertRedirect(t, resp, "/stores")

	_, body = c.get("/stores")
	assert.Contains(t, body, "store has related employees or fulfillment records and cannot be deleted")
	assert.Contains(t, body, "Flagship")
	assert.Len(t, c.backend.Stores(), 1)
}

func TestStoreDeleteMissingAndSuccess(t *testing.T) {
	c := setup(t)
	s := c.backend.AddStore(domain.Store{Code: "SH-02", Name: "Outlet"})
	c.login(adminPhone)

	resp, _ := c.post("/stores/999999/delete", nil)
	assertRedirect(t, resp, "/stores")
	_, body := c.get("/stores")
	assert.Contains(t, body, "store no longer exists")

	resp, _ = c.post("/stores/"+strconv.FormatInt(s.ID, 10)+"/delete", nil)
	assertRedirect(t, resp, "/stores")
	_, body = c.get("/stores")
	assert.Contains(t, body, "store deleted")
	assert.Contains(t, body, "No stores configured yet")
}

func TestUnauthorizedLogsOutOnce(t *testing.T) {
	c := setup(t)
	c.login(adminPhone)
	expired := metrics.SessionTransitions.WithLabelValues("expired")
	before := testutil.ToFloat64(expired)

	c.backend.RejectAll(true)
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := c.client.Get(c.server.URL + "/stores")
			if assert.NoError(t, err) {
				resp.Body.Close()
				assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
				assert.Equal(t, "/login", resp.Header.Get("Location"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, before+1, testutil.ToFloat64(expired))
	assert.Zero(t, c.registry.Len())

	// The backend would accept again, but the console session is gone.
	c.backend.RejectAll(false)
	calls := c.backend.TotalCalls()
	resp, _ := c.get("/customers")
	assertRedirect(t, resp, "/login")
	assert.Equal(t, calls, c.backend.TotalCalls())
}

func TestUnauthorizedHtmxGetsHeaderRedirect(t *testing.T) {
	c := setup(t)
	c.login(adminPhone)
	c.backend.RejectAll(true)

	req, err := http.NewRequest(http.MethodGet, c.server.URL+"/customers", nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")
	resp, _ := c.do(req)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("HX-Redirect"))
}

func TestLogout(t *testing.T) {
	c := setup(t)
	c.login(adminPhone)

	resp, _ := c.post("/logout", nil)
	assertRedirect(t, resp, "/login")
	resp, _ = c.get("/dashboard")
	assertRedirect(t, resp, "/login")

	// Logging out again is harmless.
	resp, _ = c.post("/logout", nil)
	assertRedirect(t, resp, "/login")
}

func TestSessionSurvivesRestart(t *testing.T) {
	b := backendtest.New(t)
	b.AddUser(adminPhone, password, domain.RoleAdmin)
	st := store.NewMemoryStore(time.Hour)
	first := newConsole(t, b, st)
	first.login(adminPhone)

	second := newConsole(t, b, st)
	second.client.Jar = first.client.Jar
	// The jar is keyed by host, which both test servers share.
	resp, body := second.get("/stores")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, adminPhone)
	assert.Equal(t, 1, b.Calls(http.MethodGet, "/api/auth/verify"))
}

func TestRestoreRejectedByBackend(t *testing.T) {
	b := backendtest.New(t)
	b.AddUser(adminPhone, password, domain.RoleAdmin)
	st := store.NewMemoryStore(time.Hour)
	first := newConsole(t, b, st)
	first.login(adminPhone)

	b.RejectAll(true)
	second := newConsole(t, b, st)
	second.client.Jar = first.client.Jar
	resp, _ := second.get("/stores")
	assertRedirect(t, resp, "/login")
	assert.Zero(t, b.Calls(http.MethodGet, "/api/stores"))
	assert.Equal(t, 1, b.Calls(http.MethodGet, "/api/auth/verify"))
	assert.Zero(t, second.registry.Len())

	// The rejected cookie was cleared, so there is nothing left to verify.
	resp, _ = second.get("/stores")
	assertRedirect(t, resp, "/login")
	assert.Equal(t, 1, b.Calls(http.MethodGet, "/api/auth/verify"))
}

func TestDashboardRangeAndMetric(t *testing.T) {
	c := setup(t)
	c.backend.SetDashboard(domain.Dashboard{
		Today: domain.DashboardToday{TotalAmount: 320, OrderCount: 4, AverageAmount: 80},
		Trend: []domain.DashboardDay{
			{Date: "2024-03-06", TotalAmount: 100, OrderCount: 1, AverageAmount: 100},
			{Date: "2024-03-07", TotalAmount: 320, OrderCount: 4, AverageAmount: 80},
		},
	})
	c.login(adminPhone)

	resp, body := c.get("/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "¥320.00")
	assert.Contains(t, body, "<polyline")
	assert.Equal(t, []string{"range=7"}, c.backend.DashboardQueries())

	_, body = c.get("/dashboard?metric=count")
	assert.Contains(t, body, "4 orders")
	assert.Len(t, c.backend.DashboardQueries(), 1, "switching metric does not refetch")

	_, _ = c.get("/dashboard?range=30")
	_, body = c.get("/dashboard")
	assert.Contains(t, body, "Last 30 days")
	assert.Contains(t, body, "4 orders", "the metric choice is remembered")
	assert.Equal(t, []string{"range=7", "range=30", "range=30"}, c.backend.DashboardQueries(),
		"a plain visit refetches the remembered range")

	_, body = c.get("/dashboard?startDate=2024-03-01&endDate=2024-03-07")
	assert.Contains(t, body, `value="2024-03-01"`)
	queries := c.backend.DashboardQueries()
	assert.Equal(t, "endDate=2024-03-07&startDate=2024-03-01", queries[len(queries)-1])

	resp, body = c.get("/dashboard?startDate=2024-03-09&endDate=2024-03-07")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "start date must not be after end date")
	assert.Len(t, c.backend.DashboardQueries(), 4)
}

func TestDashboardReflectsNewFulfillment(t *testing.T) {
	c := setup(t)
	s := c.backend.AddStore(domain.Store{Code: "SH-01", Name: "Flagship"})
	cu := c.backend.AddCustomer(domain.Customer{Name: "Lin", Phone: "137"})
	c.backend.SetDashboard(domain.Dashboard{Today: domain.DashboardToday{TotalAmount: 100, OrderCount: 1}})
	c.login(adminPhone)

	_, body := c.get("/dashboard")
	require.Contains(t, body, "¥100.00")

	resp, _ := c.post("/fulfillments", url.Values{
		"customerId": {strconv.FormatInt(cu.ID, 10)},
		"storeId":    {strconv.FormatInt(s.ID, 10)},
		"amount":     {"300"},
	})
	assertRedirect(t, resp, "/fulfillments")
	c.backend.SetDashboard(domain.Dashboard{Today: domain.DashboardToday{TotalAmount: 400, OrderCount: 2}})

	_, body = c.get("/dashboard?metric=count")
	assert.Contains(t, body, "¥400.00", "a write drops the remembered aggregate")
	_, body = c.get("/dashboard")
	assert.Contains(t, body, "¥400.00")
	assert.NotContains(t, body, "¥100.00")
}

func TestDashboardData(t *testing.T) {
	c := setup(t)
	c.backend.SetDashboard(domain.Dashboard{Trend: []domain.DashboardDay{{Date: "2024-03-07", OrderCount: 2}}})
	c.login(adminPhone)

	resp, body := c.get("/dashboard/data?range=30&metric=count")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"range":"30"`)
	assert.Contains(t, body, `"metric":"count"`)
}

func TestFulfillmentFlow(t *testing.T) {
	c := setup(t)
	s := c.backend.AddStore(domain.Store{Code: "SH-01", Name: "Flagship"})
	e := c.backend.AddEmployee(domain.Employee{Name: "Mia", StoreID: s.ID})
	cu := c.backend.AddCustomer(domain.Customer{Name: "Lin", Phone: "137"})
	c.login(adminPhone)

	_, body := c.get("/fulfillments/new")
	assert.Contains(t, body, "Lin · 137")
	assert.Contains(t, body, "Flagship")

	resp, body := c.post("/fulfillments", url.Values{
		"customerId": {strconv.FormatInt(cu.ID, 10)},
		"storeId":    {strconv.FormatInt(s.ID, 10)},
		"employeeId": {strconv.FormatInt(e.ID, 10)},
		"amount":     {"0"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "amount must be greater than zero")

	resp, _ = c.post("/fulfillments", url.Values{
		"customerId": {strconv.FormatInt(cu.ID, 10)},
		"storeId":    {strconv.FormatInt(s.ID, 10)},
		"employeeId": {strconv.FormatInt(e.ID, 10)},
		"amount":     {"299.5"},
		"paidAt":     {"2024-03-07T10:30"},
	})
	assertRedirect(t, resp, "/fulfillments")

	_, body = c.get("/fulfillments")
	assert.Contains(t, body, "Lin")
	assert.Contains(t, body, "Mia")
	assert.Contains(t, body, "¥299.50")

	f := c.backend.Fulfillments()[0]
	assert.Equal(t, domain.DefaultCurrency, f.Currency)
	id := strconv.FormatInt(f.ID, 10)

	_, body = c.get("/fulfillments/" + id + "/edit")
	assert.Contains(t, body, `value="2024-03-07T10:30"`)
	assert.NotContains(t, body, `name="amount"`, "amounts are fixed once recorded")

	resp, _ = c.post("/fulfillments/"+id, url.Values{"status": {"fulfilled"}, "note": {"done"}})
	assertRedirect(t, resp, "/fulfillments")
	assert.Equal(t, domain.FulfillmentFulfilled, c.backend.Fulfillments()[0].Status)

	_, body = c.get("/fulfillments?status=refunded")
	assert.Contains(t, body, "No Refunded records")
}

func TestExportCSV(t *testing.T) {
	c := setup(t)
	c.backend.AddCustomer(domain.Customer{Name: "Lin", Phone: "137", Tags: []string{"vip"}})
	c.login(adminPhone)

	resp, body := c.get("/customers/export?format=csv")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "ID,Name,Phone")
	assert.Contains(t, body, "Lin,137")

	resp, _ = c.get("/fulfillments/export")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")
}

func TestAccountsAdminOnly(t *testing.T) {
	c := setup(t)
	c.login(staffPhone)
	resp, _ := c.get("/accounts")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := setup(t)
	admin.login(adminPhone)
	resp, body := admin.post("/accounts", url.Values{"phone": {"13600000000"}, "password": {"123456"}, "role": {"manager"}})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, body, "Account 13600000000 (Manager) created")

	resp, body = admin.post("/accounts", url.Values{"phone": {"13600000000"}, "password": {"123456"}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "phone already registered")
}

func TestHealth(t *testing.T) {
	c := setup(t)
	resp, body := c.get("/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"ok"`)
	assert.Contains(t, body, `"live_sessions":0`)
}

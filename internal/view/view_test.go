package view

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/dashboard"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = &domain.User{ID: 1, Phone: "13800000000", Role: domain.RoleAdmin}

func render(t *testing.T, r *Renderer, page string, p Page) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, page, p))
	return buf.String()
}

func TestEveryPageRenders(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	storeID := int64(3)
	paid := time.Date(2024, 3, 7, 10, 30, 0, 0, time.Local)
	store := domain.Store{ID: storeID, Code: "SH-01", Name: "Flagship", Status: domain.StoreOpen}
	customer := domain.Customer{ID: 5, Name: "Lin", Phone: "139", Tags: []string{"vip"}, PreferredStoreID: &storeID, Status: domain.CustomerActive}
	options := []domain.Option{{ID: storeID, Name: "Flagship"}}
	sel := dashboard.Default()

	pages := map[string]any{
		"login":     LoginData{Phone: "139", Error: "invalid phone or password"},
		"error":     ErrorData{Status: 404, Message: "store no longer exists"},
		"customers": CustomersData{Customers: []domain.Customer{customer}},
		"customer_form": CustomerFormData{
			ID: 5, Input: domain.CustomerInputFrom(customer), Stores: options, Genders: []domain.Gender{domain.GenderFemale},
		},
		"fulfillments": FulfillmentsData{
			Statuses:     []domain.FulfillmentStatus{domain.FulfillmentOrdered},
			Fulfillments: []FulfillmentRow{{Fulfillment: domain.Fulfillment{ID: 9, Amount: 88, Currency: "CNY", Status: domain.FulfillmentOrdered, PaidAt: &paid}, CustomerName: "Lin", StoreName: "Flagship"}},
		},
		"fulfillment_form": FulfillmentFormData{Input: domain.NewFulfillmentInput(), Customers: options, Stores: options, Employees: options},
		"stores":           StoresData{Stores: []domain.Store{store}},
		"store_form":       StoreFormData{ID: storeID, Input: domain.StoreInputFrom(store), Statuses: []domain.StoreStatus{domain.StoreOpen, domain.StoreClosed}},
		"store_delete":     StoreDeleteData{Store: store},
		"dashboard": DashboardData{
			Selection:    sel,
			Metric:       dashboard.MetricAmount,
			Metrics:      dashboard.Metrics,
			Chart:        dashboard.Project([]domain.DashboardDay{{Date: "2024-03-07", TotalAmount: 88}}, dashboard.MetricAmount, 640, 200),
			RecentOrders: []domain.RecentOrder{{ID: 9, CustomerName: "Lin", StoreName: "Flagship", Amount: "88.00", Status: domain.FulfillmentOrdered}},
		},
		"accounts": AccountsData{Role: domain.RoleStaff, Roles: []domain.UserRole{domain.RoleStaff}, Created: admin},
	}
	for page, data := range pages {
		t.Run(page, func(t *testing.T) {
			out := render(t, r, page, Page{Title: page, User: admin, Flash: &Flash{Kind: "success", Message: "saved"}, Data: data})
			assert.Contains(t, out, "13800000000")
			assert.Contains(t, out, "saved")
		})
	}
}

func TestEmptyStatesAreDistinct(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	none := render(t, r, "customers", Page{User: admin, Data: CustomersData{}})
	assert.Contains(t, none, "No customers yet")
	noMatch := render(t, r, "customers", Page{User: admin, Data: CustomersData{Query: "zz"}})
	assert.Contains(t, noMatch, "No customers match")

	stores := render(t, r, "stores", Page{User: admin, Data: StoresData{}})
	assert.Contains(t, stores, "No stores configured yet")

	dash := render(t, r, "dashboard", Page{User: admin, Data: DashboardData{Selection: dashboard.Default(), Metrics: dashboard.Metrics}})
	assert.Contains(t, dash, "No sales in this period")
	assert.Contains(t, dash, "No orders yet")
}

func TestLayoutHidesNavWithoutUser(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	out := render(t, r, "login", Page{Title: "Sign in", Data: LoginData{}})
	assert.False(t, strings.Contains(out, "<nav>"))

	staff := &domain.User{Phone: "1", Role: domain.RoleStaff}
	out = render(t, r, "stores", Page{User: staff, Data: StoresData{}})
	assert.Contains(t, out, "<nav>")
	assert.NotContains(t, out, `href="/accounts"`)
}

func TestStoreFormLimits(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	out := render(t, r, "store_form", Page{User: admin, Data: StoreFormData{Input: domain.NewStoreInput(), Error: "store code already exists"}})
	assert.Contains(t, out, `maxlength="30"`)
	assert.Contains(t, out, `maxlength="120"`)
	assert.Contains(t, out, "store code already exists")
}

func TestUnknownPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	assert.Error(t, r.Render(&bytes.Buffer{}, "nope", Page{}))
}

func TestHelpers(t *testing.T) {
	id := int64(4)
	assert.True(t, isSelected(&id, 4))
	assert.False(t, isSelected((*int64)(nil), 4))
	assert.True(t, isSelected(int64(4), 4))
	assert.Equal(t, "4", idValue(&id))
	assert.Equal(t, "", idValue(nil))
	assert.Equal(t, "-", formatDateTime(nil))
	assert.Equal(t, "-", formatDate(time.Time{}))
	assert.Equal(t, "Closed", storeStatusLabel(domain.StoreClosed))
}

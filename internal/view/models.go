package view

import (
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/dashboard"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
)

type LoginData struct {
	Phone string
	Error string
}

type CustomersData struct {
	Query     string
	Customers []domain.Customer
}

type CustomerFormData struct {
	ID        int64
	Input     domain.CustomerInput
	TagsText  string
	Stores    []domain.Option
	Employees []domain.Option
	Genders   []domain.Gender
	Error     string
}

type FulfillmentRow struct {
	domain.Fulfillment
	CustomerName string
	StoreName    string
	EmployeeName string
}

type FulfillmentsData struct {
	Status       domain.FulfillmentStatus
	Statuses     []domain.FulfillmentStatus
	Fulfillments []FulfillmentRow
}

type FulfillmentFormData struct {
	ID        int64
	Input     domain.FulfillmentInput
	Update    domain.FulfillmentUpdate
	Customers []domain.Option
	Stores    []domain.Option
	Employees []domain.Option
	Statuses  []domain.FulfillmentStatus
	Error     string
}

type StoresData struct {
	Stores []domain.Store
}

type StoreFormData struct {
	ID       int64
	Input    domain.StoreInput
	Statuses []domain.StoreStatus
	Error    string
}

type StoreDeleteData struct {
	Store domain.Store
}

type DashboardData struct {
	Selection       dashboard.Selection
	Metric          dashboard.Metric
	Metrics         []dashboard.Metric
	Today           domain.DashboardToday
	Chart           dashboard.Chart
	RecentOrders    []domain.RecentOrder
	RecentCustomers []domain.Customer
	Error           string
}

type AccountsData struct {
	Phone   string
	Role    domain.UserRole
	Roles   []domain.UserRole
	Created *domain.User
	Error   string
}

type ErrorData struct {
	Status  int
	Message string
}

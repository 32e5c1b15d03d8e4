package domain

import (
	"encoding/json"
	"time"
)

// Enumerations
const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleStaff   UserRole = "staff"

	CustomerActive   CustomerStatus = "active"
	CustomerInactive CustomerStatus = "inactive"

	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"

	FulfillmentOrdered   FulfillmentStatus = "ordered"
	FulfillmentFulfilled FulfillmentStatus = "fulfilled"
	FulfillmentRefunded  FulfillmentStatus = "refunded"

	StoreOpen   StoreStatus = "open"
	StoreClosed StoreStatus = "closed"

	EmployeeActive   EmployeeStatus = "active"
	EmployeeInactive EmployeeStatus = "inactive"

	DefaultCurrency = "CNY"
)

type UserRole string
type CustomerStatus string
type Gender string
type FulfillmentStatus string
type StoreStatus string
type EmployeeStatus string

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

func (s CustomerStatus) Valid() bool {
	return s == CustomerActive || s == CustomerInactive
}

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

func (s FulfillmentStatus) Valid() bool {
	switch s {
	case FulfillmentOrdered, FulfillmentFulfilled, FulfillmentRefunded:
		return true
	}
	return false
}

func (s StoreStatus) Valid() bool {
	return s == StoreOpen || s == StoreClosed
}

// UnmarshalJSON accepts the older active/inactive enumeration some backend
// builds still emit and maps it onto open/closed.
func (s *StoreStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = NormalizeStoreStatus(raw)
	return nil
}

// NormalizeStoreStatus maps legacy store statuses onto the open/closed set.
func NormalizeStoreStatus(raw string) StoreStatus {
	switch raw {
	case "active":
		return StoreOpen
	case "inactive":
		return StoreClosed
	}
	return StoreStatus(raw)
}

// User is the authenticated identity returned by the backend. It carries no
// secret material and is the only thing the console persists per session.
type User struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type AuthResponse struct {
	User      User      `json:"user"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Customer struct {
	ID               int64          `json:"id"`
	Name             string         `json:"name"`
	Phone            string         `json:"phone"`
	Gender           Gender         `json:"gender,omitempty"`
	Birthday         string         `json:"birthday,omitempty"`
	Source           string         `json:"source,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	PreferredStoreID *int64         `json:"preferredStoreId,omitempty"`
	OwnerEmployeeID  *int64         `json:"ownerEmployeeId,omitempty"`
	Status           CustomerStatus `json:"status,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

type Fulfillment struct {
	ID         int64             `json:"id"`
	CustomerID int64             `json:"customerId"`
	StoreID    int64             `json:"storeId"`
	EmployeeID *int64            `json:"employeeId,omitempty"`
	Amount     float64           `json:"amount"`
	Currency   string            `json:"currency"`
	Status     FulfillmentStatus `json:"status"`
	Channel    string            `json:"channel,omitempty"`
	Note       string            `json:"note,omitempty"`
	PaidAt     *time.Time        `json:"paidAt,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Customer   *Customer         `json:"customer,omitempty"`
	Store      *Store            `json:"store,omitempty"`
	Employee   *Employee         `json:"employee,omitempty"`
}

type Store struct {
	ID      int64       `json:"id"`
	Code    string      `json:"code"`
	Name    string      `json:"name"`
	Status  StoreStatus `json:"status"`
	City    string      `json:"city,omitempty"`
	Address string      `json:"address,omitempty"`
}

type Employee struct {
	ID      int64          `json:"id"`
	Name    string         `json:"name"`
	Title   string         `json:"title,omitempty"`
	Status  EmployeeStatus `json:"status"`
	StoreID int64          `json:"storeId"`
}

// Dashboard is the server-computed aggregate for a date range.
type Dashboard struct {
	Today           DashboardToday `json:"today"`
	Trend           []DashboardDay `json:"trend"`
	RecentOrders    []RecentOrder  `json:"recentOrders"`
	RecentCustomers []Customer     `json:"recentCustomers"`
}

type DashboardToday struct {
	TotalAmount   float64 `json:"totalAmount"`
	OrderCount    int     `json:"orderCount"`
	AverageAmount float64 `json:"averageAmount"`
}

type DashboardDay struct {
	Date          string  `json:"date"`
	TotalAmount   float64 `json:"totalAmount"`
	OrderCount    int     `json:"orderCount"`
	AverageAmount float64 `json:"averageAmount"`
}

type RecentOrder struct {
	ID           int64             `json:"id"`
	CustomerName string            `json:"customerName"`
	StoreName    string            `json:"storeName"`
	Amount       string            `json:"amount"`
	Currency     string            `json:"currency,omitempty"`
	Status       FulfillmentStatus `json:"status"`
	PaidAt       *time.Time        `json:"paidAt,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// Option is the minimal shape a selection control needs.
type Option struct {
	ID   int64
	Name string
}

func StoresToOptions(stores []Store) []Option {
	out := make([]Option, 0, len(stores))
	for _, s := range stores {
		out = append(out, Option{ID: s.ID, Name: s.Name})
	}
	return out
}

func EmployeesToOptions(employees []Employee) []Option {
	out := make([]Option, 0, len(employees))
	for _, e := range employees {
		name := e.Name
		if e.Title != "" {
			name += " (" + e.Title + ")"
		}
		out = append(out, Option{ID: e.ID, Name: name})
	}
	return out
}

func CustomersToOptions(customers []Customer) []Option {
	out := make([]Option, 0, len(customers))
	for _, c := range customers {
		out = append(out, Option{ID: c.ID, Name: c.Name + " · " + c.Phone})
	}
	return out
}

type ListParams struct {
	Limit  int
	Offset int
}

type CustomerListParams struct {
	ListParams
	Query           string
	StoreID         *int64
	OwnerEmployeeID *int64
}

type FulfillmentListParams struct {
	ListParams
	Status     FulfillmentStatus
	StoreID    *int64
	EmployeeID *int64
	CustomerID *int64
}

package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	StoreCodeMaxLen = 30
	StoreNameMaxLen = 120
	PasswordMinLen  = 6
	birthdayLayout  = "2006-01-02"
)

// ValidationError is a client-side rejection. Inputs failing validation are
// never sent to the backend.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type CustomerInput struct {
	Name             string         `json:"name"`
	Phone            string         `json:"phone"`
	Gender           Gender         `json:"gender,omitempty"`
	Birthday         string         `json:"birthday,omitempty"`
	Source           string         `json:"source,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	PreferredStoreID *int64         `json:"preferredStoreId,omitempty"`
	OwnerEmployeeID  *int64         `json:"ownerEmployeeId,omitempty"`
	Status           CustomerStatus `json:"status,omitempty"`
}

// NewCustomerInput returns the defaults of a blank create form.
func NewCustomerInput() CustomerInput {
	return CustomerInput{Status: CustomerActive}
}

// CustomerInputFrom pre-populates an edit form.
func CustomerInputFrom(c Customer) CustomerInput {
	return CustomerInput{
		Name:             c.Name,
		Phone:            c.Phone,
		Gender:           c.Gender,
		Birthday:         c.Birthday,
		Source:           c.Source,
		Tags:             c.Tags,
		PreferredStoreID: c.PreferredStoreID,
		OwnerEmployeeID:  c.OwnerEmployeeID,
		Status:           c.Status,
	}
}

func (in *CustomerInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Name == "" {
		return invalid("name", "name is required")
	}
	if in.Phone == "" {
		return invalid("phone", "phone is required")
	}
	if in.Gender != "" && !in.Gender.Valid() {
		return invalid("gender", "unknown gender %q", in.Gender)
	}
	if in.Birthday != "" {
		if _, err := time.Parse(birthdayLayout, in.Birthday); err != nil {
			return invalid("birthday", "birthday must be YYYY-MM-DD")
		}
	}
	if in.Status == "" {
		in.Status = CustomerActive
	}
	if !in.Status.Valid() {
		return invalid("status", "unknown status %q", in.Status)
	}
	return nil
}

// CustomerUpdate is the body of a customer edit. Every key is always sent, so
// clearing a field on the form clears it on the record.
type CustomerUpdate struct {
	Name             string         `json:"name"`
	Phone            string         `json:"phone"`
	Gender           *Gender        `json:"gender"`
	Birthday         *string        `json:"birthday"`
	Source           string         `json:"source"`
	Tags             []string       `json:"tags"`
	PreferredStoreID *int64         `json:"preferredStoreId"`
	OwnerEmployeeID  *int64         `json:"ownerEmployeeId"`
	Status           CustomerStatus `json:"status"`
}

// Update converts a validated edit form. Unset choices become null and an
// empty tag list is sent as [].
func (in CustomerInput) Update() CustomerUpdate {
	u := CustomerUpdate{
		Name:             in.Name,
		Phone:            in.Phone,
		Source:           in.Source,
		Tags:             in.Tags,
		PreferredStoreID: in.PreferredStoreID,
		OwnerEmployeeID:  in.OwnerEmployeeID,
		Status:           in.Status,
	}
	if u.Tags == nil {
		u.Tags = []string{}
	}
	if in.Gender != "" {
		u.Gender = ptr(in.Gender)
	}
	if in.Birthday != "" {
		u.Birthday = ptr(in.Birthday)
	}
	return u
}

type FulfillmentInput struct {
	CustomerID int64             `json:"customerId"`
	StoreID    int64             `json:"storeId"`
	EmployeeID *int64            `json:"employeeId,omitempty"`
	Amount     float64           `json:"amount"`
	Currency   string            `json:"currency"`
	Status     FulfillmentStatus `json:"status"`
	Channel    string            `json:"channel,omitempty"`
	Note       string            `json:"note,omitempty"`
	PaidAt     *time.Time        `json:"paidAt,omitempty"`
}

func NewFulfillmentInput() FulfillmentInput {
	return FulfillmentInput{Currency: DefaultCurrency, Status: FulfillmentOrdered}
}

func (in *FulfillmentInput) Validate() error {
	if in.CustomerID <= 0 {
		return invalid("customerId", "customer is required")
	}
	if in.StoreID <= 0 {
		return invalid("storeId", "store is required")
	}
	if in.Amount <= 0 {
		return invalid("amount", "amount must be greater than zero")
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = DefaultCurrency
	}
	if in.Status == "" {
		in.Status = FulfillmentOrdered
	}
	if !in.Status.Valid() {
		return invalid("status", "unknown status %q", in.Status)
	}
	return nil
}

// FulfillmentUpdate is what an edit may change once a record exists.
type FulfillmentUpdate struct {
	Status  FulfillmentStatus `json:"status"`
	Channel string            `json:"channel,omitempty"`
	Note    string            `json:"note,omitempty"`
	PaidAt  *time.Time        `json:"paidAt,omitempty"`
}

func FulfillmentUpdateFrom(f Fulfillment) FulfillmentUpdate {
	return FulfillmentUpdate{Status: f.Status, Channel: f.Channel, Note: f.Note, PaidAt: f.PaidAt}
}

func (in *FulfillmentUpdate) Validate() error {
	if !in.Status.Valid() {
		return invalid("status", "unknown status %q", in.Status)
	}
	return nil
}

type StoreInput struct {
	Code    string      `json:"code"`
	Name    string      `json:"name"`
	City    string      `json:"city,omitempty"`
	Address string      `json:"address,omitempty"`
	Status  StoreStatus `json:"status"`
}

func NewStoreInput() StoreInput {
	return StoreInput{Status: StoreOpen}
}

func StoreInputFrom(s Store) StoreInput {
	return StoreInput{Code: s.Code, Name: s.Name, City: s.City, Address: s.Address, Status: s.Status}
}

func (in *StoreInput) Validate() error {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.City = strings.TrimSpace(in.City)
	in.Address = strings.TrimSpace(in.Address)
	if in.Code == "" || in.Name == "" {
		return invalid("code", "store code and name are required")
	}
	if utf8.RuneCountInString(in.Code) > StoreCodeMaxLen {
		return invalid("code", "store code must be at most %d characters", StoreCodeMaxLen)
	}
	if utf8.RuneCountInString(in.Name) > StoreNameMaxLen {
		return invalid("name", "store name must be at most %d characters", StoreNameMaxLen)
	}
	if in.Status == "" {
		in.Status = StoreOpen
	}
	if !in.Status.Valid() {
		return invalid("status", "unknown status %q", in.Status)
	}
	return nil
}

// StoreUpdate carries only the fields that differ from the stored record.
type StoreUpdate struct {
	Code    *string      `json:"code,omitempty"`
	Name    *string      `json:"name,omitempty"`
	City    *string      `json:"city,omitempty"`
	Address *string      `json:"address,omitempty"`
	Status  *StoreStatus `json:"status,omitempty"`
}

// DiffStore compares a validated form against the record being edited.
func DiffStore(old Store, in StoreInput) StoreUpdate {
	var u StoreUpdate
	if in.Code != old.Code {
		u.Code = ptr(in.Code)
	}
	if in.Name != old.Name {
		u.Name = ptr(in.Name)
	}
	if in.City != old.City {
		u.City = ptr(in.City)
	}
	if in.Address != old.Address {
		u.Address = ptr(in.Address)
	}
	if in.Status != old.Status {
		u.Status = ptr(in.Status)
	}
	return u
}

func (u StoreUpdate) IsEmpty() bool {
	return u.Code == nil && u.Name == nil && u.City == nil && u.Address == nil && u.Status == nil
}

type RegisterInput struct {
	Phone    string   `json:"phone"`
	Password string   `json:"password"`
	Role     UserRole `json:"role,omitempty"`
}

func (in *RegisterInput) Validate() error {
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Phone == "" {
		return invalid("phone", "phone is required")
	}
	if utf8.RuneCountInString(in.Password) < PasswordMinLen {
		return invalid("password", "password must be at least %d characters", PasswordMinLen)
	}
	if in.Role != "" && !in.Role.Valid() {
		return invalid("role", "unknown role %q", in.Role)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

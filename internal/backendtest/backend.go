// Package backendtest runs an in-memory stand-in for the business backend.
// It speaks the same envelope, cookie and status conventions, so console
// code can be exercised end to end without a real backend.
package backendtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const TokenCookie = "crm_token"

type account struct {
	user     domain.User
	password string
}

type Backend struct {
	Server *httptest.Server

	mu           sync.Mutex
	nextID       int64
	accounts     map[string]*account
	tokens       map[string]int64
	customers    []domain.Customer
	stores       []domain.Store
	employees    []domain.Employee
	fulfillments []domain.Fulfillment
	dashboard    domain.Dashboard
	dashQueries  []string
	calls        map[string]int
	unauthorized bool
	hold         map[string]chan struct{}
}

// New starts a backend that is shut down with the test.
func New(t testing.TB) *Backend {
	b := &Backend{
		nextID:   100,
		accounts: make(map[string]*account),
		tokens:   make(map[string]int64),
		calls:    make(map[string]int),
		hold:     make(map[string]chan struct{}),
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

func (b *Backend) URL() string { return b.Server.URL }

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.count)
	r.Post("/api/auth/login", b.login)
	r.Group(func(pr chi.Router) {
		pr.Use(b.authenticate)
		pr.Get("/api/auth/verify", b.verify)
		pr.Post("/api/auth/register", b.register)
		pr.Get("/api/customers", b.listCustomers)
		pr.Post("/api/customers", b.createCustomer)
		pr.Put("/api/customers/{id}", b.updateCustomer)
		pr.Get("/api/stores", b.listStores)
		pr.Post("/api/stores", b.createStore)
		pr.Put("/api/stores/{id}", b.updateStore)
		pr.Delete("/api/stores/{id}", b.deleteStore)
		pr.Get("/api/employees", b.listEmployees)
		pr.Get("/api/fulfillments", b.listFulfillments)
		pr.Post("/api/fulfillments", b.createFulfillment)
		pr.Put("/api/fulfillments/{id}", b.updateFulfillment)
		pr.Get("/api/dashboard", b.getDashboard)
	})
	return r
}

// Calls reports how many requests reached method and path.
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method+" "+path]
}

// TotalCalls counts every request received.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

// RejectAll makes every authenticated endpoint answer 401.
func (b *Backend) RejectAll(on bool) {
	b.mu.Lock()
	b.unauthorized = on
	b.mu.Unlock()
}

// Hold blocks requests to method and path until the returned func is called.
func (b *Backend) Hold(method, path string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.hold[method+" "+path] = ch
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.hold, method+" "+path)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Backend) id() int64 {
	b.nextID++
	return b.nextID
}

func (b *Backend) AddUser(phone, password string, role domain.UserRole) domain.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := domain.User{ID: b.id(), Phone: phone, Role: role, CreatedAt: time.Now().UTC()}
	b.accounts[phone] = &account{user: u, password: password}
	return u
}

func (b *Backend) AddStore(s domain.Store) domain.Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	s.ID = b.id()
	if s.Status == "" {
		s.Status = domain.StoreOpen
	}
	b.stores = append(b.stores, s)
	return s
}

func (b *Backend) AddEmployee(e domain.Employee) domain.Employee {
	b.mu.Lock()
	defer b.mu.Unlock()
	e.ID = b.id()
	if e.Status == "" {
		e.Status = domain.EmployeeActive
	}
	b.employees = append(b.employees, e)
	return e
}

func (b *Backend) AddCustomer(c domain.Customer) domain.Customer {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.ID = b.id()
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	b.customers = append(b.customers, c)
	return c
}

func (b *Backend) AddFulfillment(f domain.Fulfillment) domain.Fulfillment {
	b.mu.Lock()
	defer b.mu.Unlock()
	f.ID = b.id()
	f.CreatedAt = time.Now().UTC()
	f.UpdatedAt = f.CreatedAt
	b.fulfillments = append(b.fulfillments, f)
	return f
}

func (b *Backend) SetDashboard(d domain.Dashboard) {
	b.mu.Lock()
	b.dashboard = d
	b.mu.Unlock()
}

// DashboardQueries returns the raw query of every dashboard request.
func (b *Backend) DashboardQueries() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.dashQueries...)
}

func (b *Backend) Stores() []domain.Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Store(nil), b.stores...)
}

func (b *Backend) Customers() []domain.Customer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Customer(nil), b.customers...)
}

func (b *Backend) Fulfillments() []domain.Fulfillment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Fulfillment(nil), b.fulfillments...)
}

func (b *Backend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		b.mu.Lock()
		b.calls[key]++
		ch := b.hold[key]
		b.mu.Unlock()
		if ch != nil {
			<-ch
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(TokenCookie)
		b.mu.Lock()
		_, ok := b.tokens[tokenValue(ck, err)]
		rejected := b.unauthorized
		b.mu.Unlock()
		if !ok || rejected {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenValue(ck *http.Cookie, err error) string {
	if err != nil {
		return ""
	}
	return ck.Value
}

func (b *Backend) currentUser(r *http.Request) domain.User {
	ck, err := r.Cookie(TokenCookie)
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.tokens[tokenValue(ck, err)]
	for _, a := range b.accounts {
		if a.user.ID == id {
			return a.user
		}
	}
	return domain.User{}
}

func write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func data(w http.ResponseWriter, status int, v any) {
	write(w, status, map[string]any{"data": v})
}

func fail(w http.ResponseWriter, status int, message string) {
	write(w, status, map[string]string{"message": message})
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid payload")
		return
	}
	b.mu.Lock()
	a, ok := b.accounts[req.Phone]
	if !ok || a.password != req.Password {
		b.mu.Unlock()
		fail(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token := uuid.NewString()
	b.tokens[token] = a.user.ID
	u := a.user
	b.mu.Unlock()

	expires := time.Now().Add(24 * time.Hour)
	http.SetCookie(w, &http.Cookie{Name: TokenCookie, Value: token, Path: "/", HttpOnly: true, Expires: expires})
	write(w, http.StatusOK, domain.AuthResponse{User: u, Token: token, ExpiresAt: expires})
}

func (b *Backend) verify(w http.ResponseWriter, r *http.Request) {
	data(w, http.StatusOK, b.currentUser(r))
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	if b.currentUser(r).Role != domain.RoleAdmin {
		fail(w, http.StatusForbidden, "forbidden")
		return
	}
	var in domain.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, http.StatusBadRequest, "invalid payload")
		return
	}
	b.mu.Lock()
	if _, ok := b.accounts[in.Phone]; ok {
		b.mu.Unlock()
		fail(w, http.StatusConflict, "phone already registered")
		return
	}
	role := in.Role
	if role == "" {
		role = domain.RoleStaff
	}
	u := domain.User{ID: b.id(), Phone: in.Phone, Role: role, CreatedAt: time.Now().UTC()}
	b.accounts[in.Phone] = &account{user: u, password: in.Password}
	b.mu.Unlock()
	write(w, http.StatusCreated, domain.AuthResponse{User: u})
}

func (b *Backend) listCustomers(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	b.mu.Lock()
	out := []domain.Customer{}
	for _, c := range b.customers {
		if q == "" || strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(c.Phone, q) {
			out = append(out, c)
		}
	}
	b.mu.Unlock()
	data(w, http.StatusOK, out)
}

func (b *Backend) phoneTaken(phone string, except int64) bool {
	for _, c := range b.customers {
		if c.Phone == phone && c.ID != except {
			return true
		}
	}
	return false
}

func (b *Backend) createCustomer(w http.ResponseWriter, r *http.Request) {
	var in domain.CustomerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, http.StatusBadRequest, "invalid payload")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.phoneTaken(in.Phone, 0) {
		fail(w, http.StatusConflict, "customer phone already exists")
		return
	}
	now := time.Now().UTC()
	c := customerFrom(in)
	c.ID = b.id()
	c.CreatedAt, c.UpdatedAt = now, now
	b.customers = append(b.customers, c)
	data(w, http.StatusCreated, c)
}

// updateCustomer applies only the keys present in the body, the way the
// real backend treats a partial update.
func (b *Backend) updateCustomer(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid payload")
		return
	}
	var in domain.CustomerUpdate
	var present map[string]json.RawMessage
	if json.Unmarshal(raw, &in) != nil || json.Unmarshal(raw, &present) != nil {
		fail(w, http.StatusBadRequest, "invalid payload")
		return
	}
	id := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.customers {
		if b.customers[i].ID != id {
			continue
		}
		if _, ok := present["phone"]; ok && b.phoneTaken(in.Phone, id) {
			fail(w, http.StatusConflict, "customer phone already exists")
			return
		}
		c := b.customers[i]
		applyCustomerUpdate(&c, in, present)
		c.UpdatedAt = time.Now().UTC()
		b.customers[i] = c
		data(w, http.StatusOK, c)
		return
	}
	fail(w, http.StatusNotFound, "customer not found")
}

func applyCustomerUpdate(c *domain.Customer, in domain.CustomerUpdate, present map[string]json.RawMessage) {
	has := func(key string) bool {
		_, ok := present[key]
		return ok
	}
	if has("name") {
		c.Name = in.Name
	}
	if has("phone") {
		c.Phone = in.Phone
	}
	if has("gender") {
		c.Gender = ""
		if in.Gender != nil {
			c.Gender = *in.Gender
		}
	}
	if has("birthday") {
		c.Birthday = ""
		if in.Birthday != nil {
			c.Birthday = *in.Birthday
		}
	}
	if has("source") {
		c.Source = in.Source
	}
	if has("tags") {
		c.Tags = in.Tags
	}
	if has("preferredStoreId") {
		c.PreferredStoreID = in.PreferredStoreID
	}
	if has("ownerEmployeeId") {
		c.OwnerEmployeeID = in.OwnerEmployeeID
	}
	if has("status") {
		c.Status = in.Status
	}
}

func customerFrom(in domain.CustomerInput) domain.Customer {
	return domain.Customer{
		Name:             in.Name,
		Phone:            in.Phone,
		Gender:           in.Gender,
		Birthday:         in.Birthday,
		Source:           in.Source,
		Tags:             in.Tags,
		PreferredStoreID: in.PreferredStoreID,
		OwnerEmployeeID:  in.OwnerEmployeeID,
		Status:           in.Status,
	}
}

func (b *Backend) listStores(w http.ResponseWriter, r *http.Request) {
	data(w, http.StatusOK, append([]domain.Store{}, b.Stores()...))
}

func (b *Backend) codeTaken(code string, except int64) bool {
	for _, s := range b.stores {
		if s.Code == code && s.ID != except {
			return true
		}
	}
	return false
}

func (b *Backend) createStore(w http.ResponseWriter, r *http.Request) {
	var in domain.StoreInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, http.StatusBadRequest, "invalid payload")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.codeTaken(in.Code, 0) {
		fail(w, http.StatusConflict, "store code exists")
		return
	}
	s := domain.Store{ID: b.id(), Code: in.Code, Name: in.Name, City: in.City, Address: in.Address, Status: in.Status}
	b.stores = append(b.stores, s)
	data(w, http.StatusCreated, s)
}

func (b *Backend) updateStore(w http.ResponseWriter, r *http.Request) {
	var u domain.StoreUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		fail(w, http.StatusBadRequest, "invalid payload")
		return
	}
	id := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.stores {
		s := &b.stores[i]
		if s.ID != id {
			continue
		}
		if u.Code != nil && b.codeTaken(*u.Code, id) {
			fail(w, http.StatusConflict, "store code exists")
			return
		}
		if u.Code != nil {
			s.Code = *u.Code
		}
		if u.Name != nil {
			s.Name = *u.Name
		}
		if u.City != nil {
			s.City = *u.City
		}
		if u.Address != nil {
			s.Address = *u.Address
		}
		if u.Status != nil {
			s.Status = *u.Status
		}
		data(w, http.StatusOK, *s)
		return
	}
	fail(w, http.StatusNotFound, "store not found")
}

func (b *Backend) deleteStore(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := -1
	for i, s := range b.stores {
		if s.ID == id {
			idx = i
		}
	}
	if idx < 0 {
		fail(w, http.StatusNotFound, "store not found")
		return
	}
	for _, e := range b.employees {
		if e.StoreID == id {
			fail(w, http.StatusBadRequest, "store has related records")
			return
		}
	}
	for _, f := range b.fulfillments {
		if f.StoreID == id {
			fail(w, http.StatusBadRequest, "store has related records")
			return
		}
	}
	b.stores = append(b.stores[:idx], b.stores[idx+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) listEmployees(w http.ResponseWriter, r *http.Request) {
	storeID, _ := strconv.ParseInt(r.URL.Query().Get("storeId"), 10, 64)
	b.mu.Lock()
	out := []domain.Employee{}
	for _, e := range b.employees {
		if storeID == 0 || e.StoreID == storeID {
			out = append(out, e)
		}
	}
	b.mu.Unlock()
	data(w, http.StatusOK, out)
}

func (b *Backend) listFulfillments(w http.ResponseWriter, r *http.Request) {
	status := domain.FulfillmentStatus(r.URL.Query().Get("status"))
	b.mu.Lock()
	out := []domain.Fulfillment{}
	for _, f := range b.fulfillments {
		if status == "" || f.Status == status {
			out = append(out, f)
		}
	}
	b.mu.Unlock()
	data(w, http.StatusOK, out)
}

func (b *Backend) hasStore(id int64) bool {
	for _, s := range b.stores {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (b *Backend) hasCustomer(id int64) bool {
	for _, c := range b.customers {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (b *Backend) createFulfillment(w http.ResponseWriter, r *http.Request) {
	var in domain.FulfillmentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, http.StatusBadRequest, "invalid payload")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasStore(in.StoreID) || !b.hasCustomer(in.CustomerID) {
		fail(w, http.StatusNotFound, "customer or store not found")
		return
	}
	now := time.Now().UTC()
	f := domain.Fulfillment{
		ID:         b.id(),
		CustomerID: in.CustomerID,
		StoreID:    in.StoreID,
		EmployeeID: in.EmployeeID,
		Amount:     in.Amount,
		Currency:   in.Currency,
		Status:     in.Status,
		Channel:    in.Channel,
		Note:       in.Note,
		PaidAt:     in.PaidAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b.fulfillments = append(b.fulfillments, f)
	data(w, http.StatusCreated, f)
}

func (b *Backend) updateFulfillment(w http.ResponseWriter, r *http.Request) {
	var u domain.FulfillmentUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		fail(w, http.StatusBadRequest, "invalid payload")
		return
	}
	id := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.fulfillments {
		f := &b.fulfillments[i]
		if f.ID != id {
			continue
		}
		f.Status, f.Channel, f.Note, f.PaidAt = u.Status, u.Channel, u.Note, u.PaidAt
		f.UpdatedAt = time.Now().UTC()
		data(w, http.StatusOK, *f)
		return
	}
	fail(w, http.StatusNotFound, "fulfillment not found")
}

func (b *Backend) getDashboard(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.dashQueries = append(b.dashQueries, r.URL.RawQuery)
	d := b.dashboard
	b.mu.Unlock()
	data(w, http.StatusOK, d)
}

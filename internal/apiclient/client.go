package apiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/metrics"
	"github.com/go-resty/resty/v2"
)

// Options configures a backend client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// VerifyPath is the lightweight endpoint used to verify a restored
	// session. Empty falls back to listing stores.
	VerifyPath string
}

// Client talks to the business backend on behalf of one console session.
// Credentials travel only as cookies held in the jar; the client never sets
// an Authorization header.
//
// The first 401 revokes the client: the unauthorized callback runs once and
// every later call fails with ErrUnauthorized without reaching the network.
type Client struct {
	http       *resty.Client
	logger     *slog.Logger
	verifyPath string
	revoked    atomic.Bool

	mu             sync.Mutex
	onUnauthorized func(ctx context.Context)
}

// New creates a client that stores backend cookies in jar.
func New(opts Options, jar http.CookieJar, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{logger: logger, verifyPath: opts.VerifyPath}

	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if jar != nil {
		rc.SetCookieJar(jar)
	}
	rc.OnBeforeRequest(c.beforeRequest)
	rc.OnAfterResponse(c.afterResponse)
	c.http = rc
	return c
}

// OnUnauthorized registers the teardown invoked on the first 401.
func (c *Client) OnUnauthorized(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

// Revoked reports whether a 401 has been observed.
func (c *Client) Revoked() bool {
	return c.revoked.Load()
}

func (c *Client) beforeRequest(_ *resty.Client, req *resty.Request) error {
	if c.revoked.Load() {
		return &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized}
	}
	return nil
}

// afterResponse is the single place where authorization failures are
// recognised; pages never inspect 401 themselves.
func (c *Client) afterResponse(_ *resty.Client, resp *resty.Response) error {
	status := resp.StatusCode()
	method := resp.Request.Method
	metrics.BackendRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	metrics.BackendLatency.WithLabelValues(method).Observe(resp.Time().Seconds())

	if status < http.StatusBadRequest {
		return nil
	}
	apiErr := errorFromResponse(status, resp.Body())
	if status == http.StatusUnauthorized {
		c.revoke(resp.Request.Context())
		return apiErr
	}
	c.logger.Warn("backend call failed",
		"method", method,
		"url", resp.Request.URL,
		"status", status,
		"message", apiErr.Message,
	)
	return apiErr
}

func (c *Client) revoke(ctx context.Context) {
	if !c.revoked.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	fn := c.onUnauthorized
	c.mu.Unlock()
	if fn != nil {
		fn(context.WithoutCancel(ctx))
	}
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	req := c.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if resp != nil && resp.StatusCode() >= http.StatusBadRequest {
		return errorFromResponse(resp.StatusCode(), resp.Body())
	}
	return &Error{Kind: KindNetwork, Err: fmt.Errorf("%s %s: %w", method, path, err)}
}

func getData[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var out envelope[T]
	err := c.do(ctx, http.MethodGet, path, query, nil, &out)
	return out.Data, err
}

func sendData[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var out envelope[T]
	err := c.do(ctx, method, path, nil, body, &out)
	return out.Data, err
}

// Login exchanges credentials. The backend answers with the identity and sets
// its session cookie, which lands in the jar; any token in the body is dropped.
func (c *Client) Login(ctx context.Context, phone, password string) (*domain.User, error) {
	var out domain.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, map[string]string{
		"phone":    phone,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) Register(ctx context.Context, in domain.RegisterInput) (*domain.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, in, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Verify checks a restored session against the backend.
func (c *Client) Verify(ctx context.Context) error {
	if c.verifyPath != "" {
		return c.do(ctx, http.MethodGet, c.verifyPath, nil, nil, nil)
	}
	_, err := c.ListStores(ctx)
	return err
}

func (c *Client) ListCustomers(ctx context.Context, p domain.CustomerListParams) ([]domain.Customer, error) {
	q := listQuery(p.ListParams)
	if p.Query != "" {
		q.Set("q", p.Query)
	}
	setID(q, "storeId", p.StoreID)
	setID(q, "ownerEmployeeId", p.OwnerEmployeeID)
	return getData[[]domain.Customer](ctx, c, "/api/customers", q)
}

func (c *Client) CreateCustomer(ctx context.Context, in domain.CustomerInput) (*domain.Customer, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	out, err := sendData[domain.Customer](ctx, c, http.MethodPost, "/api/customers", in)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCustomer sends every field so that cleared ones are cleared.
func (c *Client) UpdateCustomer(ctx context.Context, id int64, in domain.CustomerInput) (*domain.Customer, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	out, err := sendData[domain.Customer](ctx, c, http.MethodPut, idPath("/api/customers", id), in.Update())
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListFulfillments(ctx context.Context, p domain.FulfillmentListParams) ([]domain.Fulfillment, error) {
	q := listQuery(p.ListParams)
	if p.Status != "" {
		q.Set("status", string(p.Status))
	}
	setID(q, "storeId", p.StoreID)
	setID(q, "employeeId", p.EmployeeID)
	setID(q, "customerId", p.CustomerID)
	return getData[[]domain.Fulfillment](ctx, c, "/api/fulfillments", q)
}

func (c *Client) CreateFulfillment(ctx context.Context, in domain.FulfillmentInput) (*domain.Fulfillment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	out, err := sendData[domain.Fulfillment](ctx, c, http.MethodPost, "/api/fulfillments", in)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateFulfillment(ctx context.Context, id int64, in domain.FulfillmentUpdate) (*domain.Fulfillment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	out, err := sendData[domain.Fulfillment](ctx, c, http.MethodPut, idPath("/api/fulfillments", id), in)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListStores(ctx context.Context) ([]domain.Store, error) {
	return getData[[]domain.Store](ctx, c, "/api/stores", nil)
}

func (c *Client) CreateStore(ctx context.Context, in domain.StoreInput) (*domain.Store, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	out, err := sendData[domain.Store](ctx, c, http.MethodPost, "/api/stores", in)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStore sends only the changed fields. An empty update is not sent.
func (c *Client) UpdateStore(ctx context.Context, id int64, u domain.StoreUpdate) (*domain.Store, error) {
	if u.IsEmpty() {
		return nil, nil
	}
	out, err := sendData[domain.Store](ctx, c, http.MethodPut, idPath("/api/stores", id), u)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteStore(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/api/stores", id), nil, nil, nil)
}

func (c *Client) ListEmployees(ctx context.Context, storeID *int64) ([]domain.Employee, error) {
	q := url.Values{}
	setID(q, "storeId", storeID)
	return getData[[]domain.Employee](ctx, c, "/api/employees", q)
}

// Dashboard fetches the aggregate for the given range parameters
// (range=7|30 or startDate/endDate).
func (c *Client) Dashboard(ctx context.Context, params url.Values) (*domain.Dashboard, error) {
	out, err := getData[domain.Dashboard](ctx, c, "/api/dashboard", params)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func listQuery(p domain.ListParams) url.Values {
	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	return q
}

func setID(q url.Values, key string, id *int64) {
	if id != nil && *id > 0 {
		q.Set(key, strconv.FormatInt(*id, 10))
	}
}

func idPath(base string, id int64) string {
	return base + "/" + strconv.FormatInt(id, 10)
}

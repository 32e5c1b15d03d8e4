package service

import (
	"context"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	allKey = "all"
	// optionLimit caps the customers offered in a selection control.
	optionLimit = 500
)

// Dictionaries holds the reference lists that fill selection controls.
type Dictionaries struct {
	Stores    []domain.Store
	Employees []domain.Employee
	Customers []domain.Customer
}

func (d Dictionaries) StoreOptions() []domain.Option {
	return domain.StoresToOptions(d.Stores)
}

func (d Dictionaries) EmployeeOptions() []domain.Option {
	return domain.EmployeesToOptions(d.Employees)
}

func (d Dictionaries) CustomerOptions() []domain.Option {
	return domain.CustomersToOptions(d.Customers)
}

func (d Dictionaries) StoreName(id int64) string {
	for _, s := range d.Stores {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}

func (d Dictionaries) EmployeeName(id int64) string {
	for _, e := range d.Employees {
		if e.ID == id {
			return e.Name
		}
	}
	return ""
}

func (d Dictionaries) CustomerName(id int64) string {
	for _, c := range d.Customers {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

func (e *Entry) ListStores(ctx context.Context) ([]domain.Store, error) {
	return e.Stores.Get(ctx, allKey, e.API.ListStores)
}

func (e *Entry) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	return e.Employees.Get(ctx, allKey, func(ctx context.Context) ([]domain.Employee, error) {
		return e.API.ListEmployees(ctx, nil)
	})
}

func (e *Entry) ListCustomerChoices(ctx context.Context) ([]domain.Customer, error) {
	return e.Customers.Get(ctx, allKey, func(ctx context.Context) ([]domain.Customer, error) {
		return e.API.ListCustomers(ctx, domain.CustomerListParams{ListParams: domain.ListParams{Limit: optionLimit}})
	})
}

// LoadDictionaries fetches stores and employees, plus customers when asked,
// in parallel. Cached lists are reused.
func (e *Entry) LoadDictionaries(ctx context.Context, withCustomers bool) (Dictionaries, error) {
	var d Dictionaries
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := e.ListStores(gctx)
		d.Stores = v
		return err
	})
	g.Go(func() error {
		v, err := e.ListEmployees(gctx)
		d.Employees = v
		return err
	})
	if withCustomers {
		g.Go(func() error {
			v, err := e.ListCustomerChoices(gctx)
			d.Customers = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Dictionaries{}, err
	}
	return d, nil
}

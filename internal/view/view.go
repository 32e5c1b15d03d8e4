// Package view renders the console's HTML pages.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/dashboard"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
)

//go:embed templates/*.html
var files embed.FS

const layoutFile = "templates/layout.html"

type Flash struct {
	Kind    string
	Message string
}

// Page is the data every template receives.
type Page struct {
	Title  string
	Active string
	User   *domain.User
	Flash  *Flash
	Data   any
}

type Renderer struct {
	pages map[string]*template.Template
}

// New parses every page together with the shared layout.
func New() (*Renderer, error) {
	names, err := fs.Glob(files, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range names {
		if name == layoutFile {
			continue
		}
		t, err := template.New("layout").Funcs(funcs).ParseFS(files, layoutFile, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[strings.TrimSuffix(path.Base(name), ".html")] = t
	}
	return r, nil
}

// Render executes page into w. Output is buffered so a template error never
// leaves a half-written response.
func (r *Renderer) Render(w io.Writer, page string, data Page) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

var funcs = template.FuncMap{
	"money":          dashboard.FormatMoney,
	"moneyText":      dashboard.FormatMoneyString,
	"date":           formatDate,
	"datetime":       formatDateTime,
	"datetimeLocal":  formatDateTimeLocal,
	"idValue":        idValue,
	"isSelected":     isSelected,
	"join":           strings.Join,
	"storeStatus":    storeStatusLabel,
	"customerStatus": customerStatusLabel,
	"orderStatus":    fulfillmentStatusLabel,
	"roleLabel":      roleLabel,
	"coord":          func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}

func formatDateTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatDateTimeLocal(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02T15:04")
}

func idValue(id *int64) string {
	if id == nil || *id == 0 {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func isSelected(current any, id int64) bool {
	switch v := current.(type) {
	case *int64:
		return v != nil && *v == id
	case int64:
		return v == id
	}
	return false
}

func storeStatusLabel(s domain.StoreStatus) string {
	switch s {
	case domain.StoreOpen:
		return "Open"
	case domain.StoreClosed:
		return "Closed"
	}
	return string(s)
}

func customerStatusLabel(s domain.CustomerStatus) string {
	switch s {
	case domain.CustomerActive:
		return "Active"
	case domain.CustomerInactive:
		return "Inactive"
	}
	return "-"
}

func fulfillmentStatusLabel(s domain.FulfillmentStatus) string {
	switch s {
	case domain.FulfillmentOrdered:
		return "Ordered"
	case domain.FulfillmentFulfilled:
		return "Fulfilled"
	case domain.FulfillmentRefunded:
		return "Refunded"
	}
	return string(s)
}

func roleLabel(r domain.UserRole) string {
	switch r {
	case domain.RoleAdmin:
		return "Administrator"
	case domain.RoleManager:
		return "Manager"
	case domain.RoleStaff:
		return "Staff"
	}
	return string(r)
}

package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
)

const (
	dateLayout          = "2006-01-02"
	datetimeLocalLayout = "2006-01-02T15:04"
)

// formID reads an optional id field. Blank or malformed values are nil.
func formID(r *http.Request, key string) *int64 {
	v := strings.TrimSpace(r.PostFormValue(key))
	if v == "" {
		return nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func formIDValue(r *http.Request, key string) int64 {
	if id := formID(r, key); id != nil {
		return *id
	}
	return 0
}

// formTags splits a comma separated tag list, dropping blanks.
func formTags(raw string) []string {
	var tags []string
	for _, t := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '，' }) {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// formTime parses a datetime-local field in the server's zone.
func formTime(r *http.Request, key string) (*time.Time, error) {
	v := strings.TrimSpace(r.PostFormValue(key))
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(datetimeLocalLayout, v, time.Local)
	if err != nil {
		return nil, &domain.ValidationError{Field: key, Message: "invalid date and time"}
	}
	return &t, nil
}

func formAmount(r *http.Request, key string) (float64, error) {
	v := strings.TrimSpace(r.PostFormValue(key))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &domain.ValidationError{Field: key, Message: "amount must be a number"}
	}
	return f, nil
}

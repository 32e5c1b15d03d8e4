package dashboard

import (
	"errors"
	"net/url"
	"time"
)

const dateLayout = "2006-01-02"

type Mode int

const (
	Last7 Mode = iota
	Last30
	Custom
)

var ErrInvalidRange = errors.New("start date must not be after end date")

// Selection is the trend range. Choosing one of the three controls replaces
// whatever was chosen before, so exactly one is active at any time.
type Selection struct {
	mode  Mode
	start time.Time
	end   time.Time
}

// Default is the 7-day window.
func Default() Selection {
	return Selection{mode: Last7}
}

func (s *Selection) Select7() {
	*s = Selection{mode: Last7}
}

func (s *Selection) Select30() {
	*s = Selection{mode: Last30}
}

func (s *Selection) SelectCustom(start, end time.Time) error {
	start, end = truncateDay(start), truncateDay(end)
	if start.After(end) {
		return ErrInvalidRange
	}
	*s = Selection{mode: Custom, start: start, end: end}
	return nil
}

func (s Selection) Mode() Mode { return s.mode }

func (s Selection) Is7() bool      { return s.mode == Last7 }
func (s Selection) Is30() bool     { return s.mode == Last30 }
func (s Selection) IsCustom() bool { return s.mode == Custom }

// Custom returns the custom bounds; ok is false for the fixed windows.
func (s Selection) Custom() (start, end time.Time, ok bool) {
	if s.mode != Custom {
		return time.Time{}, time.Time{}, false
	}
	return s.start, s.end, true
}

func (s Selection) StartDate() string {
	if s.mode != Custom {
		return ""
	}
	return s.start.Format(dateLayout)
}

func (s Selection) EndDate() string {
	if s.mode != Custom {
		return ""
	}
	return s.end.Format(dateLayout)
}

// Params are the query parameters of the aggregate request.
func (s Selection) Params() url.Values {
	q := url.Values{}
	switch s.mode {
	case Last30:
		q.Set("range", "30")
	case Custom:
		q.Set("startDate", s.start.Format(dateLayout))
		q.Set("endDate", s.end.Format(dateLayout))
	default:
		q.Set("range", "7")
	}
	return q
}

// Key identifies the selection; equal keys request the same aggregate.
func (s Selection) Key() string {
	switch s.mode {
	case Last30:
		return "30"
	case Custom:
		return s.start.Format(dateLayout) + ".." + s.end.Format(dateLayout)
	}
	return "7"
}

func (s Selection) Label() string {
	switch s.mode {
	case Last30:
		return "Last 30 days"
	case Custom:
		return s.start.Format("01/02") + " - " + s.end.Format("01/02")
	}
	return "Last 7 days"
}

// ParseSelection applies the range controls present in q to current. A query
// without range controls keeps current; ok reports whether q selected
// anything.
func ParseSelection(q url.Values, current Selection) (sel Selection, ok bool, err error) {
	sel = current
	startRaw, endRaw := q.Get("startDate"), q.Get("endDate")
	if startRaw != "" || endRaw != "" {
		if startRaw == "" || endRaw == "" {
			return current, false, errors.New("both startDate and endDate are required")
		}
		start, err := time.Parse(dateLayout, startRaw)
		if err != nil {
			return current, false, errors.New("invalid startDate")
		}
		end, err := time.Parse(dateLayout, endRaw)
		if err != nil {
			return current, false, errors.New("invalid endDate")
		}
		if err := sel.SelectCustom(start, end); err != nil {
			return current, false, err
		}
		return sel, true, nil
	}
	switch q.Get("range") {
	case "":
		return current, false, nil
	case "7", "7d":
		sel.Select7()
	case "30", "30d":
		sel.Select30()
	default:
		return current, false, errors.New("range must be 7 or 30")
	}
	return sel, true, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

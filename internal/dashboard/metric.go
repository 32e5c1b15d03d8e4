package dashboard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
)

// Metric picks which per-day value the trend chart shows. It only affects
// rendering; all three come from the same fetched series.
type Metric string

const (
	MetricAmount  Metric = "amount"
	MetricCount   Metric = "count"
	MetricAverage Metric = "average"
)

var Metrics = []Metric{MetricAmount, MetricCount, MetricAverage}

func ParseMetric(raw string) (Metric, bool) {
	switch m := Metric(strings.ToLower(raw)); m {
	case MetricAmount, MetricCount, MetricAverage:
		return m, true
	}
	return MetricAmount, false
}

func (m Metric) Label() string {
	switch m {
	case MetricCount:
		return "Orders"
	case MetricAverage:
		return "Average ticket"
	}
	return "Sales"
}

func (m Metric) Value(day domain.DashboardDay) float64 {
	switch m {
	case MetricCount:
		return float64(day.OrderCount)
	case MetricAverage:
		return day.AverageAmount
	}
	return day.TotalAmount
}

func (m Metric) Format(v float64) string {
	if m == MetricCount {
		return strconv.FormatFloat(v, 'f', 0, 64) + " orders"
	}
	return FormatMoney(v, domain.DefaultCurrency)
}

// FormatMoney renders an amount with its currency symbol.
func FormatMoney(v float64, currency string) string {
	switch strings.ToUpper(currency) {
	case "", "CNY", "RMB":
		return fmt.Sprintf("¥%.2f", v)
	case "USD":
		return fmt.Sprintf("$%.2f", v)
	}
	return fmt.Sprintf("%.2f %s", v, strings.ToUpper(currency))
}

// FormatMoneyString is FormatMoney for amounts the backend sends as text.
func FormatMoneyString(raw, currency string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return raw
	}
	return FormatMoney(v, currency)
}

// DayLabel turns 2024-03-07 into 3/7.
func DayLabel(date string) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, date); err != nil {
			return date
		}
	}
	return fmt.Sprintf("%d/%d", int(t.Month()), t.Day())
}

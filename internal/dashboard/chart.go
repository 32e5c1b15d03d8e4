package dashboard

import (
	"strconv"
	"strings"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
)

type Point struct {
	Label   string
	Value   float64
	Display string
	X       float64
	Y       float64
}

// Chart is a trend series laid out in a Width x Height SVG box.
type Chart struct {
	Metric   Metric
	Width    float64
	Height   float64
	Max      float64
	Points   []Point
	Polyline string
}

func (c Chart) Empty() bool { return len(c.Points) == 0 }

const chartPadding = 8

// Project lays out days for metric.
func Project(days []domain.DashboardDay, metric Metric, width, height float64) Chart {
	c := Chart{Metric: metric, Width: width, Height: height}
	if len(days) == 0 {
		return c
	}
	for _, d := range days {
		if v := metric.Value(d); v > c.Max {
			c.Max = v
		}
	}
	innerW := width - 2*chartPadding
	innerH := height - 2*chartPadding
	step := 0.0
	if len(days) > 1 {
		step = innerW / float64(len(days)-1)
	}
	coords := make([]string, 0, len(days))
	for i, d := range days {
		v := metric.Value(d)
		y := height - chartPadding
		if c.Max > 0 {
			y -= v / c.Max * innerH
		}
		x := chartPadding + step*float64(i)
		if len(days) == 1 {
			x = width / 2
		}
		c.Points = append(c.Points, Point{
			Label:   DayLabel(d.Date),
			Value:   v,
			Display: metric.Format(v),
			X:       x,
			Y:       y,
		})
		coords = append(coords, formatCoord(x)+","+formatCoord(y))
	}
	c.Polyline = strings.Join(coords, " ")
	return c
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

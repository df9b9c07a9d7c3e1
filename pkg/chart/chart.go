// Package chart renders the aggregation layer's output series as PNG
// images: a raw-plus-smoothed time trend and a two-column scatter.
package chart

import (
	"errors"
	"fmt"
	"io"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/clinilog/ecmotrend/pkg/trend"
)

// ErrNotEnoughPoints means the series is too short to draw. A normal state
// early in a session, not a failure.
var ErrNotEnoughPoints = errors.New("not enough points to draw")

const (
	width  = 900
	height = 420
)

// Trend renders the named column over time: the raw series dashed and
// faint, the rolling-smoothed series solid with dot markers, window size
// named in the legend.
func Trend(w io.Writer, pts []trend.Point, field string, window int) error {
	if len(pts) < 2 {
		return ErrNotEnoughPoints
	}

	times := make([]time.Time, len(pts))
	raw := make([]float64, len(pts))
	for i, p := range pts {
		times[i] = p.At
		raw[i] = p.Value
	}
	smoothed := trend.RollingMean(raw, window)

	ch := chart.Chart{
		Title:      fmt.Sprintf("%s Trend", field),
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 24}},
		XAxis:      chart.XAxis{Name: "Time"},
		YAxis:      chart.YAxis{Name: field},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Raw",
				XValues: times,
				YValues: raw,
				Style: chart.Style{
					StrokeColor:     chart.ColorBlue.WithAlpha(90),
					StrokeDashArray: []float64{4, 4},
				},
			},
			chart.TimeSeries{
				Name:    fmt.Sprintf("Smoothed (window=%d)", window),
				XValues: times,
				YValues: smoothed,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 2,
					DotWidth:    3,
					DotColor:    chart.ColorBlue,
				},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	return ch.Render(chart.PNG, w)
}

// Scatter renders y against x as points only, for eyeballing the
// relationship the correlation report quantifies.
func Scatter(w io.Writer, xs, ys []float64, xLabel, yLabel string) error {
	if len(xs) < 2 || len(xs) != len(ys) {
		return ErrNotEnoughPoints
	}

	ch := chart.Chart{
		Title:      fmt.Sprintf("%s vs %s", yLabel, xLabel),
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 24}},
		XAxis:      chart.XAxis{Name: xLabel},
		YAxis:      chart.YAxis{Name: yLabel},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    yLabel,
				XValues: xs,
				YValues: ys,
				Style:   pointStyle(chart.ColorBlue),
			},
		},
	}

	return ch.Render(chart.PNG, w)
}

// pointStyle renders points only, no connecting line.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		DotWidth:    4,
		DotColor:    col,
	}
}

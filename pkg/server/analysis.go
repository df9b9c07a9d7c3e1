package server

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/clinilog/ecmotrend/pkg/chart"
	"github.com/clinilog/ecmotrend/pkg/config"
	"github.com/clinilog/ecmotrend/pkg/httpx"
	"github.com/clinilog/ecmotrend/pkg/schema"
	"github.com/clinilog/ecmotrend/pkg/stats"
	"github.com/clinilog/ecmotrend/pkg/trend"
)

// StatusInsufficientData marks the normal "not enough data yet" outcome of
// an analysis view. It always ships with HTTP 200: an empty chart early in
// a run is not an error.
const StatusInsufficientData = "insufficient_data"

// TrendResponse carries one column's time-ordered points plus the trailing
// rolling mean aligned to them.
type TrendResponse struct {
	Field    string        `json:"field"`
	Window   int           `json:"window"`
	DayIndex int           `json:"day_index"`
	Points   []trend.Point `json:"points"`
	Smoothed []float64     `json:"smoothed"`
}

// HandleTrend handles GET /v1/trend?field=&days=&window=.
func (h *Handler) HandleTrend(w http.ResponseWriter, r *http.Request) {
	field, err := h.fieldParam(r, "field", schema.ColDeltaP)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	rows := h.store.Snapshot()
	entries := trend.LastNDays(rows, queryInt(r, "days", 0), time.Time{})
	pts := trend.Points(entries, field)
	if len(pts) < 2 {
		httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"status": StatusInsufficientData,
			"points": len(pts),
		})
		return
	}

	window := queryInt(r, "window", config.DefaultSmoothingWindow)
	values := make([]float64, len(pts))
	for i, p := range pts {
		values[i] = p.Value
	}

	httpx.RespondJSON(w, http.StatusOK, TrendResponse{
		Field:    field,
		Window:   window,
		DayIndex: trend.DayIndex(rows),
		Points:   pts,
		Smoothed: trend.RollingMean(values, window),
	})
}

// DailyResponse carries the daily-first baseline series with day-over-day
// percent change. Change is null where the previous baseline is zero.
type DailyResponse struct {
	Field    string        `json:"field"`
	DayIndex int           `json:"day_index"`
	Points   []trend.Point `json:"points"`
	Change   []*float64    `json:"change_pct"`
}

// HandleDaily handles GET /v1/daily?field=.
func (h *Handler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	field, err := h.fieldParam(r, "field", schema.ColDeltaP)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	rows := h.store.Snapshot()
	pts := trend.Points(trend.DailyFirst(rows), field)
	if len(pts) < 2 {
		httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"status": StatusInsufficientData,
			"points": len(pts),
		})
		return
	}

	change := make([]*float64, len(pts))
	for i := 1; i < len(pts); i++ {
		if pct, ok := trend.PercentChange(pts[i-1].Value, pts[i].Value); ok {
			change[i] = &pct
		}
	}

	httpx.RespondJSON(w, http.StatusOK, DailyResponse{
		Field:    field,
		DayIndex: trend.DayIndex(rows),
		Points:   pts,
		Change:   change,
	})
}

// HandleStats handles GET /v1/stats?x=&y=: the correlation report between
// two columns over pairwise-complete rows.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	x, err := h.fieldParam(r, "x", schema.ColFlow)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	y, err := h.fieldParam(r, "y", schema.ColR)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := stats.Correlate(h.store.Snapshot(), x, y)
	if err != nil {
		var insufficient *stats.InsufficientDataError
		if errors.As(err, &insufficient) {
			httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
				"status": StatusInsufficientData,
				"pairs":  insufficient.Pairs,
			})
			return
		}
		if errors.Is(err, stats.ErrConstantColumn) {
			httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
				"status": StatusInsufficientData,
				"reason": err.Error(),
			})
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, result)
}

// HandleTrendChart handles GET /v1/chart/trend.png.
func (h *Handler) HandleTrendChart(w http.ResponseWriter, r *http.Request) {
	field, err := h.fieldParam(r, "field", schema.ColDeltaP)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	entries := trend.LastNDays(h.store.Snapshot(), queryInt(r, "days", 0), time.Time{})
	pts := trend.Points(entries, field)
	window := queryInt(r, "window", config.DefaultSmoothingWindow)

	h.renderPNG(w, func(buf *bytes.Buffer) error {
		return chart.Trend(buf, pts, field, window)
	})
}

// HandleScatterChart handles GET /v1/chart/scatter.png?x=&y=.
func (h *Handler) HandleScatterChart(w http.ResponseWriter, r *http.Request) {
	x, err := h.fieldParam(r, "x", schema.ColFlow)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	y, err := h.fieldParam(r, "y", schema.ColR)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	xs, ys := stats.CompletePairs(h.store.Snapshot(), x, y)
	h.renderPNG(w, func(buf *bytes.Buffer) error {
		return chart.Scatter(buf, xs, ys, x, y)
	})
}

// renderPNG runs a chart renderer into a buffer, downgrading the
// too-few-points case to a JSON "not enough data yet" body instead of an
// image.
func (h *Handler) renderPNG(w http.ResponseWriter, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		if errors.Is(err, chart.ErrNotEnoughPoints) {
			httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": StatusInsufficientData})
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("Failed to write chart response: %v", err)
	}
}

// fieldParam resolves a column query parameter against the active schema's
// numeric columns, with a default for when the caller omits it.
func (h *Handler) fieldParam(r *http.Request, name, def string) (string, error) {
	field := r.URL.Query().Get(name)
	if field == "" {
		field = def
	}
	v := h.store.Version()
	if field == schema.ColRecordedAt || !v.Has(field) {
		return "", fmt.Errorf("unknown column %q for schema %s", field, v.Name)
	}
	return field, nil
}

func queryInt(r *http.Request, name string, def int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		var n int
		if _, err := fmt.Sscanf(raw, "%d", &n); err == nil {
			return n
		}
	}
	return def
}

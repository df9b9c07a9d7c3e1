// Package server wires the record store, aggregation views, statistics,
// charts, and CSV restore/export behind an HTTP API. The form and page
// layer in front of this API is a thin client; every rule about the table
// lives behind these handlers.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/clinilog/ecmotrend/pkg/config"
	"github.com/clinilog/ecmotrend/pkg/export"
	"github.com/clinilog/ecmotrend/pkg/httpx"
	"github.com/clinilog/ecmotrend/pkg/schema"
	"github.com/clinilog/ecmotrend/pkg/store"
)

var startTime = time.Now()

// Handler serves the session's record table.
type Handler struct {
	store *store.Store
	hub   *Hub
}

// NewHandler creates the API handler around one session store.
func NewHandler(s *store.Store, hub *Hub) *Handler {
	return &Handler{store: s, hub: hub}
}

// AddRequest is the add-record form payload. Numeric fields arrive as the
// operator typed them; parsing failures become field-labeled validation
// errors rather than a generic decode error.
type AddRequest struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Flow        string `json:"flow"`
	RPM         string `json:"rpm"`
	DeltaP      string `json:"delta_p"`
	Hb          string `json:"hb"`
	GlucoseMmol string `json:"glucose_mmol"`
}

// AddResponse reports the sequence number assigned to a new record.
type AddResponse struct {
	Seq int64 `json:"seq"`
}

// HandleAdd handles POST /v1/records.
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	at, err := schema.ParseTime(strings.TrimSpace(req.Date) + " " + strings.TrimSpace(req.Time))
	if err != nil {
		httpx.RespondFieldError(w, http.StatusUnprocessableEntity, schema.ColRecordedAt, err)
		return
	}

	in := store.AddInput{RecordedAt: at}
	fields := []struct {
		name string
		raw  string
		dst  *float64
		opt  **float64
	}{
		{schema.ColFlow, req.Flow, &in.Flow, nil},
		{schema.ColRPM, req.RPM, &in.RPM, nil},
		{schema.ColDeltaP, req.DeltaP, &in.DeltaP, nil},
		{schema.ColHb, req.Hb, nil, &in.Hb},
		{schema.ColGlucoseMmol, req.GlucoseMmol, nil, &in.GlucoseMmol},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(f.raw)
		if f.opt != nil && raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpx.RespondFieldError(w, http.StatusUnprocessableEntity, f.name,
				fmt.Errorf("%s is not a number: %q", f.name, f.raw))
			return
		}
		if f.dst != nil {
			*f.dst = v
		} else {
			value := v
			*f.opt = &value
		}
	}

	seq, err := h.store.Add(in)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	h.hub.NotifyChange(h.store)
	httpx.RespondJSON(w, http.StatusCreated, AddResponse{Seq: seq})
}

// TableResponse carries the display table: raw rows in canonical column
// order with edit-grid (space form) timestamps.
type TableResponse struct {
	Schema      string          `json:"schema"`
	Columns     []string        `json:"columns"`
	Rows        []schema.RawRow `json:"rows"`
	Count       int             `json:"count"`
	Fingerprint uint64          `json:"fingerprint"`
}

// HandleTable handles GET /v1/records.
func (h *Handler) HandleTable(w http.ResponseWriter, r *http.Request) {
	v := h.store.Version()
	t := schema.Table{Version: v, Rows: h.store.Snapshot()}
	rows := t.Raw()
	for _, row := range rows {
		if at, err := schema.ParseTime(row[schema.ColRecordedAt]); err == nil {
			row[schema.ColRecordedAt] = schema.FormatDisplayTime(at)
		}
	}

	httpx.RespondJSON(w, http.StatusOK, TableResponse{
		Schema:      v.Name,
		Columns:     v.Columns,
		Rows:        rows,
		Count:       len(rows),
		Fingerprint: h.store.Fingerprint(),
	})
}

// EditRequest is the apply-edits payload: the full displayed table.
type EditRequest struct {
	Rows []schema.RawRow `json:"rows"`
}

// HandleEdit handles PUT /v1/records. The edit is atomic; on rejection the
// response carries the single reason and the store is untouched.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Rows) > config.MaxEditRows {
		httpx.RespondError(w, http.StatusRequestEntityTooLarge,
			fmt.Errorf("edit exceeds %d rows", config.MaxEditRows))
		return
	}

	if err := h.store.ApplyEdits(req.Rows); err != nil {
		respondStoreError(w, err)
		return
	}

	h.hub.NotifyChange(h.store)
	httpx.RespondJSON(w, http.StatusOK, map[string]int{"count": h.store.Len()})
}

// HandleDelete handles DELETE /v1/records/{seq}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseInt(mux.Vars(r)["seq"], 10, 64)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid sequence number"))
		return
	}
	if err := h.store.Delete(seq); err != nil {
		respondStoreError(w, err)
		return
	}
	h.hub.NotifyChange(h.store)
	httpx.RespondJSON(w, http.StatusOK, map[string]int{"count": h.store.Len()})
}

// HandleDeleteLast handles DELETE /v1/records/last.
func (h *Handler) HandleDeleteLast(w http.ResponseWriter, r *http.Request) {
	h.store.DeleteLast()
	h.hub.NotifyChange(h.store)
	httpx.RespondJSON(w, http.StatusOK, map[string]int{"count": h.store.Len()})
}

// HandleClear handles DELETE /v1/records. The explicit confirmation dialog
// belongs to the form layer; the server clears unconditionally.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.store.Clear()
	h.hub.NotifyChange(h.store)
	httpx.RespondJSON(w, http.StatusOK, map[string]int{"count": 0})
}

// HandleExport handles GET /v1/export: the CSV download that is the
// session's only durability mechanism.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=ecmotrend-%s.csv", time.Now().Format("20060102-150405")))

	if err := export.Encode(w, h.store.Version(), h.store.Snapshot()); err != nil {
		// Headers are out; all we can do is log.
		log.Printf("Export failed: %v", err)
	}
}

// HandleRestore handles POST /v1/restore: a whole-file CSV upload replacing
// the table. Files from older schema revisions are upgraded; a file with
// none of the core columns is rejected and the table kept.
func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	rows, err := export.Decode(http.MaxBytesReader(w, r.Body, config.MaxRestoreBytes))
	if err != nil {
		var mismatch *export.SchemaMismatchError
		if errors.As(err, &mismatch) {
			httpx.RespondError(w, http.StatusBadRequest, mismatch)
			return
		}
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	h.store.Restore(rows)
	h.hub.NotifyChange(h.store)
	httpx.RespondJSON(w, http.StatusOK, map[string]int{"count": h.store.Len()})
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Schema  string `json:"schema"`
	Uptime  string `json:"uptime"`
	Records int    `json:"records"`
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Schema:  h.store.Version().Name,
		Uptime:  time.Since(startTime).String(),
		Records: h.store.Len(),
	})
}

// respondStoreError maps the store/stats error taxonomy onto status codes.
func respondStoreError(w http.ResponseWriter, err error) {
	var validation *store.ValidationError
	if errors.As(err, &validation) {
		httpx.RespondFieldError(w, http.StatusUnprocessableEntity, validation.Field, validation)
		return
	}
	var parse *store.ParseError
	if errors.As(err, &parse) {
		httpx.RespondError(w, http.StatusBadRequest, parse)
		return
	}
	var notFound *store.NotFoundError
	if errors.As(err, &notFound) {
		httpx.RespondError(w, http.StatusNotFound, notFound)
		return
	}
	httpx.RespondError(w, http.StatusInternalServerError, err)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

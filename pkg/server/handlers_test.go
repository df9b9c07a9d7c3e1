package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinilog/ecmotrend/pkg/schema"
	"github.com/clinilog/ecmotrend/pkg/store"
)

func newTestServer(t *testing.T) (*store.Store, *mux.Router) {
	t.Helper()
	s := store.New(schema.Current)
	hub := NewHub()
	router := mux.NewRouter()
	SetupRoutes(router, NewHandler(s, hub), hub)
	return s, router
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func addRecord(t *testing.T, router *mux.Router, date, clock string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/v1/records", AddRequest{
		Date: date, Time: clock,
		Flow: "4.5", RPM: "3200", DeltaP: "55", Hb: "10.8",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHandleAdd(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/records", AddRequest{
		Date: "2024-01-01", Time: "09:00",
		Flow: "4.5", RPM: "3200", DeltaP: "55", Hb: "10.8", GlucoseMmol: "5.5",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AddResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Seq)
}

func TestHandleAddValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   AddRequest
		field string
	}{
		{
			name:  "zero flow",
			req:   AddRequest{Date: "2024-01-01", Time: "09:00", Flow: "0", RPM: "3200", DeltaP: "55", Hb: "10.8"},
			field: schema.ColFlow,
		},
		{
			name:  "unparseable flow",
			req:   AddRequest{Date: "2024-01-01", Time: "09:00", Flow: "fast", RPM: "3200", DeltaP: "55", Hb: "10.8"},
			field: schema.ColFlow,
		},
		{
			name:  "missing required hb",
			req:   AddRequest{Date: "2024-01-01", Time: "09:00", Flow: "4.5", RPM: "3200", DeltaP: "55"},
			field: schema.ColHb,
		},
		{
			name:  "bad timestamp",
			req:   AddRequest{Date: "January 1st", Time: "morning", Flow: "4.5", RPM: "3200", DeltaP: "55", Hb: "10.8"},
			field: schema.ColRecordedAt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, router := newTestServer(t)
			rec := doJSON(t, router, http.MethodPost, "/v1/records", tt.req)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

			var resp struct {
				Field string `json:"field"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.field, resp.Field)
			assert.Equal(t, 0, s.Len(), "rejected add must not grow the table")
		})
	}
}

func TestHandleTableDisplaysEditLayout(t *testing.T) {
	_, router := newTestServer(t)
	addRecord(t, router, "2024-01-01", "09:00")

	rec := doJSON(t, router, http.MethodGet, "/v1/records", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "2024-01-01 09:00", resp.Rows[0][schema.ColRecordedAt])
	assert.Equal(t, schema.Current.Columns, resp.Columns)
}

func TestHandleEditAtomicRejection(t *testing.T) {
	s, router := newTestServer(t)
	addRecord(t, router, "2024-01-01", "09:00")
	addRecord(t, router, "2024-01-01", "14:00")
	before := s.Fingerprint()

	var table TableResponse
	rec := doJSON(t, router, http.MethodGet, "/v1/records", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))

	table.Rows[0][schema.ColDeltaP] = "70"
	table.Rows[1][schema.ColRecordedAt] = "broken"

	rec = doJSON(t, router, http.MethodPut, "/v1/records", EditRequest{Rows: table.Rows})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "row 2")
	assert.Equal(t, before, s.Fingerprint(), "rejected edit must leave the table untouched")
}

func TestHandleEditApplies(t *testing.T) {
	s, router := newTestServer(t)
	addRecord(t, router, "2024-01-01", "09:00")

	var table TableResponse
	rec := doJSON(t, router, http.MethodGet, "/v1/records", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	table.Rows[0][schema.ColDeltaP] = "60"

	rec = doJSON(t, router, http.MethodPut, "/v1/records", EditRequest{Rows: table.Rows})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	row := s.Snapshot()[0]
	assert.InDelta(t, 60.0/4.5, row.Cell(schema.ColR).Value, 1e-9)
}

func TestHandleDelete(t *testing.T) {
	s, router := newTestServer(t)
	addRecord(t, router, "2024-01-01", "09:00")

	rec := doJSON(t, router, http.MethodDelete, "/v1/records/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, s.Len())

	rec = doJSON(t, router, http.MethodDelete, "/v1/records/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleClearAndDeleteLast(t *testing.T) {
	s, router := newTestServer(t)
	addRecord(t, router, "2024-01-01", "09:00")
	addRecord(t, router, "2024-01-01", "14:00")

	rec := doJSON(t, router, http.MethodDelete, "/v1/records/last", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.Len())

	rec = doJSON(t, router, http.MethodDelete, "/v1/records", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, s.Len())
}

func TestExportRestoreRoundTrip(t *testing.T) {
	s, router := newTestServer(t)
	addRecord(t, router, "2024-01-01", "09:00")
	addRecord(t, router, "2024-01-02", "08:30")

	rec := doJSON(t, router, http.MethodGet, "/v1/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	csvBody := rec.Body.String()
	assert.True(t, strings.HasPrefix(csvBody, strings.Join(schema.Current.Columns, ",")))

	fpBefore := s.Fingerprint()
	s.Clear()

	req := httptest.NewRequest(http.MethodPost, "/v1/restore", strings.NewReader(csvBody))
	restoreRec := httptest.NewRecorder()
	router.ServeHTTP(restoreRec, req)
	require.Equal(t, http.StatusOK, restoreRec.Code, restoreRec.Body.String())

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, fpBefore, s.Fingerprint(), "restore reproduces the exported table")
}

func TestRestoreRejectsForeignFile(t *testing.T) {
	s, router := newTestServer(t)
	addRecord(t, router, "2024-01-01", "09:00")

	req := httptest.NewRequest(http.MethodPost, "/v1/restore", strings.NewReader("Name,Age\nalice,40\n"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, s.Len(), "failed restore must keep the table")
}

func TestHandleTrend(t *testing.T) {
	_, router := newTestServer(t)

	// Not enough data yet: normal result, not an error.
	rec := doJSON(t, router, http.MethodGet, "/v1/trend?field=DeltaP", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), StatusInsufficientData)

	addRecord(t, router, "2024-01-01", "09:00")
	addRecord(t, router, "2024-01-02", "09:00")
	addRecord(t, router, "2024-01-03", "09:00")

	rec = doJSON(t, router, http.MethodGet, "/v1/trend?field=DeltaP&window=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TrendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "DeltaP", resp.Field)
	assert.Equal(t, 3, resp.DayIndex)
	assert.Len(t, resp.Points, 3)
	assert.Len(t, resp.Smoothed, 3)
}

func TestHandleTrendUnknownField(t *testing.T) {
	_, router := newTestServer(t)
	rec := doJSON(t, router, http.MethodGet, "/v1/trend?field=BloodType", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatsInsufficientData(t *testing.T) {
	_, router := newTestServer(t)
	addRecord(t, router, "2024-01-01", "09:00")

	rec := doJSON(t, router, http.MethodGet, "/v1/stats?x=Flow&y=R", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), StatusInsufficientData)
}

func TestHandleStats(t *testing.T) {
	_, router := newTestServer(t)
	for i, flow := range []string{"4.5", "4.2", "3.9", "3.6"} {
		rec := doJSON(t, router, http.MethodPost, "/v1/records", AddRequest{
			Date: "2024-01-01", Time: []string{"09:00", "11:00", "13:00", "15:00"}[i],
			Flow: flow, RPM: "3200", DeltaP: "55", Hb: "10.8",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := doJSON(t, router, http.MethodGet, "/v1/stats?x=Flow&y=R", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pearson_r")
}

func TestHandleStatsConstantColumn(t *testing.T) {
	_, router := newTestServer(t)
	addRecord(t, router, "2024-01-01", "09:00")
	addRecord(t, router, "2024-01-02", "09:00")
	addRecord(t, router, "2024-01-03", "09:00")

	// Identical records: zero variance, correlation undefined, still a
	// normal 200 outcome.
	rec := doJSON(t, router, http.MethodGet, "/v1/stats?x=Flow&y=R", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), StatusInsufficientData)
}

func TestHealth(t *testing.T) {
	_, router := newTestServer(t)
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

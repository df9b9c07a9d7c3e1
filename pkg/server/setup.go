package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all HTTP routes for the session server.
func SetupRoutes(router *mux.Router, h *Handler, hub *Hub) {
	api := router.PathPrefix("/v1").Subrouter()

	// Record table
	api.HandleFunc("/records", h.HandleAdd).Methods(http.MethodPost)
	api.HandleFunc("/records", h.HandleTable).Methods(http.MethodGet)
	api.HandleFunc("/records", h.HandleEdit).Methods(http.MethodPut)
	api.HandleFunc("/records", h.HandleClear).Methods(http.MethodDelete)
	api.HandleFunc("/records/last", h.HandleDeleteLast).Methods(http.MethodDelete)
	api.HandleFunc("/records/{seq:[0-9]+}", h.HandleDelete).Methods(http.MethodDelete)

	// CSV durability
	api.HandleFunc("/export", h.HandleExport).Methods(http.MethodGet)
	api.HandleFunc("/restore", h.HandleRestore).Methods(http.MethodPost)

	// Analysis views
	api.HandleFunc("/trend", h.HandleTrend).Methods(http.MethodGet)
	api.HandleFunc("/daily", h.HandleDaily).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.HandleStats).Methods(http.MethodGet)
	api.HandleFunc("/chart/trend.png", h.HandleTrendChart).Methods(http.MethodGet)
	api.HandleFunc("/chart/scatter.png", h.HandleScatterChart).Methods(http.MethodGet)

	// Live table-change feed
	api.HandleFunc("/live", hub.HandleWS).Methods(http.MethodGet)

	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
}

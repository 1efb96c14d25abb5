package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"floorpulse/pkg/config"
	"floorpulse/pkg/fetch"
	"floorpulse/pkg/httpx"
)

var startTime = time.Now()

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Backend   string `json:"backend"`
	Warehouse string `json:"warehouse"`
}

// handleHealth returns service health status.
func handleHealth(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondJSON(w, http.StatusOK, HealthResponse{
			Status:    "healthy",
			Version:   "1.0.0",
			Uptime:    time.Since(startTime).String(),
			Backend:   cfg.StoreBackend,
			Warehouse: cfg.Warehouse,
		})
	}
}

// handleSweep triggers an on-demand sweep of the configured warehouse.
func handleSweep(cfg Config, scheduler *fetch.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if scheduler == nil {
			httpx.RespondErrorString(w, http.StatusServiceUnavailable, "no fetcher configured")
			return
		}

		days := config.DefaultSweepDays
		if v := r.URL.Query().Get("days"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 1 {
				httpx.RespondErrorString(w, http.StatusBadRequest, "days must be a positive integer")
				return
			}
			days = parsed
		}

		result, err := scheduler.Sweep(r.Context(), cfg.Warehouse, days)
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.RespondJSON(w, http.StatusOK, result)
	}
}

// handleSweepProgress reports the state of any sweep currently running.
func handleSweepProgress(scheduler *fetch.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if scheduler == nil {
			httpx.RespondErrorString(w, http.StatusServiceUnavailable, "no fetcher configured")
			return
		}
		httpx.RespondJSON(w, http.StatusOK, scheduler.Progress())
	}
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(router *mux.Router, cfg Config, h *Handlers, scheduler *fetch.Scheduler) {
	// CORS middleware for API access
	router.Use(corsMiddleware(cfg.Port))

	api := router.PathPrefix("/v1").Subrouter()

	// Partition push and inspection
	api.HandleFunc("/partitions", h.Ingest.HandlePush).Methods("POST")
	api.HandleFunc("/partitions", h.Ingest.HandleList).Methods("GET")

	// Range queries and analytics
	api.HandleFunc("/query/range", h.Query.HandleRange).Methods("GET")
	api.HandleFunc("/analytics/employee", h.Analytics.HandleEmployee).Methods("GET")

	// Cache administration
	api.HandleFunc("/cache/stats", h.Ingest.HandleStats).Methods("GET")
	api.HandleFunc("/cache", h.Ingest.HandleClear).Methods("DELETE")

	// Fetch scheduling
	api.HandleFunc("/fetch/sweep", handleSweep(cfg, scheduler)).Methods("POST")
	api.HandleFunc("/fetch/progress", handleSweepProgress(scheduler)).Methods("GET")

	// Backup and restore
	api.HandleFunc("/export", h.Export.HandleExport).Methods("GET")
	api.HandleFunc("/import", h.Export.HandleImport).Methods("POST")

	// WebSocket for live cache updates
	api.HandleFunc("/live", h.Ingest.HandleWebSocket(h.Hub)).Methods("GET")

	router.HandleFunc("/health", handleHealth(cfg)).Methods("GET")
}

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowedOrigins := []string{
				"http://localhost:" + port,
				"http://127.0.0.1:" + port,
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			}

			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if origin == allowedOrigin {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

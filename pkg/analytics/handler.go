package analytics

import (
	"context"
	"errors"
	"net/http"

	"floorpulse/pkg/cache"
	"floorpulse/pkg/config"
	"floorpulse/pkg/httpx"
	"floorpulse/pkg/labor"
	"floorpulse/pkg/query"
)

// Handler serves the employee analytics endpoint.
type Handler struct {
	store  cache.Store
	engine *query.Engine
}

// NewHandler creates an analytics handler. The engine answers the windowed
// query; the store supplies the bounds of the full cached history.
func NewHandler(store cache.Store, engine *query.Engine) *Handler {
	return &Handler{store: store, engine: engine}
}

// EmployeeResponse is the /v1/analytics/employee payload.
type EmployeeResponse struct {
	Warehouse   string         `json:"warehouse"`
	Start       string         `json:"start"`
	End         string         `json:"end"`
	ShiftFilter labor.ShiftTag `json:"shiftFilter"`
	PathFilter  string         `json:"pathFilter,omitempty"`
	Profile     *Result        `json:"profile"`
}

// HandleEmployee handles GET /v1/analytics/employee.
// Query params:
//   - warehouse, employee: required
//   - start, end: YYYY-MM-DD window, inclusive (required)
//   - shift: day|night|all (default all)
//   - path: restrict scoring to one process path (optional)
func (h *Handler) HandleEmployee(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	warehouse := q.Get("warehouse")
	employee := q.Get("employee")
	start := q.Get("start")
	end := q.Get("end")
	shift := labor.ShiftTag(q.Get("shift"))
	path := q.Get("path")

	if warehouse == "" || employee == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "warehouse and employee query parameters are required")
		return
	}
	if start == "" || end == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "start and end query parameters are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.AnalyticsTimeout)
	defer cancel()

	window, err := h.engine.QueryRange(ctx, warehouse, start, end, shift)
	if err != nil {
		if errors.Is(err, cache.ErrInvalidDate) {
			httpx.RespondError(w, http.StatusBadRequest, err)
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	var own []labor.Record
	for _, rec := range window.Records {
		if rec.EmployeeID == employee {
			own = append(own, rec)
		}
	}

	history, err := h.fullHistory(ctx, warehouse)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	profile := Compute(employee, own, window.Records, Options{
		History:    history,
		PathFilter: path,
	})

	httpx.RespondJSON(w, http.StatusOK, EmployeeResponse{
		Warehouse:   warehouse,
		Start:       start,
		End:         end,
		ShiftFilter: window.ShiftFilter,
		PathFilter:  path,
		Profile:     profile,
	})
}

// fullHistory returns every deduplicated record cached for the warehouse.
// Long-run scores (consistency, versatility) are computed over this set, not
// the selected window. Returns nil when the cache holds nothing for the scope.
func (h *Handler) fullHistory(ctx context.Context, warehouse string) ([]labor.Record, error) {
	stats, err := h.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if stats.Partitions == 0 || stats.EarliestDate == "" || stats.LatestDate == "" {
		return nil, nil
	}

	result, err := h.engine.QueryRange(ctx, warehouse, stats.EarliestDate, stats.LatestDate, labor.ShiftAll)
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

package query

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"floorpulse/pkg/cache"
	"floorpulse/pkg/config"
	"floorpulse/pkg/httpx"
	"floorpulse/pkg/labor"
)

// Handler serves the range query endpoint.
type Handler struct {
	engine *Engine
}

// NewHandler creates a query handler over the given engine.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RangeResponse is the /v1/query/range payload.
type RangeResponse struct {
	Warehouse    string         `json:"warehouse"`
	Start        string         `json:"start"`
	End          string         `json:"end"`
	ShiftFilter  labor.ShiftTag `json:"shiftFilter"`
	RecordCount  int            `json:"recordCount"`
	Records      []labor.Record `json:"records"`
	DatesMatched []string       `json:"datesMatched"`
}

// HandleRange handles GET /v1/query/range.
// Query params:
//   - warehouse: scope (required)
//   - start, end: YYYY-MM-DD, inclusive (required)
//   - shift: day|night|all (default all)
func (h *Handler) HandleRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	warehouse := q.Get("warehouse")
	start := q.Get("start")
	end := q.Get("end")
	shift := labor.ShiftTag(q.Get("shift"))

	if warehouse == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "warehouse query parameter is required")
		return
	}
	if start == "" || end == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "start and end query parameters are required")
		return
	}
	if err := validateRange(start, end); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	result, err := h.engine.QueryRange(ctx, warehouse, start, end, shift)
	if err != nil {
		if errors.Is(err, cache.ErrInvalidDate) {
			httpx.RespondError(w, http.StatusBadRequest, err)
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	records := result.Records
	if records == nil {
		records = []labor.Record{}
	}
	httpx.RespondJSON(w, http.StatusOK, RangeResponse{
		Warehouse:    warehouse,
		Start:        start,
		End:          end,
		ShiftFilter:  result.ShiftFilter,
		RecordCount:  len(records),
		Records:      records,
		DatesMatched: result.DatesMatched,
	})
}

// validateRange rejects inverted or oversized windows before scanning.
func validateRange(start, end string) error {
	s, err := time.Parse(cache.DateLayout, start)
	if err != nil {
		return fmt.Errorf("%w: %q", cache.ErrInvalidDate, start)
	}
	e, err := time.Parse(cache.DateLayout, end)
	if err != nil {
		return fmt.Errorf("%w: %q", cache.ErrInvalidDate, end)
	}
	if e.Before(s) {
		return fmt.Errorf("end %s is before start %s", end, start)
	}
	if e.Sub(s) > time.Duration(config.MaxQueryRangeDays)*24*time.Hour {
		return fmt.Errorf("range exceeds %d days", config.MaxQueryRangeDays)
	}
	return nil
}

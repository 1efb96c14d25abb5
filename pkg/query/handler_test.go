package query

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"floorpulse/pkg/cache"
	"floorpulse/pkg/cache/memory"
	"floorpulse/pkg/labor"
)

func TestHandleRange(t *testing.T) {
	store := memory.New()
	handler := NewHandler(NewEngine(store))

	seed := func(date string, shift labor.ShiftTag, n int) {
		key, err := cache.NewKey("BFI4", date, shift)
		require.NoError(t, err)
		records := make([]labor.Record, n)
		for i := range records {
			records[i] = labor.Record{EmployeeID: "e1", PathID: "pick", Hours: 1, Jobs: 30}
		}
		_, err = store.Put(httptest.NewRequest(http.MethodGet, "/", nil).Context(), key, records)
		require.NoError(t, err)
	}
	seed("2026-03-01", labor.ShiftAll, 4)
	seed("2026-03-02", labor.ShiftAll, 3)
	seed("2026-03-05", labor.ShiftAll, 9) // outside the window

	req := httptest.NewRequest(http.MethodGet,
		"/v1/query/range?warehouse=BFI4&start=2026-03-01&end=2026-03-03", nil)
	rr := httptest.NewRecorder()
	handler.HandleRange(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp RangeResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Equal(t, "BFI4", resp.Warehouse)
	require.Equal(t, labor.ShiftAll, resp.ShiftFilter)
	require.Equal(t, 7, resp.RecordCount)
	require.Len(t, resp.Records, 7)
	require.Equal(t, []string{"2026-03-01", "2026-03-02"}, resp.DatesMatched)
}

func TestHandleRangeEmptyWindow(t *testing.T) {
	handler := NewHandler(NewEngine(memory.New()))

	req := httptest.NewRequest(http.MethodGet,
		"/v1/query/range?warehouse=BFI4&start=2026-03-01&end=2026-03-03", nil)
	rr := httptest.NewRecorder()
	handler.HandleRange(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	// Empty windows serialize as [], never null.
	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&raw))
	require.Equal(t, "[]", string(raw["records"]))
}

func TestHandleRangeValidation(t *testing.T) {
	handler := NewHandler(NewEngine(memory.New()))

	tests := []struct {
		name   string
		target string
	}{
		{"missing warehouse", "/v1/query/range?start=2026-03-01&end=2026-03-03"},
		{"missing dates", "/v1/query/range?warehouse=BFI4"},
		{"invalid start", "/v1/query/range?warehouse=BFI4&start=03/01/2026&end=2026-03-03"},
		{"inverted range", "/v1/query/range?warehouse=BFI4&start=2026-03-03&end=2026-03-01"},
		{"oversized range", "/v1/query/range?warehouse=BFI4&start=2025-01-01&end=2026-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rr := httptest.NewRecorder()
			handler.HandleRange(rr, req)
			require.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

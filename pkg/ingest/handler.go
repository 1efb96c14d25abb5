// Package ingest is the write-side HTTP surface: the scraping layer pushes
// partition batches here, and operators inspect or reset the cache.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"floorpulse/pkg/cache"
	"floorpulse/pkg/config"
	"floorpulse/pkg/httpx"
	"floorpulse/pkg/labor"
)

// Handler handles partition ingestion and cache administration.
type Handler struct {
	store cache.Store
	hub   *Hub
}

// NewHandler creates an ingest handler over the given store.
func NewHandler(store cache.Store) *Handler {
	return &Handler{store: store}
}

// WithHub attaches a WebSocket hub; cache mutations are announced to it.
func (h *Handler) WithHub(hub *Hub) *Handler {
	h.hub = hub
	return h
}

// PushRequest is one partition batch from the scraping layer.
type PushRequest struct {
	WarehouseID string         `json:"warehouseId"`
	Date        string         `json:"date"`
	Shift       labor.ShiftTag `json:"shift"`
	Records     []labor.Record `json:"records"`
}

// PushResponse acknowledges a stored partition.
type PushResponse struct {
	Status      string    `json:"status"`
	Key         string    `json:"key"`
	RecordCount int       `json:"recordCount"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// HandlePush handles POST /v1/partitions. The batch replaces whatever is
// cached under its (warehouse, date, shift) key.
func (h *Handler) HandlePush(w http.ResponseWriter, r *http.Request) {
	var req PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if req.WarehouseID == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "warehouseId is required")
		return
	}
	if req.Shift != "" && !req.Shift.Valid() {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid shift %q", req.Shift))
		return
	}
	if len(req.Records) > config.MaxRecordsPerPartition {
		httpx.RespondErrorString(w, http.StatusBadRequest,
			fmt.Sprintf("too many records: %d (max %d)", len(req.Records), config.MaxRecordsPerPartition))
		return
	}

	key, err := cache.NewKey(req.WarehouseID, req.Date, req.Shift)
	if err != nil {
		if errors.Is(err, cache.ErrInvalidDate) {
			httpx.RespondError(w, http.StatusBadRequest, err)
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.IngestTimeout)
	defer cancel()

	part, err := h.store.Put(ctx, key, req.Records)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	h.announce(Event{
		Type:        EventPartitionUpdated,
		Key:         key.String(),
		Warehouse:   key.Warehouse,
		Date:        key.Date,
		Shift:       string(key.Shift),
		RecordCount: part.RecordCount,
		At:          part.FetchedAt,
	})

	httpx.RespondJSON(w, http.StatusOK, PushResponse{
		Status:      "stored",
		Key:         key.String(),
		RecordCount: part.RecordCount,
		FetchedAt:   part.FetchedAt,
	})
}

// ListResponse describes what is cached for one warehouse.
type ListResponse struct {
	Warehouse  string      `json:"warehouse"`
	Partitions []ListEntry `json:"partitions"`
}

// ListEntry is one cached partition key.
type ListEntry struct {
	Key   string `json:"key"`
	Date  string `json:"date"`
	Shift string `json:"shift"`
}

// HandleList handles GET /v1/partitions?warehouse=X.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	warehouse := r.URL.Query().Get("warehouse")
	if warehouse == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "warehouse query parameter is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.ListTimeout)
	defer cancel()

	keys, err := h.store.ListKeys(ctx, warehouse)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	resp := ListResponse{Warehouse: warehouse, Partitions: make([]ListEntry, 0, len(keys))}
	for _, k := range keys {
		resp.Partitions = append(resp.Partitions, ListEntry{
			Key:   k.String(),
			Date:  k.Date,
			Shift: string(k.Shift),
		})
	}
	httpx.RespondJSON(w, http.StatusOK, resp)
}

// HandleStats handles GET /v1/cache/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.StatsTimeout)
	defer cancel()

	stats, err := h.store.Stats(ctx)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, stats)
}

// HandleClear handles DELETE /v1/cache. In-flight fetches are not cancelled;
// any that complete afterwards simply repopulate their one key.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.IngestTimeout)
	defer cancel()

	if err := h.store.Clear(ctx); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	h.announce(Event{Type: EventCacheCleared, At: time.Now()})
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) announce(ev Event) {
	if h.hub == nil {
		return
	}
	if err := h.hub.Broadcast(ev); err != nil {
		log.Printf("Broadcast failed: %v", err)
	}
}

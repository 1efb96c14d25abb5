package export

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"floorpulse/pkg/cache"
	"floorpulse/pkg/config"
	"floorpulse/pkg/httpx"
)

// Handler serves the backup and restore endpoints.
type Handler struct {
	exporter *Exporter
	importer *Importer
}

// NewHandler creates an export/import handler over the given store.
func NewHandler(store cache.Store) *Handler {
	return &Handler{
		exporter: NewExporter(store),
		importer: NewImporter(store),
	}
}

// HandleExport handles GET /v1/export.
// Query params:
//   - format: "json" (restorable snapshot, default) or "csv" (flat records)
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "format must be 'json' or 'csv'")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.ExportTimeout)
	defer cancel()

	timestamp := time.Now().Format("20060102-150405")
	var result *ExportResult
	var err error

	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=floorpulse-backup-%s.json", timestamp))
		result, err = h.exporter.WriteJSON(ctx, w)
	} else {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=floorpulse-export-%s.csv", timestamp))
		result, err = h.exporter.WriteCSV(ctx, w)
	}

	if err != nil {
		// Headers may already be written, so just log.
		log.Printf("Export failed: %v", err)
		return
	}
	log.Printf("Exported %d partitions / %d records (%s)", result.Partitions, result.Records, format)
}

// HandleImport handles POST /v1/import: restores a JSON backup snapshot,
// keeping whichever copy of each partition was fetched more recently.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.ImportTimeout)
	defer cancel()

	body := http.MaxBytesReader(w, r.Body, config.MaxImportBodyBytes)
	result, err := h.importer.ReadJSON(ctx, body)
	if err != nil {
		if errors.Is(err, cache.ErrInvalidBackupFormat) {
			httpx.RespondError(w, http.StatusBadRequest, err)
		} else {
			httpx.RespondError(w, http.StatusInternalServerError, err)
		}
		return
	}

	log.Printf("Imported %d partitions (%d skipped as stale)", result.Imported, result.Skipped)
	httpx.RespondJSON(w, http.StatusOK, result)
}

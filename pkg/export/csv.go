package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

// WriteCSV exports every cached record as flat CSV rows, one per record with
// its partition's warehouse, date, and shift attached. This is the
// spreadsheet-friendly view; JSON snapshots remain the only restorable
// backup format.
func (e *Exporter) WriteCSV(ctx context.Context, w io.Writer) (*ExportResult, error) {
	parts, err := e.store.Scan(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("scan cache: %w", err)
	}

	// Stable row order: by key, then by record position within a partition.
	sort.Slice(parts, func(i, j int) bool {
		return parts[i].Key.String() < parts[j].Key.String()
	})

	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"warehouseId", "date", "shift", "employeeId", "employeeName", "pathId", "pathName", "hours", "jobs", "jph"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}

	result := &ExportResult{ExportedAt: time.Now()}
	for _, p := range parts {
		result.Partitions++
		for _, r := range p.Records {
			row := []string{
				p.Key.Warehouse,
				p.Key.Date,
				string(p.Key.Shift),
				r.EmployeeID,
				r.EmployeeName,
				r.PathID,
				r.PathName,
				strconv.FormatFloat(r.Hours, 'f', -1, 64),
				strconv.FormatFloat(r.Jobs, 'f', -1, 64),
				strconv.FormatFloat(r.JPH(), 'f', 2, 64),
			}
			if err := writer.Write(row); err != nil {
				return nil, fmt.Errorf("write CSV row: %w", err)
			}
			result.Records++
		}
	}
	return result, nil
}

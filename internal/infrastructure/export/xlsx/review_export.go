package xlsx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const (
	sheetName    = "Pending Reviews"
	defaultLimit = 500
	maxCellChars = 500
)

var headers = []string{
	"Escalated At",
	"Review ID",
	"Content ID",
	"Document ID",
	"Risk Level",
	"Reason",
	"Details",
}

// ReviewExporter renders the pending attorney review queue as a workbook.
type ReviewExporter struct {
	queue  ports.ReviewQueueRepository
	limit  int
	logger *slog.Logger
}

func NewReviewExporter(queue ports.ReviewQueueRepository, limit int, logger *slog.Logger) *ReviewExporter {
	if limit <= 0 {
		limit = defaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewExporter{queue: queue, limit: limit, logger: logger}
}

func (e *ReviewExporter) ExportPending(ctx context.Context, w io.Writer) error {
	start := time.Now()
	items, err := e.queue.ListPending(ctx, e.limit)
	if err != nil {
		return fmt.Errorf("list pending reviews: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	for i, item := range items {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
		write(1, item.CreatedAt.UTC().Format(time.RFC3339))
		write(2, item.ID)
		write(3, item.ContentID)
		write(4, item.DocumentID)
		write(5, string(item.RiskLevel))
		write(6, truncate(item.Reason, maxCellChars))
		write(7, truncate(detailsJSON(item.Details), maxCellChars))
	}

	_ = f.SetColWidth(sheetName, "A", "A", 22)
	_ = f.SetColWidth(sheetName, "B", "D", 38)
	_ = f.SetColWidth(sheetName, "E", "E", 12)
	_ = f.SetColWidth(sheetName, "F", "G", 60)
	_ = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	e.logger.Info("review queue exported", "rows", len(items), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func detailsJSON(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Sprintf("%v", details)
	}
	return string(raw)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

package api

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"prodcat/internal"
	"prodcat/internal/pipeline"
)

// readWorkbook pulls the uploaded spreadsheet out of the multipart form and
// enforces the extension and size limits. A false return means the response
// has already been written.
func (h *Handlers) readWorkbook(c *gin.Context) ([]byte, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return nil, false
	}

	lower := strings.ToLower(file.Filename)
	if !strings.HasSuffix(lower, ".xls") && !strings.HasSuffix(lower, ".xlsx") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file must be .xls or .xlsx"})
		return nil, false
	}

	if file.Size > h.cfg.UploadMaxBytes {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("file exceeds the %d MB limit (size: %.2f MB)",
				h.cfg.UploadMaxBytes/(1024*1024), sizeMB(file.Size)),
		})
		return nil, false
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return nil, false
	}
	defer src.Close()

	content, err := io.ReadAll(io.LimitReader(src, h.cfg.UploadMaxBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return nil, false
	}
	return content, true
}

// AnalyzeUpload validates every sheet of the workbook and reports which one,
// if any, was auto-selected.
func (h *Handlers) AnalyzeUpload(c *gin.Context) {
	content, ok := h.readWorkbook(c)
	if !ok {
		return
	}

	report, err := pipeline.AnalyzeWorkbook(content)
	if err != nil {
		zap.L().Warn("workbook analysis failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to process workbook: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"data":         report,
		"file_size_mb": math.Round(sizeMB(int64(len(content)))*100) / 100,
	})
}

// PreviewUpload returns the first rows of the chosen sheet with canonical
// columns and injected ordinals.
func (h *Handlers) PreviewUpload(c *gin.Context) {
	content, ok := h.readWorkbook(c)
	if !ok {
		return
	}

	columns, rows, err := pipeline.WorkbookSheetRows(content, c.PostForm("sheet_name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to generate preview: %v", err)})
		return
	}

	limit := h.cfg.PreviewRowLimit
	if limit <= 0 || limit > len(rows) {
		limit = len(rows)
	}
	preview := make([]map[string]any, 0, limit)
	for _, row := range rows[:limit] {
		preview = append(preview, previewRow(row, nil))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"preview_rows": preview,
			"total_rows":   len(rows),
			"columns":      columns,
		},
	})
}

// ValidateDuplicatesUpload classifies every row of the chosen sheet against
// the live catalog and the sheet itself.
func (h *Handlers) ValidateDuplicatesUpload(c *gin.Context) {
	content, ok := h.readWorkbook(c)
	if !ok {
		return
	}

	columns, rows, err := pipeline.WorkbookSheetRows(content, c.PostForm("sheet_name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read sheet: %v", err)})
		return
	}

	products, err := h.db.ListProducts()
	if err != nil {
		zap.L().Error("failed to load catalog for duplicate check", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load catalog"})
		return
	}

	classifications := pipeline.NewClassifier(products).Classify(rows)

	duplicates := 0
	newRows := 0
	annotated := make([]map[string]any, 0, len(rows))
	for i, row := range rows {
		cl := classifications[i]
		annotated = append(annotated, previewRow(row, &cl))
		if cl.Status == internal.RowNew {
			newRows++
		} else {
			duplicates++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"preview_rows":     annotated,
			"total_rows":       len(rows),
			"columns":          columns,
			"duplicates_found": duplicates,
			"new_products":     newRows,
			"has_duplicates":   duplicates > 0,
		},
	})
}

func previewRow(row internal.NormalizedRow, cl *internal.Classification) map[string]any {
	out := make(map[string]any, len(row.Fields)+4)
	for k, v := range row.Fields {
		out[k] = v
	}
	out["temp_id"] = row.Ordinal

	if cl == nil {
		return out
	}
	out["status"] = string(cl.Status)
	switch cl.Status {
	case internal.RowDuplicateInCatalog:
		out["existing_id"] = cl.CatalogID
	case internal.RowDuplicateInBatch:
		out["duplicate_row"] = cl.EarlierOrdinal
	}
	return out
}

func sizeMB(n int64) float64 {
	return float64(n) / (1024 * 1024)
}

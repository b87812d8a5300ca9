package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"prodcat/internal"
	"prodcat/internal/config"
	"prodcat/internal/pipeline"
	"prodcat/internal/storage"
	"prodcat/internal/ws"
)

func testRouter(t *testing.T) (*gin.Engine, *storage.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := storage.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	cfg := config.Config{
		ImportChunkSize:         10,
		ImportMaxReportedErrors: 10,
		UploadMaxBytes:          10 * 1024 * 1024,
		PreviewRowLimit:         100,
	}
	registry := ws.NewRegistry(logger)
	controller := ws.NewController(db, registry, pipeline.NewImportService(cfg, logger), logger)
	handlers := New(db, cfg, nil, controller)

	router := gin.New()
	RegisterRoutes(router, handlers)
	return router, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetProduct(t *testing.T) {
	router, _ := testRouter(t)

	w := doJSON(t, router, http.MethodPost, "/products", map[string]any{
		"name": "Bolt", "description": "M6", "price": 1.5, "quantity": 10,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	var created struct {
		Product struct {
			ID int64 `json:"id"`
		} `json:"product"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	w = doJSON(t, router, http.MethodGet, "/products/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/products/999", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestCreateProductValidation(t *testing.T) {
	router, _ := testRouter(t)

	w := doJSON(t, router, http.MethodPost, "/products", map[string]any{
		"name": "  ", "description": "d", "price": 1, "quantity": 1,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank name accepted: %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/products", map[string]any{
		"name": "Bolt", "description": "d", "price": -1, "quantity": 1,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative price accepted: %d", w.Code)
	}
}

func uploadForm(t *testing.T, blob []byte, sheetName string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("file", "products.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(blob); err != nil {
		t.Fatal(err)
	}
	if sheetName != "" {
		_ = form.WriteField("sheet_name", sheetName)
	}
	_ = form.Close()
	return body, form.FormDataContentType()
}

func testWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Name", "Description", "Price", "Quantity"},
		{"Bolt", "M6 bolt", "1,50", "10"},
		{"Bolt", "again", "2", "5"},
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	if _, err := f.WriteTo(buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAnalyzeUpload(t *testing.T) {
	router, _ := testRouter(t)

	body, contentType := uploadForm(t, testWorkbook(t), "")
	req := httptest.NewRequest(http.MethodPost, "/upload/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"selected_sheet"`) {
		t.Fatalf("body: %s", w.Body.String())
	}
}

func TestAnalyzeUploadRejectsWrongExtension(t *testing.T) {
	router, _ := testRouter(t)

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, _ := form.CreateFormFile("file", "products.csv")
	_, _ = part.Write([]byte("name,price"))
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload/analyze", body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestValidateDuplicatesUpload(t *testing.T) {
	router, db := testRouter(t)
	if _, err := db.CreateProduct(internal.Product{Name: "Nut", Description: "d", Price: 1, Quantity: 1}); err != nil {
		t.Fatal(err)
	}

	body, contentType := uploadForm(t, testWorkbook(t), "")
	req := httptest.NewRequest(http.MethodPost, "/upload/validate-duplicates", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			DuplicatesFound int  `json:"duplicates_found"`
			NewProducts     int  `json:"new_products"`
			HasDuplicates   bool `json:"has_duplicates"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	// Second "Bolt" row duplicates the first within the sheet.
	if resp.Data.DuplicatesFound != 1 || resp.Data.NewProducts != 1 || !resp.Data.HasDuplicates {
		t.Fatalf("data: %+v", resp.Data)
	}
}

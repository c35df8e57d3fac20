package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lpjform/lpj-backend/internal/models"
	"github.com/lpjform/lpj-backend/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type fakeGenerator struct {
	result *pipeline.Result
	err    error
}

func (f *fakeGenerator) Run(_ context.Context, _ *models.ReportRequest) (*pipeline.Result, error) {
	return f.result, f.err
}

type fakeLedger struct {
	entries []*models.LedgerEntry
	err     error
}

func (f *fakeLedger) List(context.Context) ([]*models.LedgerEntry, error) {
	return f.entries, f.err
}

func (f *fakeLedger) GetByID(_ context.Context, id int64) (*models.LedgerEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, e := range f.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func newRouter(gen Generator, ledger LedgerReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(gen, ledger, zap.NewNop()).Register(router)
	return router
}

func validBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"no_request": "REQ-240101-001",
		"tgl_lpj":    "2024-01-01",
		"rincianItems": []map[string]interface{}{
			{"no": 1, "deskripsi_pum": "Taxi", "jumlah_pum": 50000, "deskripsi_lpj": "Taxi", "jumlah_lpj": 50000},
		},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestGenerateSuccess(t *testing.T) {
	gen := &fakeGenerator{result: &pipeline.Result{
		EntryID:  1,
		FilePath: "/out/x.pdf",
		Content:  []byte("%PDF-1.7 generated"),
	}}
	router := newRouter(gen, &fakeLedger{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/generate-lpj", validBody(t))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, []byte("%PDF-1.7 generated"), w.Body.Bytes())
}

func TestGenerateRejectsMalformedBody(t *testing.T) {
	router := newRouter(&fakeGenerator{}, &fakeLedger{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/generate-lpj", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateRejectsNegativeAmount(t *testing.T) {
	router := newRouter(&fakeGenerator{}, &fakeLedger{})

	body, err := json.Marshal(map[string]interface{}{
		"no_request": "REQ-1",
		"tgl_lpj":    "2024-01-01",
		"rincianItems": []map[string]interface{}{
			{"no": 1, "deskripsi_pum": "Taxi", "jumlah_pum": -5, "deskripsi_lpj": "Taxi", "jumlah_lpj": 5},
		},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/generate-lpj", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "negative")
}

func TestGenerateStageFailuresAreDistinguishable(t *testing.T) {
	tests := []struct {
		name  string
		stage pipeline.Stage
	}{
		{name: "template read failure", stage: pipeline.StageReadTemplate},
		{name: "conversion failure", stage: pipeline.StageConvert},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{err: &pipeline.StageError{Stage: tt.stage, Err: errors.New("boom")}}
			router := newRouter(gen, &fakeLedger{})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/generate-lpj", validBody(t))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Contains(t, w.Body.String(), string(tt.stage))
		})
	}
}

func TestHistoryReturnsTypedList(t *testing.T) {
	ledger := &fakeLedger{entries: []*models.LedgerEntry{
		{ID: 2, NoRequest: "REQ-2", FilePath: "/out/b.pdf", TglLPJ: time.Now(), CreatedAt: time.Now()},
		{ID: 1, NoRequest: "REQ-1", FilePath: "/out/a.pdf", TglLPJ: time.Now(), CreatedAt: time.Now()},
	}}
	router := newRouter(&fakeGenerator{}, ledger)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lpj-history", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var got []models.LedgerEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, "REQ-2", got[0].NoRequest)
}

func TestHistoryEmptyIsAnArray(t *testing.T) {
	router := newRouter(&fakeGenerator{}, &fakeLedger{entries: []*models.LedgerEntry{}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lpj-history", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func writeArtifact(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "LPJ_PUM_Output_test.pdf")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestDownloadRoundTrip(t *testing.T) {
	content := []byte("%PDF-1.7 stored artifact bytes")
	path := writeArtifact(t, content)
	ledger := &fakeLedger{entries: []*models.LedgerEntry{{ID: 7, NoRequest: "REQ-7", FilePath: path}}}
	router := newRouter(&fakeGenerator{}, ledger)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lpj-history/download/7", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.Bytes(), "streamed bytes must match what was persisted")
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, fmt.Sprintf("attachment; filename=%q", filepath.Base(path)),
		w.Header().Get("Content-Disposition"))
}

func TestDownloadUnknownID(t *testing.T) {
	router := newRouter(&fakeGenerator{}, &fakeLedger{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lpj-history/download/99", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadNonNumericID(t *testing.T) {
	router := newRouter(&fakeGenerator{}, &fakeLedger{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lpj-history/download/abc", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadFileDeletedOutOfBand(t *testing.T) {
	path := writeArtifact(t, []byte("%PDF-1.7 x"))
	require.NoError(t, os.Remove(path))
	ledger := &fakeLedger{entries: []*models.LedgerEntry{{ID: 3, FilePath: path}}}
	router := newRouter(&fakeGenerator{}, ledger)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lpj-history/download/3", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadRejectsBadSignature(t *testing.T) {
	path := writeArtifact(t, []byte("<html>not a pdf</html>"))
	ledger := &fakeLedger{entries: []*models.LedgerEntry{{ID: 4, FilePath: path}}}
	router := newRouter(&fakeGenerator{}, ledger)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lpj-history/download/4", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not a valid PDF")
}

func TestDownloadRejectsTruncatedFile(t *testing.T) {
	path := writeArtifact(t, []byte("%PD"))
	ledger := &fakeLedger{entries: []*models.LedgerEntry{{ID: 5, FilePath: path}}}
	router := newRouter(&fakeGenerator{}, ledger)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lpj-history/download/5", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportProducesWorkbook(t *testing.T) {
	ledger := &fakeLedger{entries: []*models.LedgerEntry{
		{
			ID:        1,
			NoRequest: "REQ-240101-001",
			TglLPJ:    time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			FilePath:  "/out/a.pdf",
			CreatedAt: time.Date(2024, time.January, 1, 10, 30, 0, 0, time.UTC),
		},
	}}
	router := newRouter(&fakeGenerator{}, ledger)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lpj-history/export", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))

	wb, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer wb.Close()

	noRequest, err := wb.GetCellValue("Sheet1", "B2")
	require.NoError(t, err)
	assert.Equal(t, "REQ-240101-001", noRequest)
	tgl, err := wb.GetCellValue("Sheet1", "C2")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", tgl)
}

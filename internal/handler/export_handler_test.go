package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/service"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/storage"
)

type exportServiceMock struct {
	dir        string
	lastReq    service.TimetableExportRequest
	resolveErr error
}

func (m *exportServiceMock) Generate(ctx context.Context, req service.TimetableExportRequest) (*service.ExportResult, error) {
	m.lastReq = req
	return &service.ExportResult{ID: "e1", Token: "tok", URL: "/api/v1/exports/tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *exportServiceMock) Resolve(token string) (storage.SignedFile, error) {
	if m.resolveErr != nil {
		return storage.SignedFile{}, m.resolveErr
	}
	return storage.SignedFile{ExportID: "e1", Path: "timetable.pdf"}, nil
}

func (m *exportServiceMock) Open(relPath string) (*os.File, error) {
	return os.Open(filepath.Join(m.dir, relPath))
}

func newExportRouter(svc exportService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{Exports: NewExportHandler(svc)})
}

func TestExportHandlerCreate(t *testing.T) {
	mockSvc := &exportServiceMock{}
	r := newExportRouter(mockSvc)

	rec := doJSON(r, http.MethodPost, "/api/v1/exports/timetable", map[string]string{"semesterId": "sem1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "sem1", mockSvc.lastReq.SemesterID)
	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "/api/v1/exports/tok", data["url"])

	req := httptest.NewRequest(http.MethodPost, "/api/v1/exports/timetable", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "timetable.pdf"), []byte("%PDF-1.3"), 0o644))
	r := newExportRouter(&exportServiceMock{dir: dir})

	rec := doJSON(r, http.MethodGet, "/api/v1/exports/tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "timetable.pdf")
	assert.Equal(t, "%PDF-1.3", rec.Body.String())
}

func TestExportHandlerDownloadExpired(t *testing.T) {
	r := newExportRouter(&exportServiceMock{resolveErr: appErrors.New("EXPORT_EXPIRED", http.StatusGone, "export link expired")})

	rec := doJSON(r, http.MethodGet, "/api/v1/exports/tok", nil)
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestExportHandlerNotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	NewExportHandler(nil).Create(c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

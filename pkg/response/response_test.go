package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorCarriesValidationViolations(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	verr := &models.AllocationValidationError{Violations: []models.AllocationViolation{{AllocationID: "a1", Missing: []string{"day"}}}}
	Error(c, appErrors.Wrap(verr, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, verr.Error()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body["error"].(map[string]interface{})["code"])
	violations := body["meta"].(map[string]interface{})["violations"].([]interface{})
	assert.Len(t, violations, 1)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestErrorCarriesConflictReport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	conflict := &models.AllocationConflictError{Message: "double booked", Report: models.ConflictReport{
		TeacherConflicts: []models.Conflict{{Kind: models.ConflictKindTeacher, EntryIDs: []string{"a1", "a2"}}},
	}}
	Error(c, appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflict.Message))

	assert.Equal(t, http.StatusConflict, rec.Code)
	meta := decodeEnvelope(t, rec)["meta"].(map[string]interface{})
	report := meta["conflicts"].(map[string]interface{})
	assert.Len(t, report["teacherConflicts"], 1)
}

func TestErrorDefaultsToInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	Error(c, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	_, hasMeta := decodeEnvelope(t, rec)["meta"]
	assert.False(t, hasMeta)
}

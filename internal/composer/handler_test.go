package composer

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/nexmo-se/twilio-ec-recording/internal/vonage"
)

func newTestRouter(t *testing.T, platform *fakePlatform) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(newTestService(t, platform), zaptest.NewLogger(t))
	router := gin.New()
	router.POST("/api/recording/start", h.Start)
	router.POST("/api/recording/stop", h.Stop)
	return router
}

func TestStopRejectsIncompleteHandle(t *testing.T) {
	platform := &fakePlatform{}
	router := newTestRouter(t, platform)

	req := httptest.NewRequest(http.MethodPost, "/api/recording/stop",
		strings.NewReader(`{"archive_id":"A1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, platform.archiveStops)
	assert.Zero(t, platform.renderDeletes)
}

func TestStartReturnsHandle(t *testing.T) {
	platform := &fakePlatform{}
	router := newTestRouter(t, platform)

	req := httptest.NewRequest(http.MethodPost, "/api/recording/start",
		strings.NewReader(`{"session_id":"S1","url":"https://app/view"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"render_id":"R1"`)
	assert.Contains(t, rec.Body.String(), `"archive_id":"A1"`)
}

func TestStartNamesFailingLeg(t *testing.T) {
	platform := &fakePlatform{archiveErr: vonage.ErrArchiveStartFailed}
	router := newTestRouter(t, platform)

	req := httptest.NewRequest(http.MethodPost, "/api/recording/start",
		strings.NewReader(`{"session_id":"S1","url":"https://app/view"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "archive start failed")
	// The surviving leg's id is still in the payload for a later stop.
	assert.Contains(t, rec.Body.String(), `"render_id":"R1"`)
}

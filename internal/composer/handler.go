package composer

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexmo-se/twilio-ec-recording/internal/vonage"
	"github.com/nexmo-se/twilio-ec-recording/pkg/response"
)

// Handler serves the composed-recording start/stop endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a composer handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

type startRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	URL       string `json:"url" binding:"required"`
}

type stopRequest struct {
	RenderID  string `json:"render_id"`
	ArchiveID string `json:"archive_id"`
}

// legStatus is the per-leg outcome shape returned from stop. Platform error
// internals are not leaked; the leg name plus a generic failure is enough for
// the caller to decide what to retry.
type legStatus struct {
	ID string `json:"id,omitempty"`
	OK bool   `json:"ok"`
}

// Start handles POST /api/recording/start. On a partial failure the response
// still carries whichever id was created, so the caller can stop it later.
func (h *Handler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "session_id and url are required")
		return
	}

	handle, err := h.svc.Start(c.Request.Context(), req.SessionID, req.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":    false,
			"error":      failedLegs(err),
			"render_id":  handle.RenderID,
			"archive_id": handle.ArchiveID,
		})
		return
	}
	response.OK(c, handle)
}

// Stop handles POST /api/recording/stop.
func (h *Handler) Stop(c *gin.Context) {
	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	res, err := h.svc.Stop(c.Request.Context(), Handle{RenderID: req.RenderID, ArchiveID: req.ArchiveID})
	if err != nil {
		if errors.Is(err, ErrIncompleteHandle) {
			response.BadRequest(c, "both render_id and archive_id are required")
			return
		}
		response.Internal(c, "failed to stop recording")
		return
	}

	response.OK(c, gin.H{
		"archive": legStatus{ID: res.Archive.ID, OK: res.Archive.Err == nil},
		"render":  legStatus{ID: res.Render.ID, OK: res.Render.Err == nil},
	})
}

// failedLegs names which leg(s) failed without exposing platform internals.
func failedLegs(err error) string {
	switch {
	case errors.Is(err, vonage.ErrRenderCreateFailed) && errors.Is(err, vonage.ErrArchiveStartFailed):
		return "render create and archive start failed"
	case errors.Is(err, vonage.ErrRenderCreateFailed):
		return "render create failed"
	case errors.Is(err, vonage.ErrArchiveStartFailed):
		return "archive start failed"
	default:
		return "failed to start recording"
	}
}

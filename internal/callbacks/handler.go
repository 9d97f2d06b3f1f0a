// Package callbacks receives platform status callbacks and turns them into
// room lifecycle events for connected clients.
package callbacks

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexmo-se/twilio-ec-recording/internal/realtime"
)

// RoomResolver maps a platform session id back to its room name.
type RoomResolver interface {
	RoomForSession(ctx context.Context, sessionID string) (string, bool)
}

// Handler handles Vonage archive, Vonage render, and Twilio room status callbacks.
type Handler struct {
	hub      *realtime.Hub
	resolver RoomResolver
	logger   *zap.Logger
}

// NewHandler creates a callbacks handler.
func NewHandler(hub *realtime.Hub, resolver RoomResolver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, resolver: resolver, logger: logger}
}

// archiveStatus is the Vonage archive monitoring callback body.
type archiveStatus struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

// ArchiveStatus handles POST /callbacks/archive. Maps archive started/stopped
// to composed-recording room events. Callbacks for unknown sessions are
// acknowledged and dropped; the reconcilers downstream degrade to no
// notification rather than erroring.
func (h *Handler) ArchiveStatus(c *gin.Context) {
	var body archiveStatus
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	var event string
	switch body.Status {
	case "started":
		event = realtime.EventComposedRecordingStarted
	case "stopped", "uploaded", "available":
		event = realtime.EventComposedRecordingStopped
	default:
		c.Status(http.StatusOK)
		return
	}

	room, ok := h.resolver.RoomForSession(c.Request.Context(), body.SessionID)
	if !ok {
		h.logger.Warn("archive callback for unknown session",
			zap.String("archive_id", body.ID),
			zap.String("session_id", body.SessionID),
		)
		c.Status(http.StatusOK)
		return
	}

	h.logger.Info("archive status",
		zap.String("archive_id", body.ID),
		zap.String("room", room),
		zap.String("status", body.Status),
	)
	h.hub.PublishRecordingEvent(room, event)
	c.Status(http.StatusOK)
}

// RoomStatus handles POST /callbacks/room-status (Twilio, form-encoded).
// Recording lifecycle callbacks become native-recording room events; other
// room events are acknowledged and ignored.
func (h *Handler) RoomStatus(c *gin.Context) {
	callbackEvent := c.PostForm("StatusCallbackEvent")
	room := c.PostForm("RoomName")
	if room == "" {
		c.Status(http.StatusOK)
		return
	}

	var event string
	switch callbackEvent {
	case "recording-started":
		event = realtime.EventRecordingStarted
	case "recording-completed", "recording-failed":
		event = realtime.EventRecordingStopped
	default:
		c.Status(http.StatusOK)
		return
	}

	h.logger.Info("room status", zap.String("room", room), zap.String("event", callbackEvent))
	h.hub.PublishRecordingEvent(room, event)
	c.Status(http.StatusOK)
}

// RenderStatus handles POST /callbacks/render. Render resource state changes
// are logged for debugging only; the archive callback drives notifications.
func (h *Handler) RenderStatus(c *gin.Context) {
	var body struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	h.logger.Info("render status",
		zap.String("render_id", body.ID),
		zap.String("status", body.Status),
		zap.String("reason", body.Reason),
	)
	c.Status(http.StatusOK)
}

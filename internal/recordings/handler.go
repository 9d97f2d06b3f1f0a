package recordings

import (
	"context"
	"errors"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexmo-se/twilio-ec-recording/internal/vonage"
	"github.com/nexmo-se/twilio-ec-recording/pkg/response"
)

// ArchiveGetter fetches a Vonage archive, including its download URL.
type ArchiveGetter interface {
	GetArchive(ctx context.Context, archiveID string) (*vonage.Archive, error)
}

// Handler serves the recording retrieval endpoints.
type Handler struct {
	twilio   *TwilioClient
	archives ArchiveGetter
	logger   *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(twilio *TwilioClient, archives ArchiveGetter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{twilio: twilio, archives: archives, logger: logger}
}

// ListByRoom handles GET /api/recordings/:roomSid. Lists the room's native
// recordings and resolves each media URL concurrently.
func (h *Handler) ListByRoom(c *gin.Context) {
	roomSID := c.Param("roomSid")
	if roomSID == "" {
		response.BadRequest(c, "room sid required")
		return
	}

	ctx := c.Request.Context()
	recs, err := h.twilio.ListRoomRecordings(ctx, roomSID)
	if err != nil {
		h.logger.Error("list room recordings failed", zap.String("room_sid", roomSID), zap.Error(err))
		response.Internal(c, "failed to list recordings")
		return
	}

	urls := make([]string, len(recs))
	errs := make([]error, len(recs))
	var wg sync.WaitGroup
	for i, rec := range recs {
		wg.Add(1)
		go func(i int, sid string) {
			defer wg.Done()
			urls[i], errs[i] = h.twilio.RecordingMediaURL(ctx, roomSID, sid)
		}(i, rec.Sid)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			h.logger.Error("resolve media url failed",
				zap.String("room_sid", roomSID),
				zap.String("recording_sid", recs[i].Sid),
				zap.Error(err),
			)
			response.Internal(c, "failed to resolve recording media")
			return
		}
	}
	response.OK(c, urls)
}

// GetArchive handles GET /api/archives/:archiveId. Returns the archive's
// download URL once the platform has it available.
func (h *Handler) GetArchive(c *gin.Context) {
	archiveID := c.Param("archiveId")
	if archiveID == "" {
		response.BadRequest(c, "archive id required")
		return
	}

	archive, err := h.archives.GetArchive(c.Request.Context(), archiveID)
	if err != nil {
		if errors.Is(err, vonage.ErrArchiveNotFound) {
			response.NotFound(c, "archive not found")
			return
		}
		h.logger.Error("get archive failed", zap.String("archive_id", archiveID), zap.Error(err))
		response.Internal(c, "failed to fetch archive")
		return
	}
	response.OK(c, gin.H{"url": archive.URL, "status": archive.Status})
}

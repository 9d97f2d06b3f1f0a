package sessions

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexmo-se/twilio-ec-recording/pkg/response"
)

// TokenGenerator mints a fresh participant token for a session. Tokens are
// single-use-scoped to one join and cheap, so they are never cached.
type TokenGenerator interface {
	GenerateToken(sessionID string) (string, error)
}

// Handler serves session credential requests.
type Handler struct {
	store  *Store
	tokens TokenGenerator
	apiKey string
	logger *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(store *Store, tokens TokenGenerator, apiKey string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, tokens: tokens, apiKey: apiKey, logger: logger}
}

type credentialRequest struct {
	RoomName string `json:"room_name" binding:"required"`
}

// Credential handles POST /api/credential. Returns the cached (or newly
// created) session for the room plus a fresh join token.
func (h *Handler) Credential(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "room_name is required")
		return
	}

	sessionID, err := h.store.GetOrCreate(c.Request.Context(), req.RoomName)
	if err != nil {
		h.logger.Error("get or create session failed", zap.String("room", req.RoomName), zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}

	token, err := h.tokens.GenerateToken(sessionID)
	if err != nil {
		h.logger.Error("token generation failed", zap.String("room", req.RoomName), zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}

	response.OK(c, gin.H{
		"api_key":    h.apiKey,
		"session_id": sessionID,
		"token":      token,
	})
}

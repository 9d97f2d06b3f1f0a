package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nexmo-se/twilio-ec-recording/pkg/response"
)

// Passcode returns a middleware that checks a shared bearer passcode.
// Real identity verification happens upstream of this service; the passcode is
// a deploy-time gate for the control endpoints. Empty passcode = no check,
// mirroring deployments where the auth proxy is doing the work.
func Passcode(passcode string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if passcode == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "missing or invalid authorization header")
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(passcode)) != 1 {
			response.Unauthorized(c, "invalid passcode")
			c.Abort()
			return
		}
		c.Next()
	}
}

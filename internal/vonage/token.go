package vonage

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"time"
)

// tokenTTL is the participant token lifetime. Tokens are minted per join and
// never cached, so a generous lifetime is safe.
const tokenTTL = 24 * time.Hour

// GenerateToken creates an OpenTok participant token (T1 format) scoped to one
// session. The token is what a participant, human or headless composer, uses
// to join the session.
func (c *Client) GenerateToken(sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("generate token: empty session id")
	}
	nonce, err := rand.Int(rand.Reader, big.NewInt(1<<31))
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	now := time.Now()
	data := url.Values{}
	data.Set("session_id", sessionID)
	data.Set("create_time", strconv.FormatInt(now.Unix(), 10))
	data.Set("expire_time", strconv.FormatInt(now.Add(tokenTTL).Unix(), 10))
	data.Set("nonce", nonce.String())
	data.Set("role", "publisher")
	encoded := data.Encode()

	mac := hmac.New(sha1.New, []byte(c.apiSecret))
	mac.Write([]byte(encoded))
	sig := hex.EncodeToString(mac.Sum(nil))

	payload := fmt.Sprintf("partner_id=%s&sig=%s:%s", c.apiKey, sig, encoded)
	return "T1==" + base64.StdEncoding.EncodeToString([]byte(payload)), nil
}

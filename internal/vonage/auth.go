package vonage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrSigningFailed indicates a project assertion could not be signed.
var ErrSigningFailed = errors.New("assertion signing failed")

// assertionTTL is deliberately tiny: each assertion authorizes exactly one
// REST call issued immediately after signing. The small grace keeps the call
// itself from racing the expiry.
const assertionTTL = 2 * time.Second

// Authenticator mints short-lived, project-scoped JWT assertions for the
// OpenTok REST API (sent as the X-OPENTOK-AUTH header). These are distinct
// from participant session tokens: one assertion authorizes one control-plane
// call and is never reused.
type Authenticator struct {
	apiKey    string
	apiSecret string
}

// NewAuthenticator creates an authenticator for the given project credentials.
func NewAuthenticator(apiKey, apiSecret string) *Authenticator {
	return &Authenticator{apiKey: apiKey, apiSecret: apiSecret}
}

// Sign produces a fresh project assertion. The jti claim is a random nonce to
// reduce replay risk within the already-tiny validity window.
func (a *Authenticator) Sign() (string, error) {
	if a.apiSecret == "" {
		return "", fmt.Errorf("%w: api secret not configured", ErrSigningFailed)
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": a.apiKey,
		"ist": "project",
		"iat": now.Unix(),
		"exp": now.Add(assertionTTL).Unix(),
		"jti": uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.apiSecret))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	return signed, nil
}

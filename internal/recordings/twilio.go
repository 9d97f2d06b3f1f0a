// Package recordings is the read-only retrieval path: listing a room's native
// recordings on Twilio and resolving short-lived media URLs, plus the Vonage
// archive download lookup.
package recordings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexmo-se/twilio-ec-recording/config"
)

// Recording is one native room recording on the platform.
type Recording struct {
	Sid             string `json:"sid"`
	RoomSid         string `json:"grouping_sids,omitempty"`
	Status          string `json:"status"`
	Duration        int    `json:"duration"`
	ContainerFormat string `json:"container_format"`
	Type            string `json:"type"`
}

// TwilioClient calls the Twilio Video REST API with API-key basic auth.
type TwilioClient struct {
	keySID    string
	keySecret string
	apiURL    string
	http      *http.Client
	logger    *zap.Logger
}

// NewTwilioClient creates a Twilio Video API client. Redirects are not
// followed: the media endpoint's redirect target is the value we want.
func NewTwilioClient(cfg config.TwilioConfig, logger *zap.Logger) *TwilioClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TwilioClient{
		keySID:    cfg.APIKeySID,
		keySecret: cfg.APIKeySecret,
		apiURL:    strings.TrimRight(cfg.VideoAPIURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// ListRoomRecordings lists recordings grouped under a room sid.
func (c *TwilioClient) ListRoomRecordings(ctx context.Context, roomSID string) ([]Recording, error) {
	req, err := c.newRequest(ctx, c.apiURL+"/v1/Recordings?GroupingSid="+roomSID)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list recordings: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Recordings []Recording `json:"recordings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("list recordings: decode: %w", err)
	}
	return body.Recordings, nil
}

// RecordingMediaURL resolves the short-lived playable URL for one recording.
// The media endpoint answers with a redirect; depending on the edge it is
// either an HTTP 302 Location or a 200 with a redirect_to body.
func (c *TwilioClient) RecordingMediaURL(ctx context.Context, roomSID, recordingSID string) (string, error) {
	url := fmt.Sprintf("%s/v1/Rooms/%s/Recordings/%s/Media", c.apiURL, roomSID, recordingSID)
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("recording media: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc := resp.Header.Get("Location")
		if loc == "" {
			return "", fmt.Errorf("recording media: redirect without location")
		}
		return loc, nil
	case resp.StatusCode == http.StatusOK:
		var body struct {
			RedirectTo string `json:"redirect_to"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", fmt.Errorf("recording media: decode: %w", err)
		}
		if body.RedirectTo == "" {
			return "", fmt.Errorf("recording media: empty redirect_to")
		}
		return body.RedirectTo, nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		c.logger.Warn("recording media error",
			zap.String("recording_sid", recordingSID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return "", fmt.Errorf("recording media: unexpected status %d", resp.StatusCode)
	}
}

func (c *TwilioClient) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keySID, c.keySecret)
	return req, nil
}

// Package vonage is a thin REST client for the Vonage Video (OpenTok) API:
// session creation, participant tokens, archives, and Experience Composer
// render resources. Control-plane calls are authenticated with a fresh
// project assertion per call.
package vonage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexmo-se/twilio-ec-recording/config"
)

var (
	// ErrSessionCreationFailed indicates the platform rejected or failed a session create.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrRenderCreateFailed indicates the render resource (headless composer) could not be created.
	ErrRenderCreateFailed = errors.New("render resource create failed")
	// ErrRenderDeleteFailed indicates the render resource could not be deleted.
	ErrRenderDeleteFailed = errors.New("render resource delete failed")
	// ErrArchiveStartFailed indicates the archive could not be started.
	ErrArchiveStartFailed = errors.New("archive start failed")
	// ErrArchiveStopFailed indicates the archive could not be stopped.
	ErrArchiveStopFailed = errors.New("archive stop failed")
	// ErrArchiveNotFound indicates the archive does not exist.
	ErrArchiveNotFound = errors.New("archive not found")
)

// Client calls the OpenTok REST API for one project.
type Client struct {
	apiKey    string
	apiSecret string
	apiURL    string
	auth      *Authenticator
	http      *http.Client
	logger    *zap.Logger
}

// NewClient creates a Vonage Video API client.
func NewClient(cfg config.VonageConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		apiURL:    strings.TrimRight(cfg.APIURL, "/"),
		auth:      NewAuthenticator(cfg.APIKey, cfg.APISecret),
		http:      &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

// RenderRequest describes an Experience Composer render resource to create.
type RenderRequest struct {
	SessionID      string
	Token          string
	URL            string
	MaxDurationSec int
	Resolution     string
	Name           string
}

// Archive is the platform's view of an archive resource.
type Archive struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	URL      string `json:"url"`
	Duration int    `json:"duration"`
	Size     int64  `json:"size"`
}

// CreateSession creates a routed session. Routed media (relayed through the
// platform, never peer-to-peer) is required so the render resource and the
// archive can attach to the media stream.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("p2p.preference", "disabled")
	req, err := c.newRequest(ctx, http.MethodPost, "/session/create", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var sessions []struct {
		SessionID string `json:"session_id"`
	}
	if err := c.do(req, http.StatusOK, &sessions); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	if len(sessions) == 0 || sessions[0].SessionID == "" {
		return "", fmt.Errorf("%w: empty response", ErrSessionCreationFailed)
	}
	return sessions[0].SessionID, nil
}

// CreateRender creates an Experience Composer render resource that joins the
// session as a headless participant and renders the given URL.
func (c *Client) CreateRender(ctx context.Context, r RenderRequest) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"sessionId":   r.SessionID,
		"token":       r.Token,
		"url":         r.URL,
		"maxDuration": r.MaxDurationSec,
		"resolution":  r.Resolution,
		"properties":  map[string]string{"name": r.Name},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderCreateFailed, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.projectPath("/render"), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(req, http.StatusAccepted, &created); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderCreateFailed, err)
	}
	return created.ID, nil
}

// DeleteRender deletes a render resource, disconnecting the headless participant.
func (c *Client) DeleteRender(ctx context.Context, renderID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.projectPath("/render/"+renderID), nil)
	if err != nil {
		return err
	}
	if err := c.do(req, http.StatusNoContent, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrRenderDeleteFailed, err)
	}
	return nil
}

// StartArchive starts a manual archive for the session. Manual rather than
// automatic archiving: an automatic archive only stops ~60s after the last
// disconnect, which is too slow when the caller wants stop-on-command.
func (c *Client) StartArchive(ctx context.Context, sessionID, name string) (string, error) {
	body, err := json.Marshal(map[string]string{"sessionId": sessionID, "name": name})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrArchiveStartFailed, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.projectPath("/archive"), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var archive Archive
	if err := c.do(req, http.StatusOK, &archive); err != nil {
		return "", fmt.Errorf("%w: %v", ErrArchiveStartFailed, err)
	}
	return archive.ID, nil
}

// StopArchive stops an archive and returns its id.
func (c *Client) StopArchive(ctx context.Context, archiveID string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.projectPath("/archive/"+archiveID+"/stop"), nil)
	if err != nil {
		return "", err
	}
	var archive Archive
	if err := c.do(req, http.StatusOK, &archive); err != nil {
		return "", fmt.Errorf("%w: %v", ErrArchiveStopFailed, err)
	}
	return archive.ID, nil
}

// GetArchive fetches an archive, including its download URL once available.
func (c *Client) GetArchive(ctx context.Context, archiveID string) (*Archive, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.projectPath("/archive/"+archiveID), nil)
	if err != nil {
		return nil, err
	}
	var archive Archive
	if err := c.do(req, http.StatusOK, &archive); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, archiveID)
		}
		return nil, fmt.Errorf("get archive: %w", err)
	}
	return &archive, nil
}

func (c *Client) projectPath(suffix string) string {
	return "/v2/project/" + c.apiKey + suffix
}

// newRequest builds an authenticated request. A fresh assertion is signed per
// request; a signing failure aborts before any call is issued.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	assertion, err := c.auth.Sign()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-OPENTOK-AUTH", assertion)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

var errNotFound = errors.New("not found")

// do executes the request, checks for the expected status (2xx tolerated when
// the platform answers 200 vs 202/204 inconsistently) and decodes out if non-nil.
func (c *Client) do(req *http.Request, want int, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != want && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("vonage api error",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

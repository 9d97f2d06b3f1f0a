// Package composer orchestrates composed recordings: an Experience Composer
// render resource (headless viewer) paired with a manual archive, started and
// torn down as a unit even though the two platform resources are independent.
package composer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/nexmo-se/twilio-ec-recording/config"
	"github.com/nexmo-se/twilio-ec-recording/internal/metrics"
	"github.com/nexmo-se/twilio-ec-recording/internal/vonage"
)

// ErrIncompleteHandle indicates a Stop request missing one of the pair's ids.
// A stop with only one id is rejected outright: ambiguity about whether the
// recording was ever fully started is worse than an explicit error.
var ErrIncompleteHandle = errors.New("incomplete composed-recording handle")

// Platform is the subset of the video platform API the orchestrator consumes.
type Platform interface {
	GenerateToken(sessionID string) (string, error)
	CreateRender(ctx context.Context, r vonage.RenderRequest) (string, error)
	DeleteRender(ctx context.Context, renderID string) error
	StartArchive(ctx context.Context, sessionID, name string) (string, error)
	StopArchive(ctx context.Context, archiveID string) (string, error)
}

// Handle is the correlated pair of ids a successful Start returns and a Stop
// requires. When a Start leg fails the corresponding member is empty; the
// caller keeps whatever did succeed and retries Stop with it later.
type Handle struct {
	RenderID  string `json:"render_id"`
	ArchiveID string `json:"archive_id"`
}

// LegResult is one leg's outcome from Stop.
type LegResult struct {
	ID  string
	Err error
}

// StopResult aggregates both teardown legs. Both are always attempted; a
// failed leg never suppresses the other's result.
type StopResult struct {
	Archive LegResult
	Render  LegResult
}

// Service starts and stops composed recordings. It is stateless across calls:
// tracking at most one active handle per room is the business layer's job, and
// a second Start for the same session is not de-duplicated here.
type Service struct {
	platform Platform
	policy   config.RecordingConfig
	logger   *zap.Logger
}

// NewService creates the orchestrator.
func NewService(platform Platform, policy config.RecordingConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{platform: platform, policy: policy, logger: logger}
}

// Start launches both legs concurrently: render resource creation and archive
// start. Neither leg is rolled back when the other fails; the partial handle
// is returned alongside the error so the caller can Stop it later.
func (s *Service) Start(ctx context.Context, sessionID, viewURL string) (Handle, error) {
	token, err := s.platform.GenerateToken(sessionID)
	if err != nil {
		return Handle{}, fmt.Errorf("mint composer token: %w", err)
	}
	composedURL, err := withRoleMarker(viewURL, s.policy.ECRole)
	if err != nil {
		return Handle{}, fmt.Errorf("view url: %w", err)
	}

	var (
		wg                    sync.WaitGroup
		renderID, archiveID   string
		renderErr, archiveErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		renderID, renderErr = s.platform.CreateRender(ctx, vonage.RenderRequest{
			SessionID:      sessionID,
			Token:          token,
			URL:            composedURL,
			MaxDurationSec: s.policy.MaxDurationSec,
			Resolution:     s.policy.Resolution,
			Name:           "EC",
		})
	}()
	go func() {
		defer wg.Done()
		archiveID, archiveErr = s.platform.StartArchive(ctx, sessionID, s.policy.ArchiveName)
	}()
	wg.Wait()

	if renderErr != nil {
		metrics.LegFailures.WithLabelValues("render_create").Inc()
		s.logger.Error("render create failed", zap.String("session_id", sessionID), zap.Error(renderErr))
	}
	if archiveErr != nil {
		metrics.LegFailures.WithLabelValues("archive_start").Inc()
		s.logger.Error("archive start failed", zap.String("session_id", sessionID), zap.Error(archiveErr))
	}

	handle := Handle{RenderID: renderID, ArchiveID: archiveID}
	err = errors.Join(renderErr, archiveErr)
	metrics.RecordingStarts.WithLabelValues(startOutcome(renderErr, archiveErr)).Inc()
	if err == nil {
		s.logger.Info("composed recording started",
			zap.String("session_id", sessionID),
			zap.String("render_id", renderID),
			zap.String("archive_id", archiveID),
		)
	}
	return handle, err
}

// Stop tears down both legs concurrently. Both are attempted regardless of the
// other's outcome; each platform call signs its own fresh assertion since the
// assertions are near-immediately expiring.
func (s *Service) Stop(ctx context.Context, h Handle) (StopResult, error) {
	if h.RenderID == "" || h.ArchiveID == "" {
		metrics.RecordingStops.WithLabelValues("rejected").Inc()
		return StopResult{}, ErrIncompleteHandle
	}

	var (
		wg  sync.WaitGroup
		res StopResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		id, err := s.platform.StopArchive(ctx, h.ArchiveID)
		res.Archive = LegResult{ID: id, Err: err}
	}()
	go func() {
		defer wg.Done()
		err := s.platform.DeleteRender(ctx, h.RenderID)
		if err == nil {
			res.Render = LegResult{ID: h.RenderID}
		} else {
			res.Render = LegResult{Err: err}
		}
	}()
	wg.Wait()

	outcome := "ok"
	if res.Archive.Err != nil {
		metrics.LegFailures.WithLabelValues("archive_stop").Inc()
		s.logger.Error("archive stop failed", zap.String("archive_id", h.ArchiveID), zap.Error(res.Archive.Err))
		outcome = "partial"
	}
	if res.Render.Err != nil {
		metrics.LegFailures.WithLabelValues("render_delete").Inc()
		s.logger.Error("render delete failed", zap.String("render_id", h.RenderID), zap.Error(res.Render.Err))
		outcome = "partial"
	}
	metrics.RecordingStops.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		s.logger.Info("composed recording stopped",
			zap.String("render_id", h.RenderID),
			zap.String("archive_id", h.ArchiveID),
		)
	}
	return res, nil
}

// withRoleMarker appends the composer role query parameter so room-side
// participant listings can filter the headless viewer out.
func withRoleMarker(viewURL, role string) (string, error) {
	u, err := url.Parse(viewURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("role", role)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func startOutcome(renderErr, archiveErr error) string {
	switch {
	case renderErr == nil && archiveErr == nil:
		return "ok"
	case renderErr != nil && archiveErr != nil:
		return "failed"
	default:
		return "partial"
	}
}

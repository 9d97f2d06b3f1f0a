package composer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nexmo-se/twilio-ec-recording/config"
	"github.com/nexmo-se/twilio-ec-recording/internal/vonage"
)

type fakePlatform struct {
	mu sync.Mutex

	tokenErr   error
	renderErr  error
	archiveErr error
	stopErr    error
	deleteErr  error

	tokenCalls    int
	renderCreates int
	archiveStarts int
	renderDeletes int
	archiveStops  int

	lastRender vonage.RenderRequest
}

func (f *fakePlatform) GenerateToken(sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "T1==token", nil
}

func (f *fakePlatform) CreateRender(ctx context.Context, r vonage.RenderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renderCreates++
	f.lastRender = r
	if f.renderErr != nil {
		return "", f.renderErr
	}
	return "R1", nil
}

func (f *fakePlatform) DeleteRender(ctx context.Context, renderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renderDeletes++
	return f.deleteErr
}

func (f *fakePlatform) StartArchive(ctx context.Context, sessionID, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archiveStarts++
	if f.archiveErr != nil {
		return "", f.archiveErr
	}
	return "A1", nil
}

func (f *fakePlatform) StopArchive(ctx context.Context, archiveID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archiveStops++
	if f.stopErr != nil {
		return "", f.stopErr
	}
	return archiveID, nil
}

func testPolicy() config.RecordingConfig {
	return config.RecordingConfig{
		ECRole:         "ec-recorder",
		MaxDurationSec: 1800,
		Resolution:     "1280x720",
		ArchiveName:    "EC Recording",
	}
}

func newTestService(t *testing.T, platform *fakePlatform) *Service {
	t.Helper()
	return NewService(platform, testPolicy(), zaptest.NewLogger(t))
}

func TestStartSuccess(t *testing.T) {
	platform := &fakePlatform{}
	svc := newTestService(t, platform)

	handle, err := svc.Start(context.Background(), "S1", "https://app/view")
	require.NoError(t, err)

	assert.Equal(t, "R1", handle.RenderID)
	assert.Equal(t, "A1", handle.ArchiveID)
	assert.Equal(t, 1, platform.renderCreates)
	assert.Equal(t, 1, platform.archiveStarts)

	assert.Equal(t, "S1", platform.lastRender.SessionID)
	assert.Equal(t, "T1==token", platform.lastRender.Token)
	assert.Equal(t, "https://app/view?role=ec-recorder", platform.lastRender.URL)
	assert.Equal(t, 1800, platform.lastRender.MaxDurationSec)
	assert.Equal(t, "1280x720", platform.lastRender.Resolution)
}

func TestStartArchiveLegFails(t *testing.T) {
	platform := &fakePlatform{archiveErr: vonage.ErrArchiveStartFailed}
	svc := newTestService(t, platform)

	handle, err := svc.Start(context.Background(), "S1", "https://app/view")
	require.Error(t, err)
	assert.ErrorIs(t, err, vonage.ErrArchiveStartFailed)
	assert.NotErrorIs(t, err, vonage.ErrRenderCreateFailed)

	// The successful render leg is not rolled back; its id survives so the
	// caller can stop it later.
	assert.Equal(t, "R1", handle.RenderID)
	assert.Empty(t, handle.ArchiveID)
	assert.Equal(t, 1, platform.renderCreates)
	assert.Equal(t, 1, platform.archiveStarts)
}

func TestStartRenderLegFails(t *testing.T) {
	platform := &fakePlatform{renderErr: vonage.ErrRenderCreateFailed}
	svc := newTestService(t, platform)

	handle, err := svc.Start(context.Background(), "S1", "https://app/view")
	require.Error(t, err)
	assert.ErrorIs(t, err, vonage.ErrRenderCreateFailed)
	assert.Empty(t, handle.RenderID)
	assert.Equal(t, "A1", handle.ArchiveID)
}

func TestStartBothLegsFail(t *testing.T) {
	platform := &fakePlatform{
		renderErr:  vonage.ErrRenderCreateFailed,
		archiveErr: vonage.ErrArchiveStartFailed,
	}
	svc := newTestService(t, platform)

	handle, err := svc.Start(context.Background(), "S1", "https://app/view")
	require.Error(t, err)
	assert.ErrorIs(t, err, vonage.ErrRenderCreateFailed)
	assert.ErrorIs(t, err, vonage.ErrArchiveStartFailed)
	assert.Equal(t, Handle{}, handle)
}

func TestStartTokenFailureAbortsBothLegs(t *testing.T) {
	platform := &fakePlatform{tokenErr: errors.New("no session")}
	svc := newTestService(t, platform)

	_, err := svc.Start(context.Background(), "S1", "https://app/view")
	require.Error(t, err)
	assert.Zero(t, platform.renderCreates)
	assert.Zero(t, platform.archiveStarts)
}

func TestStopSuccess(t *testing.T) {
	platform := &fakePlatform{}
	svc := newTestService(t, platform)

	res, err := svc.Stop(context.Background(), Handle{RenderID: "R1", ArchiveID: "A1"})
	require.NoError(t, err)

	assert.Equal(t, "A1", res.Archive.ID)
	assert.NoError(t, res.Archive.Err)
	assert.Equal(t, "R1", res.Render.ID)
	assert.NoError(t, res.Render.Err)
	assert.Equal(t, 1, platform.archiveStops)
	assert.Equal(t, 1, platform.renderDeletes)
}

func TestStopIncompleteHandle(t *testing.T) {
	platform := &fakePlatform{}
	svc := newTestService(t, platform)

	for _, h := range []Handle{
		{RenderID: "", ArchiveID: "A1"},
		{RenderID: "R1", ArchiveID: ""},
		{},
	} {
		_, err := svc.Stop(context.Background(), h)
		assert.ErrorIs(t, err, ErrIncompleteHandle)
	}
	assert.Zero(t, platform.archiveStops, "rejected stops must issue no external calls")
	assert.Zero(t, platform.renderDeletes, "rejected stops must issue no external calls")
}

func TestStopRenderDeleteFailureStillStopsArchive(t *testing.T) {
	platform := &fakePlatform{deleteErr: vonage.ErrRenderDeleteFailed}
	svc := newTestService(t, platform)

	res, err := svc.Stop(context.Background(), Handle{RenderID: "R1", ArchiveID: "A1"})
	require.NoError(t, err)

	assert.Equal(t, "A1", res.Archive.ID)
	assert.NoError(t, res.Archive.Err)
	assert.ErrorIs(t, res.Render.Err, vonage.ErrRenderDeleteFailed)
	assert.Equal(t, 1, platform.archiveStops, "archive stop must be attempted despite render failure")
	assert.Equal(t, 1, platform.renderDeletes)
}

func TestStopArchiveFailureStillDeletesRender(t *testing.T) {
	platform := &fakePlatform{stopErr: vonage.ErrArchiveStopFailed}
	svc := newTestService(t, platform)

	res, err := svc.Stop(context.Background(), Handle{RenderID: "R1", ArchiveID: "A1"})
	require.NoError(t, err)

	assert.ErrorIs(t, res.Archive.Err, vonage.ErrArchiveStopFailed)
	assert.Equal(t, "R1", res.Render.ID)
	assert.NoError(t, res.Render.Err)
	assert.Equal(t, 1, platform.archiveStops)
	assert.Equal(t, 1, platform.renderDeletes)
}

func TestWithRoleMarkerPreservesQuery(t *testing.T) {
	got, err := withRoleMarker("https://app/view?room=demo", "ec-recorder")
	require.NoError(t, err)
	assert.Equal(t, "https://app/view?role=ec-recorder&room=demo", got)
}

package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nexmo-se/twilio-ec-recording/internal/notifications"
)

func newHubClient(room, identity string) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Room:     room,
		Identity: identity,
		send:     make(chan WSMessage, 32),
		notifier: notifications.NewReconciler(),
	}
}

func drain(c *Client) []WSMessage {
	var msgs []WSMessage
	for {
		select {
		case m := <-c.send:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func notificationsOf(msgs []WSMessage) []notifications.Notification {
	var out []notifications.Notification
	for _, m := range msgs {
		if m.Type == "notification" && m.Notification != nil {
			out = append(out, *m.Notification)
		}
	}
	return out
}

func TestSubscriberSeesStartAndFinish(t *testing.T) {
	hub := NewHub("ec-recorder", nil, nil, zaptest.NewLogger(t))
	c := newHubClient("demo", "alice")
	hub.Register(c)
	drain(c)

	hub.PublishRecordingEvent("demo", EventRecordingStarted)
	hub.PublishRecordingEvent("demo", EventRecordingStopped)

	got := notificationsOf(drain(c))
	require.Len(t, got, 2)
	assert.Equal(t, notifications.StateStarted, got[0].State)
	assert.Equal(t, notifications.StateFinished, got[1].State)
	assert.Equal(t, notifications.TrackNative, got[0].Track)
}

func TestLateJoinerGetsInProgress(t *testing.T) {
	hub := NewHub("ec-recorder", nil, nil, zaptest.NewLogger(t))

	// Keep the room alive so its flag state is retained.
	hub.Register(newHubClient("demo", "host"))
	hub.PublishRecordingEvent("demo", EventComposedRecordingStarted)

	late := newHubClient("demo", "bob")
	hub.Register(late)

	got := notificationsOf(drain(late))
	require.Len(t, got, 1)
	assert.Equal(t, notifications.TrackComposed, got[0].Track)
	assert.Equal(t, notifications.StateInProgress, got[0].State)
}

func TestJoinerBeforeRecordingGetsStartedNotInProgress(t *testing.T) {
	hub := NewHub("ec-recorder", nil, nil, zaptest.NewLogger(t))
	c := newHubClient("demo", "alice")
	hub.Register(c)
	drain(c)

	hub.PublishRecordingEvent("demo", EventComposedRecordingStarted)

	got := notificationsOf(drain(c))
	require.Len(t, got, 1)
	assert.Equal(t, notifications.StateStarted, got[0].State)
}

func TestTracksDoNotInterfere(t *testing.T) {
	hub := NewHub("ec-recorder", nil, nil, zaptest.NewLogger(t))
	c := newHubClient("demo", "alice")
	hub.Register(c)
	drain(c)

	hub.PublishRecordingEvent("demo", EventRecordingStarted)
	hub.PublishRecordingEvent("demo", EventComposedRecordingStarted)
	hub.PublishRecordingEvent("demo", EventRecordingStopped)

	got := notificationsOf(drain(c))
	require.Len(t, got, 3)
	assert.Equal(t, notifications.Notification{Track: notifications.TrackNative, State: notifications.StateStarted}, got[0])
	assert.Equal(t, notifications.Notification{Track: notifications.TrackComposed, State: notifications.StateStarted}, got[1])
	assert.Equal(t, notifications.Notification{Track: notifications.TrackNative, State: notifications.StateFinished}, got[2])
}

func TestRepeatedEventEmitsNothing(t *testing.T) {
	hub := NewHub("ec-recorder", nil, nil, zaptest.NewLogger(t))
	c := newHubClient("demo", "alice")
	hub.Register(c)
	drain(c)

	hub.PublishRecordingEvent("demo", EventRecordingStarted)
	hub.PublishRecordingEvent("demo", EventRecordingStarted)

	got := notificationsOf(drain(c))
	assert.Len(t, got, 1)
}

func TestRosterFiltersComposerIdentity(t *testing.T) {
	hub := NewHub("ec-recorder", nil, nil, zaptest.NewLogger(t))
	hub.Register(newHubClient("demo", "alice"))
	hub.Register(newHubClient("demo", "ec-recorder"))
	hub.Register(newHubClient("demo", "bob"))

	got := hub.Participants("demo")
	assert.ElementsMatch(t, []string{"alice", "bob"}, got)
}

func TestDismissKeepsTrackBookkeeping(t *testing.T) {
	hub := NewHub("ec-recorder", nil, nil, zaptest.NewLogger(t))
	c := newHubClient("demo", "alice")
	hub.Register(c)
	drain(c)

	hub.PublishRecordingEvent("demo", EventRecordingStarted)
	hub.Dismiss(c)

	hub.PublishRecordingEvent("demo", EventRecordingStopped)
	got := notificationsOf(drain(c))
	require.Len(t, got, 2)
	assert.Equal(t, notifications.StateFinished, got[1].State)
}

func TestUnregisterDropsClient(t *testing.T) {
	hub := NewHub("ec-recorder", nil, nil, zaptest.NewLogger(t))
	c := newHubClient("demo", "alice")
	hub.Register(c)
	hub.Unregister(c)

	assert.Empty(t, hub.Participants("demo"))
	// Publishing after the last client left must not panic.
	hub.PublishRecordingEvent("demo", EventRecordingStarted)
}

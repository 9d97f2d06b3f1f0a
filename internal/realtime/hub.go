// Package realtime streams room lifecycle events to connected clients over
// WebSocket and runs a per-connection notification reconciler, so every
// subscriber sees started / inProgress / finished transitions computed against
// its own observation history.
package realtime

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexmo-se/twilio-ec-recording/internal/notifications"
)

// Room lifecycle events. Native events come from the Twilio room status
// callback, composed events from the Vonage archive callback.
const (
	EventRecordingStarted         = "recordingStarted"
	EventRecordingStopped         = "recordingStopped"
	EventComposedRecordingStarted = "composedRecordingStarted"
	EventComposedRecordingStopped = "composedRecordingStopped"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Type         string                      `json:"type"` // event | notification | roster
	Event        string                      `json:"event,omitempty"`
	Notification *notifications.Notification `json:"notification,omitempty"`
	Participants []string                    `json:"participants,omitempty"`
}

// Publisher publishes room events for other instances.
type Publisher interface {
	PublishRoomEvent(room, origin, event string) error
}

// Subscriber subscribes to a room's events from other instances.
type Subscriber interface {
	SubscribeRoom(room string, handler func(origin, event string)) (cancel func(), err error)
}

// roomFlags is the last known recording flag per track for a room, kept so a
// client subscribing mid-recording is immediately told what is in progress.
type roomFlags struct {
	known map[notifications.Track]bool
	value map[notifications.Track]bool
}

func newRoomFlags() *roomFlags {
	return &roomFlags{
		known: make(map[notifications.Track]bool),
		value: make(map[notifications.Track]bool),
	}
}

// Hub maintains room -> clients and fans room events out to them. Uses Redis
// pub/sub for horizontal scaling; the origin id keeps an instance from
// re-consuming its own publishes.
type Hub struct {
	id     string
	ecRole string
	mu     sync.Mutex
	rooms  map[string]map[string]*Client
	flags  map[string]*roomFlags
	subs   map[string]func()
	pub    Publisher
	sub    Subscriber
	logger *zap.Logger
}

// NewHub creates a hub. pub and sub may be nil for single-instance deployments.
// ecRole is the identity marker of the headless composer participant, filtered
// out of every roster.
func NewHub(ecRole string, pub Publisher, sub Subscriber, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		id:     uuid.NewString(),
		ecRole: ecRole,
		rooms:  make(map[string]map[string]*Client),
		flags:  make(map[string]*roomFlags),
		subs:   make(map[string]func()),
		pub:    pub,
		sub:    sub,
		logger: logger,
	}
}

// Register adds a client to a room and replays the room's known recording
// flags into the client's reconciler: a flag already true at subscription time
// surfaces as inProgress, a known-false flag just primes the bookkeeping.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.Room] == nil {
		h.rooms[c.Room] = make(map[string]*Client)
		if h.sub != nil {
			room := c.Room
			cancel, err := h.sub.SubscribeRoom(room, func(origin, event string) {
				if origin == h.id {
					return
				}
				h.mu.Lock()
				h.applyEvent(room, event)
				h.mu.Unlock()
			})
			if err == nil {
				h.subs[room] = cancel
			} else {
				h.logger.Warn("room subscription failed", zap.String("room", room), zap.Error(err))
			}
		}
	}
	h.rooms[c.Room][c.ID] = c

	// Prime both tracks with the room's current state. A flag already true
	// surfaces as inProgress; an unknown flag is treated as not-recording so
	// the next start event reads as a clean false→true edge.
	fl := h.flags[c.Room]
	for _, track := range []notifications.Track{notifications.TrackNative, notifications.TrackComposed} {
		recording := false
		if fl != nil && fl.known[track] {
			recording = fl.value[track]
		}
		if n, emitted := c.notifier.Observe(track, recording); emitted {
			c.push(WSMessage{Type: "notification", Notification: &n})
		}
	}
	h.broadcastRoster(c.Room)
	h.mu.Unlock()
	h.logger.Debug("client joined room", zap.String("client_id", c.ID), zap.String("room", c.Room))
}

// Unregister removes a client; the room's Redis subscription is cancelled when
// the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.Room]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.Room)
			if cancel, ok := h.subs[c.Room]; ok {
				cancel()
				delete(h.subs, c.Room)
			}
		} else {
			h.broadcastRoster(c.Room)
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left room", zap.String("client_id", c.ID), zap.String("room", c.Room))
}

// PublishRecordingEvent applies a recording lifecycle event locally and
// publishes it for other instances.
func (h *Hub) PublishRecordingEvent(room, event string) {
	h.mu.Lock()
	h.applyEvent(room, event)
	h.mu.Unlock()
	if h.pub != nil {
		if err := h.pub.PublishRoomEvent(room, h.id, event); err != nil {
			h.logger.Warn("room event publish failed", zap.String("room", room), zap.Error(err))
		}
	}
}

// Participants returns the identities connected to a room, excluding the
// headless composer identity so it never appears as a human participant.
func (h *Hub) Participants(room string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.participantsLocked(room)
}

// Dismiss clears a client's displayed notification. Track bookkeeping is kept
// so later transitions still fire.
func (h *Hub) Dismiss(c *Client) {
	h.mu.Lock()
	c.notifier.Dismiss()
	h.mu.Unlock()
}

// applyEvent updates the room's flags, forwards the raw event, and pushes each
// client's emitted notification transition. Callers hold h.mu.
func (h *Hub) applyEvent(room, event string) {
	track, recording, ok := eventFlag(event)
	if !ok {
		return
	}
	fl := h.flags[room]
	if fl == nil {
		fl = newRoomFlags()
		h.flags[room] = fl
	}
	fl.known[track] = true
	fl.value[track] = recording

	for _, c := range h.rooms[room] {
		c.push(WSMessage{Type: "event", Event: event})
		if n, emitted := c.notifier.Observe(track, recording); emitted {
			c.push(WSMessage{Type: "notification", Notification: &n})
		}
	}
}

func (h *Hub) participantsLocked(room string) []string {
	identities := make([]string, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		if c.Identity == h.ecRole {
			continue
		}
		identities = append(identities, c.Identity)
	}
	return identities
}

func (h *Hub) broadcastRoster(room string) {
	msg := WSMessage{Type: "roster", Participants: h.participantsLocked(room)}
	for _, c := range h.rooms[room] {
		c.push(msg)
	}
}

// eventFlag maps a lifecycle event to its track and boolean flag.
func eventFlag(event string) (notifications.Track, bool, bool) {
	switch event {
	case EventRecordingStarted:
		return notifications.TrackNative, true, true
	case EventRecordingStopped:
		return notifications.TrackNative, false, true
	case EventComposedRecordingStarted:
		return notifications.TrackComposed, true, true
	case EventComposedRecordingStopped:
		return notifications.TrackComposed, false, true
	default:
		return "", false, false
	}
}

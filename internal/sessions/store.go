// Package sessions owns the room-name → session-id mapping. A room keeps one
// platform session for its whole life; repeated credential requests reuse it.
package sessions

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nexmo-se/twilio-ec-recording/internal/metrics"
)

const (
	sessionKeyPrefix = "vonage:session:" // room name -> session id
	roomKeyPrefix    = "vonage:room:"    // session id -> room name
)

// Creator is the platform primitive that creates a new routed session.
type Creator interface {
	CreateSession(ctx context.Context) (string, error)
}

// Store caches session ids per room name. Creation for a never-seen room is
// serialized per key with singleflight so concurrent first-requests produce a
// single platform session. With Redis configured the mapping is shared across
// instances; SET NX makes the first writer win so a racing instance adopts the
// existing id instead of leaking its own.
type Store struct {
	creator Creator
	rdb     *redis.Client // optional; nil = process-local cache only
	logger  *zap.Logger

	mu        sync.RWMutex
	byRoom    map[string]string
	bySession map[string]string

	group singleflight.Group
}

// NewStore creates a session store. rdb may be nil.
func NewStore(creator Creator, rdb *redis.Client, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		creator:   creator,
		rdb:       rdb,
		logger:    logger,
		byRoom:    make(map[string]string),
		bySession: make(map[string]string),
	}
}

// GetOrCreate returns the session id for the room, creating one on first use.
// Nothing is cached when creation fails.
func (s *Store) GetOrCreate(ctx context.Context, roomName string) (string, error) {
	if roomName == "" {
		return "", fmt.Errorf("room name required")
	}
	s.mu.RLock()
	id, ok := s.byRoom[roomName]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	v, err, _ := s.group.Do(roomName, func() (interface{}, error) {
		// Another waiter may have populated the cache while we queued.
		s.mu.RLock()
		id, ok := s.byRoom[roomName]
		s.mu.RUnlock()
		if ok {
			return id, nil
		}
		if id := s.lookupShared(ctx, roomName); id != "" {
			s.remember(roomName, id)
			return id, nil
		}
		created, err := s.creator.CreateSession(ctx)
		if err != nil {
			return nil, err
		}
		metrics.SessionCreates.Inc()
		id = s.claimShared(ctx, roomName, created)
		if id != created {
			s.logger.Info("adopted session created by another instance",
				zap.String("room", roomName))
		}
		s.remember(roomName, id)
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// RoomForSession resolves a session id back to its room name. Used by archive
// status callbacks, which only carry the session id.
func (s *Store) RoomForSession(ctx context.Context, sessionID string) (string, bool) {
	s.mu.RLock()
	room, ok := s.bySession[sessionID]
	s.mu.RUnlock()
	if ok {
		return room, true
	}
	if s.rdb == nil {
		return "", false
	}
	room, err := s.rdb.Get(ctx, roomKeyPrefix+sessionID).Result()
	if err != nil {
		return "", false
	}
	s.remember(room, sessionID)
	return room, true
}

func (s *Store) remember(roomName, sessionID string) {
	s.mu.Lock()
	s.byRoom[roomName] = sessionID
	s.bySession[sessionID] = roomName
	s.mu.Unlock()
}

// lookupShared checks the shared store for a session another instance created.
func (s *Store) lookupShared(ctx context.Context, roomName string) string {
	if s.rdb == nil {
		return ""
	}
	id, err := s.rdb.Get(ctx, sessionKeyPrefix+roomName).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("session lookup failed", zap.String("room", roomName), zap.Error(err))
		}
		return ""
	}
	return id
}

// claimShared publishes our freshly created session id unless another instance
// beat us to it, in which case the winner's id is returned. Sessions have no
// explicit teardown; platform-side expiry reclaims them.
func (s *Store) claimShared(ctx context.Context, roomName, sessionID string) string {
	if s.rdb == nil {
		return sessionID
	}
	set, err := s.rdb.SetNX(ctx, sessionKeyPrefix+roomName, sessionID, 0).Result()
	if err != nil {
		s.logger.Warn("session claim failed", zap.String("room", roomName), zap.Error(err))
		return sessionID
	}
	if !set {
		if winner := s.lookupShared(ctx, roomName); winner != "" {
			return winner
		}
		return sessionID
	}
	if err := s.rdb.Set(ctx, roomKeyPrefix+sessionID, roomName, 0).Err(); err != nil {
		s.logger.Warn("reverse mapping store failed", zap.String("room", roomName), zap.Error(err))
	}
	return sessionID
}

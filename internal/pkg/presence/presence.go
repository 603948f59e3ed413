package presence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyTTL = 90 * time.Second

// StatusStore is the write-through target for online status; the user
// directory implements it so dispatch selection sees presence changes.
type StatusStore interface {
	SetOnlineStatus(ctx context.Context, userID uuid.UUID, status string) error
}

// Service tracks who is connected. Redis holds a per-user key with a
// heartbeat TTL so a crashed connection ages out on its own; the
// durable online_status column is written through for dispatch.
type Service struct {
	rdb   *redis.Client
	store StatusStore
}

func NewService(rdb *redis.Client, store StatusStore) *Service {
	return &Service{rdb: rdb, store: store}
}

func key(userID uuid.UUID) string {
	return "presence:online:" + userID.String()
}

// MarkOnline flags the user online and writes through to the directory
func (s *Service) MarkOnline(ctx context.Context, userID uuid.UUID) error {
	if s.rdb != nil {
		if err := s.rdb.Set(ctx, key(userID), 1, keyTTL).Err(); err != nil {
			log.Warn().Err(err).Msg("presence redis set failed")
		}
	}
	return s.store.SetOnlineStatus(ctx, userID, "online")
}

// MarkOffline clears the flag and writes through
func (s *Service) MarkOffline(ctx context.Context, userID uuid.UUID) error {
	if s.rdb != nil {
		if err := s.rdb.Del(ctx, key(userID)).Err(); err != nil {
			log.Warn().Err(err).Msg("presence redis del failed")
		}
	}
	return s.store.SetOnlineStatus(ctx, userID, "offline")
}

// Heartbeat refreshes the TTL while a connection is alive
func (s *Service) Heartbeat(ctx context.Context, userID uuid.UUID) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Expire(ctx, key(userID), keyTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("presence heartbeat failed")
	}
}

// IsOnline checks the redis flag; with no redis it falls back to
// reporting offline, which only makes dispatch more conservative.
func (s *Service) IsOnline(ctx context.Context, userID uuid.UUID) bool {
	if s.rdb == nil {
		return false
	}
	n, err := s.rdb.Exists(ctx, key(userID)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

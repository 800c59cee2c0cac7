package presence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kapu/rollhouse-backend-go/internal/obslog"
)

// Tracker keeps an advisory "who is online" index in redis. It carries
// nothing authoritative: account state lives in-process and the keys
// expire on their own if the process dies. A nil Tracker is a valid
// disabled instance; every method no-ops on it.
type Tracker struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to redisURL. An empty URL yields a disabled tracker.
func New(redisURL string, ttl time.Duration) (*Tracker, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, ttl), nil
}

// NewWithClient wraps an existing client; used by tests with miniredis.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Tracker{rdb: rdb, ttl: ttl}
}

func (t *Tracker) enabled() bool { return t != nil && t.rdb != nil }

func key(playerID string) string { return "presence:player:" + playerID }

// MarkOnline records the player as online with a TTL; best effort.
func (t *Tracker) MarkOnline(ctx context.Context, playerID, deviceID string) {
	if !t.enabled() {
		return
	}
	if err := t.rdb.Set(ctx, key(playerID), deviceID, t.ttl).Err(); err != nil {
		obslog.L().Warn("presence_set_failed", zap.String("player_id", playerID), zap.Error(err))
	}
}

// Touch refreshes the TTL on player activity.
func (t *Tracker) Touch(ctx context.Context, playerID string) {
	if !t.enabled() {
		return
	}
	if err := t.rdb.Expire(ctx, key(playerID), t.ttl).Err(); err != nil {
		obslog.L().Warn("presence_touch_failed", zap.String("player_id", playerID), zap.Error(err))
	}
}

// MarkOffline drops the player's key on disconnect.
func (t *Tracker) MarkOffline(ctx context.Context, playerID string) {
	if !t.enabled() {
		return
	}
	if err := t.rdb.Del(ctx, key(playerID)).Err(); err != nil {
		obslog.L().Warn("presence_del_failed", zap.String("player_id", playerID), zap.Error(err))
	}
}

// Online reports whether the player currently has a presence key.
func (t *Tracker) Online(ctx context.Context, playerID string) (bool, error) {
	if !t.enabled() {
		return false, nil
	}
	n, err := t.rdb.Exists(ctx, key(playerID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *Tracker) Close() error {
	if !t.enabled() {
		return nil
	}
	return t.rdb.Close()
}

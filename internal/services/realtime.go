package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
)

// UserChannel is the pub/sub channel carrying a user's websocket events.
func UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", userID.String())
}

// RedisPublisher sends WSMessage envelopes through Redis pub/sub.
type RedisPublisher struct {
	redis *redis.Client
	log   *logger.Logger
}

func NewRedisPublisher(redisClient *redis.Client, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{redis: redisClient, log: log.With("component", "publisher")}
}

func (p *RedisPublisher) Publish(ctx context.Context, userID uuid.UUID, msgType string, payload interface{}) {
	data, err := json.Marshal(models.WSMessage{Type: msgType, Payload: payload})
	if err != nil {
		p.log.Warn("marshal ws message", "type", msgType, "error", err)
		return
	}
	if err := p.redis.Publish(ctx, UserChannel(userID), string(data)).Err(); err != nil {
		p.log.Warn("publish ws message", "type", msgType, "user_id", userID, "error", err)
	}
}

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = &ConflictError{Code: CodeConflict, Message: "Another request is already working on this course. Please retry shortly."}

// RedisLocker implements Locker with SET NX and a token-checked release.
type RedisLocker struct {
	redis *redis.Client
}

func NewRedisLocker(redisClient *redis.Client) *RedisLocker {
	return &RedisLocker{redis: redisClient}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("lock token: %w", err)
	}
	token := hex.EncodeToString(buf)

	ok, err := l.redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return func() {
		releaseScript.Run(context.Background(), l.redis, []string{key}, token)
	}, nil
}

// nopPublisher drops events; used when no realtime channel is wired.
type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, uuid.UUID, string, interface{}) {}

// localLocker is an in-process Locker used when Redis is not wired.
type localLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newLocalLocker() *localLocker {
	return &localLocker{held: make(map[string]struct{})}
}

func (l *localLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrLockHeld
	}
	l.held[key] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}

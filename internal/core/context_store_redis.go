package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "support-hub:chat-context:"
	redisLockTTL     = 10 * time.Second
	redisLockRetry   = 20 * time.Millisecond
	redisDialTimeout = 10 * time.Second
)

// unlockScript deletes the lock only if it still carries our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisContextStore keeps contexts in Redis so several server instances can
// share sessions. Each session is a JSON value that expires after the idle
// TTL; a short-lived lock key serializes writers of the same session.
type RedisContextStore struct {
	client     *redis.Client
	idleTTL    time.Duration
	maxHistory int
	now        func() time.Time
}

func NewRedisContextStore(addr, password string, db int, idleTTL time.Duration, maxHistory int) *RedisContextStore {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: redisDialTimeout,
	})
	return newRedisContextStore(client, idleTTL, maxHistory)
}

func newRedisContextStore(client *redis.Client, idleTTL time.Duration, maxHistory int) *RedisContextStore {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &RedisContextStore{client: client, idleTTL: idleTTL, maxHistory: maxHistory, now: time.Now}
}

func (s *RedisContextStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisContextStore) Close() error {
	return s.client.Close()
}

func contextKey(sessionID string) string { return redisKeyPrefix + sessionID }

func lockKey(sessionID string) string { return redisKeyPrefix + sessionID + ":lock" }

func (s *RedisContextStore) lock(ctx context.Context, sessionID string) (string, error) {
	token := uuid.NewString()
	for {
		ok, err := s.client.SetNX(ctx, lockKey(sessionID), token, redisLockTTL).Result()
		if err != nil {
			return "", fmt.Errorf("acquiring context lock: %w", err)
		}
		if ok {
			return token, nil
		}
		timer := time.NewTimer(redisLockRetry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *RedisContextStore) unlock(sessionID, token string) {
	// The lock must go even when the request context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), redisLockTTL)
	defer cancel()
	if err := unlockScript.Run(ctx, s.client, []string{lockKey(sessionID)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("Failed to release context lock for session %s: %v", sessionID, err)
	}
}

func (s *RedisContextStore) load(ctx context.Context, sessionID string) (*ConversationContext, error) {
	data, err := s.client.Get(ctx, contextKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading context: %w", err)
	}
	var cc ConversationContext
	if err := json.Unmarshal(data, &cc); err != nil {
		return nil, fmt.Errorf("decoding context: %w", err)
	}
	cc.maxHistory = s.maxHistory
	return &cc, nil
}

func (s *RedisContextStore) Update(ctx context.Context, sessionID string, fn func(*ConversationContext) error) error {
	token, err := s.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer s.unlock(sessionID, token)

	cc, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if cc == nil {
		cc = newConversationContext(sessionID, s.now(), s.maxHistory)
	}
	if err := fn(cc); err != nil {
		return err
	}
	cc.LastActivity = s.now()

	data, err := json.Marshal(cc)
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}
	if err := s.client.Set(ctx, contextKey(sessionID), data, s.idleTTL).Err(); err != nil {
		return fmt.Errorf("saving context: %w", err)
	}
	return nil
}

func (s *RedisContextStore) Get(ctx context.Context, sessionID string) (*ConversationContext, error) {
	return s.load(ctx, sessionID)
}

func (s *RedisContextStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, contextKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("deleting context: %w", err)
	}
	return nil
}

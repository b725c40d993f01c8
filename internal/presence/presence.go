// Package presence advertises device sessions in Redis so other services can
// tell which gateway node holds a terminal.
package presence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "att:sess:"
	shadowKeyPrefix  = "att:shadow:"
	shadowTTL        = 24 * time.Hour
)

// deletes the key only while its value still starts with ARGV[1]
var releaseScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v and string.sub(v, 1, string.len(ARGV[1])) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func SessionKey(deviceCode uint32) string {
	return fmt.Sprintf("%s%d", sessionKeyPrefix, deviceCode)
}

func ShadowKey(deviceCode uint32) string {
	return fmt.Sprintf("%s%d", shadowKeyPrefix, deviceCode)
}

// Connect opens a Redis client from either a redis:// URL or a host:port.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts := &redis.Options{Addr: url, DB: 0}
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Registry implements protocol.Presence on Redis. Session entries are
// "<gateway>:<session>:<remote>" and expire after ttl unless refreshed.
type Registry struct {
	redis     redis.Cmdable
	gatewayID string
	ttl       time.Duration
	now       func() time.Time
}

func NewRegistry(client redis.Cmdable, gatewayID string, ttl time.Duration) *Registry {
	return &Registry{redis: client, gatewayID: gatewayID, ttl: ttl, now: time.Now}
}

func (r *Registry) owner(sessionID string) string {
	return r.gatewayID + ":" + sessionID + ":"
}

func (r *Registry) Register(ctx context.Context, deviceCode uint32, sessionID, remote string) error {
	value := r.owner(sessionID) + remote
	if err := r.redis.Set(ctx, SessionKey(deviceCode), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	return nil
}

// Refresh extends the session entry and stamps the device shadow. A missing
// entry is recreated unless another session has claimed the key meanwhile.
func (r *Registry) Refresh(ctx context.Context, deviceCode uint32, sessionID, remote string) error {
	key := SessionKey(deviceCode)
	shadow := ShadowKey(deviceCode)
	var extended *redis.BoolCmd
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		extended = pipe.Expire(ctx, key, r.ttl)
		pipe.HSet(ctx, shadow, "ts", r.now().Unix())
		pipe.Expire(ctx, shadow, shadowTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	if extended.Val() {
		return nil
	}
	if err := r.redis.SetNX(ctx, key, r.owner(sessionID)+remote, r.ttl).Err(); err != nil {
		return fmt.Errorf("recreate session: %w", err)
	}
	return nil
}

func (r *Registry) Unregister(ctx context.Context, deviceCode uint32, sessionID string) error {
	if err := releaseScript.Run(ctx, r.redis, []string{SessionKey(deviceCode)}, r.owner(sessionID)).Err(); err != nil {
		return fmt.Errorf("unregister session: %w", err)
	}
	return nil
}

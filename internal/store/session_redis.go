package store

import (
	"context"
	"errors"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"bulletjournal-cli/internal/model"
)

// RedisSessions keeps the session as one JSON value per server, so several machines pointed
// at the same journal share a warm cache.
type RedisSessions struct {
	redis  *redis.Client
	server string
}

// NewRedisSessions accepts "host:port" or a redis:// URL.
func NewRedisSessions(addr, server string) *RedisSessions {
	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if parsed, err := redis.ParseURL(addr); err == nil {
			opts = parsed
		}
	}
	return NewRedisSessionsWithClient(redis.NewClient(opts), server)
}

func NewRedisSessionsWithClient(client *redis.Client, server string) *RedisSessions {
	return &RedisSessions{redis: client, server: server}
}

func (r *RedisSessions) key() string {
	return "bulletjournal:session:" + r.server
}

func (r *RedisSessions) LoadSession(ctx context.Context) (model.Session, bool, error) {
	data, err := r.redis.Get(ctx, r.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Session{}, false, nil
		}
		return model.Session{}, false, err
	}
	var sess model.Session
	if err := sonic.Unmarshal(data, &sess); err != nil {
		// A corrupt entry is treated as missing.
		_ = r.redis.Del(ctx, r.key()).Err()
		return model.Session{}, false, nil
	}
	return sess, true, nil
}

func (r *RedisSessions) SaveSession(ctx context.Context, sess model.Session) error {
	for i := range sess.Completed {
		sess.Completed[i].Loading = false
	}
	data, err := sonic.Marshal(sess)
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, r.key(), data, 0).Err()
}

func (r *RedisSessions) ClearSession(ctx context.Context) error {
	return r.redis.Del(ctx, r.key()).Err()
}

func (r *RedisSessions) Close() error {
	return r.redis.Close()
}

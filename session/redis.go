package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis 把会话状态存为 JSON 字符串，图片与 PDF 存为原始字节，均带过期时间。
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects using a redis:// URL and verifies the connection with PING.
func NewRedis(ctx context.Context, url, prefix string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) stateKey(id string) string { return r.prefix + "session:" + id }
func (r *Redis) blobKey(key string) string { return r.prefix + "blob:" + key }

func (r *Redis) Load(ctx context.Context, id string) (State, error) {
	raw, err := r.rdb.Get(ctx, r.stateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, err
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return s, nil
}

func (r *Redis) Save(ctx context.Context, s State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	// 状态与它引用的图片、文档一起续期
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.stateKey(s.ID), raw, r.ttl)
		if r.ttl > 0 {
			for _, key := range blobKeys(s) {
				pipe.Expire(ctx, r.blobKey(key), r.ttl)
			}
		}
		return nil
	})
	return err
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, r.stateKey(id)).Err()
}

func (r *Redis) PutBlob(ctx context.Context, key string, data []byte) error {
	return r.rdb.Set(ctx, r.blobKey(key), data, r.ttl).Err()
}

func (r *Redis) GetBlob(ctx context.Context, key string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, r.blobKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (r *Redis) DeleteBlob(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.blobKey(key)).Err()
}

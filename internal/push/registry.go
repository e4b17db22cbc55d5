package push

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// TokenRegistry remembers device tokens per user
type TokenRegistry interface {
	Add(ctx context.Context, user, token string) error
	Latest(ctx context.Context, user string) (string, error)
}

// MemoryRegistry keeps tokens in process
type MemoryRegistry struct {
	mu     sync.Mutex
	tokens map[string][]string
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{tokens: make(map[string][]string)}
}

func (r *MemoryRegistry) Add(_ context.Context, user, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.tokens[user]
	for i, t := range list {
		if t == token {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	r.tokens[user] = append(list, token)
	return nil
}

func (r *MemoryRegistry) Latest(_ context.Context, user string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.tokens[user]
	if len(list) == 0 {
		return "", nil
	}
	return list[len(list)-1], nil
}

// RedisRegistry keeps every token of a user in a set plus the latest one in a plain key
type RedisRegistry struct {
	rdb *redis.Client
}

func NewRedisRegistry(rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{rdb: rdb}
}

func setKey(user string) string    { return "push:tokens:" + user }
func latestKey(user string) string { return "push:token:" + user }

func (r *RedisRegistry) Add(ctx context.Context, user, token string) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, setKey(user), token)
		p.Set(ctx, latestKey(user), token, 0)
		return nil
	})
	return err
}

func (r *RedisRegistry) Latest(ctx context.Context, user string) (string, error) {
	token, err := r.rdb.Get(ctx, latestKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, err
}

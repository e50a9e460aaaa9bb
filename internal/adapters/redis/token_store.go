// Package redis persists session tokens in Redis so sessions survive restarts and are shared
// across replicas.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces session token keys.
const DefaultPrefix = "coffee:session:"

// DefaultTTL bounds how long an orphaned token survives. It is not a token-expiry mechanism.
const DefaultTTL = 7 * 24 * time.Hour

// TokenStore is the Redis-backed durable token store for production use.
// Each session id maps to exactly one key holding the raw bearer token.
type TokenStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// TokenStoreOptions configures a TokenStore.
type TokenStoreOptions struct {
	Prefix string        // defaults to DefaultPrefix
	TTL    time.Duration // defaults to DefaultTTL; refreshed on every Set
}

// NewTokenStore creates a Redis token store with default prefix and TTL.
func NewTokenStore(client redis.UniversalClient) *TokenStore {
	return NewTokenStoreWithOptions(client, TokenStoreOptions{})
}

// NewTokenStoreWithOptions creates a Redis token store with a custom key prefix or TTL.
func NewTokenStoreWithOptions(client redis.UniversalClient, opts TokenStoreOptions) *TokenStore {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &TokenStore{
		client: client,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
	}
}

// Get returns the stored token for a session.
func (s *TokenStore) Get(ctx context.Context, sessionID string) (string, bool, error) {
	if sessionID == "" {
		return "", false, nil
	}

	token, err := s.client.Get(ctx, s.prefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	if token == "" {
		return "", false, nil
	}
	return token, true, nil
}

// Set stores token for a session, replacing any previous value.
func (s *TokenStore) Set(ctx context.Context, sessionID, token string) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if token == "" {
		return errors.New("token cannot be empty")
	}
	if err := s.client.Set(ctx, s.prefix+sessionID, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear removes the stored token. Clearing a missing key is not an error.
func (s *TokenStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil // Nothing to delete
	}
	if err := s.client.Del(ctx, s.prefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Entry describes one stored session for operator tooling. The token itself is never exposed.
type Entry struct {
	SessionID string
	TTL       time.Duration
}

// List scans every session key under the store prefix.
func (s *TokenStore) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.scan(ctx, func(keys []string) error {
		for _, key := range keys {
			ttl, err := s.client.TTL(ctx, key).Result()
			if err != nil {
				return fmt.Errorf("redis ttl %s: %w", key, err)
			}
			entries = append(entries, Entry{SessionID: strings.TrimPrefix(key, s.prefix), TTL: ttl})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Purge deletes every session key under the store prefix and returns the count.
// Keys are deleted one per command in a pipeline so cluster slots never mix.
func (s *TokenStore) Purge(ctx context.Context) (int, error) {
	deleted := 0
	err := s.scan(ctx, func(keys []string) error {
		pipe := s.client.Pipeline()
		cmds := make([]*redis.IntCmd, len(keys))
		for i, key := range keys {
			cmds[i] = pipe.Del(ctx, key)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis del batch: %w", err)
		}
		for _, c := range cmds {
			deleted += int(c.Val())
		}
		return nil
	})
	return deleted, err
}

const (
	scanCount = 100
	scanBatch = 500
)

// scan hands fn batches of keys under the prefix. A cluster client is scanned on every
// master; fn calls are serialised.
func (s *TokenStore) scan(ctx context.Context, fn func(keys []string) error) error {
	cc, ok := s.client.(*redis.ClusterClient)
	if !ok {
		return scanNode(ctx, s.client, s.prefix+"*", fn)
	}
	var mu sync.Mutex
	return cc.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
		return scanNode(ctx, node, s.prefix+"*", func(keys []string) error {
			mu.Lock()
			defer mu.Unlock()
			return fn(keys)
		})
	})
}

func scanNode(ctx context.Context, c redis.Cmdable, match string, fn func(keys []string) error) error {
	batch := make([]string, 0, scanBatch)
	iter := c.Scan(ctx, 0, match, scanCount).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}
	return fn(batch)
}

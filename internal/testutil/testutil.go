// Package testutil provides shared test helpers for coffee-ui packages.
package testutil

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// TestingTB is the subset of testing.TB the helpers need.
type TestingTB interface {
	Helper()
	Cleanup(func())
	Skipf(format string, args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
}

// envBool parses common truthy values from env vars.
func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// redisDBOverride returns TEST_REDIS_DB when it holds a valid index.
func redisDBOverride() (int, bool) {
	v := os.Getenv("TEST_REDIS_DB")
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// SetupTestRedis returns a client for an empty Redis database, closed at cleanup.
//
// With REDIS_ADDR set the tests run against that server (database TEST_REDIS_DB, default 1)
// and the database is flushed first. An unreachable server skips the test unless
// TEST_REQUIRE_REDIS is set. Without REDIS_ADDR an in-process miniredis is started.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return startMiniredis(t)
	}

	db, ok := redisDBOverride()
	if !ok {
		db = 1
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if envBool("TEST_REQUIRE_REDIS") {
			t.Fatalf("redis at %s is required: %v", addr, err)
		}
		t.Skipf("redis at %s unavailable: %v", addr, err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis db %d: %v", db, err)
	}
	t.Logf("using redis %s db=%d", addr, db)
	return client
}

// StartMiniredis starts an in-process Redis and returns the server and a connected client.
// The server lets tests move its clock with FastForward to expire keys.
func StartMiniredis(t TestingTB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func startMiniredis(t TestingTB) *redis.Client {
	t.Helper()
	_, client := StartMiniredis(t)
	return client
}

package main

import (
	"errors"
	"fmt"

	"github.com/target/coffee-ui/config"
	redisstore "github.com/target/coffee-ui/internal/adapters/redis"
)

var errNoRedisStore = errors.New("session commands need SESSION_STORE=redis; the memory store lives inside the server process")

// openStore connects to Redis and returns the session token store with a close func.
func openStore(cmdCtx *commandContext) (*redisstore.TokenStore, func(), error) {
	if cmdCtx.Config.Session.Store != config.SessionStoreRedis {
		return nil, nil, errNoRedisStore
	}
	client, err := cmdCtx.connectRedis(cmdCtx.Ctx, cmdCtx.Config.Redis, cmdCtx.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	closeFn := func() {
		if closeErr := client.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}
	store := redisstore.NewTokenStoreWithOptions(client, redisstore.TokenStoreOptions{TTL: cmdCtx.Config.Session.StoreTTL})
	return store, closeFn, nil
}

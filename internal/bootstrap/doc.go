// Package bootstrap turns configuration into a running server: logger, Redis connection,
// token store, session registry, router and graceful shutdown.
package bootstrap

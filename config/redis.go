package config

import (
	"errors"
	"strings"
)

// RedisConfig selects a direct, sentinel or cluster Redis deployment.
type RedisConfig struct {
	// URI is host:port or a redis:// or rediss:// URL.
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
}

// Validate checks that the selected deployment has addresses.
func (r *RedisConfig) Validate() error {
	switch {
	case r.UseCluster:
		if len(nonEmpty(r.ClusterNodes)) == 0 && strings.TrimSpace(r.URI) == "" {
			return errors.New("REDIS_USE_CLUSTER needs REDIS_CLUSTER_NODES or REDIS_URI")
		}
	case r.UseSentinel:
		if len(nonEmpty(r.SentinelNodes)) == 0 {
			return errors.New("REDIS_USE_SENTINEL needs REDIS_SENTINEL_NODES")
		}
		if strings.TrimSpace(r.SentinelMasterName) == "" {
			return errors.New("REDIS_USE_SENTINEL needs REDIS_SENTINEL_MASTER_NAME")
		}
	default:
		if strings.TrimSpace(r.URI) == "" {
			return errors.New("REDIS_URI is required for the redis session store")
		}
	}
	return nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

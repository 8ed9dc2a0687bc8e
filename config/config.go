// Package config resolves the server's runtime settings from flags and
// environment variables, the way the teacher's main.go takes a -port
// flag: no config file format, no cobra/viper command tree — this
// process has exactly one job and a handful of knobs.
package config

import (
	"flag"
	"os"
	"strings"
)

// Config holds every setting the server needs to start.
type Config struct {
	// Port is the TCP port the HTTP/WebSocket listener binds to.
	Port string

	// RedisAddr is the redis "host:port" the Keyed Store connects to.
	RedisAddr string

	// RedisPassword authenticates against RedisAddr, if set.
	RedisPassword string

	// RedisDB selects the logical Redis database number.
	RedisDB int

	// AllowedOrigins, if non-empty, restricts WebSocket upgrade
	// requests to these Origin header values in addition to same-host
	// and localhost. Empty means same-host/localhost only.
	AllowedOrigins []string
}

// Load parses flags; the port, Redis address and password, and allowed
// origins fall back to environment variables when not passed on the
// command line, while the Redis database number is flag-only. Mirrors
// original_source's reliance on REDIS_URL-style environment
// configuration for the pieces that don't make sense as flags
// (credentials).
func Load() Config {
	port := flag.String("port", envOr("PORT", "8080"), "server port")
	redisAddr := flag.String("redis-addr", envOr("REDIS_ADDR", "localhost:6379"), "redis host:port")
	redisPassword := flag.String("redis-password", os.Getenv("REDIS_PASSWORD"), "redis password")
	redisDB := flag.Int("redis-db", 0, "redis logical database number")
	origins := flag.String("allowed-origins", os.Getenv("ALLOWED_ORIGINS"), "comma-separated list of extra allowed WebSocket origins")
	flag.Parse()

	var allowed []string
	if *origins != "" {
		for _, o := range strings.Split(*origins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				allowed = append(allowed, trimmed)
			}
		}
	}

	return Config{
		Port:           *port,
		RedisAddr:      *redisAddr,
		RedisPassword:  *redisPassword,
		RedisDB:        *redisDB,
		AllowedOrigins: allowed,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

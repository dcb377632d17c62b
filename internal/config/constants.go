package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// EndedSessionRetention is how long ended session rows and their inert
// ledger entries are kept before the cleanup job removes them.
const EndedSessionRetention = 1 * time.Hour

// MaxContentTTL caps caller-supplied TTLs on the direct hash path.
const MaxContentTTL = 7 * 24 * time.Hour

// MaxPayloadBytes limits the size of a single pushed unit payload.
const MaxPayloadBytes = 1 << 20

// NotificationLogCap bounds the per-session notification log.
const NotificationLogCap = 1024

// Default rate limiting
const DefaultRateLimitPerMin = 120

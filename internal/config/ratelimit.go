package config

import "time"

// Rate limit key strategies.  Guests are anonymous, so the client address
// is the usual identity; "user" only helps behind an authenticated proxy.
const (
    RateKeyIP      = "ip"
    RateKeyIPRoute = "ip_route"
    RateKeyRoute   = "route"
    RateKeyUser    = "user"
)

// RateLimitConfig configures the Redis token bucket placed in front of the
// booking endpoint.  A bucket holds up to Capacity tokens and regains
// RefillTokens every RefillInterval; idle buckets expire after TTL.
// Debug exposes the bucket key in a response header.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool
}

// LoadRateLimitConfig reads the RATE_LIMIT_* variables.  The defaults allow
// a burst of 10 booking attempts per client, then one every 6 seconds.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       max(envInt("RATE_LIMIT_CAPACITY", 10), 1),
        RefillTokens:   max(envInt("RATE_LIMIT_REFILL_TOKENS", 1), 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", RateKeyIPRoute),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    if cfg.RefillInterval <= 0 {
        cfg.RefillInterval = time.Second
    }
    // A bucket must outlive a full refill or it would reset to Capacity early.
    cfg.TTL = max(cfg.TTL, 5*cfg.RefillInterval)
    return cfg
}

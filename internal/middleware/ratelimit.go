package middleware

import (
    "log/slog"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/restaurant-reservation/internal/config"
)

// takeToken refills the bucket at KEYS[1] for the whole intervals elapsed
// since its last refill, then takes one token if there is one.
// It returns {allowed, tokens left, ms until the next refill}.
var takeToken = redis.NewScript(`
local now, capacity, refill, interval, ttl =
    tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])

local b = redis.call('HMGET', KEYS[1], 'tokens', 'at')
local tokens, at = tonumber(b[1]), tonumber(b[2])
if not tokens or not at then
    tokens, at = capacity, now
end

local steps = math.floor(math.max(0, now - at) / interval)
if steps > 0 then
    tokens = math.min(capacity, tokens + steps * refill)
    at = at + steps * interval
end

local allowed, wait = 0, 0
if tokens >= 1 then
    allowed, tokens = 1, tokens - 1
else
    wait = math.max(0, interval - (now - at))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'at', at)
redis.call('EXPIRE', KEYS[1], ttl)
return {allowed, tokens, wait}
`)

// bucketState is the decoded reply of takeToken.
type bucketState struct {
    allowed   bool
    remaining int64
    wait      time.Duration
}

func parseBucketReply(v interface{}) (bucketState, bool) {
    arr, ok := v.([]interface{})
    if !ok || len(arr) != 3 {
        return bucketState{}, false
    }
    return bucketState{
        allowed:   asInt64(arr[0]) == 1,
        remaining: asInt64(arr[1]),
        wait:      time.Duration(asInt64(arr[2])) * time.Millisecond,
    }, true
}

// NewTokenBucket returns a middleware that admits a booking attempt only
// when the caller's bucket still holds a token.  Buckets live in Redis so
// every API instance shares them.  When Redis fails the request goes through:
// the capacity check, not the limiter, protects the slots.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    interval := cfg.RefillInterval.Milliseconds()
    if interval <= 0 {
        interval = 1000
    }
    ttl := int64(cfg.TTL / time.Second)
    if ttl <= 0 {
        ttl = 60
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ctx := c.Request().Context()
            key := buildRateKey(cfg, c)

            reply, err := takeToken.Run(ctx, rdb, []string{key},
                time.Now().UnixMilli(), cfg.Capacity, cfg.RefillTokens, interval, ttl).Result()
            if err != nil {
                slog.WarnContext(ctx, "rate limit script failed", "key", key, "err", err)
                return next(c)
            }
            st, ok := parseBucketReply(reply)
            if !ok {
                slog.WarnContext(ctx, "unexpected rate limit reply", "key", key, "reply", reply)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(st.remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if st.allowed {
                return next(c)
            }

            secs := int((st.wait + time.Second - 1) / time.Second)
            h.Set("Retry-After", strconv.Itoa(secs))
            slog.DebugContext(ctx, "booking attempt rate limited", "key", key, "retry_after", secs)
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "too many booking attempts, retry later",
                "retry_after": secs,
            })
        }
    }
}

// asInt64 converts a Lua number as returned by go-redis.
func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64:
        return t
    case float64:
        return int64(t)
    case string:
        n, _ := strconv.ParseInt(t, 10, 64)
        return n
    }
    return 0
}

// buildRateKey names the bucket of the request, "<prefix>:<kind>:<id>...".
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    route := c.Request().Method + " " + c.Path()

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case config.RateKeyIP:
        parts = append(parts, "ip", ip)
    case config.RateKeyRoute:
        parts = append(parts, "route", route)
    case config.RateKeyUser:
        parts = append(parts, "user", userKey(c))
    default:
        parts = append(parts, "ip", ip, "route", route)
    }
    return strings.Join(parts, ":")
}

package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/restaurant-reservation/internal/config"
    "github.com/iliyamo/restaurant-reservation/internal/schedule"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }
func (cw *captureWriter) Write(b []byte) (int, error) {
    cw.size += int64(len(b))
    if cw.limit <= 0 || cw.size <= cw.limit {
        cw.buf.Write(b)
    }
    return cw.ResponseWriter.Write(b)
}

// SlotCache caches availability responses in Redis, one key family per
// dining day.  Every reservation write for a day calls InvalidateDate, so a
// cached slot list never outlives the bookings it was computed from by more
// than the write itself; TTL only bounds staleness when an invalidation is
// lost.
//
// Only days after today (in the restaurant's time zone) are cached.  Today's
// list shrinks as the lead-time cut-off moves and past days flip is_past,
// so both are always computed fresh.
type SlotCache struct {
    cfg config.CacheConfig
    rdb *redis.Client
    loc *time.Location
    now func() time.Time
}

// NewSlotCache returns a cache backed by rdb deciding "today" in loc.  A nil
// client or a disabled config yields a cache that never stores anything.
func NewSlotCache(cfg config.CacheConfig, rdb *redis.Client, loc *time.Location) *SlotCache {
    if loc == nil {
        loc = time.Local
    }
    return &SlotCache{cfg: cfg, rdb: rdb, loc: loc, now: time.Now}
}

// cacheable reports whether the slot list of date is independent of the
// current time, which holds for every day after today.
func (s *SlotCache) cacheable(date time.Time) bool {
    y, m, d := s.now().In(s.loc).Date()
    today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
    day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
    return day.After(today)
}

func (s *SlotCache) enabled() bool { return s != nil && s.cfg.Enabled && s.rdb != nil }

// datePrefix is the key prefix shared by every cached response of date.
func datePrefix(prefix, date string) string {
    return fmt.Sprintf("%s:date:%s:", prefix, date)
}

// cacheKey builds the key of a request for date.  The route and the raw
// query are hashed so that other parameters still vary the key.
func cacheKey(prefix, date, route, rawQuery string) string {
    sum := sha1.Sum([]byte(route + "?" + rawQuery))
    return fmt.Sprintf("%s%x", datePrefix(prefix, date), sum[:])
}

// InvalidateDate deletes every cached response of date (YYYY-MM-DD).
func (s *SlotCache) InvalidateDate(ctx context.Context, date string) error {
    if !s.enabled() {
        return nil
    }
    iter := s.rdb.Scan(ctx, 0, datePrefix(s.cfg.Prefix, date)+"*", 100).Iterator()
    var keys []string
    for iter.Next(ctx) {
        keys = append(keys, iter.Val())
    }
    if err := iter.Err(); err != nil {
        return err
    }
    if len(keys) == 0 {
        return nil
    }
    return s.rdb.Del(ctx, keys...).Err()
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:8+len(hdrJSON)], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    hdr := make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, hdr, bs[8+hlen:], true
}

// Middleware caches successful GET responses keyed by the "date" query
// parameter.  Requests without a valid date go straight to the handler so
// that it can report the error.
func (s *SlotCache) Middleware() echo.MiddlewareFunc {
    if !s.enabled() {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    maxBody := int64(s.cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if c.Request().Method != http.MethodGet {
                return next(c)
            }
            d, err := schedule.ParseDate(c.QueryParam("date"))
            if err != nil || !s.cacheable(d) {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKey(s.cfg.Prefix, d.Format(schedule.DateLayout), c.Path(), c.Request().URL.RawQuery)

            if bs, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        if strings.EqualFold(k, echo.HeaderContentLength) || strings.EqualFold(k, "X-Cache") {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    _, _ = c.Response().Write(body)
                    return nil
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || (maxBody > 0 && cw.size > maxBody) {
                return nil
            }
            hdr := c.Response().Header().Clone()
            if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
                _ = s.rdb.SetEx(context.WithoutCancel(ctx), key, payload, s.cfg.TTL).Err()
            }
            return nil
        }
    }
}

package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/jx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// CacheControl returns a middleware that sets Cache-Control header
func CacheControl(maxAge int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}

const (
	cacheHeader = "X-Cache"
	cacheHit    = "HIT"
	cacheMiss   = "MISS"
)

var responseCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_response_cache_total",
		Help: "Response cache lookups by result (hit, miss, error)",
	},
	[]string{"result"},
)

// ResponseCache stores successful GET response bodies in Redis keyed by
// tenant, path and normalized query string.
type ResponseCache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewResponseCache creates a response cache. A nil client or non-positive ttl
// yields a cache whose middleware passes every request through.
func NewResponseCache(client redis.Cmdable, ttl time.Duration, prefix string, logger *slog.Logger) *ResponseCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseCache{client: client, ttl: ttl, prefix: prefix, logger: logger, now: time.Now}
}

func (c *ResponseCache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// key is tenant-scoped; url.Values.Encode sorts parameters so equivalent
// queries share an entry.
func (c *ResponseCache) key(r *http.Request) string {
	tenant, _ := TenantIDFromContext(r.Context())
	return c.prefix + strconv.FormatInt(tenant, 10) + ":" + r.URL.Path + "?" + r.URL.Query().Encode()
}

// Middleware serves cached bodies with X-Cache: HIT and records 200 responses
// on a miss. A served body gets a fresh metadata.timestamp. Redis failures
// degrade to an uncached pass-through.
func (c *ResponseCache) Middleware(next http.Handler) http.Handler {
	if !c.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := c.key(r)

		body, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			responseCacheTotal.WithLabelValues("hit").Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(cacheHeader, cacheHit)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(refreshTimestamp(body, c.now().UTC().Format(time.RFC3339Nano)))
			return
		case errors.Is(err, redis.Nil):
			responseCacheTotal.WithLabelValues("miss").Inc()
		default:
			responseCacheTotal.WithLabelValues("error").Inc()
			c.logger.WarnContext(ctx, "response cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}

		w.Header().Set(cacheHeader, cacheMiss)
		cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(cw, r)

		if cw.status != http.StatusOK || cw.buf.Len() == 0 {
			return
		}
		// The body is already sent; the write must outlive the request.
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := c.client.Set(storeCtx, key, cw.buf.Bytes(), c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "response cache write failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	})
}

type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	cw.buf.Write(b)
	return cw.ResponseWriter.Write(b)
}

// refreshTimestamp rewrites metadata.timestamp of a stored envelope, keeping
// field order. Bodies without that field are returned unchanged.
func refreshTimestamp(body []byte, now string) []byte {
	var (
		e        jx.Encoder
		replaced bool
	)
	copyValue := func(d *jx.Decoder) error {
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		e.Raw(raw)
		return nil
	}

	e.ObjStart()
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		e.FieldStart(string(key))
		if string(key) != "metadata" || d.Next() != jx.Object {
			return copyValue(d)
		}
		e.ObjStart()
		defer e.ObjEnd()
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			e.FieldStart(string(key))
			if string(key) != "timestamp" {
				return copyValue(d)
			}
			if err := d.Skip(); err != nil {
				return err
			}
			e.Str(now)
			replaced = true
			return nil
		})
	})
	e.ObjEnd()
	if err != nil || !replaced {
		return body
	}

	out := e.Bytes()
	if bytes.HasSuffix(body, []byte("\n")) {
		out = append(out, '\n')
	}
	return out
}

package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type RateLimitConfig struct {
	IPPerMinute     int
	IPBurst         int
	ClientPerMinute int
	ClientBurst     int
	MaxBodyBytes    int64
}

type RateLimiter struct {
	ipLimiter     *keyedLimiter
	clientLimiter *keyedLimiter
	maxBodyBytes  int64
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 4 << 20
	}
	return &RateLimiter{
		ipLimiter:     newKeyedLimiter(cfg.IPPerMinute, cfg.IPBurst),
		clientLimiter: newKeyedLimiter(cfg.ClientPerMinute, cfg.ClientBurst),
		maxBodyBytes:  maxBody,
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ip != "" && !l.ipLimiter.allow(ip) {
			writeError(w, requestIDFromRequest(r), http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}

		if clientID := l.extractClientID(r); clientID != "" && !l.clientLimiter.allow(clientID) {
			writeError(w, requestIDFromRequest(r), http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

type keyedLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*limiterEntry
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiter(perMinute, burst int) *keyedLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 20
	}
	return &keyedLimiter{
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

func (l *keyedLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[key]
	if !ok {
		l.sweep(now)
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweep drops limiters idle long enough to have refilled completely.
func (l *keyedLimiter) sweep(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
		}
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// extractClientID looks for the target client in the path first and then in a
// JSON request body, restoring the body for the next handler.
func (l *RateLimiter) extractClientID(r *http.Request) string {
	if id := clientIDFromURLPath(r.URL.Path); id != "" {
		return id
	}
	if r.Body == nil || r.Method != http.MethodPost {
		return ""
	}
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return ""
	}
	body, err := readBody(r, l.maxBodyBytes)
	if err != nil {
		return ""
	}
	var payload struct {
		ClientID int64 `json:"clientId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.ClientID <= 0 {
		return ""
	}
	return strconv.FormatInt(payload.ClientID, 10)
}

func clientIDFromURLPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/clients/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return ""
	}
	return id
}

func readBody(r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, limit))
	if err != nil {
		return nil, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

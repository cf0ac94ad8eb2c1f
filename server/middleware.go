package server

import (
	"bufio"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/logger"
)

// HTTPRequests counts API requests by route pattern and status code
var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "discograph_http_requests_total",
		Help: "HTTP requests by route and status code",
	},
	[]string{"route", "code"},
)

func init() {
	prometheus.MustRegister(HTTPRequests)
}

// Rate limit buckets. Search gets its own, larger allowance.
const (
	bucketAPI    = "api"
	bucketSearch = "search"
)

type limiterKey struct {
	bucket string
	ip     string
}

type limiterEntry struct {
	limiter  *rate.Limiter
	perMin   int
	lastSeen time.Time
}

// clientLimiters holds one token bucket per client IP and bucket.
type clientLimiters struct {
	mu      sync.Mutex
	entries map[limiterKey]*limiterEntry
	now     func() time.Time
}

func newClientLimiters() *clientLimiters {
	return &clientLimiters{
		entries: make(map[limiterKey]*limiterEntry),
		now:     time.Now,
	}
}

// allow takes one token from the caller's bucket. A limit of 0 always allows.
// A changed limit replaces the bucket.
func (l *clientLimiters) allow(bucket, ip string, perMinute int) bool {
	if perMinute <= 0 {
		return true
	}
	key := limiterKey{bucket: bucket, ip: ip}

	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok || e.perMin != perMinute {
		e = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
			perMin:  perMinute,
		}
		l.entries[key] = e
	}
	e.lastSeen = l.now()
	return e.limiter.AllowN(e.lastSeen, 1)
}

// sweep drops buckets idle for longer than idle.
func (l *clientLimiters) sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	removed := 0
	for k, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

// statusRecorder captures the response status for metrics and logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack hands the connection to the WebSocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withRequestID tags every request with an id, honouring one sent by the client.
func (s *DiscographServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// withCORS adds CORS headers for allowed origins and answers preflight requests.
func (s *DiscographServer) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies the per-IP token bucket for bucket.
func (s *DiscographServer) withRateLimit(bucket string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := s.settings.Load()
		limit := current.server.RateLimitPerMinute
		if bucket == bucketSearch {
			limit = current.server.SearchRateLimitPerMinute
		}
		if !s.limiters.allow(bucket, clientIP(r, current.proxies), limit) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded"})
			return
		}
		next(w, r)
	}
}

// withMetrics counts the request under its route pattern and logs it.
func (s *DiscographServer) withMetrics(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		logger.FromContext(r.Context(), s.logger).Debugw("Request served",
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldRoute, route,
			logger.FieldStatus, rec.status,
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)
	}
}

// withRecovery turns handler panics into 500 responses.
func (s *DiscographServer) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.FromContext(r.Context(), s.logger).Errorw("Handler panic",
					"panic", rec,
					logger.FieldPath, r.URL.Path,
				)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// clientIP is the peer address of r. When the peer is a trusted proxy,
// X-Forwarded-For is walked from the right past further trusted hops and the
// first untrusted hop is the client.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil {
		return host
	}
	client := peer.Unmap()
	if !isTrusted(client, trusted) {
		return client.String()
	}

	var hops []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(header, ",")...)
	}
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		client = addr.Unmap()
		if !isTrusted(client, trusted) {
			break
		}
	}
	return client.String()
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

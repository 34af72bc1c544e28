package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiterConfig configures the REST rate limiter.
//
// Rate uses the ulule format, e.g. "100-M" or "10-S". SkipPaths are matched
// by prefix.
type RateLimiterConfig struct {
	Rate       string   `json:"rate"`
	SkipPaths  []string `json:"skip_paths"`
	AddHeaders bool     `json:"add_headers"`
}

// MetricsObserver receives allow/deny outcomes.
type MetricsObserver interface {
	OnAllow(route string)
	OnDeny(route string)
}

// PrometheusObserver reports limiter outcomes to prometheus.
type PrometheusObserver struct {
	allow *prometheus.CounterVec
	deny  *prometheus.CounterVec
}

func NewPrometheusObserver() *PrometheusObserver {
	return &PrometheusObserver{
		allow: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_allow_total",
			Help: "Allowed requests by rate limiter",
		}, []string{"route"}),
		deny: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_deny_total",
			Help: "Denied requests by rate limiter",
		}, []string{"route"}),
	}
}

func (p *PrometheusObserver) OnAllow(route string) { p.allow.WithLabelValues(route).Inc() }
func (p *PrometheusObserver) OnDeny(route string)  { p.deny.WithLabelValues(route).Inc() }

// RateLimiter wraps one ulule limiter instance for the API surface.
type RateLimiter struct {
	cfg      RateLimiterConfig
	limiter  *limiter.Limiter
	observer MetricsObserver
}

// NewRateLimiter builds a limiter backed by store, defaulting to the
// in-memory store.
func NewRateLimiter(cfg RateLimiterConfig, store limiter.Store) (*RateLimiter, error) {
	if cfg.Rate == "" {
		cfg.Rate = "100-M"
	}
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, err
	}
	if store == nil {
		store = memory.NewStore()
	}
	return &RateLimiter{
		cfg:     cfg,
		limiter: limiter.New(store, rate),
	}, nil
}

// WithObserver installs a metrics observer.
func (l *RateLimiter) WithObserver(observer MetricsObserver) *RateLimiter {
	l.observer = observer
	return l
}

// Middleware returns the gin middleware.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range l.cfg.SkipPaths {
			if skip != "" && len(path) >= len(skip) && path[:len(skip)] == skip {
				c.Next()
				return
			}
		}

		lctx, err := l.limiter.Get(c, c.ClientIP())
		if err != nil {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = path
		}

		if l.cfg.AddHeaders {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
		}

		if lctx.Reached {
			if l.observer != nil {
				l.observer.OnDeny(route)
			}
			retry := time.Until(time.Unix(lctx.Reset, 0))
			if retry > 0 {
				c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}

		if l.observer != nil {
			l.observer.OnAllow(route)
		}
		c.Next()
	}
}

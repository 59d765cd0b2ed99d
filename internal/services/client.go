package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hanseplat/userhub/internal/config"
	"github.com/hanseplat/userhub/internal/result"
)

// Client makes outbound HTTP calls with a per-service circuit breaker and
// rate limiter in front of them. Services are registered lazily on first
// use, all sharing the configured thresholds.
type Client struct {
	http    *http.Client
	cfg     config.ServicesConfig
	log     *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	breakers map[string]*Breaker
	limiters map[string]*Limiter
}

// NewClient builds a Client from the services config.
func NewClient(cfg config.ServicesConfig, log *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &Client{
		http:     &http.Client{Timeout: timeout},
		cfg:      cfg,
		log:      log,
		timeout:  timeout,
		breakers: make(map[string]*Breaker),
		limiters: make(map[string]*Limiter),
	}
}

func (c *Client) breaker(service string) *Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[service]
	if !ok {
		b = NewBreaker(c.cfg.FailureThreshold, time.Duration(c.cfg.CooldownSeconds)*time.Second, c.log.With(zap.String("service", service)))
		c.breakers[service] = b
	}
	return b
}

func (c *Client) limiter(service string) *Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[service]
	if !ok {
		l = NewLimiter(c.cfg.RequestsPerWindow, time.Duration(c.cfg.WindowSeconds)*time.Second)
		c.limiters[service] = l
	}
	return l
}

// BreakerState exposes the named service's breaker position, for the
// metrics endpoint. Unknown services report closed.
func (c *Client) BreakerState(service string) State {
	c.mu.Lock()
	b, ok := c.breakers[service]
	c.mu.Unlock()
	if !ok {
		return StateClosed
	}
	return b.State()
}

// Do performs one guarded request and returns the status code and body.
// The limiter and breaker are consulted before any I/O; a 5xx or transport
// error counts as a breaker failure, everything else as a success.
func (c *Client) Do(ctx context.Context, service, method, url string, body io.Reader) (int, []byte, error) {
	if !c.limiter(service).Allow() {
		return 0, nil, result.Errf(result.KindTransient, fmt.Sprintf("%s: rate limit exceeded", service))
	}

	b := c.breaker(service)
	if !b.Allow() {
		return 0, nil, result.Errf(result.KindUnavailable, fmt.Sprintf("%s: circuit open", service))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("building %s request: %w", service, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		b.Record(err)
		return 0, nil, result.Errf(result.KindTransient, fmt.Sprintf("%s: %v", service, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		b.Record(err)
		return resp.StatusCode, nil, result.Errf(result.KindTransient, fmt.Sprintf("%s: reading response: %v", service, err))
	}

	if resp.StatusCode >= 500 {
		b.Record(fmt.Errorf("%s returned %d", service, resp.StatusCode))
	} else {
		b.Record(nil)
	}
	return resp.StatusCode, data, nil
}

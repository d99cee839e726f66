// Package fetcher implements page fetching over a pool of rotating
// sessions using the Colly collector.
package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shopharvest/shopharvest/internal/catalog"
	"github.com/shopharvest/shopharvest/internal/metrics"
)

// Config controls fetch behavior and the session pool.
type Config struct {
	UserAgent        string
	Timeout          time.Duration
	RespectRobots    bool
	TransportRetries int
	Proxies          []string
	PoolSize         int
	MaxSessionUses   int
	MaxSessionErrors int

	// Transport overrides the HTTP transport; tests inject httpmock here.
	Transport http.RoundTripper
}

// Client implements catalog.Fetcher over a bounded session pool. A session
// is a network identity (proxy + cookie jar) retired once its error or use
// count crosses the configured threshold.
type Client struct {
	cfg    Config
	logger *zap.Logger
	idle   chan *Session

	proxyMu sync.Mutex
	next    int
}

// New builds a Client and fills the pool.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxSessionUses <= 0 {
		cfg.MaxSessionUses = 50
	}
	if cfg.MaxSessionErrors <= 0 {
		cfg.MaxSessionErrors = 3
	}
	metrics.Init()

	c := &Client{
		cfg:    cfg,
		logger: logger,
		idle:   make(chan *Session, cfg.PoolSize),
	}
	for i := 0; i < cfg.PoolSize; i++ {
		s, err := c.newSession()
		if err != nil {
			return nil, err
		}
		c.idle <- s
	}
	return c, nil
}

// Fetch retrieves url through an acquired session, retrying transient
// transport errors up to the configured transport retry count. Non-2xx
// statuses are returned as responses, not errors; callers decide what an
// unexpected status means.
func (c *Client) Fetch(ctx context.Context, url string) (catalog.FetchResponse, error) {
	session, err := c.acquire(ctx)
	if err != nil {
		return catalog.FetchResponse{}, err
	}

	attempts := c.cfg.TransportRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				c.release(session, true)
				return catalog.FetchResponse{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
		resp, err := session.fetch(ctx, url)
		if err == nil {
			c.release(session, false)
			metrics.ObserveFetch("ok", resp.Duration)
			return resp, nil
		}
		lastErr = err
		c.logger.Debug("transport fetch failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	c.release(session, true)
	metrics.ObserveFetch("error", 0)
	return catalog.FetchResponse{}, fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (c *Client) acquire(ctx context.Context) (*Session, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("session acquire canceled: %w", ctx.Err())
	case s := <-c.idle:
		return s, nil
	}
}

// release returns the session to the pool, rotating it if the rotation
// thresholds were crossed.
func (c *Client) release(s *Session, failed bool) {
	s.uses++
	if failed {
		s.errors++
	}
	if s.errors >= c.cfg.MaxSessionErrors || s.uses >= c.cfg.MaxSessionUses {
		metrics.ObserveSessionRotation()
		c.logger.Debug("rotating session",
			zap.String("session_id", s.id),
			zap.Int("uses", s.uses),
			zap.Int("errors", s.errors),
		)
		replacement, err := c.newSession()
		if err != nil {
			c.logger.Warn("session replacement failed, reusing", zap.Error(err))
			s.uses = 0
			s.errors = 0
			c.idle <- s
			return
		}
		c.idle <- replacement
		return
	}
	c.idle <- s
}

func (c *Client) nextProxy() string {
	if len(c.cfg.Proxies) == 0 {
		return ""
	}
	c.proxyMu.Lock()
	defer c.proxyMu.Unlock()
	proxy := c.cfg.Proxies[c.next%len(c.cfg.Proxies)]
	c.next++
	return proxy
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

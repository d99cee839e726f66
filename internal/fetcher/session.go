package fetcher

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"

	"github.com/shopharvest/shopharvest/internal/catalog"
)

// Session is one network identity: a proxy assignment plus a cookie jar
// shared by every request the session issues.
type Session struct {
	id     string
	proxy  string
	jar    *cookiejar.Jar
	uses   int
	errors int

	client *Client
}

func (c *Client) newSession() (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Session{
		id:     uuid.NewString(),
		proxy:  c.nextProxy(),
		jar:    jar,
		client: c,
	}, nil
}

// fetch executes a single HTTP GET through this session's identity.
// A fresh collector per call keeps Colly callbacks from stacking while the
// jar preserves cookies across the session's lifetime.
func (s *Session) fetch(ctx context.Context, url string) (catalog.FetchResponse, error) {
	collector, err := s.buildCollector()
	if err != nil {
		return catalog.FetchResponse{}, err
	}

	var (
		result   catalog.FetchResponse
		fetchErr error
	)
	start := time.Now()

	collector.OnResponse(func(r *colly.Response) {
		result = catalog.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return catalog.FetchResponse{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return catalog.FetchResponse{}, fmt.Errorf("visit failed: %w", err)
		}
		if fetchErr != nil {
			return catalog.FetchResponse{}, fmt.Errorf("response failed: %w", fetchErr)
		}
		return result, nil
	}
}

func (s *Session) buildCollector() (*colly.Collector, error) {
	cfg := s.client.cfg

	collector := colly.NewCollector(colly.Async(false))
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = !cfg.RespectRobots
	// Non-2xx bodies still flow to OnResponse; status handling is the
	// caller's concern.
	collector.ParseHTTPErrorResponse = true
	if cfg.UserAgent != "" {
		collector.UserAgent = cfg.UserAgent
	}
	collector.SetRequestTimeout(cfg.Timeout)
	collector.SetCookieJar(s.jar)

	if cfg.Transport != nil {
		collector.WithTransport(cfg.Transport)
	} else {
		collector.WithTransport(newHTTPTransport())
	}

	if s.proxy != "" {
		if err := collector.SetProxy(s.proxy); err != nil {
			return nil, fmt.Errorf("set proxy %s: %w", s.proxy, err)
		}
	}
	return collector, nil
}

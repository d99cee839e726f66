package fetcher

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, transport *httpmock.MockTransport, cfg Config) *Client {
	t.Helper()
	cfg.Transport = transport
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	client, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestFetchReturnsBody(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/collections/all",
		httpmock.NewStringResponder(200, "<html>catalog</html>"))

	client := newTestClient(t, transport, Config{PoolSize: 2})

	resp, err := client.Fetch(context.Background(), "http://shop.test/collections/all")
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "<html>catalog</html>", string(resp.Body))
	require.Equal(t, "http://shop.test/collections/all", resp.URL)
}

func TestFetchNon200IsNotAnError(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/products/gone.json",
		httpmock.NewStringResponder(404, "not found"))

	client := newTestClient(t, transport, Config{PoolSize: 1})

	resp, err := client.Fetch(context.Background(), "http://shop.test/products/gone.json")
	require.NoError(t, err)
	require.Equal(t, 404, resp.StatusCode)
	require.Equal(t, "not found", string(resp.Body))
}

func TestFetchRetriesTransportErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/flaky",
		func(req *http.Request) (*http.Response, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("connection reset by peer")
			}
			return httpmock.NewStringResponse(200, "recovered"), nil
		})

	client := newTestClient(t, transport, Config{PoolSize: 1, TransportRetries: 2})

	resp, err := client.Fetch(context.Background(), "http://shop.test/flaky")
	require.NoError(t, err)
	require.Equal(t, "recovered", string(resp.Body))
	require.EqualValues(t, 2, calls.Load())
}

func TestFetchExhaustsTransportRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/down",
		func(*http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, errors.New("connection refused")
		})

	client := newTestClient(t, transport, Config{PoolSize: 1, TransportRetries: 1})

	_, err := client.Fetch(context.Background(), "http://shop.test/down")
	require.Error(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	client := newTestClient(t, transport, Config{PoolSize: 1})

	// Drain the pool so acquire blocks, then cancel.
	session := <-client.idle
	defer func() { client.idle <- session }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, "http://shop.test/")
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSessionRotationAfterUses(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/",
		httpmock.NewStringResponder(200, "ok"))

	client := newTestClient(t, transport, Config{PoolSize: 1, MaxSessionUses: 1})

	first := <-client.idle
	firstID := first.id
	client.idle <- first

	_, err := client.Fetch(context.Background(), "http://shop.test/")
	require.NoError(t, err)

	rotated := <-client.idle
	client.idle <- rotated
	require.NotEqual(t, firstID, rotated.id)
}

func TestProxyRoundRobin(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	client := newTestClient(t, transport, Config{
		PoolSize: 1,
		Proxies:  []string{"http://proxy-a:8080", "http://proxy-b:8080"},
	})

	require.Equal(t, "http://proxy-b:8080", client.nextProxy())
	require.Equal(t, "http://proxy-a:8080", client.nextProxy())
	require.Equal(t, "http://proxy-b:8080", client.nextProxy())
}

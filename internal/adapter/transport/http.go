package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/logger"
)

const (
	DefaultDialTimeout         = 10 * time.Second
	DefaultKeepAlive           = 60 * time.Second
	DefaultMaxIdleConns        = 20
	DefaultMaxIdleConnsPerHost = 5
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second

	DefaultHealthProbeTimeout = 5 * time.Second

	maxResponseBytes = 32 << 20
)

// HTTPTransport posts JSON-RPC requests to a remote MCP server and
// reads the full response body before parsing. A JSON-RPC error payload
// is a successful call; only status, timeout and parse failures count
// as transport faults.
type HTTPTransport struct {
	client    *http.Client
	logger    logger.StyledLogger
	name      string
	url       string
	healthURL string
	timeout   time.Duration
	tracker   callTracker
}

func NewHTTPTransport(cfg domain.ServerConfig, log logger.StyledLogger) *HTTPTransport {
	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
		DialContext: (&net.Dialer{
			Timeout:   DefaultDialTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
	}

	return &HTTPTransport{
		name:      cfg.Name,
		url:       cfg.URL,
		healthURL: joinHealthURL(cfg.URL, cfg.HealthEndpoint),
		timeout:   cfg.CallTimeout(),
		client:    &http.Client{Transport: transport},
		logger:    log,
	}
}

func (t *HTTPTransport) Kind() string { return domain.TransportHTTP }

// Start is a no-op; connections are dialled on first use.
func (t *HTTPTransport) Start(_ context.Context) error { return nil }

func (t *HTTPTransport) Stop(_ context.Context) error {
	t.client.CloseIdleConnections()
	return nil
}

// Restart drops pooled connections; there is no process to respawn.
func (t *HTTPTransport) Restart(_ context.Context) error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *HTTPTransport) Call(ctx context.Context, req domain.Request) (domain.Response, error) {
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return domain.Response{}, domain.NewTransportError(t.name, "marshal", false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return domain.Response{}, domain.NewTransportError(t.name, "request", false, err)
	}
	httpReq.Header.Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	httpReq.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		terr := domain.NewTransportError(t.name, "post", isTimeout(err), err)
		// client cancellation is not an upstream fault
		if !errors.Is(err, context.Canceled) {
			t.tracker.failure(started, terr)
		}
		return domain.Response{}, terr
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(httpResp.Body, maxResponseBytes))
		terr := domain.NewTransportError(t.name, "post", false,
			fmt.Errorf("upstream returned status %d", httpResp.StatusCode))
		t.tracker.failure(started, terr)
		return domain.Response{}, terr
	}

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		terr := domain.NewTransportError(t.name, "read", isTimeout(err), err)
		if !errors.Is(err, context.Canceled) {
			t.tracker.failure(started, terr)
		}
		return domain.Response{}, terr
	}

	var resp domain.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		terr := domain.NewTransportError(t.name, "parse", false, err)
		t.tracker.failure(started, terr)
		return domain.Response{}, terr
	}

	t.tracker.success(started)
	return resp, nil
}

// Healthy probes the configured health endpoint when there is one,
// otherwise falls back to the outcome of the most recent call.
func (t *HTTPTransport) Healthy(ctx context.Context) bool {
	if t.healthURL == "" {
		return t.tracker.lastKnownGood()
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultHealthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func (t *HTTPTransport) Stats() domain.TransportStats {
	stats := domain.TransportStats{
		Kind:    domain.TransportHTTP,
		Running: true,
	}
	t.tracker.fill(&stats)
	return stats
}

// Package inference is the thin HTTP client for the local model
// service (Ollama compatible). It carries no retry or fallback policy;
// the enhancement middleware decides what a failure means.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/logger"
	"github.com/thushan/ladle/internal/util"
)

const (
	generatePath   = "/api/generate"
	embeddingsPath = "/api/embeddings"
	versionPath    = "/api/version"

	DefaultGenerateTimeout = 60 * time.Second
	DefaultEmbedTimeout    = 10 * time.Second

	maxErrorBodyBytes = 512
)

// Config holds the inference endpoint settings.
type Config struct {
	BaseURL         string
	GenerateTimeout time.Duration
	EmbedTimeout    time.Duration
}

// StatusError reports a non-2xx answer from the inference service.
type StatusError struct {
	Op         string
	Body       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference %s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

type Client struct {
	client          *http.Client
	logger          logger.StyledLogger
	baseURL         string
	generateTimeout time.Duration
	embedTimeout    time.Duration
}

func NewClient(cfg Config, log logger.StyledLogger) *Client {
	generateTimeout := cfg.GenerateTimeout
	if generateTimeout <= 0 {
		generateTimeout = DefaultGenerateTimeout
	}
	embedTimeout := cfg.EmbedTimeout
	if embedTimeout <= 0 {
		embedTimeout = DefaultEmbedTimeout
	}

	return &Client{
		baseURL:         util.NormaliseBaseURL(cfg.BaseURL),
		generateTimeout: generateTimeout,
		embedTimeout:    embedTimeout,
		client:          &http.Client{},
		logger:          log,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate runs one non-streaming completion and returns the text.
func (c *Client) Generate(ctx context.Context, model, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	var out generateResponse
	err := c.post(ctx, "generate", generatePath, generateRequest{
		Model:  model,
		System: system,
		Prompt: prompt,
		Stream: false,
	}, &out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Response), nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for text under the given model.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.embedTimeout)
	defer cancel()

	var out embedResponse
	if err := c.post(ctx, "embed", embeddingsPath, embedRequest{Model: model, Prompt: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("inference embed returned an empty vector for model %q", model)
	}
	return out.Embedding, nil
}

// Version asks the service for its version string. Used as a liveness
// probe at startup.
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.embedTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+versionPath, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Op: "version", StatusCode: resp.StatusCode, Body: truncate(body)}
	}

	var out struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("inference version response unparseable: %w", err)
	}
	return out.Version, nil
}

func (c *Client) post(ctx context.Context, op, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	req.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: truncate(raw)}
	}

	return json.Unmarshal(raw, out)
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		return s[:maxErrorBodyBytes] + "…"
	}
	return s
}

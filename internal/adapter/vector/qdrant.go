// Package vector implements the L2 cache tier against a Qdrant
// collection over its REST API. The gateway only ever needs five calls
// (ensure, search, upsert, drop, count), so this speaks plain HTTP
// rather than pulling in the full client SDK.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/logger"
	"github.com/thushan/ladle/internal/util"
)

const (
	DefaultTimeout = 10 * time.Second

	distanceCosine    = "Cosine"
	maxErrorBodyBytes = 512
)

// Config holds the vector store settings.
type Config struct {
	BaseURL    string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// StatusError reports a non-2xx answer from the vector store.
type StatusError struct {
	Body       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("qdrant returned status %d: %s", e.StatusCode, e.Body)
}

type QdrantClient struct {
	client     *http.Client
	logger     logger.StyledLogger
	baseURL    string
	collection string
	dimension  int
	available  atomic.Bool
}

func NewQdrantClient(cfg Config, log logger.StyledLogger) *QdrantClient {
	collection := cfg.Collection
	if collection == "" {
		collection = domain.DefaultVectorCollection
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = domain.DefaultVectorDimension
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &QdrantClient{
		baseURL:    util.NormaliseBaseURL(cfg.BaseURL),
		collection: collection,
		dimension:  dimension,
		client:     &http.Client{Timeout: timeout},
		logger:     log,
	}
}

type vectorParams struct {
	Distance string `json:"distance"`
	Size     int    `json:"size"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

// EnsureCollection checks the collection exists and creates it when the
// store answers 404. Success flips the client available; any other
// failure leaves L2 switched off until the next ensure.
func (c *QdrantClient) EnsureCollection(ctx context.Context) error {
	err := c.doRequest(ctx, http.MethodGet, c.collectionPath(), nil, nil)
	if err == nil {
		c.available.Store(true)
		return nil
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		c.available.Store(false)
		return err
	}

	create := createCollectionRequest{Vectors: vectorParams{Size: c.dimension, Distance: distanceCosine}}
	if err := c.doRequest(ctx, http.MethodPut, c.collectionPath(), create, nil); err != nil {
		c.available.Store(false)
		return err
	}

	c.logger.Info("created vector collection", "collection", c.collection, "dimension", c.dimension)
	c.available.Store(true)
	return nil
}

type searchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	ScoreThreshold float64   `json:"score_threshold"`
	WithPayload    bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []struct {
		Payload domain.CacheEntry `json:"payload"`
		Score   float64           `json:"score"`
	} `json:"result"`
}

// Search returns stored entries scoring at or above threshold, best first.
func (c *QdrantClient) Search(ctx context.Context, vector []float32, limit int, threshold float64) ([]domain.CacheEntry, error) {
	var out searchResponse
	err := c.doRequest(ctx, http.MethodPost, c.pointsPath()+"/search", searchRequest{
		Vector:         vector,
		Limit:          limit,
		ScoreThreshold: threshold,
		WithPayload:    true,
	}, &out)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.CacheEntry, 0, len(out.Result))
	for _, hit := range out.Result {
		entries = append(entries, hit.Payload)
	}
	return entries, nil
}

type upsertRequest struct {
	Points []point `json:"points"`
}

type point struct {
	ID      string            `json:"id"`
	Payload domain.CacheEntry `json:"payload"`
	Vector  []float32         `json:"vector"`
}

// Upsert stores one entry under the given point id.
func (c *QdrantClient) Upsert(ctx context.Context, id string, vector []float32, entry domain.CacheEntry) error {
	return c.doRequest(ctx, http.MethodPut, c.pointsPath()+"?wait=true", upsertRequest{
		Points: []point{{ID: id, Vector: vector, Payload: entry}},
	}, nil)
}

// Drop deletes the whole collection.
func (c *QdrantClient) Drop(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodDelete, c.collectionPath(), nil, nil)
}

type countResponse struct {
	Result struct {
		Count int64 `json:"count"`
	} `json:"result"`
}

// Count returns the exact number of stored points.
func (c *QdrantClient) Count(ctx context.Context) (int64, error) {
	var out countResponse
	body := map[string]bool{"exact": true}
	if err := c.doRequest(ctx, http.MethodPost, c.pointsPath()+"/count", body, &out); err != nil {
		return 0, err
	}
	return out.Result.Count, nil
}

func (c *QdrantClient) Available() bool {
	return c.available.Load()
}

func (c *QdrantClient) collectionPath() string {
	return "/collections/" + c.collection
}

func (c *QdrantClient) pointsPath() string {
	return c.collectionPath() + "/points"
}

func (c *QdrantClient) doRequest(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	}
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
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(raw)}
	}
	if out == nil {
		return nil
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

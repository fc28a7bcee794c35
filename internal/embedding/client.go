// Package embedding turns text into vectors via the remote embedding
// model, with a content-addressed cache in front so identical text never
// hits the network twice.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dhiway/jobstack-bap/internal/cache"
	"github.com/dhiway/jobstack-bap/internal/config"
	"github.com/dhiway/jobstack-bap/internal/hashutil"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// VectorCache is the slice of the transient store the client needs.
type VectorCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type Client struct {
	baseURL string
	model   string
	apiKey  string
	cache   VectorCache
	http    *http.Client
}

func New(cfg config.GCPConfig, cacheClient VectorCache) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		model:   cfg.Model,
		apiKey:  cfg.AuthToken,
		cache:   cacheClient,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL overrides the API endpoint.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

type embedRequest struct {
	Model   string       `json:"model"`
	Content embedContent `json:"content"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the vector for text. Blank text (empty or whitespace)
// returns an empty vector without touching cache or network. Cached
// vectors are reused by content hash; a fresh vector is cached
// best-effort with no TTL.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	key := cache.EmbeddingKey(c.model, hashutil.TextHash(text))
	if cached, err := c.cache.Get(ctx, key); err == nil {
		var vec []float32
		if err := json.Unmarshal([]byte(cached), &vec); err == nil {
			return vec, nil
		}
		slog.Warn("corrupt cached embedding, refetching", "key", key)
	}

	vec, err := c.fetch(ctx, text)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(vec); err == nil {
		if err := c.cache.Set(ctx, key, string(encoded), 0); err != nil {
			slog.Warn("embedding cache write failed", "key", key, "error", err)
		}
	}
	return vec, nil
}

func (c *Client) fetch(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model:   "models/" + c.model,
		Content: embedContent{Parts: []embedPart{{Text: text}}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding api: status %d: %s", resp.StatusCode, snippet)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(out.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embedding api: empty vector for model %s", c.model)
	}
	return out.Embedding.Values, nil
}

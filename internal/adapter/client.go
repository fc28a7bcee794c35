// Package adapter holds the outbound HTTP clients: the protocol adapter
// that relays Beckn actions onto the network, and the seeker service the
// profile sync pulls from. Both share one http.Client with a process-global
// timeout.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dhiway/jobstack-bap/internal/metrics"
)

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			MaxIdleConnsPerHost: 10,
		},
	}
}

// Client POSTs Beckn payloads to the network adapter.
type Client struct {
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics
}

func New(callerURI string, m *metrics.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(callerURI, "/"),
		http:    newHTTPClient(),
		metrics: m,
	}
}

// Send POSTs payload to {caller_uri}/{action}. The network replies with an
// ACK; the real answer arrives later on the webhook.
func (c *Client) Send(ctx context.Context, action string, payload interface{}) error {
	url := c.baseURL + "/" + action
	start := time.Now()
	err := postJSON(ctx, c.http, url, payload, nil)
	c.metrics.RecordOutbound(action, err == nil, time.Since(start).Seconds())
	return err
}

// SendTo POSTs payload to an absolute URL (profiles-BPP mirror role).
func (c *Client) SendTo(ctx context.Context, url string, payload interface{}) error {
	return postJSON(ctx, c.http, url, payload, nil)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}, headers http.Header) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		slog.Error("post failed", "url", url, "status", resp.StatusCode, "body", string(snippet))
		return fmt.Errorf("post %s: status %d", url, resp.StatusCode)
	}
	return nil
}

// PostSigned POSTs with extra headers (notification dispatcher).
func PostSigned(ctx context.Context, client *http.Client, url string, payload interface{}, headers http.Header) error {
	return postJSON(ctx, client, url, payload, headers)
}

// SeekerClient pulls candidate profiles from the seeker service.
type SeekerClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewSeeker(baseURL, apiKey string) *SeekerClient {
	return &SeekerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    newHTTPClient(),
	}
}

// ProfilePage is one page of the seeker /profile/all response.
type ProfilePage struct {
	Data       []SeekerProfile  `json:"data"`
	Pagination SeekerPagination `json:"pagination"`
}

type SeekerProfile struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Type      string          `json:"type"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

type SeekerPagination struct {
	TotalCount int `json:"totalCount"`
}

// FetchProfiles GETs one page; profileID narrows the pull to one profile.
func (s *SeekerClient) FetchProfiles(ctx context.Context, page, limit int, profileID string) (*ProfilePage, error) {
	url := fmt.Sprintf("%s/profile/all?page=%d&limit=%d", s.baseURL, page, limit)
	if profileID != "" {
		url = fmt.Sprintf("%s/profile/all?page=%d&limit=%d&profileId=%s", s.baseURL, page, limit, profileID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}

	var out ProfilePage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode profiles page: %w", err)
	}
	return &out, nil
}

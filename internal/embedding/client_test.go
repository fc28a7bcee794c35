package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhiway/jobstack-bap/internal/cache"
	"github.com/dhiway/jobstack-bap/internal/config"
)

type mapCache struct {
	m map[string]string
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string]string)} }

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c.m[key]
	if !ok {
		return "", cache.ErrNotFound
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.m[key] = value
	return nil
}

func TestEmbedBlankTextSkipsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no call expected for blank text")
	}))
	defer srv.Close()

	c := New(config.GCPConfig{Model: "text-embedding-004", AuthToken: "k"}, newMapCache()).WithBaseURL(srv.URL)
	for _, text := range []string{"", "   ", "\n\t "} {
		vec, err := c.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Empty(t, vec)
	}
}

func TestEmbedFetchesAndCaches(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/models/text-embedding-004:embedContent", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "models/text-embedding-004", req["model"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{"values": []float32{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	store := newMapCache()
	c := New(config.GCPConfig{Model: "text-embedding-004", AuthToken: "k"}, store).WithBaseURL(srv.URL)

	vec, err := c.Embed(context.Background(), "driver bengaluru")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 1, calls)
	assert.Len(t, store.m, 1)

	// identical text is served from cache
	again, err := c.Embed(context.Background(), "driver bengaluru")
	require.NoError(t, err)
	assert.Equal(t, vec, again)
	assert.Equal(t, 1, calls)
}

func TestEmbedErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(config.GCPConfig{Model: "m", AuthToken: "k"}, newMapCache()).WithBaseURL(srv.URL)
	_, err := c.Embed(context.Background(), "some text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

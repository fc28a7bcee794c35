// Package search implements both search flows: the client-facing cached
// fan-in (ask, return what the cache has, let callbacks refill it) and
// the scheduled open-jobs sweep that assembles the full catalogue.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dhiway/jobstack-bap/internal/adapter"
	"github.com/dhiway/jobstack-bap/internal/beckn"
	"github.com/dhiway/jobstack-bap/internal/cache"
	"github.com/dhiway/jobstack-bap/internal/config"
	"github.com/dhiway/jobstack-bap/internal/embedding"
	"github.com/dhiway/jobstack-bap/internal/hashutil"
	"github.com/dhiway/jobstack-bap/internal/jobsync"
	"github.com/dhiway/jobstack-bap/internal/metrics"
	"github.com/dhiway/jobstack-bap/internal/models"
)

// cronTxnPrefix marks sweep transactions; on_search callbacks carrying it
// route to the sweep pipeline instead of the client cache.
const cronTxnPrefix = "cron-"

// dispatchTimeout caps fire-and-forget adapter POSTs.
const dispatchTimeout = 30 * time.Second

type Coordinator struct {
	cfg      *config.Config
	rules    *config.MatchRules
	cache    *cache.Client
	adapter  *adapter.Client
	embedder *embedding.Client
	jobs     *jobsync.Syncer
	metrics  *metrics.Metrics

	// onSweepDone fires after a sweep closes and its jobs are persisted.
	onSweepDone func()

	mu         sync.Mutex
	sweepLocks map[string]*sync.Mutex
}

func NewCoordinator(cfg *config.Config, rules *config.MatchRules, cacheClient *cache.Client, adapterClient *adapter.Client, embedder *embedding.Client, jobs *jobsync.Syncer, m *metrics.Metrics, onSweepDone func()) *Coordinator {
	return &Coordinator{
		cfg:         cfg,
		rules:       rules,
		cache:       cacheClient,
		adapter:     adapterClient,
		embedder:    embedder,
		jobs:        jobs,
		metrics:     m,
		onSweepDone: onSweepDone,
		sweepLocks:  make(map[string]*sync.Mutex),
	}
}

// SearchResult is the immediate answer of the v1 flow: whatever the cache
// already holds for this query. Callbacks refill the cache behind it.
type SearchResult struct {
	Results []json.RawMessage `json:"results"`
}

// HandleSearch serves POST /api/v1/search: return cached results for the
// canonical query hash right away and, unless throttled, fire the search
// onto the network without waiting for callbacks.
func (c *Coordinator) HandleSearch(ctx context.Context, req models.SearchRequest) (*SearchResult, error) {
	queryHash := hashutil.QueryHash(req.Message)
	txnID := "txn-" + uuid.NewString()
	msgID := "msg-" + uuid.NewString()

	values, err := c.cache.MGetPattern(ctx, cache.SearchPattern(queryHash))
	if err != nil {
		return nil, fmt.Errorf("read search cache: %w", err)
	}
	results := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		if !json.Valid([]byte(v)) {
			slog.Error("corrupt cached search entry, skipping", "query_hash", queryHash)
			continue
		}
		results = append(results, json.RawMessage(v))
	}

	if err := c.cache.Set(ctx, cache.TxnToQueryKey(txnID), queryHash, c.cfg.Cache.TxnTTL()); err != nil {
		return nil, fmt.Errorf("register txn mapping: %w", err)
	}

	fresh, err := c.cache.SetNX(ctx, cache.LastCallKey(queryHash), "1", c.cfg.Cache.ThrottleTTL())
	if err != nil {
		slog.Error("throttle check failed, dispatching anyway", "error", err)
		fresh = true
	}
	if fresh {
		payload := beckn.NewPayload(c.cfg, txnID, msgID, req.Message, "search", "", "")
		go func() {
			dctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
			defer cancel()
			if err := c.adapter.Send(dctx, "search", payload); err != nil {
				slog.Error("search dispatch failed", "transaction_id", txnID, "error", err)
			}
		}()
	} else {
		slog.Info("search throttled, serving cache only",
			"query_hash", queryHash, "throttle_secs", c.cfg.Cache.ThrottleSecs)
	}

	return &SearchResult{Results: results}, nil
}

// HandleOnSearch routes an on_search callback: sweep transactions go to
// the cron pipeline, everything else lands in the client cache. Always
// returns nil-as-ACK semantics; storage failures are logged, never
// surfaced to the network.
func (c *Coordinator) HandleOnSearch(ctx context.Context, payload models.WebhookPayload, raw []byte) {
	txnID := payload.Context.TransactionID
	if strings.HasPrefix(txnID, cronTxnPrefix) {
		c.handleCronOnSearch(ctx, payload, raw)
		return
	}

	queryHash, err := c.cache.Get(ctx, cache.TxnToQueryKey(txnID))
	if err == cache.ErrNotFound {
		slog.Info("no query mapping for on_search, dropping", "transaction_id", txnID)
		return
	}
	if err != nil {
		slog.Error("query mapping lookup failed", "transaction_id", txnID, "error", err)
		return
	}

	bppID := payload.Context.BppID
	if bppID == "" {
		slog.Info("on_search without bpp_id, skipping cache", "transaction_id", txnID)
		return
	}

	key := cache.SearchKey(queryHash, bppID)
	if err := c.cache.Set(ctx, key, string(raw), c.cfg.Cache.ResultTTL()); err != nil {
		slog.Error("search cache write failed", "key", key, "error", err)
		return
	}
	slog.Info("cached on_search result", "key", key, "transaction_id", txnID)
}

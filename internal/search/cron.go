package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dhiway/jobstack-bap/internal/beckn"
	"github.com/dhiway/jobstack-bap/internal/cache"
	"github.com/dhiway/jobstack-bap/internal/models"
	"github.com/dhiway/jobstack-bap/internal/scoring"
)

// openJobsPageLimit is the page size requested from every BPP during a
// sweep.
const openJobsPageLimit = 30

// openJobsMessage builds the "all open jobs" search message for one page.
func openJobsMessage(page, limit int) map[string]interface{} {
	return map[string]interface{}{
		"intent": map[string]interface{}{
			"item": map[string]interface{}{
				"tags": []interface{}{
					map[string]interface{}{
						"descriptor": map[string]interface{}{"code": "status", "name": "Status"},
						"list": []interface{}{
							map[string]interface{}{
								"descriptor": map[string]interface{}{"code": "status", "name": "Status"},
								"value":      "open",
							},
						},
					},
				},
			},
		},
		"pagination": map[string]interface{}{"page": page, "limit": limit},
		"options":    map[string]interface{}{"brief": false},
	}
}

// StartSweep opens a new catalogue sweep: mint the txn, record its
// metadata, and broadcast the first open-jobs page.
func (c *Coordinator) StartSweep(ctx context.Context, source string) error {
	txnID := fmt.Sprintf("%s-%s", source, uuid.NewString())
	msgID := "msg-" + uuid.NewString()

	meta, _ := json.Marshal(map[string]interface{}{
		"source":    source,
		"brief":     false,
		"all_jobs":  true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err := c.cache.Set(ctx, cache.CronTxnKey(txnID), string(meta), c.cfg.Cache.TxnTTL()); err != nil {
		return fmt.Errorf("store sweep metadata: %w", err)
	}

	payload := beckn.NewPayload(c.cfg, txnID, msgID, openJobsMessage(1, openJobsPageLimit), "search", "", "")
	if err := c.adapter.Send(ctx, "search", payload); err != nil {
		return fmt.Errorf("dispatch sweep search: %w", err)
	}

	slog.Info("sweep started", "transaction_id", txnID, "source", source)
	return nil
}

// sweepLock serialises merge read-modify-write per (txn, bpp).
func (c *Coordinator) sweepLock(txnID, bppID string) *sync.Mutex {
	key := txnID + ":" + bppID
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.sweepLocks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	c.sweepLocks[key] = l
	return l
}

// handleCronOnSearch folds one sweep callback into the per-BPP merged
// payload and drives pagination; when the last page lands, the sweep
// closes.
func (c *Coordinator) handleCronOnSearch(ctx context.Context, payload models.WebhookPayload, raw []byte) {
	txnID := payload.Context.TransactionID
	bppID := payload.Context.BppID
	if bppID == "" {
		slog.Info("sweep callback without bpp_id, skipping", "transaction_id", txnID)
		return
	}

	lock := c.sweepLock(txnID, bppID)
	lock.Lock()
	defer lock.Unlock()

	var incoming interface{}
	if err := json.Unmarshal(raw, &incoming); err != nil {
		slog.Error("unparseable sweep callback", "transaction_id", txnID, "error", err)
		return
	}

	key := cache.CronJobsKey(txnID, bppID)
	stored := incoming
	if existing, err := c.cache.Get(ctx, key); err == nil {
		var parsed interface{}
		if err := json.Unmarshal([]byte(existing), &parsed); err == nil {
			stored = parsed
		}
	}

	c.embedIncomingItems(ctx, incoming)

	if storedMap, ok := stored.(map[string]interface{}); ok {
		existingProviders := providersOf(storedMap)
		incomingProviders := providersOf(incoming)
		setProviders(storedMap, MergeProviders(existingProviders, incomingProviders))
	}

	page, limit, total := SweepPagination(stored)
	c.metrics.RecordSweepPage(bppID)
	slog.Info("sweep page merged", "transaction_id", txnID, "bpp_id", bppID,
		"page", page, "limit", limit, "total_count", total)

	if page*limit < total {
		// bump the stored page first so a duplicate callback cannot
		// request the same page twice
		nextPage := page + 1
		setPage(stored, nextPage)
		c.saveSweepPayload(ctx, key, stored)

		msgID := "msg-" + uuid.NewString()
		next := beckn.NewPayload(c.cfg, txnID, msgID,
			openJobsMessage(nextPage, limit), "search", bppID, payload.Context.BppURI)
		if err := c.adapter.Send(ctx, "search", next); err != nil {
			slog.Error("next sweep page dispatch failed",
				"transaction_id", txnID, "bpp_id", bppID, "page", nextPage, "error", err)
			return
		}
		slog.Info("requested next sweep page",
			"transaction_id", txnID, "bpp_id", bppID, "page", nextPage)
		return
	}

	c.saveSweepPayload(ctx, key, stored)
	c.closeSweep(ctx, txnID)
}

func (c *Coordinator) saveSweepPayload(ctx context.Context, key string, stored interface{}) {
	data, err := json.Marshal(stored)
	if err != nil {
		slog.Error("sweep payload marshal failed", "key", key, "error", err)
		return
	}
	if err := c.cache.Set(ctx, key, string(data), c.cfg.Cache.ResultTTL()); err != nil {
		slog.Error("sweep payload store failed", "key", key, "error", err)
	}
}

// embedIncomingItems attaches an embedding to every item of the incoming
// page. The content-addressed cache makes re-embedding a repeated item a
// single cache read; items whose embedding text is empty are skipped.
func (c *Coordinator) embedIncomingItems(ctx context.Context, incoming interface{}) {
	for _, p := range providersOf(incoming) {
		for _, it := range providerItems(p) {
			item, ok := it.(map[string]interface{})
			if !ok {
				continue
			}
			text := scoring.JobText(item, c.rules)
			if text == "" {
				continue
			}
			vec, err := c.embedder.Embed(ctx, text)
			if err != nil {
				slog.Error("item embedding failed", "job_id", itemID(item), "error", err)
				continue
			}
			item["embedding"] = vec
		}
	}
}

// closeSweep marks the sweep as the latest catalogue, persists its jobs,
// and kicks the match engine.
func (c *Coordinator) closeSweep(ctx context.Context, txnID string) {
	if err := c.cache.Set(ctx, cache.CronTxnLatestKey, txnID, 0); err != nil {
		slog.Error("failed to publish latest sweep txn", "transaction_id", txnID, "error", err)
		return
	}
	slog.Info("sweep completed", "transaction_id", txnID)

	values, err := c.cache.MGetPattern(ctx, cache.CronJobsPattern(txnID))
	if err != nil {
		slog.Error("sweep payload collection failed", "transaction_id", txnID, "error", err)
		return
	}
	payloads := make([][]byte, 0, len(values))
	for _, v := range values {
		payloads = append(payloads, []byte(v))
	}
	if err := c.jobs.PersistSweep(ctx, payloads, txnID); err != nil {
		slog.Error("sweep persistence incomplete", "transaction_id", txnID, "error", err)
	}

	if c.onSweepDone != nil {
		c.onSweepDone()
	}
}

func providersOf(payload interface{}) []interface{} {
	node, ok := scoring.Resolve(payload, "/message/catalog/providers")
	if !ok {
		return nil
	}
	providers, _ := node.([]interface{})
	return providers
}

func setProviders(payload map[string]interface{}, providers []interface{}) {
	message, ok := payload["message"].(map[string]interface{})
	if !ok {
		return
	}
	catalog, ok := message["catalog"].(map[string]interface{})
	if !ok {
		catalog = map[string]interface{}{}
		message["catalog"] = catalog
	}
	catalog["providers"] = providers
}

func setPage(payload interface{}, page int) {
	node, ok := scoring.Resolve(payload, "/message/pagination")
	if !ok {
		return
	}
	if pagination, isMap := node.(map[string]interface{}); isMap {
		pagination["page"] = page
	}
}

// Package jobsync turns sweep callbacks into durable job rows. Jobs are
// never pulled directly; they arrive inside on_search payloads and land
// in Postgres when a sweep closes.
package jobsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dhiway/jobstack-bap/internal/hashutil"
	"github.com/dhiway/jobstack-bap/internal/scoring"
	"github.com/dhiway/jobstack-bap/internal/store"
)

// ExtractJobs flattens one merged sweep payload into job rows. Providers
// or items without an id are skipped; the item blob is stored verbatim
// (embedding included) with its content hash.
func ExtractJobs(payload []byte, txnID string) ([]store.Job, error) {
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse sweep payload: %w", err)
	}

	bppID := stringAt(doc, "/context/bpp_id")
	bppURI := stringAt(doc, "/context/bpp_uri")

	providersNode, ok := scoring.Resolve(doc, "/message/catalog/providers")
	if !ok {
		return nil, nil
	}
	providers, ok := providersNode.([]interface{})
	if !ok {
		return nil, nil
	}

	var jobs []store.Job
	for _, p := range providers {
		provider, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		providerID, _ := provider["id"].(string)
		if providerID == "" {
			continue
		}
		items, _ := provider["items"].([]interface{})
		for _, it := range items {
			item, ok := it.(map[string]interface{})
			if !ok {
				continue
			}
			jobID, _ := item["id"].(string)
			if jobID == "" {
				continue
			}
			blob, err := json.Marshal(item)
			if err != nil {
				slog.Warn("unserializable item, skipping", "job_id", jobID, "error", err)
				continue
			}
			jobs = append(jobs, store.Job{
				JobID:          jobID,
				ProviderID:     providerID,
				BecknStructure: blob,
				Hash:           hashutil.JSONHash(item),
				TransactionID:  txnID,
				BppID:          bppID,
				BppURI:         bppURI,
			})
		}
	}
	return jobs, nil
}

func stringAt(doc interface{}, path string) string {
	v, ok := scoring.Resolve(doc, path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Syncer persists closed sweeps.
type Syncer struct {
	store *store.Store
}

func NewSyncer(st *store.Store) *Syncer {
	return &Syncer{store: st}
}

// PersistSweep upserts every job from the sweep's merged payloads, then
// prunes jobs each BPP no longer delivers. Per-payload failures are
// logged and skipped; pruning only covers BPPs that were ingested.
func (s *Syncer) PersistSweep(ctx context.Context, payloads [][]byte, txnID string) error {
	bpps := make(map[string]struct{})
	var firstErr error

	for _, payload := range payloads {
		jobs, err := ExtractJobs(payload, txnID)
		if err != nil {
			slog.Error("sweep payload extraction failed", "txn_id", txnID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(jobs) == 0 {
			continue
		}
		if err := s.store.UpsertJobs(ctx, jobs); err != nil {
			slog.Error("sweep job upsert failed", "txn_id", txnID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, j := range jobs {
			if j.BppID != "" {
				bpps[j.BppID] = struct{}{}
			}
		}
	}

	for bppID := range bpps {
		n, err := s.store.DeleteStaleJobs(ctx, bppID, txnID)
		if err != nil {
			slog.Error("stale job prune failed", "bpp_id", bppID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if n > 0 {
			slog.Info("pruned stale jobs", "bpp_id", bppID, "count", n, "txn_id", txnID)
		}
	}
	return firstErr
}

// Package match is the scoring engine: it walks the (job, profile) space
// incrementally, recomputing only what changed, in bounded batches.
package match

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dhiway/jobstack-bap/internal/config"
	"github.com/dhiway/jobstack-bap/internal/embedding"
	"github.com/dhiway/jobstack-bap/internal/metrics"
	"github.com/dhiway/jobstack-bap/internal/scoring"
	"github.com/dhiway/jobstack-bap/internal/store"
)

type Engine struct {
	cfg      *config.Config
	rules    *config.MatchRules
	store    *store.Store
	embedder *embedding.Client
	metrics  *metrics.Metrics

	// at most one pass runs at a time; overlapping triggers collapse
	// into a single queued re-run
	mu      sync.Mutex
	running bool
	queued  bool
}

func NewEngine(cfg *config.Config, rules *config.MatchRules, st *store.Store, embedder *embedding.Client, m *metrics.Metrics) *Engine {
	return &Engine{cfg: cfg, rules: rules, store: st, embedder: embedder, metrics: m}
}

// Trigger requests a scoring pass. If one is already in flight, a single
// follow-up pass is queued; further triggers are absorbed.
func (e *Engine) Trigger() {
	e.mu.Lock()
	if e.running {
		e.queued = true
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	go e.loop()
}

func (e *Engine) loop() {
	for {
		e.runPass(context.Background())

		e.mu.Lock()
		if e.queued {
			e.queued = false
			e.mu.Unlock()
			continue
		}
		e.running = false
		e.mu.Unlock()
		return
	}
}

// runPass executes one full incremental pass: stale pairs first, then new
// jobs, new profiles, and finally missing-pair reconciliation. Per-pair
// failures are logged and never abort the batch.
func (e *Engine) runPass(ctx context.Context) {
	start := time.Now()
	slog.Info("match-score pass started")

	stale, err := e.store.StaleMatches(ctx)
	if err != nil {
		slog.Error("stale match worklist failed", "error", err)
		return
	}
	newJobs, err := e.store.NewJobs(ctx)
	if err != nil {
		slog.Error("new jobs worklist failed", "error", err)
		return
	}
	newProfiles, err := e.store.NewProfiles(ctx)
	if err != nil {
		slog.Error("new profiles worklist failed", "error", err)
		return
	}

	slog.Info("match-score worklists",
		"stale_pairs", len(stale), "new_jobs", len(newJobs), "new_profiles", len(newProfiles))

	batchSize := e.cfg.Cron.ComputeMatchScores.Batch
	if batchSize < 1 {
		batchSize = 1
	}
	sim := scoring.NewSimCache()

	for _, batch := range chunkPairs(stale, batchSize) {
		e.scorePairs(ctx, batch, sim, "stale")
	}

	for _, batch := range chunkStrings(newJobs, batchSize) {
		e.scoreNewJobs(ctx, batch, sim)
	}

	for _, batch := range chunkStrings(newProfiles, batchSize) {
		e.scoreNewProfiles(ctx, batch, sim)
	}

	missing, err := e.store.MissingPairs(ctx)
	if err != nil {
		slog.Error("missing pair worklist failed", "error", err)
		return
	}
	if len(missing) > 0 {
		slog.Info("reconciling missing match pairs", "count", len(missing))
		for _, batch := range chunkPairs(missing, batchSize) {
			e.scorePairs(ctx, batch, sim, "reconcile")
		}
	}

	e.metrics.RecordMatchPass(time.Since(start).Seconds())
	slog.Info("match-score pass finished", "duration", time.Since(start).Round(time.Millisecond))
}

func (e *Engine) scorePairs(ctx context.Context, pairs []store.Pair, sim *scoring.SimCache, source string) {
	for _, pair := range pairs {
		job, err := e.store.FetchJob(ctx, pair.JobID)
		if err != nil {
			slog.Error("job fetch failed", "source", source, "job_id", pair.JobID, "error", err)
			continue
		}
		profile, err := e.store.FetchProfile(ctx, pair.ProfileID)
		if err != nil {
			slog.Error("profile fetch failed", "source", source, "profile_id", pair.ProfileID, "error", err)
			continue
		}
		e.computeAndUpsert(ctx, job, profile, sim, source)
	}
}

func (e *Engine) scoreNewJobs(ctx context.Context, jobIDs []string, sim *scoring.SimCache) {
	profiles, err := e.store.FetchAllProfiles(ctx)
	if err != nil {
		slog.Error("profile fetch failed", "error", err)
		return
	}
	if len(profiles) == 0 {
		slog.Info("skipping new jobs, no profiles available", "new_jobs", len(jobIDs))
		return
	}

	for _, jobID := range jobIDs {
		job, err := e.store.FetchJob(ctx, jobID)
		if err != nil {
			slog.Error("job fetch failed", "job_id", jobID, "error", err)
			continue
		}
		for i := range profiles {
			e.computeAndUpsert(ctx, job, &profiles[i], sim, "new_job")
		}
	}
}

func (e *Engine) scoreNewProfiles(ctx context.Context, profileIDs []string, sim *scoring.SimCache) {
	jobs, err := e.store.FetchAllJobs(ctx)
	if err != nil {
		slog.Error("job fetch failed", "error", err)
		return
	}
	if len(jobs) == 0 {
		slog.Info("skipping new profiles, no jobs available", "new_profiles", len(profileIDs))
		return
	}

	for _, profileID := range profileIDs {
		profile, err := e.store.FetchProfile(ctx, profileID)
		if err != nil {
			slog.Error("profile fetch failed", "profile_id", profileID, "error", err)
			continue
		}
		for i := range jobs {
			e.computeAndUpsert(ctx, &jobs[i], profile, sim, "new_profile")
		}
	}
}

// computeAndUpsert scores one pair and writes the result. Embeddings come
// from the content-addressed cache; an unavailable embedding scores the
// pair 0 rather than failing it.
func (e *Engine) computeAndUpsert(ctx context.Context, job *store.Job, profile *store.Profile, sim *scoring.SimCache, source string) {
	score, breakdown, err := e.scorePair(ctx, job, profile, sim)
	if err != nil {
		slog.Error("pair scoring failed", "source", source,
			"job_id", job.JobID, "profile_id", profile.ProfileID, "error", err)
		return
	}

	blob, err := json.Marshal(breakdown)
	if err != nil {
		blob = nil
	}
	m := store.Match{
		JobID:       job.JobID,
		ProfileID:   profile.ProfileID,
		JobHash:     job.Hash,
		ProfileHash: profile.Hash,
		Score:       scoring.IntScore(score),
		Breakdown:   blob,
	}
	if err := e.store.UpsertMatch(ctx, m); err != nil {
		slog.Error("match upsert failed", "source", source,
			"job_id", job.JobID, "profile_id", profile.ProfileID, "error", err)
		return
	}
	e.metrics.RecordPairScored()
}

func (e *Engine) scorePair(ctx context.Context, job *store.Job, profile *store.Profile, sim *scoring.SimCache) (float64, scoring.Breakdown, error) {
	var jobDoc interface{}
	if err := json.Unmarshal(job.BecknStructure, &jobDoc); err != nil {
		return 0, scoring.Breakdown{}, fmt.Errorf("parse job blob: %w", err)
	}

	// rule paths address the profile as {"metadata": ...}
	var meta interface{}
	if len(profile.Metadata) > 0 {
		if err := json.Unmarshal(profile.Metadata, &meta); err != nil {
			return 0, scoring.Breakdown{}, fmt.Errorf("parse profile metadata: %w", err)
		}
	}
	profileDoc := map[string]interface{}{"metadata": meta}

	profileEmb, err := e.embedder.Embed(ctx, scoring.ProfileText(profileDoc, e.rules))
	if err != nil {
		return 0, scoring.Breakdown{}, fmt.Errorf("profile embedding: %w", err)
	}
	jobEmb, err := e.embedder.Embed(ctx, scoring.JobText(jobDoc, e.rules))
	if err != nil {
		return 0, scoring.Breakdown{}, fmt.Errorf("job embedding: %w", err)
	}

	score, breakdown := scoring.Score(profileDoc, jobDoc, profileEmb, jobEmb,
		scoring.Norm(profileEmb), scoring.Norm(jobEmb), e.rules, sim)
	return score, breakdown, nil
}

func chunkPairs(pairs []store.Pair, size int) [][]store.Pair {
	var out [][]store.Pair
	for start := 0; start < len(pairs); start += size {
		end := start + size
		if end > len(pairs) {
			end = len(pairs)
		}
		out = append(out, pairs[start:end])
	}
	return out
}

func chunkStrings(items []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

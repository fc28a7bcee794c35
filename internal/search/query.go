package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dhiway/jobstack-bap/internal/cache"
	"github.com/dhiway/jobstack-bap/internal/models"
	"github.com/dhiway/jobstack-bap/internal/scoring"
)

// ErrNoSweep is returned when no sweep has completed yet.
var ErrNoSweep = fmt.Errorf("search: no completed sweep available")

// QueryPage is the paginated v2/v3 response shape.
type QueryPage struct {
	Pagination QueryPagination `json:"pagination"`
	Results    []interface{}   `json:"results"`
}

type QueryPagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalCount int `json:"totalCount"`
}

type flatItem struct {
	context  interface{}
	provider map[string]interface{}
	item     map[string]interface{}
	score    int16
}

// QueryCache serves POST /api/v2/search: filter the latest sweep's merged
// catalogue, optionally rank by an inline profile, and paginate. Stored
// embeddings never leave the service.
func (c *Coordinator) QueryCache(ctx context.Context, req models.SearchRequestV2) (*QueryPage, error) {
	latestTxn, err := c.cache.Get(ctx, cache.CronTxnLatestKey)
	if err == cache.ErrNotFound {
		return nil, ErrNoSweep
	}
	if err != nil {
		return nil, fmt.Errorf("read latest sweep txn: %w", err)
	}

	values, err := c.cache.MGetPattern(ctx, cache.CronJobsPattern(latestTxn))
	if err != nil {
		return nil, fmt.Errorf("read sweep payloads: %w", err)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = 10
	}

	providerFilter := strings.ToLower(strings.TrimSpace(req.Provider))
	roleFilters := SplitFilters(req.Role)
	primaryFilters := SplitFilters(req.PrimaryFilters)
	excludeFilters := SplitFilters(req.Exclude)

	// one embedding for the inline profile ranks the whole result set
	var profileEmb []float32
	var profileNorm float64
	if req.Profile != nil {
		text := scoring.ProfileText(req.Profile, c.rules)
		vec, err := c.embedder.Embed(ctx, text)
		if err != nil {
			slog.Error("profile embedding failed, ranking disabled", "error", err)
		} else {
			profileEmb = vec
			profileNorm = scoring.Norm(vec)
		}
	}

	sim := scoring.NewSimCache()
	seen := make(map[string]struct{})
	var flat []flatItem

	for _, value := range values {
		var payload interface{}
		if err := json.Unmarshal([]byte(value), &payload); err != nil {
			slog.Error("corrupt sweep payload, skipping", "error", err)
			continue
		}
		payloadCtx, _ := scoring.Resolve(payload, "/context")

		for _, p := range providersOf(payload) {
			provider, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			providerName := strings.ToLower(pointerString(provider, "/descriptor/name"))
			if providerFilter != "" && !strings.Contains(providerName, providerFilter) {
				continue
			}

			for _, it := range providerItems(provider) {
				item, ok := it.(map[string]interface{})
				if !ok {
					continue
				}
				roleName := strings.ToLower(pointerString(item, "/descriptor/name"))

				if len(primaryFilters) > 0 && !containsAny(roleName, primaryFilters) {
					continue
				}
				if MatchesExclude(item, excludeFilters) {
					continue
				}
				if len(roleFilters) > 0 && !roleMatches(roleName, roleFilters) {
					continue
				}
				if req.Query != "" && !MatchesQuery(providerName, item, req.Query) {
					continue
				}

				var score int16
				if profileEmb != nil {
					score = c.rankItem(req.Profile, item, profileEmb, profileNorm, sim)
				}

				cleaned := cloneWithoutEmbedding(item)
				cleaned["match_score"] = score

				id := itemID(item)
				if id == "" {
					id = pointerString(item, "")
				}
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				flat = append(flat, flatItem{context: payloadCtx, provider: provider, item: cleaned, score: score})
			}
		}
	}

	if profileEmb != nil {
		sort.SliceStable(flat, func(i, j int) bool { return flat[i].score > flat[j].score })
	}

	total := len(flat)
	start := (page - 1) * limit
	results := make([]interface{}, 0, limit)
	if start < total {
		end := start + limit
		if end > total {
			end = total
		}
		for _, f := range flat[start:end] {
			results = append(results, rebuildEnvelope(f))
		}
	}

	return &QueryPage{
		Pagination: QueryPagination{Page: page, Limit: limit, TotalCount: total},
		Results:    results,
	}, nil
}

// rankItem scores one catalogue item against the inline profile using the
// item's stashed embedding.
func (c *Coordinator) rankItem(profile map[string]interface{}, item map[string]interface{}, profileEmb []float32, profileNorm float64, sim *scoring.SimCache) int16 {
	raw, ok := item["embedding"]
	if !ok {
		return 0
	}
	jobEmb := toVector(raw)
	if jobEmb == nil {
		return 0
	}
	score, _ := scoring.Score(profile, item, profileEmb, jobEmb,
		profileNorm, scoring.Norm(jobEmb), c.rules, sim)
	return scoring.IntScore(score)
}

func toVector(raw interface{}) []float32 {
	values, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	vec := make([]float32, 0, len(values))
	for _, v := range values {
		f, isNum := v.(float64)
		if !isNum {
			return nil
		}
		vec = append(vec, float32(f))
	}
	return vec
}

func containsAny(haystack string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

// roleMatches splits a composite descriptor name ("Driver, Helper") and
// accepts the item when any of its roles contains any filter token.
func roleMatches(roleName string, filters []string) bool {
	roles := strings.Split(roleName, ",")
	for _, f := range filters {
		for _, r := range roles {
			if strings.Contains(strings.TrimSpace(r), f) {
				return true
			}
		}
	}
	return false
}

func cloneWithoutEmbedding(item map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(item))
	for k, v := range item {
		if k == "embedding" {
			continue
		}
		out[k] = v
	}
	return out
}

// rebuildEnvelope wraps one filtered item back into a network-shaped
// {context, message.catalog.providers[0]} response.
func rebuildEnvelope(f flatItem) interface{} {
	provider := map[string]interface{}{
		"id":           f.provider["id"],
		"descriptor":   f.provider["descriptor"],
		"fulfillments": orEmptyList(f.provider["fulfillments"]),
		"locations":    orEmptyList(f.provider["locations"]),
		"items":        []interface{}{f.item},
	}
	return map[string]interface{}{
		"context": f.context,
		"message": map[string]interface{}{
			"catalog": map[string]interface{}{
				"providers": []interface{}{provider},
			},
		},
	}
}

func orEmptyList(v interface{}) interface{} {
	if v == nil {
		return []interface{}{}
	}
	return v
}

package search

import (
	"strconv"

	"github.com/dhiway/jobstack-bap/internal/scoring"
)

// providerKey identifies a provider inside a sweep payload. The network
// does not keep provider ids stable across pages, but the first item's
// jobProviderName tag is.
func providerKey(provider interface{}) string {
	if name, ok := scoring.Resolve(provider, "/items/0/tags/basicInfo/jobProviderName"); ok {
		if s, isStr := name.(string); isStr {
			return s
		}
	}
	return "Unknown Provider"
}

func providerItems(provider interface{}) []interface{} {
	m, ok := provider.(map[string]interface{})
	if !ok {
		return nil
	}
	items, _ := m["items"].([]interface{})
	return items
}

func itemID(item interface{}) string {
	m, ok := item.(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := m["id"].(string)
	return id
}

// MergeProviders folds a page's providers into the accumulated set.
// Providers match by key; for a known provider, unseen items append and
// already-known items only refresh their embedding. New providers append
// whole. Returns the merged list.
func MergeProviders(existing, incoming []interface{}) []interface{} {
	index := make(map[string]int, len(existing))
	for i, p := range existing {
		index[providerKey(p)] = i
	}

	for _, p := range incoming {
		key := providerKey(p)
		idx, known := index[key]
		if !known {
			existing = append(existing, p)
			index[key] = len(existing) - 1
			continue
		}

		target, ok := existing[idx].(map[string]interface{})
		if !ok {
			continue
		}
		current, _ := target["items"].([]interface{})

		byID := make(map[string]int, len(current))
		for i, item := range current {
			if id := itemID(item); id != "" {
				byID[id] = i
			}
		}

		for _, item := range providerItems(p) {
			id := itemID(item)
			if id == "" {
				continue
			}
			if pos, seen := byID[id]; seen {
				refreshEmbedding(current[pos], item)
				continue
			}
			current = append(current, item)
			byID[id] = len(current) - 1
		}
		target["items"] = current
	}

	return existing
}

func refreshEmbedding(dst, src interface{}) {
	srcMap, okSrc := src.(map[string]interface{})
	dstMap, okDst := dst.(map[string]interface{})
	if !okSrc || !okDst {
		return
	}
	if emb, ok := srcMap["embedding"]; ok {
		dstMap["embedding"] = emb
	}
}

// SweepPagination reads {page, limit, totalCount} from a stored payload,
// tolerating a string totalCount and falling back to (1, 30, 0).
func SweepPagination(payload interface{}) (page, limit, total int) {
	page, limit, total = 1, 30, 0
	if v, ok := scoring.Resolve(payload, "/message/pagination/page"); ok {
		if n, isNum := v.(float64); isNum {
			page = int(n)
		}
	}
	if v, ok := scoring.Resolve(payload, "/message/pagination/limit"); ok {
		if n, isNum := v.(float64); isNum {
			limit = int(n)
		}
	}
	if v, ok := scoring.Resolve(payload, "/message/pagination/totalCount"); ok {
		switch n := v.(type) {
		case float64:
			total = int(n)
		case string:
			if parsed, err := strconv.Atoi(n); err == nil {
				total = parsed
			}
		}
	}
	return page, limit, total
}

package models

// SearchRequest is the client-facing body of POST /api/v1/search.
type SearchRequest struct {
	Message SearchMessage `json:"message"`
}

// SearchMessage is the unit the query hash is computed over. Intent is a
// generic map so equivalent messages serialise identically (encoding/json
// emits map keys in sorted order).
type SearchMessage struct {
	Intent     map[string]interface{} `json:"intent"`
	Pagination *Pagination            `json:"pagination,omitempty"`
	Options    *Options               `json:"options,omitempty"`
}

type Pagination struct {
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

type Options struct {
	Brief bool `json:"brief"`
}

// SearchRequestV2 filters the cron-assembled cache (POST /api/v2/search).
// Comma-separated filter strings are OR-split by the coordinator.
type SearchRequestV2 struct {
	Page           int                    `json:"page,omitempty"`
	Limit          int                    `json:"limit,omitempty"`
	Provider       string                 `json:"provider,omitempty"`
	Role           string                 `json:"role,omitempty"`
	Query          string                 `json:"query,omitempty"`
	PrimaryFilters string                 `json:"primary_filters,omitempty"`
	Exclude        string                 `json:"exclude,omitempty"`
	Profile        map[string]interface{} `json:"profile,omitempty"`
}

// SearchRequestV3 queries durable storage scoped to a stored profile
// (POST /api/v3/search), returning jobs ranked by their persisted score.
type SearchRequestV3 struct {
	ProfileID      string `json:"profile_id"`
	Page           int    `json:"page,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Query          string `json:"query,omitempty"`
	PrimaryFilters string `json:"primary_filters,omitempty"`
	Exclude        string `json:"exclude,omitempty"`
}

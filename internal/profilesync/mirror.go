package profilesync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dhiway/jobstack-bap/internal/adapter"
	"github.com/dhiway/jobstack-bap/internal/config"
	"github.com/dhiway/jobstack-bap/internal/models"
	"github.com/dhiway/jobstack-bap/internal/store"
)

// Mirror answers profile searches from the network: the optional BPP role
// where this service is the seller of its own profile catalogue. Enabled
// only when the bpp config block is present.
type Mirror struct {
	cfg     *config.Config
	store   *store.Store
	adapter *adapter.Client
}

func NewMirror(cfg *config.Config, st *store.Store, adapterClient *adapter.Client) *Mirror {
	return &Mirror{cfg: cfg, store: st, adapter: adapterClient}
}

// Enabled reports whether the mirror role is configured.
func (m *Mirror) Enabled() bool {
	return m.cfg.Bpp != nil && m.cfg.Bpp.ID != ""
}

type mirrorPagination struct {
	Pagination struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
	} `json:"pagination"`
}

// HandleSearch serves one incoming profile search: page the stored
// catalogue and POST the on_search response back through the BPP-side
// adapter. The webhook ACKs before this runs; failures are only logged.
func (m *Mirror) HandleSearch(ctx context.Context, reqCtx models.Context, message json.RawMessage) {
	if !m.Enabled() {
		slog.Info("profile search received but mirror role not configured, dropping",
			"transaction_id", reqCtx.TransactionID)
		return
	}

	var p mirrorPagination
	_ = json.Unmarshal(message, &p)
	page := p.Pagination.Page
	if page < 1 {
		page = 1
	}
	limit := p.Pagination.Limit
	if limit < 1 {
		limit = 10
	}

	items, total, err := m.store.FetchProfileCatalog(ctx, page, limit)
	if err != nil {
		slog.Error("profile catalog fetch failed", "transaction_id", reqCtx.TransactionID, "error", err)
		return
	}

	response := m.buildResponse(reqCtx, items, page, limit, total)
	url := fmt.Sprintf("%s/on_search", m.cfg.Bpp.CallerURI)
	if err := m.adapter.SendTo(ctx, url, response); err != nil {
		slog.Error("profile on_search dispatch failed", "transaction_id", reqCtx.TransactionID, "error", err)
		return
	}
	slog.Info("profile catalog answered", "transaction_id", reqCtx.TransactionID,
		"page", page, "items", len(items), "total", total)
}

// buildResponse mirrors the incoming context back with this participant
// filled in as the BPP.
func (m *Mirror) buildResponse(reqCtx models.Context, items []json.RawMessage, page, limit, total int) map[string]interface{} {
	respCtx := reqCtx
	respCtx.Action = "on_search"
	respCtx.BppID = m.cfg.Bpp.ID
	respCtx.BppURI = m.cfg.Bpp.CallerURI
	respCtx.Timestamp = time.Now().UTC().Format(time.RFC3339)

	itemList := make([]interface{}, 0, len(items))
	for _, it := range items {
		itemList = append(itemList, it)
	}

	return map[string]interface{}{
		"context": respCtx,
		"message": map[string]interface{}{
			"catalog": map[string]interface{}{
				"providers": []interface{}{
					map[string]interface{}{
						"id":         m.cfg.Bpp.ID,
						"descriptor": map[string]interface{}{"name": m.cfg.Bpp.CatalogName},
						"items":      itemList,
					},
				},
			},
			"pagination": map[string]interface{}{
				"page":  page,
				"limit": limit,
				"total": total,
			},
		},
	}
}

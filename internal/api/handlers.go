package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/dhiway/jobstack-bap/internal/apply"
	"github.com/dhiway/jobstack-bap/internal/correlator"
	"github.com/dhiway/jobstack-bap/internal/models"
	"github.com/dhiway/jobstack-bap/internal/search"
	"github.com/dhiway/jobstack-bap/internal/store"
)

// webhookTimeout caps the background work spawned from an already-ACKed
// callback.
const webhookTimeout = 60 * time.Second

// --- search ---

func (s *Server) handleSearchV1(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.search.HandleSearch(r.Context(), req)
	if err != nil {
		slog.Error("search failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "search temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearchV2(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequestV2
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	page, err := s.search.QueryCache(r.Context(), req)
	if errors.Is(err, search.ErrNoSweep) {
		writeError(w, http.StatusNotFound, "no job catalogue available yet")
		return
	}
	if err != nil {
		slog.Error("cache query failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "search temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type scoredJobResult struct {
	JobID      string          `json:"job_id"`
	MatchScore int16           `json:"match_score"`
	Job        json.RawMessage `json:"job"`
}

func (s *Server) handleSearchV3(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequestV3
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProfileID == "" {
		writeError(w, http.StatusBadRequest, "profile_id is required")
		return
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = 10
	}

	jobs, total, err := s.store.SearchMatches(r.Context(), req.ProfileID,
		req.Query, req.PrimaryFilters, req.Exclude, limit, (page-1)*limit)
	if err != nil {
		slog.Error("durable search failed", "profile_id", req.ProfileID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "search temporarily unavailable")
		return
	}

	results := make([]scoredJobResult, 0, len(jobs))
	for _, j := range jobs {
		results = append(results, scoredJobResult{JobID: j.JobID, MatchScore: j.Score, Job: j.BecknStructure})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pagination": search.QueryPagination{Page: page, Limit: limit, TotalCount: total},
		"results":    results,
	})
}

// --- synchronous order actions ---

// orderStatus maps a synchronous-flow error onto its HTTP status.
func orderStatus(err error) int {
	switch {
	case errors.Is(err, apply.ErrDispatch):
		return http.StatusBadGateway
	case errors.Is(err, correlator.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload, err := s.apply.Select(r.Context(), req)
	if err != nil {
		slog.Error("select failed", "transaction_id", req.Context.TransactionID, "error", err)
		writeError(w, orderStatus(err), "select failed")
		return
	}
	writeRaw(w, payload)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req models.StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload, err := s.apply.Status(r.Context(), req)
	if err != nil {
		slog.Error("status failed", "transaction_id", req.Context.TransactionID, "error", err)
		writeError(w, orderStatus(err), "status failed")
		return
	}
	writeRaw(w, payload)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	outcome, err := s.apply.Apply(r.Context(), req)
	if err != nil {
		slog.Error("apply failed", "transaction_id", req.Context.TransactionID, "error", err)
		writeError(w, orderStatus(err), "apply failed")
		return
	}
	if outcome.Existing != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":     "application already exists",
			"application": outcome.Existing,
		})
		return
	}
	writeRaw(w, outcome.OnConfirm)
}

func writeRaw(w http.ResponseWriter, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		slog.Error("response write failed", "error", err)
	}
}

// --- applications & drafts ---

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	apps, err := s.store.ListApplications(r.Context(), userID)
	if err != nil {
		slog.Error("application listing failed", "user_id", userID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
		return
	}
	if apps == nil {
		apps = []store.Application{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"applications": apps})
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var draft store.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if draft.UserID == "" || draft.JobID == "" || draft.BppID == "" {
		writeError(w, http.StatusBadRequest, "user_id, job_id and bpp_id are required")
		return
	}

	// creating is idempotent: a job already drafted by this user is
	// returned as-is, never overwritten
	existing, err := s.store.GetDraft(r.Context(), draft.UserID, draft.JobID)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":     "User has already drafted for this job",
			"application": existing,
		})
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		slog.Error("draft lookup failed", "user_id", draft.UserID, "job_id", draft.JobID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
		return
	}

	saved, err := s.store.UpsertDraft(r.Context(), draft)
	if err != nil {
		slog.Error("draft upsert failed", "user_id", draft.UserID, "job_id", draft.JobID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	drafts, err := s.store.ListDrafts(r.Context(), userID)
	if err != nil {
		slog.Error("draft listing failed", "user_id", userID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
		return
	}
	if drafts == nil {
		drafts = []store.Draft{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"drafts": drafts})
}

func draftID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := draftID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid draft id")
		return
	}
	var body struct {
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	draft, err := s.store.UpdateDraft(r.Context(), id, body.Metadata)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if err != nil {
		slog.Error("draft update failed", "id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := draftID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid draft id")
		return
	}
	err := s.store.DeleteDraft(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	if err != nil {
		slog.Error("draft delete failed", "id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- events ---

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req models.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EventType == "" {
		writeError(w, http.StatusBadRequest, "event_type is required")
		return
	}
	resp, err := s.publisher.Publish(r.Context(), req)
	if err != nil {
		slog.Error("event publish failed", "event_type", req.EventType, "error", err)
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- webhooks ---

// handleWebhook receives network callbacks. Every callback is ACKed; the
// actual handling happens after (or concurrently with) the ACK, so a slow
// merge never stalls the network.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]

	raw, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		s.metrics.RecordCallback(action, "error")
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}
	var payload models.WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.metrics.RecordCallback(action, "error")
		writeError(w, http.StatusBadRequest, "invalid callback payload")
		return
	}

	switch action {
	case "on_search":
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
			defer cancel()
			s.search.HandleOnSearch(ctx, payload, raw)
		}()
		s.metrics.RecordCallback(action, "handled")
	case "on_select", "on_init", "on_confirm", "on_status":
		s.apply.Deliver(payload.Context.TransactionID, payload.Context.MessageID, raw)
		s.metrics.RecordCallback(action, "handled")
	default:
		slog.Info("unknown callback action, acking anyway", "action", action)
		s.metrics.RecordCallback(action, "dropped")
	}

	writeJSON(w, http.StatusOK, models.NewAck())
}

// handleProfilesWebhook is the mirror-role endpoint: a profiles BPP being
// asked for its catalogue. on_* callbacks here are ACK-and-drop.
func (s *Server) handleProfilesWebhook(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]

	raw, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}
	var payload models.WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid callback payload")
		return
	}

	if action == "search" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
			defer cancel()
			s.mirror.HandleSearch(ctx, payload.Context, payload.Message)
		}()
	} else {
		slog.Info("profiles callback acked", "action", action,
			"transaction_id", payload.Context.TransactionID)
	}

	writeJSON(w, http.StatusOK, models.NewAck())
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhiway/jobstack-bap/internal/adapter"
	"github.com/dhiway/jobstack-bap/internal/apply"
	"github.com/dhiway/jobstack-bap/internal/config"
	"github.com/dhiway/jobstack-bap/internal/correlator"
	"github.com/dhiway/jobstack-bap/internal/models"
	"github.com/dhiway/jobstack-bap/internal/store"
)

// fakeStorage backs the draft handlers with an in-memory map.
type fakeStorage struct {
	drafts  map[string]store.Draft
	upserts int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{drafts: make(map[string]store.Draft)}
}

func draftKey(userID, jobID string) string { return userID + "/" + jobID }

func (f *fakeStorage) GetDraft(_ context.Context, userID, jobID string) (*store.Draft, error) {
	d, ok := f.drafts[draftKey(userID, jobID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &d, nil
}

func (f *fakeStorage) UpsertDraft(_ context.Context, d store.Draft) (*store.Draft, error) {
	f.upserts++
	d.ID = int64(len(f.drafts) + 1)
	f.drafts[draftKey(d.UserID, d.JobID)] = d
	return &d, nil
}

func (f *fakeStorage) ListDrafts(_ context.Context, userID string) ([]store.Draft, error) {
	var out []store.Draft
	for _, d := range f.drafts {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStorage) UpdateDraft(context.Context, int64, json.RawMessage) (*store.Draft, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStorage) DeleteDraft(context.Context, int64) error { return store.ErrNotFound }

func (f *fakeStorage) ListApplications(context.Context, string) ([]store.Application, error) {
	return nil, nil
}

func (f *fakeStorage) SearchMatches(context.Context, string, string, string, string, int, int) ([]store.ScoredJob, int, error) {
	return nil, 0, nil
}

func testServer() *Server {
	return testServerWith(nil)
}

func testServerWith(st Storage) *Server {
	cfg := &config.Config{
		HTTP: config.HTTPConfig{Port: "8080"},
		Bap:  config.BapConfig{ID: "bap.test", CallerURI: "http://adapter.test"},
		Auth: config.AuthConfig{XAPIKey: "secret"},
	}
	applyCoord := apply.NewCoordinator(cfg, adapter.New(cfg.Bap.CallerURI, nil), correlator.New(), nil)
	return NewServer(cfg, nil, applyCoord, nil, st, nil, nil)
}

func TestHealth(t *testing.T) {
	router := testServer().Router()

	for _, path := range []string{"/", "/health"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))

		require.Equal(t, http.StatusOK, rec.Code, path)
		var body models.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "OK", body.Status)
		assert.NotEmpty(t, body.Timestamp)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	router := testServer().Router()

	req := httptest.NewRequest("POST", "/api/v1/search", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)

	req = httptest.NewRequest("POST", "/api/v1/search", strings.NewReader(`{}`))
	req.Header.Set("x-api-key", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyNotRequiredForWebhooks(t *testing.T) {
	router := testServer().Router()

	req := httptest.NewRequest("POST", "/webhook/on_select",
		strings.NewReader(`{"context":{"transaction_id":"t1","message_id":"m1"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var ack models.AckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "ACK", ack.Message.Ack.Status)
}

func TestWebhookRejectsBadPayload(t *testing.T) {
	router := testServer().Router()

	req := httptest.NewRequest("POST", "/webhook/on_confirm", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookAcksUnknownAction(t *testing.T) {
	router := testServer().Router()

	req := httptest.NewRequest("POST", "/webhook/on_cancel",
		strings.NewReader(`{"context":{"transaction_id":"t1","message_id":"m1"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var ack models.AckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "ACK", ack.Message.Ack.Status)
}

func TestProfilesWebhookAcksCallbacks(t *testing.T) {
	router := testServer().Router()

	req := httptest.NewRequest("POST", "/webhook/profiles/on_search",
		strings.NewReader(`{"context":{"transaction_id":"t1","message_id":"m1"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var ack models.AckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "ACK", ack.Message.Ack.Status)
}

func TestSearchV1RejectsBadBody(t *testing.T) {
	router := testServer().Router()

	req := httptest.NewRequest("POST", "/api/v1/search", strings.NewReader("not json"))
	req.Header.Set("x-api-key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchV3RequiresProfileID(t *testing.T) {
	router := testServer().Router()

	req := httptest.NewRequest("POST", "/api/v3/search", strings.NewReader(`{"query":"driver"}`))
	req.Header.Set("x-api-key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDraftValidation(t *testing.T) {
	router := testServer().Router()

	req := httptest.NewRequest("POST", "/api/v1/job-applications/drafts",
		strings.NewReader(`{"user_id":"u1"}`))
	req.Header.Set("x-api-key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDraftInsertsWhenAbsent(t *testing.T) {
	st := newFakeStorage()
	router := testServerWith(st).Router()

	req := httptest.NewRequest("POST", "/api/v1/job-applications/drafts",
		strings.NewReader(`{"user_id":"u1","job_id":"j1","bpp_id":"bpp.test","metadata":{"note":"v1"}}`))
	req.Header.Set("x-api-key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, st.upserts)

	var saved store.Draft
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, "u1", saved.UserID)
	assert.Equal(t, "j1", saved.JobID)
}

// a second POST for the same (user, job) returns the stored draft and
// must not overwrite it
func TestCreateDraftReturnsExisting(t *testing.T) {
	st := newFakeStorage()
	st.drafts[draftKey("u1", "j1")] = store.Draft{
		ID: 7, UserID: "u1", JobID: "j1", BppID: "bpp.test",
		Metadata: json.RawMessage(`{"note":"original"}`),
	}
	router := testServerWith(st).Router()

	req := httptest.NewRequest("POST", "/api/v1/job-applications/drafts",
		strings.NewReader(`{"user_id":"u1","job_id":"j1","bpp_id":"bpp.other","metadata":{"note":"replacement"}}`))
	req.Header.Set("x-api-key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, st.upserts)

	var body struct {
		Message     string      `json:"message"`
		Application store.Draft `json:"application"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "User has already drafted for this job", body.Message)
	assert.Equal(t, int64(7), body.Application.ID)
	assert.JSONEq(t, `{"note":"original"}`, string(body.Application.Metadata))
}

func TestListApplicationsRequiresUserID(t *testing.T) {
	router := testServer().Router()

	req := httptest.NewRequest("GET", "/api/v1/job-applications", nil)
	req.Header.Set("x-api-key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateDraftRejectsBadID(t *testing.T) {
	router := testServer().Router()

	req := httptest.NewRequest("PATCH", "/api/v1/job-applications/drafts/abc",
		strings.NewReader(`{"metadata":{}}`))
	req.Header.Set("x-api-key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventRequiresType(t *testing.T) {
	router := testServer().Router()

	req := httptest.NewRequest("POST", "/api/v1/event", strings.NewReader(`{"payload":{}}`))
	req.Header.Set("x-api-key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

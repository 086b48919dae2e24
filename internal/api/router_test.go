package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopost/internal/config"
	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/keys"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
	"github.com/jonesrussell/gopost/internal/store"
)

type fakeRunner struct {
	mu  sync.Mutex
	ran []string
}

func (f *fakeRunner) RunByID(_ context.Context, _ domain.ContentKind, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, id)
	return nil
}

func (f *fakeRunner) ranIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

type fakeRefresher struct {
	mu    sync.Mutex
	count int
}

func (f *fakeRefresher) RequestRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
}

func (f *fakeRefresher) refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

type fakeVerifier struct {
	pages []domain.Page
	err   error
}

func (f *fakeVerifier) VerifyToken(context.Context, string) ([]domain.Page, error) {
	return f.pages, f.err
}

type apiEnv struct {
	handler   http.Handler
	store     *store.Store
	runner    *fakeRunner
	refresher *fakeRefresher
	verifier  *fakeVerifier
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	st := store.New(client)

	log := logger.NewNopLogger()
	runner := &fakeRunner{}
	refresher := &fakeRefresher{}
	verifier := &fakeVerifier{}

	router := NewRouter(Deps{
		Store:     st,
		Keys:      keys.NewService(st, metrics.NewNop(), log),
		Runner:    runner,
		Refresher: refresher,
		Verifier:  verifier,
		Registry:  prometheus.NewRegistry(),
		Logger:    log,
		Config:    &config.Config{},
	})

	return &apiEnv{
		handler:   router.Engine(),
		store:     st,
		runner:    runner,
		refresher: refresher,
		verifier:  verifier,
	}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthReportsHealthy(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestSettingsRoundTrip(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPut, "/api/settings", domain.Settings{
		CatboxHash:         "hash1",
		FacebookCommentURL: "https://example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "hash1", got.CatboxHash)
}

func TestDeleteCatboxHashClearsOnlyHash(t *testing.T) {
	env := newAPIEnv(t)
	require.NoError(t, store.Write(context.Background(), env.store, store.KeySettings, domain.Settings{
		CatboxHash:         "hash1",
		FacebookCommentURL: "https://example.com",
	}))

	rec := env.do(t, http.MethodDelete, "/api/settings/catbox", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	settings, err := store.Read[domain.Settings](context.Background(), env.store, store.KeySettings)
	require.NoError(t, err)
	assert.Empty(t, settings.CatboxHash)
	assert.Equal(t, "https://example.com", settings.FacebookCommentURL)
}

func TestAddAndListKeysMasksSecrets(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/api/keys/cerebras", map[string]string{
		"name": "main",
		"key":  "sk-verysecret1234",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-verysecret")
	assert.Contains(t, rec.Body.String(), "1234")

	rec = env.do(t, http.MethodGet, "/api/keys/cerebras", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-verysecret1234")

	// raw key is still in the store for the pipeline
	creds, err := store.Read[[]domain.Credential](context.Background(), env.store, store.CredentialsKey(domain.ProviderCerebras))
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "sk-verysecret1234", creds[0].Key)
	assert.Equal(t, domain.CredentialActive, creds[0].Status)
}

func TestKeyStatusToggleAndDelete(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/api/keys/workers-ai", map[string]string{"name": "n", "key": "k12345"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.do(t, http.MethodPatch, "/api/keys/workers-ai/"+created.ID, map[string]string{"status": "inactive"})
	require.Equal(t, http.StatusOK, rec.Code)

	creds, err := store.Read[[]domain.Credential](context.Background(), env.store, store.CredentialsKey(domain.ProviderWorkersAI))
	require.NoError(t, err)
	assert.Equal(t, domain.CredentialInactive, creds[0].Status)

	rec = env.do(t, http.MethodDelete, "/api/keys/workers-ai/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/keys/workers-ai/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownProviderRejected(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/api/keys/openai", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectFacebookStoresPagesWithoutLeakingTokens(t *testing.T) {
	env := newAPIEnv(t)
	env.verifier.pages = []domain.Page{
		{ID: "p1", Name: "Page One", AccessToken: "secret-token", Status: "connected"},
	}

	rec := env.do(t, http.MethodPost, "/api/facebook/connect", map[string]string{"token": "user-token"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-token")

	pages, err := store.Read[[]domain.Page](context.Background(), env.store, store.KeyPages)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "secret-token", pages[0].AccessToken)

	rec = env.do(t, http.MethodGet, "/api/facebook/pages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-token")
}

func TestUpdatePagePatchesOnlySuppliedFields(t *testing.T) {
	env := newAPIEnv(t)
	require.NoError(t, store.Write(context.Background(), env.store, store.KeyPages,
		[]domain.Page{{ID: "p1", Name: "Old Name", AccessToken: "old-token"}}))

	rec := env.do(t, http.MethodPut, "/api/facebook/pages/p1", map[string]string{"name": "New Name"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "old-token")

	pages, err := store.Read[[]domain.Page](context.Background(), env.store, store.KeyPages)
	require.NoError(t, err)
	assert.Equal(t, "New Name", pages[0].Name)
	assert.Equal(t, "old-token", pages[0].AccessToken)

	rec = env.do(t, http.MethodPut, "/api/facebook/pages/missing", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshPageUpdatesStatus(t *testing.T) {
	env := newAPIEnv(t)
	require.NoError(t, store.Write(context.Background(), env.store, store.KeyPages,
		[]domain.Page{{ID: "p1", Name: "Page One", AccessToken: "t", Status: "connected"}}))

	env.verifier.err = errors.New("token expired")
	rec := env.do(t, http.MethodPost, "/api/facebook/pages/p1/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	pages, err := store.Read[[]domain.Page](context.Background(), env.store, store.KeyPages)
	require.NoError(t, err)
	assert.Equal(t, "error", pages[0].Status)
	assert.False(t, pages[0].LastChecked.IsZero())

	env.verifier.err = nil
	rec = env.do(t, http.MethodPost, "/api/facebook/pages/p1/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	pages, err = store.Read[[]domain.Page](context.Background(), env.store, store.KeyPages)
	require.NoError(t, err)
	assert.Equal(t, "connected", pages[0].Status)
}

func TestRefreshUnknownPageNotFound(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/api/facebook/pages/nope/refresh", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecentSchedulesMergesKindsNewestFirst(t *testing.T) {
	env := newAPIEnv(t)
	now := time.Now().UTC()
	older := now.Add(-2 * time.Hour)
	newer := now.Add(-time.Hour)

	require.NoError(t, store.Write(context.Background(), env.store, store.SchedulesKey(domain.KindVideo),
		[]domain.Schedule{
			{ID: "v-posted", Kind: domain.KindVideo, Status: domain.StatusPosted, PublishedAt: &older},
			{ID: "v-pending", Kind: domain.KindVideo, Status: domain.StatusPending},
		}))
	require.NoError(t, store.Write(context.Background(), env.store, store.SchedulesKey(domain.KindPost),
		[]domain.Schedule{
			{ID: "p-failed", Kind: domain.KindPost, Status: domain.StatusFailed, FailedAt: &newer},
		}))

	rec := env.do(t, http.MethodGet, "/api/schedules/recent", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Schedules []domain.Schedule `json:"schedules"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Schedules, 2)
	assert.Equal(t, "p-failed", got.Schedules[0].ID)
	assert.Equal(t, "v-posted", got.Schedules[1].ID)
}

func TestCreateScheduleRequiresConnectedPage(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/api/schedules/video", map[string]any{
		"niche":       domain.Niches[0],
		"pageId":      "missing",
		"scheduledAt": time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "page not connected")
}

func TestCreateScheduleWakesScheduler(t *testing.T) {
	env := newAPIEnv(t)
	require.NoError(t, store.Write(context.Background(), env.store, store.KeyPages,
		[]domain.Page{{ID: "p1", Name: "Page One", AccessToken: "t"}}))

	rec := env.do(t, http.MethodPost, "/api/schedules/video", map[string]any{
		"niche":       domain.Niches[0],
		"pageId":      "p1",
		"scheduledAt": time.Now().Add(time.Hour).Format(time.RFC3339),
		"isDaily":     true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, env.refresher.refreshes())

	var created domain.Schedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.Equal(t, "Page One", created.PageName)
	assert.True(t, created.IsDaily)

	rec = env.do(t, http.MethodGet, "/api/schedules/video", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)
}

func TestCreateScheduleRejectsUnknownNiche(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/api/schedules/video", map[string]any{
		"niche":       "Cooking Tips",
		"pageId":      "p1",
		"scheduledAt": time.Now().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunNowDispatchesJob(t *testing.T) {
	env := newAPIEnv(t)
	require.NoError(t, store.Write(context.Background(), env.store, store.SchedulesKey(domain.KindVideo),
		[]domain.Schedule{{ID: "job1", Kind: domain.KindVideo, Status: domain.StatusPending}}))

	rec := env.do(t, http.MethodPost, "/api/run/video/job1", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		ids := env.runner.ranIDs()
		return len(ids) == 1 && ids[0] == "job1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunNowConflictsWhileGenerating(t *testing.T) {
	env := newAPIEnv(t)
	require.NoError(t, store.Write(context.Background(), env.store, store.SchedulesKey(domain.KindVideo),
		[]domain.Schedule{{ID: "job1", Kind: domain.KindVideo, Status: domain.StatusGenerating}}))

	rec := env.do(t, http.MethodPost, "/api/run/video/job1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, env.runner.ranIDs())
}

func TestRunNowUnknownScheduleNotFound(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/api/run/video/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListNiches(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/api/niches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, niche := range domain.Niches {
		assert.Contains(t, rec.Body.String(), niche)
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

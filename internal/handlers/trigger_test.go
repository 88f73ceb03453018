package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"inboxpilot/internal/database"
	"inboxpilot/internal/models"
	"inboxpilot/internal/syncer"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeThreads struct {
	mu      sync.Mutex
	threads map[string]*models.Thread
	err     error
}

func (f *fakeThreads) GetThread(_ context.Context, threadID, _ string) (*models.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if thread, ok := f.threads[threadID]; ok {
		return thread, nil
	}
	return nil, &database.ThreadNotFoundError{ThreadID: threadID}
}

type fakeSync struct {
	mu      sync.Mutex
	err     error
	calls   int
	onSync  func()
	threads *fakeThreads
}

func (f *fakeSync) EnsureThreadSynced(_ context.Context, threadID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.onSync != nil {
		f.onSync()
	}
	return nil
}

type fakeRunner struct {
	mu       sync.Mutex
	statuses map[string]models.CapabilityStatus
	failures map[string]string
	ran      []string
	force    bool
}

func (f *fakeRunner) Run(_ context.Context, capability, _, _ string, force bool) models.CapabilityStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, capability)
	f.force = force
	if status, ok := f.statuses[capability]; ok {
		return status
	}
	return models.CapabilityStatus{Status: models.StatusGenerated}
}

func (f *fakeRunner) LastFailure(threadID, capability string) (string, bool) {
	reason, ok := f.failures[threadID+":"+capability]
	return reason, ok
}

func postTrigger(t *testing.T, handler echo.HandlerFunc, body string) (*httptest.ResponseRecorder, models.TriggerResponse) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/ai/process/trigger", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, handler(c))

	var resp models.TriggerResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestTriggerHandler_DefaultCapabilities(t *testing.T) {
	threads := &fakeThreads{threads: map[string]*models.Thread{
		"prov-1": {ID: "t-1", UserID: "user-1"},
	}}
	runner := &fakeRunner{}
	handler := TriggerHandler(threads, &fakeSync{}, runner, []string{"summarize", "reply"}, zerolog.Nop())

	rec, resp := postTrigger(t, handler, `{"thread_id": "prov-1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, "t-1", resp.ThreadID)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, models.StatusGenerated, resp.Results["summarize"].Status)
	assert.Equal(t, models.StatusGenerated, resp.Results["reply"].Status)
	assert.ElementsMatch(t, []string{"summarize", "reply"}, runner.ran)
}

func TestTriggerHandler_ExplicitCapabilitySubsetAndForce(t *testing.T) {
	threads := &fakeThreads{threads: map[string]*models.Thread{
		"prov-1": {ID: "t-1"},
	}}
	runner := &fakeRunner{}
	handler := TriggerHandler(threads, &fakeSync{}, runner, []string{"summarize", "reply"}, zerolog.Nop())

	rec, resp := postTrigger(t, handler, `{"thread_id": "prov-1", "tasks": ["sentiment"], "force": true}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Results, 1)
	assert.Contains(t, resp.Results, "sentiment")
	assert.True(t, runner.force)
}

func TestTriggerHandler_PartialFailureIsRepresentable(t *testing.T) {
	threads := &fakeThreads{threads: map[string]*models.Thread{
		"prov-1": {ID: "t-1"},
	}}
	runner := &fakeRunner{statuses: map[string]models.CapabilityStatus{
		"reply": {Status: models.StatusFailed, Reason: "rate limited", Retryable: true},
	}}
	handler := TriggerHandler(threads, &fakeSync{}, runner, []string{"summarize", "reply"}, zerolog.Nop())

	rec, resp := postTrigger(t, handler, `{"thread_id": "prov-1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusGenerated, resp.Results["summarize"].Status)
	assert.Equal(t, models.StatusFailed, resp.Results["reply"].Status)
	assert.True(t, resp.Results["reply"].Retryable)
}

func TestTriggerHandler_DelegatesSyncForMissingThread(t *testing.T) {
	threads := &fakeThreads{threads: map[string]*models.Thread{}}
	syncDelegate := &fakeSync{threads: threads}
	syncDelegate.onSync = func() {
		threads.mu.Lock()
		threads.threads["prov-1"] = &models.Thread{ID: "t-1"}
		threads.mu.Unlock()
	}
	runner := &fakeRunner{}
	handler := TriggerHandler(threads, syncDelegate, runner, []string{"summarize"}, zerolog.Nop())

	rec, resp := postTrigger(t, handler, `{"thread_id": "prov-1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, syncDelegate.calls)
	assert.Equal(t, "t-1", resp.ThreadID)
}

func TestTriggerHandler_SyncFailureIs404(t *testing.T) {
	threads := &fakeThreads{threads: map[string]*models.Thread{}}
	syncDelegate := &fakeSync{err: &syncer.SyncError{ThreadID: "missing", Err: assert.AnError}}
	handler := TriggerHandler(threads, syncDelegate, &fakeRunner{}, []string{"summarize"}, zerolog.Nop())

	rec, _ := postTrigger(t, handler, `{"thread_id": "missing"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "not found and could not be synced")
}

func TestTriggerHandler_ThreadStillMissingAfterSyncIs404(t *testing.T) {
	threads := &fakeThreads{threads: map[string]*models.Thread{}}
	syncDelegate := &fakeSync{}
	handler := TriggerHandler(threads, syncDelegate, &fakeRunner{}, []string{"summarize"}, zerolog.Nop())

	rec, _ := postTrigger(t, handler, `{"thread_id": "missing"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, syncDelegate.calls)
}

func TestTriggerHandler_LookupInfrastructureFailureIs500(t *testing.T) {
	threads := &fakeThreads{err: errors.New("connection refused")}
	syncDelegate := &fakeSync{}
	handler := TriggerHandler(threads, syncDelegate, &fakeRunner{}, []string{"summarize"}, zerolog.Nop())

	rec, _ := postTrigger(t, handler, `{"thread_id": "prov-1"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// An unclassified failure never reaches the sync delegate
	assert.Equal(t, 0, syncDelegate.calls)
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "thread lookup failed", body.Error)
}

func TestTriggerHandler_MissingThreadID(t *testing.T) {
	handler := TriggerHandler(&fakeThreads{}, &fakeSync{}, &fakeRunner{}, []string{"summarize"}, zerolog.Nop())

	rec, _ := postTrigger(t, handler, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

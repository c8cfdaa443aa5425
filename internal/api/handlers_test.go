package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Drakaniia/vibe-kanban/internal/approvals"
	"github.com/Drakaniia/vibe-kanban/internal/common/config"
	"github.com/Drakaniia/vibe-kanban/internal/common/errors"
	"github.com/Drakaniia/vibe-kanban/internal/common/logger"
	"github.com/Drakaniia/vibe-kanban/internal/events/bus"
	"github.com/Drakaniia/vibe-kanban/internal/executors"
	"github.com/Drakaniia/vibe-kanban/internal/executors/registry"
	"github.com/Drakaniia/vibe-kanban/internal/sessions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestLogger() *logger.Logger {
	log, _ := logger.NewLogger(logger.LoggingConfig{
		Level:  "error",
		Format: "json",
	})
	return log
}

func newTestRouter(t *testing.T) (*gin.Engine, *approvals.Service) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	log := newTestLogger()
	reg, err := registry.New(config.ExecutorsConfig{
		Default: "iflow",
		Profiles: map[string]config.ExecutorProfile{
			"iflow":  {Kind: "iflow"},
			"gemini": {Kind: "gemini"},
		},
	}, log)
	require.NoError(t, err)

	eventBus := bus.NewMemoryEventBus(log)
	t.Cleanup(eventBus.Close)
	approvalSvc := approvals.NewService(eventBus, log, time.Minute)
	reg.UseApprovals(approvalSvc)
	mgr := sessions.NewManager(reg, eventBus, log)

	router := gin.New()
	SetupRoutes(router.Group("/api/v1"), reg, mgr, approvalSvc, eventBus, log)
	return router, approvalSvc
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListExecutors(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/executors", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Executors []ExecutorResponse `json:"executors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Executors, 2)
	assert.Equal(t, "gemini", resp.Executors[0].Name)
	assert.Equal(t, "iflow", resp.Executors[1].Name)
	assert.True(t, resp.Executors[1].Default)
	assert.Equal(t, "not_found", resp.Executors[1].Availability)
}

func TestGetExecutorAvailability(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/executors/iflow/availability", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp["availability"])

	w = doRequest(t, router, http.MethodGet, "/api/v1/executors/claude/availability", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSpawnSessionValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	// Missing required fields.
	w := doRequest(t, router, http.MethodPost, "/api/v1/sessions", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/sessions/nope/logs", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, http.MethodDelete, "/api/v1/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/v1/sessions/nope/follow-up", map[string]string{"prompt": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSpawnSessionUnknownExecutor(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/v1/sessions", map[string]string{
		"executor": "claude",
		"work_dir": "/tmp",
		"prompt":   "hi",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApprovalFlow(t *testing.T) {
	router, approvalSvc := newTestRouter(t)

	// Nothing pending yet.
	w := doRequest(t, router, http.MethodGet, "/api/v1/approvals", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listResp struct {
		Approvals []approvals.Pending `json:"approvals"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Empty(t, listResp.Approvals)

	// Park a request the way a running session would.
	decided := make(chan executors.ApprovalDecision, 1)
	go func() {
		d, _ := approvalSvc.Decide(context.Background(), executors.ApprovalRequest{
			SessionID:  "sess-1",
			ToolCallID: "call-1",
			Title:      "run ls",
			Options: []executors.ApprovalOption{
				{ID: "allow", Name: "Allow", Kind: "allow_once"},
			},
		})
		decided <- d
	}()

	var id string
	require.Eventually(t, func() bool {
		pending := approvalSvc.Pending()
		if len(pending) == 0 {
			return false
		}
		id = pending[0].ID
		return true
	}, 2*time.Second, 5*time.Millisecond)

	w = doRequest(t, router, http.MethodGet, "/api/v1/approvals", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Len(t, listResp.Approvals, 1)
	assert.Equal(t, "run ls", listResp.Approvals[0].Title)

	w = doRequest(t, router, http.MethodPost, "/api/v1/approvals/"+id, ResolveApprovalRequest{
		Approved: true,
		OptionID: "allow",
	})
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case d := <-decided:
		assert.True(t, d.Approved)
		assert.Equal(t, "allow", d.OptionID)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for decision")
	}
}

func TestResolveApprovalNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/v1/approvals/missing", ResolveApprovalRequest{Approved: true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSpawnErrorStatusWrapped(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"construction", fmt.Errorf("spawn: %w", &executors.ConstructionError{Reason: "empty"}), http.StatusBadRequest},
		{"unknown session", fmt.Errorf("resume: %w", &executors.UnknownSessionError{SessionID: "x"}), http.StatusNotFound},
		{"spawn", fmt.Errorf("start: %w", executors.NewSpawnError(fmt.Errorf("boom"))), http.StatusBadGateway},
		{"app error", errors.NotFound("executor", "claude"), http.StatusNotFound},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, spawnErrorStatus(tc.err))
		})
	}
}

func TestListSessionsEmpty(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Sessions []sessions.Session `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Sessions)
}

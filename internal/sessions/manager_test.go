package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Drakaniia/vibe-kanban/internal/common/errors"
	"github.com/Drakaniia/vibe-kanban/internal/common/logger"
	"github.com/Drakaniia/vibe-kanban/internal/events/bus"
	"github.com/Drakaniia/vibe-kanban/internal/executors"
	"github.com/Drakaniia/vibe-kanban/internal/msgstore"
)

type fakeExecutor struct {
	spawnErr    error
	followUpErr error
	lastPrompt  string
	lastSession string
	exitCh      chan error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{exitCh: make(chan error, 1)}
}

func (f *fakeExecutor) UseApprovals(executors.ApprovalService) {}

func (f *fakeExecutor) Spawn(ctx context.Context, workDir, prompt string, env *executors.ExecutionEnv) (*executors.SpawnedChild, error) {
	if f.spawnErr != nil {
		return nil, f.spawnErr
	}
	f.lastPrompt = prompt
	return executors.NewSpawnedChild("agent-sess", 101, msgstore.New(), func() error {
		return <-f.exitCh
	}, func() error {
		select {
		case f.exitCh <- errors.New("killed"):
		default:
		}
		return nil
	}), nil
}

func (f *fakeExecutor) SpawnFollowUp(ctx context.Context, workDir, prompt, sessionID string, env *executors.ExecutionEnv) (*executors.SpawnedChild, error) {
	if f.followUpErr != nil {
		return nil, f.followUpErr
	}
	f.lastSession = sessionID
	return f.Spawn(ctx, workDir, prompt, env)
}

func (f *fakeExecutor) NormalizeLogs(store *msgstore.Store, worktreePath string) {
	for _, e := range store.DrainUnnormalized() {
		store.PushNormalized(msgstore.NormalizedEntry{Kind: msgstore.NormalizedStderr, Text: e.Text})
	}
}

func (f *fakeExecutor) DefaultMcpConfigPath() string { return "" }

func (f *fakeExecutor) GetAvailabilityInfo() executors.AvailabilityInfo {
	return executors.InstallationFound
}

type fakeResolver struct {
	execs map[string]executors.StandardCodingAgentExecutor
	def   string
}

func (r *fakeResolver) Get(name string) (executors.StandardCodingAgentExecutor, bool) {
	e, ok := r.execs[name]
	return e, ok
}

func (r *fakeResolver) DefaultName() string { return r.def }

func newTestManager(t *testing.T, exec executors.StandardCodingAgentExecutor) (*Manager, bus.EventBus) {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json", OutputPath: "stderr"})
	require.NoError(t, err)
	eventBus := bus.NewMemoryEventBus(log)
	resolver := &fakeResolver{execs: map[string]executors.StandardCodingAgentExecutor{"iflow": exec}, def: "iflow"}
	return NewManager(resolver, eventBus, log), eventBus
}

func TestManagerSpawnAndExitEvents(t *testing.T) {
	exec := newFakeExecutor()
	m, eventBus := newTestManager(t, exec)

	exited := make(chan *bus.Event, 1)
	_, err := eventBus.Subscribe(SubjectSessionExited, func(ctx context.Context, e *bus.Event) error {
		exited <- e
		return nil
	})
	require.NoError(t, err)

	s, err := m.Spawn(context.Background(), "", "/work", "fix it", nil)
	require.NoError(t, err)
	assert.Equal(t, "iflow", s.Executor)
	assert.Equal(t, "agent-sess", s.AgentSession)
	assert.Equal(t, 101, s.PID)

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, s.ID, got.ID)
	assert.Len(t, m.List(), 1)

	exec.exitCh <- nil
	select {
	case e := <-exited:
		assert.Equal(t, s.ID, e.Data["session_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("no exit event published")
	}
}

func TestManagerSpawnUnknownExecutor(t *testing.T) {
	m, _ := newTestManager(t, newFakeExecutor())
	_, err := m.Spawn(context.Background(), "missing", "/work", "p", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err), "unknown executor should be a not-found error")
}

func TestManagerFollowUp(t *testing.T) {
	exec := newFakeExecutor()
	m, _ := newTestManager(t, exec)

	first, err := m.Spawn(context.Background(), "iflow", "/work", "start", nil)
	require.NoError(t, err)

	second, err := m.FollowUp(context.Background(), first.ID, "continue", nil)
	require.NoError(t, err)
	assert.Equal(t, "agent-sess", exec.lastSession)
	assert.True(t, second.Resumed)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = m.FollowUp(context.Background(), "nope", "continue", nil)
	var use *executors.UnknownSessionError
	require.ErrorAs(t, err, &use)
}

func TestManagerLogsAndStop(t *testing.T) {
	exec := newFakeExecutor()
	m, _ := newTestManager(t, exec)

	s, err := m.Spawn(context.Background(), "iflow", "/work", "p", nil)
	require.NoError(t, err)

	s.child.Store().PushStderr("warming up")
	entries, err := m.Logs(s.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "warming up", entries[0].Text)

	require.NoError(t, m.Stop(s.ID))

	_, err = m.Logs("nope")
	require.Error(t, err)
}

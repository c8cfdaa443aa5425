// Package sessions tracks live executor sessions: spawning, resuming,
// stopping, and serving their logs.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Drakaniia/vibe-kanban/internal/common/errors"
	"github.com/Drakaniia/vibe-kanban/internal/common/logger"
	"github.com/Drakaniia/vibe-kanban/internal/events/bus"
	"github.com/Drakaniia/vibe-kanban/internal/executors"
	"github.com/Drakaniia/vibe-kanban/internal/msgstore"
)

// ExecutorResolver resolves executor profiles by name. Satisfied by
// registry.Registry.
type ExecutorResolver interface {
	Get(name string) (executors.StandardCodingAgentExecutor, bool)
	DefaultName() string
}

const eventSource = "executor-service"

// Event subjects published on the bus.
const (
	SubjectSessionStarted = "executor.session.started"
	SubjectSessionResumed = "executor.session.resumed"
	SubjectSessionExited  = "executor.session.exited"
)

// Session is one tracked executor run.
type Session struct {
	ID           string    `json:"id"`
	Executor     string    `json:"executor"`
	AgentSession string    `json:"agent_session_id"`
	WorkDir      string    `json:"work_dir"`
	PID          int       `json:"pid"`
	StartedAt    time.Time `json:"started_at"`
	Resumed      bool      `json:"resumed"`

	child *executors.SpawnedChild
	exec  executors.StandardCodingAgentExecutor
}

// Manager owns the session table. Spawns go through the registry; exits are
// observed on background goroutines and announced on the event bus.
type Manager struct {
	reg    ExecutorResolver
	bus    bus.EventBus
	logger *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(reg ExecutorResolver, eventBus bus.EventBus, log *logger.Logger) *Manager {
	return &Manager{
		reg:      reg,
		bus:      eventBus,
		logger:   log.WithFields(zap.String("component", "session-manager")),
		sessions: make(map[string]*Session),
	}
}

// Spawn starts a new session on the named executor profile. An empty
// executor name selects the configured default.
func (m *Manager) Spawn(ctx context.Context, executorName, workDir, prompt string, env *executors.ExecutionEnv) (*Session, error) {
	name, exec, err := m.resolve(executorName)
	if err != nil {
		return nil, err
	}

	child, err := exec.Spawn(ctx, workDir, prompt, env)
	if err != nil {
		return nil, err
	}
	return m.track(ctx, name, workDir, exec, child, false), nil
}

// FollowUp resumes the agent session behind a tracked session with a new
// prompt, producing a new tracked session.
func (m *Manager) FollowUp(ctx context.Context, sessionID, prompt string, env *executors.ExecutionEnv) (*Session, error) {
	m.mu.RLock()
	prev, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, &executors.UnknownSessionError{SessionID: sessionID}
	}

	child, err := prev.exec.SpawnFollowUp(ctx, prev.WorkDir, prompt, prev.AgentSession, env)
	if err != nil {
		return nil, err
	}
	return m.track(ctx, prev.Executor, prev.WorkDir, prev.exec, child, true), nil
}

func (m *Manager) resolve(name string) (string, executors.StandardCodingAgentExecutor, error) {
	if name == "" {
		name = m.reg.DefaultName()
	}
	exec, ok := m.reg.Get(name)
	if !ok {
		return "", nil, errors.NotFound("executor", name)
	}
	return name, exec, nil
}

func (m *Manager) track(ctx context.Context, executorName, workDir string, exec executors.StandardCodingAgentExecutor, child *executors.SpawnedChild, resumed bool) *Session {
	s := &Session{
		ID:           uuid.NewString(),
		Executor:     executorName,
		AgentSession: child.SessionID(),
		WorkDir:      workDir,
		PID:          child.PID(),
		StartedAt:    time.Now().UTC(),
		Resumed:      resumed,
		child:        child,
		exec:         exec,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	subject := SubjectSessionStarted
	if resumed {
		subject = SubjectSessionResumed
	}
	m.publish(ctx, subject, map[string]interface{}{
		"session_id":       s.ID,
		"executor":         s.Executor,
		"agent_session_id": s.AgentSession,
		"pid":              s.PID,
	})

	m.logger.WithSessionID(s.ID).WithExecutor(s.Executor).Info("session started",
		zap.Int("pid", s.PID),
		zap.Bool("resumed", resumed))

	go m.watch(s)
	return s
}

// watch blocks until the agent process exits and announces it.
func (m *Manager) watch(s *Session) {
	err := s.child.Wait()

	data := map[string]interface{}{
		"session_id": s.ID,
		"executor":   s.Executor,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	m.publish(context.Background(), SubjectSessionExited, data)

	log := m.logger.WithSessionID(s.ID)
	if err != nil {
		log.Info("session exited with error", zap.Error(err))
	} else {
		log.Info("session exited")
	}
}

func (m *Manager) publish(ctx context.Context, subject string, data map[string]interface{}) {
	if m.bus == nil {
		return
	}
	event := bus.NewEvent(subject, eventSource, data)
	if err := m.bus.Publish(ctx, subject, event); err != nil {
		m.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

// Get returns a tracked session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns all tracked sessions.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Logs normalizes pending output and returns the normalized log for a
// session.
func (m *Manager) Logs(id string) ([]msgstore.NormalizedEntry, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, &executors.UnknownSessionError{SessionID: id}
	}
	s.exec.NormalizeLogs(s.child.Store(), s.WorkDir)
	return s.child.Store().Normalized(), nil
}

// Stop kills a session's agent process. The session stays in the table so
// its logs remain readable.
func (m *Manager) Stop(id string) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return &executors.UnknownSessionError{SessionID: id}
	}
	m.logger.Info("stopping session", zap.String("session_id", id))
	return s.child.Kill()
}

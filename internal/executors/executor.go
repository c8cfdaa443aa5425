// Package executors defines the uniform contract for launching external
// coding-agent CLI tools and the value types used to build their command
// lines. Each concrete backend (IFlow, Gemini, ...) implements the
// StandardCodingAgentExecutor interface in its own file, delegating the wire
// protocol to an AgentHarness.
package executors

import (
	"context"
	"sync"

	"github.com/Drakaniia/vibe-kanban/internal/msgstore"
)

// AvailabilityInfo is a best-effort snapshot judgment of whether a backend
// tool appears installed. It is recomputed on every probe and must never be
// treated as a guarantee that the backend will successfully spawn.
type AvailabilityInfo string

const (
	InstallationFound AvailabilityInfo = "installation_found"
	NotFound          AvailabilityInfo = "not_found"
)

// Installed reports whether the probe found any installation marker.
func (a AvailabilityInfo) Installed() bool { return a == InstallationFound }

// StandardCodingAgentExecutor is the uniform contract every concrete agent
// adapter implements.
type StandardCodingAgentExecutor interface {
	// UseApprovals attaches the approval capability. Idempotent; last write
	// wins. Must be called (or deliberately skipped for unattended mode)
	// before Spawn.
	UseApprovals(approvals ApprovalService)

	// Spawn starts a brand-new agent session in workDir. It blocks only for
	// process creation and the start of the protocol handshake, not for the
	// agent to finish.
	Spawn(ctx context.Context, workDir string, prompt string, env *ExecutionEnv) (*SpawnedChild, error)

	// SpawnFollowUp resumes a previously started session identified by the
	// opaque sessionID returned from an earlier Spawn.
	SpawnFollowUp(ctx context.Context, workDir string, prompt string, sessionID string, env *ExecutionEnv) (*SpawnedChild, error)

	// NormalizeLogs transforms accumulated raw process output in store into
	// the normalized representation, in place. Safe to call repeatedly.
	NormalizeLogs(store *msgstore.Store, worktreePath string)

	// DefaultMcpConfigPath returns the conventional location of the
	// backend's own MCP config file, or "" when the concept does not apply.
	// Pure path computation; does not touch the filesystem.
	DefaultMcpConfigPath() string

	// GetAvailabilityInfo probes for installation markers.
	GetAvailabilityInfo() AvailabilityInfo
}

// AgentHarness drives the low-level protocol conversation with a spawned
// agent process for one process family. Implementations own process
// lifecycle, handshake, session continuation, and raw log capture.
type AgentHarness interface {
	SpawnWithCommand(ctx context.Context, workDir string, prompt string, cmd Command, env *ExecutionEnv, overrides *CmdOverrides, approvals ApprovalService) (*SpawnedChild, error)
	SpawnFollowUpWithCommand(ctx context.Context, workDir string, prompt string, sessionID string, cmd Command, env *ExecutionEnv, overrides *CmdOverrides, approvals ApprovalService) (*SpawnedChild, error)
	NormalizeLogs(store *msgstore.Store, worktreePath string)
}

// SpawnedChild is a handle to a running agent process and its protocol
// session. Callers observe process exit through Wait and cancel by Kill;
// this layer imposes no timeouts of its own.
type SpawnedChild struct {
	sessionID string
	pid       int
	store     *msgstore.Store

	waitOnce sync.Once
	waitErr  error
	wait     func() error
	kill     func() error
}

// NewSpawnedChild builds a handle. wait must be safe to call exactly once;
// kill must be idempotent.
func NewSpawnedChild(sessionID string, pid int, store *msgstore.Store, wait, kill func() error) *SpawnedChild {
	return &SpawnedChild{
		sessionID: sessionID,
		pid:       pid,
		store:     store,
		wait:      wait,
		kill:      kill,
	}
}

// SessionID returns the opaque session handle assigned by the backend.
// Required verbatim for follow-up spawns.
func (c *SpawnedChild) SessionID() string { return c.sessionID }

// PID returns the OS process id of the agent process.
func (c *SpawnedChild) PID() int { return c.pid }

// Store returns the log store accumulating this session's raw output.
func (c *SpawnedChild) Store() *msgstore.Store { return c.store }

// Wait blocks until the agent process exits and returns its exit error.
// Safe to call from multiple goroutines.
func (c *SpawnedChild) Wait() error {
	c.waitOnce.Do(func() {
		if c.wait != nil {
			c.waitErr = c.wait()
		}
	})
	return c.waitErr
}

// Kill terminates the agent process and its protocol conversation.
func (c *SpawnedChild) Kill() error {
	if c.kill == nil {
		return nil
	}
	return c.kill()
}

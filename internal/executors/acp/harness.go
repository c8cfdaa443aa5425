package acp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/coder/acp-go-sdk"
	"go.uber.org/zap"

	"github.com/Drakaniia/vibe-kanban/internal/common/logger"
	"github.com/Drakaniia/vibe-kanban/internal/executors"
	"github.com/Drakaniia/vibe-kanban/internal/msgstore"
)

// Harness launches agent CLI processes and speaks ACP to them. One Harness
// serves many spawns; each spawn gets its own process, connection, and log
// store. Implements executors.AgentHarness.
type Harness struct {
	logger        *logger.Logger
	clientName    string
	clientVersion string
}

func NewHarness(log *logger.Logger) *Harness {
	return &Harness{
		logger:        log.WithFields(zap.String("component", "acp-harness")),
		clientName:    "vibe-kanban",
		clientVersion: "1.0.0",
	}
}

// SpawnWithCommand starts the agent process, performs the handshake, and
// opens a new session. The returned child is live: the prompt turn runs on
// a background goroutine and its output accumulates in the child's store.
func (h *Harness) SpawnWithCommand(ctx context.Context, workDir string, prompt string, cmd executors.Command, env *executors.ExecutionEnv, overrides *executors.CmdOverrides, approvals executors.ApprovalService) (*executors.SpawnedChild, error) {
	return h.spawn(ctx, workDir, prompt, "", cmd, env, overrides, approvals)
}

// SpawnFollowUpWithCommand starts a fresh agent process and resumes the
// given session via session/load. Agents that do not advertise the
// loadSession capability cannot resume; that surfaces as an
// UnknownSessionError.
func (h *Harness) SpawnFollowUpWithCommand(ctx context.Context, workDir string, prompt string, sessionID string, cmd executors.Command, env *executors.ExecutionEnv, overrides *executors.CmdOverrides, approvals executors.ApprovalService) (*executors.SpawnedChild, error) {
	if sessionID == "" {
		return nil, &executors.UnknownSessionError{SessionID: sessionID}
	}
	return h.spawn(ctx, workDir, prompt, sessionID, cmd, env, overrides, approvals)
}

func (h *Harness) spawn(ctx context.Context, workDir string, prompt string, resumeSessionID string, command executors.Command, env *executors.ExecutionEnv, overrides *executors.CmdOverrides, approvals executors.ApprovalService) (*executors.SpawnedChild, error) {
	log := h.logger.WithFields(zap.String("program", command.Program()), zap.String("workdir", workDir))
	log.Info("starting agent process", zap.Strings("args", command.Args()))

	// The spawn context governs process creation and handshake only; the
	// process must outlive the caller's request.
	cmd := exec.Command(command.Program(), command.Args()...)
	cmd.Dir = workDir
	var extraEnv map[string]string
	if overrides != nil {
		extraEnv = overrides.Env
	}
	cmd.Env = env.Environ(extraEnv)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, executors.NewSpawnError(fmt.Errorf("stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, executors.NewSpawnError(fmt.Errorf("stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, executors.NewSpawnError(fmt.Errorf("stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return nil, executors.NewSpawnError(fmt.Errorf("start agent: %w", err))
	}
	pid := cmd.Process.Pid
	log.Info("agent process started", zap.Int("pid", pid))

	store := msgstore.New()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		readStderr(stderr, store, log)
	}()

	client := NewClient(
		WithLogger(h.logger.Zap()),
		WithWorkspaceRoot(workDir),
		WithApprovals(approvals),
		WithStore(store),
	)
	conn := acp.NewClientSideConnection(client, stdin, stdout)
	conn.SetLogger(slog.Default().With("component", "acp-conn"))

	teardown := func() {
		stdin.Close()
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		cmd.Wait()
	}

	initResp, err := conn.Initialize(ctx, acp.InitializeRequest{
		ProtocolVersion: acp.ProtocolVersionNumber,
		ClientInfo: &acp.Implementation{
			Name:    h.clientName,
			Version: h.clientVersion,
		},
	})
	if err != nil {
		teardown()
		return nil, executors.NewSpawnError(fmt.Errorf("initialize handshake: %w", err))
	}
	if initResp.AgentInfo != nil {
		log.Info("agent initialized",
			zap.String("agent_name", initResp.AgentInfo.Name),
			zap.String("agent_version", initResp.AgentInfo.Version),
			zap.Bool("supports_load_session", initResp.AgentCapabilities.LoadSession))
	}

	sessionID := resumeSessionID
	if resumeSessionID == "" {
		resp, err := conn.NewSession(ctx, acp.NewSessionRequest{
			Cwd:        workDir,
			McpServers: []acp.McpServer{},
		})
		if err != nil {
			teardown()
			return nil, executors.NewSpawnError(fmt.Errorf("create session: %w", err))
		}
		sessionID = string(resp.SessionId)
		log.Info("created new session", zap.String("session_id", sessionID))
	} else {
		if !initResp.AgentCapabilities.LoadSession {
			teardown()
			return nil, &executors.UnknownSessionError{
				SessionID: resumeSessionID,
				Err:       fmt.Errorf("agent does not support session loading"),
			}
		}
		if _, err := conn.LoadSession(ctx, acp.LoadSessionRequest{
			SessionId: acp.SessionId(resumeSessionID),
		}); err != nil {
			teardown()
			return nil, &executors.UnknownSessionError{SessionID: resumeSessionID, Err: err}
		}
		log.Info("loaded session", zap.String("session_id", sessionID))
	}

	// The prompt turn outlives the spawn call. It gets its own context so
	// the caller's request finishing does not cancel the agent's work.
	promptCtx, cancelPrompt := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := conn.Prompt(promptCtx, acp.PromptRequest{
			SessionId: acp.SessionId(sessionID),
			Prompt:    []acp.ContentBlock{acp.TextBlock(prompt)},
		}); err != nil {
			log.Warn("prompt turn ended with error", zap.Error(err))
			store.PushStderr(fmt.Sprintf("prompt error: %v", err))
			return
		}
		log.Info("prompt turn complete", zap.String("session_id", sessionID))
	}()

	wait := func() error {
		err := cmd.Wait()
		cancelPrompt()
		wg.Wait()
		return err
	}
	kill := func() error {
		conn.Cancel(context.Background(), acp.CancelNotification{
			SessionId: acp.SessionId(sessionID),
		})
		cancelPrompt()
		stdin.Close()
		if cmd.Process != nil {
			return cmd.Process.Kill()
		}
		return nil
	}

	return executors.NewSpawnedChild(sessionID, pid, store, wait, kill), nil
}

func readStderr(r io.Reader, store *msgstore.Store, log *logger.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		store.PushStderr(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		log.Debug("stderr reader error", zap.Error(err))
	}
}

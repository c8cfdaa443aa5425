// Package acp drives coding-agent subprocesses over the Agent Client
// Protocol: JSON-RPC 2.0 on stdin/stdout. It implements the client half of
// the protocol and the process harness that executors delegate spawning to.
package acp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/coder/acp-go-sdk"
	"go.uber.org/zap"

	"github.com/Drakaniia/vibe-kanban/internal/executors"
	"github.com/Drakaniia/vibe-kanban/internal/msgstore"
)

// Client implements acp.Client and services all agent-initiated requests:
// permission prompts, session update notifications, and workspace file IO.
type Client struct {
	logger        *zap.Logger
	workspaceRoot string

	mu        sync.RWMutex
	approvals executors.ApprovalService
	store     *msgstore.Store
}

// ClientOption configures a Client.
type ClientOption func(*Client)

func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithWorkspaceRoot sets the root for file operations.
func WithWorkspaceRoot(root string) ClientOption {
	return func(c *Client) { c.workspaceRoot = root }
}

// WithApprovals routes permission requests through the given service. When
// unset, requests are auto-approved by selecting the first allow option.
func WithApprovals(svc executors.ApprovalService) ClientOption {
	return func(c *Client) { c.approvals = svc }
}

// WithStore captures session updates into the given store.
func WithStore(store *msgstore.Store) ClientOption {
	return func(c *Client) { c.store = store }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		logger:        zap.NewNop(),
		workspaceRoot: "/workspace",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestPermission handles permission requests from the agent. With an
// approval service attached the request is forwarded and the decision
// mapped back onto the offered options; a denial becomes a cancelled
// outcome. Without one, the first allow option is selected.
func (c *Client) RequestPermission(ctx context.Context, p acp.RequestPermissionRequest) (acp.RequestPermissionResponse, error) {
	title := ""
	if p.ToolCall.Title != nil {
		title = *p.ToolCall.Title
	}
	c.logger.Info("received permission request",
		zap.String("session_id", string(p.SessionId)),
		zap.String("tool_call_id", string(p.ToolCall.ToolCallId)),
		zap.String("title", title),
		zap.Int("num_options", len(p.Options)))

	if len(p.Options) == 0 {
		c.logger.Warn("no options available, cancelling permission request")
		return cancelledOutcome(), nil
	}

	c.mu.RLock()
	svc := c.approvals
	c.mu.RUnlock()

	if svc == nil {
		return autoApprove(c.logger, p), nil
	}

	kind := ""
	if p.ToolCall.Kind != nil {
		kind = string(*p.ToolCall.Kind)
	}
	req := executors.ApprovalRequest{
		SessionID:  string(p.SessionId),
		ToolCallID: string(p.ToolCall.ToolCallId),
		Title:      title,
		Kind:       kind,
		Options:    make([]executors.ApprovalOption, len(p.Options)),
	}
	for i, opt := range p.Options {
		req.Options[i] = executors.ApprovalOption{
			ID:   string(opt.OptionId),
			Name: opt.Name,
			Kind: string(opt.Kind),
		}
	}

	decision, err := svc.Decide(ctx, req)
	if err != nil {
		c.logger.Error("approval service failed, cancelling request", zap.Error(err))
		return cancelledOutcome(), nil
	}
	if !decision.Approved {
		c.logger.Info("permission denied",
			zap.String("tool_call_id", req.ToolCallID))
		return cancelledOutcome(), nil
	}

	optionID := decision.OptionID
	if optionID == "" {
		optionID = string(firstAllowOption(p).OptionId)
	}
	c.logger.Info("permission approved", zap.String("option_id", optionID))
	return acp.RequestPermissionResponse{
		Outcome: acp.RequestPermissionOutcome{
			Selected: &acp.RequestPermissionOutcomeSelected{
				OptionId: acp.PermissionOptionId(optionID),
			},
		},
	}, nil
}

func cancelledOutcome() acp.RequestPermissionResponse {
	return acp.RequestPermissionResponse{
		Outcome: acp.RequestPermissionOutcome{
			Cancelled: &acp.RequestPermissionOutcomeCancelled{},
		},
	}
}

func firstAllowOption(p acp.RequestPermissionRequest) *acp.PermissionOption {
	for i := range p.Options {
		opt := &p.Options[i]
		if opt.Kind == acp.PermissionOptionKindAllowOnce || opt.Kind == acp.PermissionOptionKindAllowAlways {
			return opt
		}
	}
	return &p.Options[0]
}

func autoApprove(log *zap.Logger, p acp.RequestPermissionRequest) acp.RequestPermissionResponse {
	selected := firstAllowOption(p)
	log.Info("auto-approving permission request",
		zap.String("option_id", string(selected.OptionId)),
		zap.String("option_name", selected.Name))
	return acp.RequestPermissionResponse{
		Outcome: acp.RequestPermissionOutcome{
			Selected: &acp.RequestPermissionOutcomeSelected{
				OptionId: selected.OptionId,
			},
		},
	}
}

// SessionUpdate captures each notification verbatim into the session store.
// Normalization happens later, on demand.
func (c *Client) SessionUpdate(ctx context.Context, n acp.SessionNotification) error {
	c.mu.RLock()
	store := c.store
	c.mu.RUnlock()

	u := n.Update
	switch {
	case u.ToolCall != nil:
		c.logger.Info("tool call",
			zap.String("tool_call_id", string(u.ToolCall.ToolCallId)),
			zap.String("title", u.ToolCall.Title),
			zap.String("status", string(u.ToolCall.Status)))
	case u.Plan != nil:
		c.logger.Info("plan update", zap.Int("entries", len(u.Plan.Entries)))
	}

	if store != nil {
		if raw, err := json.Marshal(n); err == nil {
			store.PushRawUpdate(raw)
		} else {
			c.logger.Warn("failed to capture session update", zap.Error(err))
		}
	}
	return nil
}

// ReadTextFile reads a text file for the agent, honoring line/limit slicing.
func (c *Client) ReadTextFile(ctx context.Context, p acp.ReadTextFileRequest) (acp.ReadTextFileResponse, error) {
	c.logger.Debug("reading file", zap.String("path", p.Path))

	if !filepath.IsAbs(p.Path) {
		return acp.ReadTextFileResponse{}, fmt.Errorf("path must be absolute: %s", p.Path)
	}

	b, err := os.ReadFile(p.Path)
	if err != nil {
		return acp.ReadTextFileResponse{}, err
	}
	content := string(b)

	if p.Line != nil || p.Limit != nil {
		lines := strings.Split(content, "\n")
		start := 0
		if p.Line != nil && *p.Line > 0 {
			start = *p.Line - 1
			if start > len(lines) {
				start = len(lines)
			}
		}
		end := len(lines)
		if p.Limit != nil && *p.Limit > 0 && start+*p.Limit < end {
			end = start + *p.Limit
		}
		content = strings.Join(lines[start:end], "\n")
	}

	return acp.ReadTextFileResponse{Content: content}, nil
}

// WriteTextFile writes a text file on behalf of the agent.
func (c *Client) WriteTextFile(ctx context.Context, p acp.WriteTextFileRequest) (acp.WriteTextFileResponse, error) {
	c.logger.Debug("writing file", zap.String("path", p.Path))

	if !filepath.IsAbs(p.Path) {
		return acp.WriteTextFileResponse{}, fmt.Errorf("path must be absolute: %s", p.Path)
	}

	if dir := filepath.Dir(p.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return acp.WriteTextFileResponse{}, err
		}
	}

	return acp.WriteTextFileResponse{}, os.WriteFile(p.Path, []byte(p.Content), 0o644)
}

// Terminal support is stubbed: agents that ask get a fixed terminal that
// reports success. iFlow and Gemini run their own shell tooling in-process.

func (c *Client) CreateTerminal(ctx context.Context, p acp.CreateTerminalRequest) (acp.CreateTerminalResponse, error) {
	c.logger.Debug("create terminal request", zap.String("command", p.Command))
	return acp.CreateTerminalResponse{TerminalId: "t-1"}, nil
}

func (c *Client) KillTerminalCommand(ctx context.Context, p acp.KillTerminalCommandRequest) (acp.KillTerminalCommandResponse, error) {
	c.logger.Debug("kill terminal request", zap.String("terminal_id", p.TerminalId))
	return acp.KillTerminalCommandResponse{}, nil
}

func (c *Client) TerminalOutput(ctx context.Context, p acp.TerminalOutputRequest) (acp.TerminalOutputResponse, error) {
	c.logger.Debug("terminal output request", zap.String("terminal_id", p.TerminalId))
	return acp.TerminalOutputResponse{Output: "", Truncated: false}, nil
}

func (c *Client) ReleaseTerminal(ctx context.Context, p acp.ReleaseTerminalRequest) (acp.ReleaseTerminalResponse, error) {
	c.logger.Debug("release terminal request", zap.String("terminal_id", p.TerminalId))
	return acp.ReleaseTerminalResponse{}, nil
}

func (c *Client) WaitForTerminalExit(ctx context.Context, p acp.WaitForTerminalExitRequest) (acp.WaitForTerminalExitResponse, error) {
	c.logger.Debug("wait for terminal exit request", zap.String("terminal_id", p.TerminalId))
	exitCode := 0
	return acp.WaitForTerminalExitResponse{ExitCode: &exitCode}, nil
}

// Verify interface implementation
var _ acp.Client = (*Client)(nil)

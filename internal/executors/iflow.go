package executors

import (
	"context"
	"fmt"

	"github.com/Drakaniia/vibe-kanban/internal/msgstore"
)

const iflowBaseCommand = "npx -y @qwen-code/iflow@latest"

// IFlowConfig is the declarative configuration of one IFlow executor
// instance. The zero value is a valid interactive default.
type IFlowConfig struct {
	// AppendPrompt is an optional fragment appended to every user prompt.
	AppendPrompt AppendPrompt `json:"append_prompt,omitempty"`
	// Yolo runs the agent with auto-approval. Approval routing is disabled
	// even when an ApprovalService has been attached.
	Yolo bool `json:"yolo,omitempty"`
	// Model selects a specific model; empty leaves the backend default.
	Model string `json:"model,omitempty"`
	// Cmd customizes the spawned command line and environment.
	Cmd CmdOverrides `json:"cmd,omitempty"`
}

// IFlow launches the iFlow CLI as a protocol-speaking subprocess.
type IFlow struct {
	cfg       IFlowConfig
	harness   AgentHarness
	approvals ApprovalService
}

func NewIFlow(cfg IFlowConfig, harness AgentHarness) *IFlow {
	return &IFlow{cfg: cfg, harness: harness}
}

func (e *IFlow) UseApprovals(approvals ApprovalService) {
	e.approvals = approvals
}

// commandBuilder assembles the base invocation with configuration flags in
// a fixed order. Overrides are applied last so a base-command override can
// never be displaced by a later flag.
func (e *IFlow) commandBuilder() *CommandBuilder {
	b := NewCommandBuilder(iflowBaseCommand)
	if e.cfg.Yolo {
		b.ExtendParams("--yolo")
	}
	if e.cfg.Model != "" {
		b.ExtendParams("--model", e.cfg.Model)
	}
	b.ExtendParams("--experimental-acp")
	return ApplyOverrides(b, &e.cfg.Cmd)
}

// activeApprovals returns the approval service to route through, or nil
// when the session runs unattended.
func (e *IFlow) activeApprovals() ApprovalService {
	if e.cfg.Yolo {
		return nil
	}
	return e.approvals
}

func (e *IFlow) Spawn(ctx context.Context, workDir string, prompt string, env *ExecutionEnv) (*SpawnedChild, error) {
	cmd, err := e.commandBuilder().BuildInitial()
	if err != nil {
		return nil, err
	}
	combined := e.cfg.AppendPrompt.CombinePrompt(prompt)
	return e.harness.SpawnWithCommand(ctx, workDir, combined, cmd, env, &e.cfg.Cmd, e.activeApprovals())
}

func (e *IFlow) SpawnFollowUp(ctx context.Context, workDir string, prompt string, sessionID string, env *ExecutionEnv) (*SpawnedChild, error) {
	cmd, err := e.commandBuilder().BuildFollowUp(nil)
	if err != nil {
		return nil, err
	}
	combined := e.cfg.AppendPrompt.CombinePrompt(prompt)
	return e.harness.SpawnFollowUpWithCommand(ctx, workDir, combined, sessionID, cmd, env, &e.cfg.Cmd, e.activeApprovals())
}

func (e *IFlow) NormalizeLogs(store *msgstore.Store, worktreePath string) {
	e.harness.NormalizeLogs(store, worktreePath)
}

// DefaultMcpConfigPath points at iFlow's own settings file. Pure path
// computation; existence is not checked.
func (e *IFlow) DefaultMcpConfigPath() string {
	return expandHomePath("~/.iflow/settings.json")
}

// GetAvailabilityInfo probes for iFlow installation markers. The check is
// existence-only and recomputed on every call.
func (e *IFlow) GetAvailabilityInfo() AvailabilityInfo {
	if anyFileExists("~/.iflow/settings.json", "~/.iflow/installation_id") {
		return InstallationFound
	}
	return NotFound
}

// Equal compares the declarative configuration of two executors. The
// attached approval service is runtime wiring and is ignored.
func (e *IFlow) Equal(other *IFlow) bool {
	if other == nil {
		return false
	}
	return e.cfg.AppendPrompt == other.cfg.AppendPrompt &&
		e.cfg.Yolo == other.cfg.Yolo &&
		e.cfg.Model == other.cfg.Model &&
		e.cfg.Cmd.Equal(other.cfg.Cmd)
}

// String renders the configuration only; the approval service does not
// appear in debug output.
func (e *IFlow) String() string {
	return fmt.Sprintf("IFlow{append_prompt:%q yolo:%t model:%q cmd:%+v}",
		string(e.cfg.AppendPrompt), e.cfg.Yolo, e.cfg.Model, e.cfg.Cmd)
}

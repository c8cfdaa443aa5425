package executors

import (
	"context"
	"fmt"

	"github.com/Drakaniia/vibe-kanban/internal/msgstore"
)

const geminiBaseCommand = "npx -y @google/gemini-cli"

// GeminiConfig mirrors IFlowConfig for the Gemini CLI backend.
type GeminiConfig struct {
	AppendPrompt AppendPrompt `json:"append_prompt,omitempty"`
	Yolo         bool         `json:"yolo,omitempty"`
	Model        string       `json:"model,omitempty"`
	Cmd          CmdOverrides `json:"cmd,omitempty"`
}

// Gemini launches the Gemini CLI as a protocol-speaking subprocess.
type Gemini struct {
	cfg       GeminiConfig
	harness   AgentHarness
	approvals ApprovalService
}

func NewGemini(cfg GeminiConfig, harness AgentHarness) *Gemini {
	return &Gemini{cfg: cfg, harness: harness}
}

func (e *Gemini) UseApprovals(approvals ApprovalService) {
	e.approvals = approvals
}

func (e *Gemini) commandBuilder() *CommandBuilder {
	b := NewCommandBuilder(geminiBaseCommand)
	if e.cfg.Yolo {
		b.ExtendParams("--yolo")
	}
	if e.cfg.Model != "" {
		b.ExtendParams("--model", e.cfg.Model)
	}
	b.ExtendParams("--experimental-acp")
	return ApplyOverrides(b, &e.cfg.Cmd)
}

func (e *Gemini) activeApprovals() ApprovalService {
	if e.cfg.Yolo {
		return nil
	}
	return e.approvals
}

func (e *Gemini) Spawn(ctx context.Context, workDir string, prompt string, env *ExecutionEnv) (*SpawnedChild, error) {
	cmd, err := e.commandBuilder().BuildInitial()
	if err != nil {
		return nil, err
	}
	combined := e.cfg.AppendPrompt.CombinePrompt(prompt)
	return e.harness.SpawnWithCommand(ctx, workDir, combined, cmd, env, &e.cfg.Cmd, e.activeApprovals())
}

func (e *Gemini) SpawnFollowUp(ctx context.Context, workDir string, prompt string, sessionID string, env *ExecutionEnv) (*SpawnedChild, error) {
	cmd, err := e.commandBuilder().BuildFollowUp(nil)
	if err != nil {
		return nil, err
	}
	combined := e.cfg.AppendPrompt.CombinePrompt(prompt)
	return e.harness.SpawnFollowUpWithCommand(ctx, workDir, combined, sessionID, cmd, env, &e.cfg.Cmd, e.activeApprovals())
}

func (e *Gemini) NormalizeLogs(store *msgstore.Store, worktreePath string) {
	e.harness.NormalizeLogs(store, worktreePath)
}

func (e *Gemini) DefaultMcpConfigPath() string {
	return expandHomePath("~/.gemini/settings.json")
}

func (e *Gemini) GetAvailabilityInfo() AvailabilityInfo {
	if anyFileExists("~/.gemini/settings.json", "~/.gemini/installation_id") {
		return InstallationFound
	}
	return NotFound
}

func (e *Gemini) Equal(other *Gemini) bool {
	if other == nil {
		return false
	}
	return e.cfg.AppendPrompt == other.cfg.AppendPrompt &&
		e.cfg.Yolo == other.cfg.Yolo &&
		e.cfg.Model == other.cfg.Model &&
		e.cfg.Cmd.Equal(other.cfg.Cmd)
}

func (e *Gemini) String() string {
	return fmt.Sprintf("Gemini{append_prompt:%q yolo:%t model:%q cmd:%+v}",
		string(e.cfg.AppendPrompt), e.cfg.Yolo, e.cfg.Model, e.cfg.Cmd)
}

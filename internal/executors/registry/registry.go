// Package registry builds configured executor instances and resolves them
// by name.
package registry

import (
	"fmt"
	"sort"

	"github.com/Drakaniia/vibe-kanban/internal/common/config"
	"github.com/Drakaniia/vibe-kanban/internal/common/logger"
	"github.com/Drakaniia/vibe-kanban/internal/executors"
	acpexec "github.com/Drakaniia/vibe-kanban/internal/executors/acp"
)

// Registry holds the executors declared in configuration, keyed by profile
// name. Instances are built once at startup and shared.
type Registry struct {
	defaultName string
	execs       map[string]executors.StandardCodingAgentExecutor
}

// New builds executors for every configured profile. Unknown profile kinds
// are a startup error.
func New(cfg config.ExecutorsConfig, log *logger.Logger) (*Registry, error) {
	harness := acpexec.NewHarness(log)

	r := &Registry{
		defaultName: cfg.Default,
		execs:       make(map[string]executors.StandardCodingAgentExecutor, len(cfg.Profiles)),
	}
	for name, profile := range cfg.Profiles {
		exec, err := buildExecutor(profile, harness)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		r.execs[name] = exec
	}
	if _, ok := r.execs[cfg.Default]; cfg.Default != "" && !ok {
		return nil, fmt.Errorf("default profile %q is not defined", cfg.Default)
	}
	return r, nil
}

func buildExecutor(p config.ExecutorProfile, harness executors.AgentHarness) (executors.StandardCodingAgentExecutor, error) {
	overrides := executors.CmdOverrides{
		BaseCommandOverride: p.BaseCommandOverride,
		AdditionalParams:    p.AdditionalParams,
		Env:                 p.Env,
	}
	switch p.Kind {
	case "iflow":
		return executors.NewIFlow(executors.IFlowConfig{
			AppendPrompt: executors.AppendPrompt(p.AppendPrompt),
			Yolo:         p.Yolo,
			Model:        p.Model,
			Cmd:          overrides,
		}, harness), nil
	case "gemini":
		return executors.NewGemini(executors.GeminiConfig{
			AppendPrompt: executors.AppendPrompt(p.AppendPrompt),
			Yolo:         p.Yolo,
			Model:        p.Model,
			Cmd:          overrides,
		}, harness), nil
	default:
		return nil, fmt.Errorf("unknown executor kind %q", p.Kind)
	}
}

// UseApprovals attaches the approval service to every registered executor.
// Yolo profiles ignore it and keep auto-approving.
func (r *Registry) UseApprovals(svc executors.ApprovalService) {
	for _, e := range r.execs {
		e.UseApprovals(svc)
	}
}

// Get resolves an executor by profile name.
func (r *Registry) Get(name string) (executors.StandardCodingAgentExecutor, bool) {
	e, ok := r.execs[name]
	return e, ok
}

// Default returns the configured default executor.
func (r *Registry) Default() (executors.StandardCodingAgentExecutor, bool) {
	return r.Get(r.defaultName)
}

// DefaultName returns the configured default profile name.
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// List returns the profile names in sorted order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.execs))
	for name := range r.execs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

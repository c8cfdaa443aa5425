package executors

import "strings"

// Command is an immutable command line: an executable plus its argument
// vector. Serialize to []string only at system boundaries (process exec,
// JSON DTOs).
type Command struct {
	program string
	args    []string
}

// Program returns the executable name or path.
func (c Command) Program() string { return c.program }

// Args returns a copy of the argument vector (without the program).
func (c Command) Args() []string {
	return append([]string{}, c.args...)
}

// Argv returns program plus args as a single slice for process exec.
func (c Command) Argv() []string {
	return append([]string{c.program}, c.args...)
}

// CmdOverrides are user-supplied adjustments applied on top of an adapter's
// base invocation. They are merged last, so they can supplement but never
// reorder the adapter-chosen flags.
type CmdOverrides struct {
	// BaseCommandOverride replaces the adapter's base invocation entirely
	// when non-empty.
	BaseCommandOverride string `json:"base_command_override,omitempty"`

	// AdditionalParams are appended after all adapter-chosen flags.
	AdditionalParams []string `json:"additional_params,omitempty"`

	// Env vars set for the spawned process, merged over the execution
	// environment.
	Env map[string]string `json:"env,omitempty"`
}

// Equal reports whether two override sets describe the same adjustments.
func (o CmdOverrides) Equal(other CmdOverrides) bool {
	if o.BaseCommandOverride != other.BaseCommandOverride {
		return false
	}
	if len(o.AdditionalParams) != len(other.AdditionalParams) {
		return false
	}
	for i, p := range o.AdditionalParams {
		if other.AdditionalParams[i] != p {
			return false
		}
	}
	if len(o.Env) != len(other.Env) {
		return false
	}
	for k, v := range o.Env {
		if other.Env[k] != v {
			return false
		}
	}
	return true
}

// CommandBuilder assembles a command line in stages: a fixed base invocation,
// adapter-chosen parameters appended in call order, then user overrides
// applied last. Finalize with BuildInitial or BuildFollowUp.
type CommandBuilder struct {
	base      string
	params    []string
	overrides *CmdOverrides
}

// NewCommandBuilder creates a builder seeded with a base invocation,
// e.g. "npx -y @qwen-code/iflow@latest".
func NewCommandBuilder(baseInvocation string) *CommandBuilder {
	return &CommandBuilder{base: baseInvocation}
}

// ExtendParams appends arguments in call order. Multiple calls append
// cumulatively, never replace.
func (b *CommandBuilder) ExtendParams(params ...string) *CommandBuilder {
	b.params = append(b.params, params...)
	return b
}

// ApplyOverrides records the user override set. Overrides are merged during
// finalization, after all ExtendParams calls, so base ordering stays fixed.
func ApplyOverrides(b *CommandBuilder, overrides *CmdOverrides) *CommandBuilder {
	b.overrides = overrides
	return b
}

// BuildInitial finalizes the command for starting a brand-new session.
func (b *CommandBuilder) BuildInitial() (Command, error) {
	return b.build(nil)
}

// BuildFollowUp finalizes the command for resuming a session, accepting
// backend-specific resume arguments. Most ACP backends need none: resumption
// is mediated by the protocol layer, not argv.
func (b *CommandBuilder) BuildFollowUp(extraArgs []string) (Command, error) {
	return b.build(extraArgs)
}

func (b *CommandBuilder) build(extraArgs []string) (Command, error) {
	base := b.base
	if b.overrides != nil && b.overrides.BaseCommandOverride != "" {
		base = b.overrides.BaseCommandOverride
	}

	tokens := strings.Fields(base)
	if len(tokens) == 0 {
		return Command{}, newConstructionError("base command is empty")
	}

	args := append([]string{}, tokens[1:]...)
	args = append(args, b.params...)
	args = append(args, extraArgs...)
	if b.overrides != nil {
		args = append(args, b.overrides.AdditionalParams...)
	}

	return Command{program: tokens[0], args: args}, nil
}

package executors

// AppendPrompt is an optional text fragment composed with every
// caller-supplied prompt. The fragment position is fixed by the adapter,
// not the caller.
type AppendPrompt string

// CombinePrompt returns the base prompt followed by the configured fragment,
// joined by a blank line. With an empty fragment the base prompt is returned
// unchanged. Pure and deterministic.
func (p AppendPrompt) CombinePrompt(base string) string {
	if p == "" {
		return base
	}
	return base + "\n\n" + string(p)
}

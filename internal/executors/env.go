package executors

import (
	"fmt"
	"os"
	"sort"
)

// ExecutionEnv supplies the runtime environment for a spawned agent process.
// Read-only to this layer.
type ExecutionEnv struct {
	// Vars are merged over the parent process environment; later sources win.
	Vars map[string]string `json:"vars,omitempty"`
}

// Environ renders the environment for process exec: the parent environment
// followed by Vars and then extra, in sorted key order so output is
// deterministic.
func (e *ExecutionEnv) Environ(extra map[string]string) []string {
	environ := os.Environ()

	merged := map[string]string{}
	if e != nil {
		for k, v := range e.Vars {
			merged[k] = v
		}
	}
	for k, v := range extra {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		environ = append(environ, fmt.Sprintf("%s=%s", k, merged[k]))
	}
	return environ
}

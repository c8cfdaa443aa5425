package executors

import "fmt"

// ConstructionError reports an invalid or conflicting set of command
// overrides. It is raised synchronously while finalizing a command and is
// never retried.
type ConstructionError struct {
	Reason string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("command construction failed: %s", e.Reason)
}

func newConstructionError(format string, args ...any) *ConstructionError {
	return &ConstructionError{Reason: fmt.Sprintf(format, args...)}
}

// SpawnError reports a process-creation or protocol-handshake failure. The
// underlying collaborator error is wrapped unchanged; this layer adds no
// retry policy.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn failed: %v", e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// NewSpawnError wraps a collaborator failure as a SpawnError.
func NewSpawnError(err error) *SpawnError {
	return &SpawnError{Err: err}
}

// UnknownSessionError reports a follow-up spawn that referenced a session id
// the backend does not recognize. Fatal for that call; not retried here.
type UnknownSessionError struct {
	SessionID string
	Err       error
}

func (e *UnknownSessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unknown session %q: %v", e.SessionID, e.Err)
	}
	return fmt.Sprintf("unknown session %q", e.SessionID)
}

func (e *UnknownSessionError) Unwrap() error {
	return e.Err
}

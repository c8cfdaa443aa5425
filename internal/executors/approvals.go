package executors

import "context"

// ApprovalRequest describes one tool-use action an agent process wants to
// perform, together with the choices the backend offers for it.
type ApprovalRequest struct {
	SessionID  string           `json:"session_id"`
	ToolCallID string           `json:"tool_call_id"`
	Title      string           `json:"title"`
	Kind       string           `json:"kind,omitempty"`
	Options    []ApprovalOption `json:"options"`
}

// ApprovalOption is one selectable outcome for an approval request.
type ApprovalOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"` // allow_once, allow_always, reject_once, reject_always
}

// ApprovalDecision is the outcome of mediating one approval request.
type ApprovalDecision struct {
	Approved bool
	// OptionID is the selected option when Approved; ignored otherwise.
	OptionID string
}

// ApprovalService mediates tool-use requests from running agent processes.
// One service may be shared by multiple concurrent sessions and must be safe
// to invoke concurrently. The executor layer treats it as read-only after
// injection.
type ApprovalService interface {
	Decide(ctx context.Context, req ApprovalRequest) (ApprovalDecision, error)
}

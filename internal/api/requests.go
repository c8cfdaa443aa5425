package api

// SpawnSessionRequest starts a new executor session.
type SpawnSessionRequest struct {
	Executor string            `json:"executor"`
	WorkDir  string            `json:"work_dir" binding:"required"`
	Prompt   string            `json:"prompt" binding:"required"`
	Env      map[string]string `json:"env"`
}

// FollowUpRequest sends a follow-up prompt to an existing session.
type FollowUpRequest struct {
	Prompt string            `json:"prompt" binding:"required"`
	Env    map[string]string `json:"env"`
}

// ResolveApprovalRequest answers a pending tool-use approval.
type ResolveApprovalRequest struct {
	Approved bool   `json:"approved"`
	OptionID string `json:"option_id"`
}

// ExecutorResponse describes one configured executor profile.
type ExecutorResponse struct {
	Name         string `json:"name"`
	Availability string `json:"availability"`
	Default      bool   `json:"default"`
}

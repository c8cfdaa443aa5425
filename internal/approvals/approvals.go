// Package approvals mediates tool-use permission requests from running
// agent sessions. A request parks here until an operator resolves it over
// the API, or until it times out.
package approvals

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Drakaniia/vibe-kanban/internal/common/errors"
	"github.com/Drakaniia/vibe-kanban/internal/common/logger"
	"github.com/Drakaniia/vibe-kanban/internal/events/bus"
	"github.com/Drakaniia/vibe-kanban/internal/executors"
)

const eventSource = "executor-service"

// Event subjects published on the bus.
const (
	SubjectApprovalRequested = "executor.approval.requested"
	SubjectApprovalResolved  = "executor.approval.resolved"
)

// Pending is one approval request awaiting a decision.
type Pending struct {
	ID          string                     `json:"id"`
	SessionID   string                     `json:"session_id"`
	ToolCallID  string                     `json:"tool_call_id"`
	Title       string                     `json:"title"`
	Kind        string                     `json:"kind,omitempty"`
	Options     []executors.ApprovalOption `json:"options"`
	RequestedAt time.Time                  `json:"requested_at"`

	decided chan executors.ApprovalDecision
}

// Service implements executors.ApprovalService. Decide blocks the calling
// agent turn until Resolve supplies a decision; an unresolved request is
// denied when the timeout elapses.
type Service struct {
	bus     bus.EventBus
	logger  *logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*Pending
}

// NewService builds an approval service. A zero timeout means requests wait
// until the session is cancelled.
func NewService(eventBus bus.EventBus, log *logger.Logger, timeout time.Duration) *Service {
	return &Service{
		bus:     eventBus,
		logger:  log.WithFields(zap.String("component", "approvals")),
		timeout: timeout,
		pending: make(map[string]*Pending),
	}
}

// Decide parks the request and waits for a Resolve call. A timeout or a
// cancelled context returns an error, which callers surface as a denial.
func (s *Service) Decide(ctx context.Context, req executors.ApprovalRequest) (executors.ApprovalDecision, error) {
	p := &Pending{
		ID:          uuid.NewString(),
		SessionID:   req.SessionID,
		ToolCallID:  req.ToolCallID,
		Title:       req.Title,
		Kind:        req.Kind,
		Options:     req.Options,
		RequestedAt: time.Now().UTC(),
		decided:     make(chan executors.ApprovalDecision, 1),
	}

	s.mu.Lock()
	s.pending[p.ID] = p
	s.mu.Unlock()
	defer s.remove(p.ID)

	s.logger.Info("approval requested",
		zap.String("approval_id", p.ID),
		zap.String("session_id", p.SessionID),
		zap.String("tool_call_id", p.ToolCallID),
		zap.String("title", p.Title))
	s.publish(ctx, SubjectApprovalRequested, map[string]interface{}{
		"approval_id":  p.ID,
		"session_id":   p.SessionID,
		"tool_call_id": p.ToolCallID,
		"title":        p.Title,
		"kind":         p.Kind,
	})

	var timeoutC <-chan time.Time
	if s.timeout > 0 {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case d := <-p.decided:
		s.publish(ctx, SubjectApprovalResolved, map[string]interface{}{
			"approval_id": p.ID,
			"session_id":  p.SessionID,
			"approved":    d.Approved,
			"option_id":   d.OptionID,
		})
		return d, nil
	case <-timeoutC:
		return executors.ApprovalDecision{}, fmt.Errorf("approval %s timed out after %v", p.ID, s.timeout)
	case <-ctx.Done():
		return executors.ApprovalDecision{}, ctx.Err()
	}
}

// Resolve delivers an operator decision to a parked request.
func (s *Service) Resolve(id string, decision executors.ApprovalDecision) error {
	s.mu.Lock()
	p, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if !ok {
		return errors.NotFound("approval", id)
	}

	s.logger.Info("approval resolved",
		zap.String("approval_id", id),
		zap.Bool("approved", decision.Approved),
		zap.String("option_id", decision.OptionID))
	p.decided <- decision
	return nil
}

// Pending lists parked requests, oldest first.
func (s *Service) Pending() []*Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Pending, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out
}

func (s *Service) remove(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *Service) publish(ctx context.Context, subject string, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	event := bus.NewEvent(subject, eventSource, data)
	if err := s.bus.Publish(ctx, subject, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

package api

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Drakaniia/vibe-kanban/internal/approvals"
	"github.com/Drakaniia/vibe-kanban/internal/common/errors"
	"github.com/Drakaniia/vibe-kanban/internal/common/logger"
	"github.com/Drakaniia/vibe-kanban/internal/events/bus"
	"github.com/Drakaniia/vibe-kanban/internal/executors"
	"github.com/Drakaniia/vibe-kanban/internal/executors/registry"
	"github.com/Drakaniia/vibe-kanban/internal/sessions"
)

// Handler contains the HTTP handlers for the executor service API.
type Handler struct {
	registry  *registry.Registry
	sessions  *sessions.Manager
	approvals *approvals.Service
	bus       bus.EventBus
	logger    *logger.Logger
}

func NewHandler(reg *registry.Registry, mgr *sessions.Manager, appr *approvals.Service, eventBus bus.EventBus, log *logger.Logger) *Handler {
	return &Handler{
		registry:  reg,
		sessions:  mgr,
		approvals: appr,
		bus:       eventBus,
		logger:    log.WithFields(zap.String("component", "api")),
	}
}

// ListExecutors lists configured executor profiles with availability.
// GET /api/v1/executors
func (h *Handler) ListExecutors(c *gin.Context) {
	names := h.registry.List()
	out := make([]ExecutorResponse, 0, len(names))
	for _, name := range names {
		exec, _ := h.registry.Get(name)
		out = append(out, ExecutorResponse{
			Name:         name,
			Availability: string(exec.GetAvailabilityInfo()),
			Default:      name == h.registry.DefaultName(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"executors": out})
}

// GetExecutorAvailability probes one executor.
// GET /api/v1/executors/:name/availability
func (h *Handler) GetExecutorAvailability(c *gin.Context) {
	name := c.Param("name")
	exec, ok := h.registry.Get(name)
	if !ok {
		appErr := errors.NotFound("executor", name)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":         name,
		"availability": string(exec.GetAvailabilityInfo()),
	})
}

// SpawnSession starts a new executor session.
// POST /api/v1/sessions
func (h *Handler) SpawnSession(c *gin.Context) {
	var req SpawnSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.BadRequest("invalid request body: " + err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	var env *executors.ExecutionEnv
	if len(req.Env) > 0 {
		env = &executors.ExecutionEnv{Vars: req.Env}
	}

	session, err := h.sessions.Spawn(c.Request.Context(), req.Executor, req.WorkDir, req.Prompt, env)
	if err != nil {
		h.logger.Error("failed to spawn session", zap.Error(err))
		c.JSON(spawnErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, session)
}

// FollowUpSession resumes a session with a new prompt.
// POST /api/v1/sessions/:id/follow-up
func (h *Handler) FollowUpSession(c *gin.Context) {
	id := c.Param("id")

	var req FollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.BadRequest("invalid request body: " + err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	var env *executors.ExecutionEnv
	if len(req.Env) > 0 {
		env = &executors.ExecutionEnv{Vars: req.Env}
	}

	session, err := h.sessions.FollowUp(c.Request.Context(), id, req.Prompt, env)
	if err != nil {
		h.logger.Error("failed to resume session", zap.String("session_id", id), zap.Error(err))
		c.JSON(spawnErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, session)
}

// ListSessions lists tracked sessions.
// GET /api/v1/sessions
func (h *Handler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.sessions.List()})
}

// GetSession returns one tracked session.
// GET /api/v1/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	id := c.Param("id")
	session, ok := h.sessions.Get(id)
	if !ok {
		appErr := errors.NotFound("session", id)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetSessionLogs returns the normalized log of a session.
// GET /api/v1/sessions/:id/logs
func (h *Handler) GetSessionLogs(c *gin.Context) {
	id := c.Param("id")
	entries, err := h.sessions.Logs(id)
	if err != nil {
		appErr := errors.NotFound("session", id)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// StopSession kills a session's agent process.
// DELETE /api/v1/sessions/:id
func (h *Handler) StopSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Stop(id); err != nil {
		appErr := errors.NotFound("session", id)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session stopped"})
}

// ListApprovals lists tool-use requests awaiting an operator decision.
// GET /api/v1/approvals
func (h *Handler) ListApprovals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"approvals": h.approvals.Pending()})
}

// ResolveApproval answers a pending tool-use request. The blocked agent
// turn resumes with the decision.
// POST /api/v1/approvals/:id
func (h *Handler) ResolveApproval(c *gin.Context) {
	id := c.Param("id")

	var req ResolveApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := errors.BadRequest("invalid request body: " + err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	err := h.approvals.Resolve(id, executors.ApprovalDecision{
		Approved: req.Approved,
		OptionID: req.OptionID,
	})
	if err != nil {
		if errors.IsNotFound(err) {
			c.JSON(errors.GetHTTPStatus(err), err)
			return
		}
		appErr := errors.InternalError("failed to resolve approval", err)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "approval resolved"})
}

// StreamEvents streams this service's bus events as server-sent events.
// GET /api/v1/events
func (h *Handler) StreamEvents(c *gin.Context) {
	events := make(chan *bus.Event, 64)
	sub, err := h.bus.Subscribe("executor.>", func(ctx context.Context, e *bus.Event) error {
		// A slow consumer drops events rather than stalling publishers.
		select {
		case events <- e:
		default:
		}
		return nil
	})
	if err != nil {
		appErr := errors.InternalError("failed to subscribe to events", err)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case e := <-events:
			c.SSEvent(e.Type, e)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// spawnErrorStatus maps executor errors to HTTP statuses. Errors may arrive
// wrapped, so matching goes through errors.As.
func spawnErrorStatus(err error) int {
	var (
		constructionErr *executors.ConstructionError
		unknownSession  *executors.UnknownSessionError
		spawnErr        *executors.SpawnError
		appErr          *errors.AppError
	)
	switch {
	case stderrors.As(err, &constructionErr):
		return http.StatusBadRequest
	case stderrors.As(err, &unknownSession):
		return http.StatusNotFound
	case stderrors.As(err, &spawnErr):
		return http.StatusBadGateway
	case stderrors.As(err, &appErr):
		return appErr.HTTPStatus
	default:
		return http.StatusInternalServerError
	}
}

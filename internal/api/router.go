package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Drakaniia/vibe-kanban/internal/approvals"
	"github.com/Drakaniia/vibe-kanban/internal/common/logger"
	"github.com/Drakaniia/vibe-kanban/internal/events/bus"
	"github.com/Drakaniia/vibe-kanban/internal/executors/registry"
	"github.com/Drakaniia/vibe-kanban/internal/sessions"
)

// SetupRoutes configures the executor service API routes.
// router should be the /api/v1 group.
func SetupRoutes(router *gin.RouterGroup, reg *registry.Registry, mgr *sessions.Manager, appr *approvals.Service, eventBus bus.EventBus, log *logger.Logger) {
	handler := NewHandler(reg, mgr, appr, eventBus, log)

	execs := router.Group("/executors")
	{
		execs.GET("", handler.ListExecutors)
		execs.GET("/:name/availability", handler.GetExecutorAvailability)
	}

	sess := router.Group("/sessions")
	{
		sess.GET("", handler.ListSessions)
		sess.POST("", handler.SpawnSession)
		sess.GET("/:id", handler.GetSession)
		sess.GET("/:id/logs", handler.GetSessionLogs)
		sess.POST("/:id/follow-up", handler.FollowUpSession)
		sess.DELETE("/:id", handler.StopSession)
	}

	appro := router.Group("/approvals")
	{
		appro.GET("", handler.ListApprovals)
		appro.POST("/:id", handler.ResolveApproval)
	}

	router.GET("/events", handler.StreamEvents)
}

// Package routes wires the handlers package's Echo handlers onto
// paths, the way the teacher's cmd/orchestrator/routes registers its
// own handlers against a service container.
package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/ipvm-wg/homestar/cmd/homestar/handlers"
	"github.com/ipvm-wg/homestar/internal/bootstrap"
)

// Register attaches every homestar HTTP route to e. Workflow routes
// are only registered when the node has a Runner (i.e. a durable
// store is configured); a local-only/no-DB node still answers health
// checks.
func Register(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", handlers.NewHealthHandler(components).Check)

	if components.Runner == nil {
		return
	}

	workflowHandler := handlers.NewWorkflowHandler(components.Runner, components.Logger)
	notificationHandler := handlers.NewNotificationHandler(workflowHandler)

	workflows := e.Group("/v1/workflows")
	workflows.POST("", workflowHandler.Submit)
	workflows.POST("/:cid/retry", workflowHandler.Retry)
	workflows.GET("/notifications", notificationHandler.Stream)
}

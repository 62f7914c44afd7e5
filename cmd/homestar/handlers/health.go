package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ipvm-wg/homestar/internal/bootstrap"
)

// HealthHandler reports the durable store's reachability.
type HealthHandler struct {
	components *bootstrap.Components
}

func NewHealthHandler(components *bootstrap.Components) *HealthHandler {
	return &HealthHandler{components: components}
}

// Check answers the node's liveness/readiness.
//
// GET /health
func (h *HealthHandler) Check(c echo.Context) error {
	if err := h.components.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.components.Config.Service.Name,
	})
}

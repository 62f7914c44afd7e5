package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ipvm-wg/homestar/internal/runner"
)

// NotificationHandler streams the §6 receipt-notification RPC
// boundary over Server-Sent Events, the Echo-idiomatic equivalent of
// the full JSON-RPC/WebSocket push channel that remains out of scope.
type NotificationHandler struct {
	*WorkflowHandler
}

// NewNotificationHandler wraps an existing WorkflowHandler, reusing
// its Runner and logger.
func NewNotificationHandler(h *WorkflowHandler) *NotificationHandler {
	return &NotificationHandler{WorkflowHandler: h}
}

// Stream subscribes the connection to every workflow's task-completion
// notifications until the client disconnects.
//
// GET /v1/workflows/notifications
func (h *NotificationHandler) Stream(c echo.Context) error {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	ch := make(chan runner.WorkflowNotification, 16)
	unsubscribe := h.runner.Subscribe(ch)
	defer unsubscribe()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-ch:
			data, err := json.Marshal(n)
			if err != nil {
				h.log.Error("failed to encode notification for stream", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(resp, "data: %s\n\n", data); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}

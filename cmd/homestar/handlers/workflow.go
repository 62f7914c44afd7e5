// Package handlers implements the minimal inbound HTTP surface named
// in spec.md §6: workflow submission, retry, the receipt-notification
// stream, and health — not the full JSON-RPC/WebSocket client API,
// which remains out of scope.
package handlers

import (
	"io"
	"net/http"

	"github.com/ipfs/go-cid"
	"github.com/labstack/echo/v4"

	"github.com/ipvm-wg/homestar/internal/logging"
	"github.com/ipvm-wg/homestar/internal/runner"
	"github.com/ipvm-wg/homestar/internal/workflow"
)

// WorkflowHandler exposes the Runner's Submit/Retry/Subscribe
// operations over HTTP.
type WorkflowHandler struct {
	runner *runner.Runner
	log    *logging.Logger
}

// NewWorkflowHandler creates a workflow handler bound to a running node's Runner.
func NewWorkflowHandler(r *runner.Runner, log *logging.Logger) *WorkflowHandler {
	return &WorkflowHandler{runner: r, log: log}
}

// Submit decodes a §6 workflow-submission body and dispatches it.
//
// POST /v1/workflows
func (h *WorkflowHandler) Submit(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	wf, err := workflow.ParseSubmission(body)
	if err != nil {
		h.log.Warn("rejected malformed workflow submission", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(wf.Tasks) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "workflow must have at least one task")
	}

	wfCID, err := h.runner.Submit(c.Request().Context(), wf)
	if err != nil {
		h.log.Error("failed to submit workflow", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to submit workflow")
	}

	h.log.Info("workflow submitted", "workflow_cid", wfCID.String(), "num_tasks", wf.NumTasks())

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"workflow_cid": wfCID.String(),
		"num_tasks":    wf.NumTasks(),
	})
}

// Retry re-dispatches a workflow this runner previously accepted and
// which a worker has since marked Stuck.
//
// POST /v1/workflows/:cid/retry
func (h *WorkflowHandler) Retry(c echo.Context) error {
	wfCIDStr := c.Param("cid")
	if _, err := cid.Decode(wfCIDStr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid workflow cid")
	}

	if err := h.runner.Retry(c.Request().Context(), wfCIDStr); err != nil {
		h.log.Warn("retry rejected", "workflow_cid", wfCIDStr, "error", err)
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"workflow_cid": wfCIDStr,
		"status":       "retrying",
	})
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

const (
	maxArgsBytes     = 64 * 1024
	defaultCallsPage = 20
)

// ToolHandler exposes the cart toolbox over HTTP.
type ToolHandler struct {
	tools   *usecase.Toolbox
	summary usecase.CartSummaryCache // optional
	timeout time.Duration
}

func NewToolHandler(tools *usecase.Toolbox, summary usecase.CartSummaryCache) *ToolHandler {
	return &ToolHandler{tools: tools, summary: summary, timeout: 5 * time.Second}
}

type callView struct {
	ID         string          `json:"id"`
	Tool       string          `json:"tool"`
	Args       json.RawMessage `json:"args"`
	Status     string          `json:"status"`
	DurationMs int64           `json:"durationMs"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// GET /v1/tools
func (h *ToolHandler) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.tools.Tools()})
}

// POST /v1/sessions
func (h *ToolHandler) OpenSession(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	id, err := h.tools.OpenSession(ctx)
	if err != nil {
		logging.From(c).Error("open session failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

// DELETE /v1/sessions/:id
func (h *ToolHandler) CloseSession(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	err := h.tools.CloseSession(ctx, c.Param("id"))
	switch {
	case errors.Is(err, usecase.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case err != nil:
		logging.From(c).Error("close session failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
	default:
		c.Status(http.StatusNoContent)
	}
}

// POST /v1/sessions/:id/tools/:name
// Body is the tool's JSON arguments; an empty body means no arguments.
func (h *ToolHandler) CallTool(c *gin.Context) {
	name := c.Param("name")
	if _, ok := h.tools.Tool(name); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_tool", "tool": name})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxArgsBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	if len(raw) > maxArgsBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "arguments_too_large"})
		return
	}
	if len(raw) > 0 && !json.Valid(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "detail": "arguments must be JSON"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.tools.Call(ctx, c.Param("id"), name, raw)
	if err != nil {
		logging.From(c).Error("tool call failed", "tool", name, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /v1/sessions/:id/calls?limit=N
func (h *ToolHandler) ListCalls(c *gin.Context) {
	limit := defaultCallsPage
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "detail": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	recs, err := h.tools.Calls(ctx, c.Param("id"), limit)
	if err != nil {
		logging.From(c).Error("list calls failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	out := make([]callView, 0, len(recs))
	for _, r := range recs {
		args := json.RawMessage(r.ArgsJSON)
		if !json.Valid(args) {
			b, _ := json.Marshal(r.ArgsJSON)
			args = b
		}
		out = append(out, callView{
			ID:         r.ID,
			Tool:       r.Tool,
			Args:       args,
			Status:     r.Status,
			DurationMs: r.DurationMs,
			CreatedAt:  r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("id"), "calls": out})
}

// GET /v1/sessions/:id/summary
func (h *ToolHandler) Summary(c *gin.Context) {
	if h.summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	ev, ok, err := h.summary.GetSummary(ctx, c.Param("id"))
	if err != nil {
		logging.From(c).Error("summary lookup failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, ev)
}

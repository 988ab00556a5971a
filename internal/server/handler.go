// Package server exposes the completion adapter and the agent over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/mem0-azure-go/internal/history"
	"github.com/comigor/mem0-azure-go/internal/llm"
)

// Generator produces a completion for a message list.
type Generator interface {
	GenerateResponse(ctx context.Context, messages []llm.Message) (string, error)
}

// Processor answers a user request within a session.
type Processor interface {
	Process(ctx context.Context, sessionID, request string) (string, error)
}

// Handler serves the HTTP API.
type Handler struct {
	gen    Generator
	agent  Processor
	logger *slog.Logger
}

// HandlerOption is a functional option for configuring Handler.
type HandlerOption func(*Handler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithAgent enables POST /v1/chat.
func WithAgent(p Processor) HandlerOption {
	return func(h *Handler) {
		h.agent = p
	}
}

// NewHandler creates a new Handler.
func NewHandler(gen Generator, opts ...HandlerOption) *Handler {
	h := &Handler{
		gen:    gen,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GenerateRequest is the body of POST /v1/generate.
type GenerateRequest struct {
	Messages []llm.Message `json:"messages"`
}

// GenerateResponse is returned by POST /v1/generate.
type GenerateResponse struct {
	Content string `json:"content"`
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is returned by POST /v1/chat.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// HandleGenerate handles POST /v1/generate
func (h *Handler) HandleGenerate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", "Invalid request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", "messages array is required")
		return
	}
	for _, m := range req.Messages {
		if m.Role == "" {
			h.sendError(c, http.StatusBadRequest, "invalid_request_error", "every message needs a role")
			return
		}
	}

	content, err := h.gen.GenerateResponse(c.Request.Context(), req.Messages)
	if err != nil {
		h.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenerateResponse{Content: content})
}

// HandleChat handles POST /v1/chat
func (h *Handler) HandleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", "Invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", "message is required")
		return
	}
	switch {
	case req.SessionID == "":
		req.SessionID = history.NewSessionID()
	case !history.ValidSessionID(req.SessionID):
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", "session_id must be a UUID")
		return
	}
	c.Set("session_id", req.SessionID)

	content, err := h.agent.Process(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		h.upstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, ChatResponse{SessionID: req.SessionID, Content: content})
}

// HandleHealth handles GET /healthz
func (h *Handler) HandleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// upstreamError reports a completion failure. Vendor API errors keep their
// status code and message; anything else is a bad gateway.
func (h *Handler) upstreamError(c *gin.Context, err error) {
	h.logger.Error("completion failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 {
		h.sendError(c, apiErr.HTTPStatusCode, "upstream_error", apiErr.Message)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		h.sendError(c, http.StatusGatewayTimeout, "upstream_error", "completion timed out")
		return
	}
	h.sendError(c, http.StatusBadGateway, "upstream_error", err.Error())
}

// sendError sends an error response in OpenAI-compatible format.
func (h *Handler) sendError(c *gin.Context, status int, errType, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"message": message,
			"type":    errType,
		},
	})
}

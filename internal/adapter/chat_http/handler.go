// Package chat_http exposes the chat service over HTTP. Answers stream to
// the client as server-sent events carrying cumulative partial answers.
package chat_http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"kb-chatbot/internal/infra/logger"
	"kb-chatbot/internal/usecase"
)

// Handler serves the chat API.
type Handler struct {
	chatTurn usecase.ChatTurnUsecase
	ready    func(ctx context.Context) error
	logger   *slog.Logger
}

// NewHandler creates the HTTP handler. ready reports whether the index is
// available; it backs the readiness probe.
func NewHandler(chatTurn usecase.ChatTurnUsecase, ready func(ctx context.Context) error, logger *slog.Logger) *Handler {
	return &Handler{
		chatTurn: chatTurn,
		ready:    ready,
		logger:   logger,
	}
}

// RegisterRoutes attaches the API routes to the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.handleHealth)
	e.GET("/readyz", h.handleReady)

	v1 := e.Group("/v1")
	v1.POST("/sessions", h.handleCreateSession)
	v1.POST("/chat", h.handleChat)
	v1.POST("/chat/stream", h.handleChatStream)
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type createSessionResponse struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

type chatRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Question       string `json:"question"`
}

type chatResponse struct {
	Answer   string       `json:"answer"`
	Fallback bool         `json:"fallback"`
	Sources  []chatSource `json:"sources,omitempty"`
}

type chatSource struct {
	Source string  `json:"source"`
	Page   int     `json:"page"`
	Score  float32 `json:"score"`
}

type streamDelta struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReady(c echo.Context) error {
	if err := h.ready(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// handleCreateSession mints a new conversation id. A missing user id gets
// minted too, so anonymous clients work out of the box.
func (h *Handler) handleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = uuid.NewString()
	}

	resp := createSessionResponse{
		UserID:         userID,
		ConversationID: uuid.NewString(),
	}
	h.logger.Info("session_created",
		slog.String("user_id", resp.UserID),
		slog.String("conversation_id", resp.ConversationID))
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) bindChatRequest(c echo.Context) (*chatRequest, error) {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return nil, c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, c.JSON(http.StatusBadRequest, errorResponse{Error: "question is required"})
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		return nil, c.JSON(http.StatusBadRequest, errorResponse{Error: "conversation_id is required"})
	}
	return &req, nil
}

// handleChat answers in one shot, without streaming.
func (h *Handler) handleChat(c echo.Context) error {
	req, err := h.bindChatRequest(c)
	if req == nil {
		return err
	}

	ctx := logger.WithRequestID(c.Request().Context(), uuid.NewString())
	output, err := h.chatTurn.Execute(ctx, usecase.ChatTurnInput{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Question:       req.Question,
	})
	if err != nil {
		h.logger.Error("chat_turn_failed", slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "chat turn failed"})
	}

	return c.JSON(http.StatusOK, toChatResponse(output))
}

// handleChatStream replays the answer as SSE events. Every data payload is
// the cumulative answer so far; the done event carries the final response.
func (h *Handler) handleChatStream(c echo.Context) error {
	req, err := h.bindChatRequest(c)
	if req == nil {
		return err
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	flusher, canFlush := c.Response().Writer.(http.Flusher)
	if !canFlush {
		h.logger.Error("response writer does not support flushing")
		return nil
	}

	ctx := logger.WithRequestID(c.Request().Context(), uuid.NewString())
	events := h.chatTurn.Stream(ctx, usecase.ChatTurnInput{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Question:       req.Question,
	})

	for event := range events {
		switch event.Kind {
		case usecase.StreamEventKindDelta:
			partial, _ := event.Payload.(string)
			if !h.writeSSE(c, flusher, "", streamDelta{Answer: partial}) {
				return nil
			}
		case usecase.StreamEventKindDone:
			output, ok := event.Payload.(*usecase.ChatTurnOutput)
			if !ok {
				continue
			}
			h.writeSSE(c, flusher, "done", toChatResponse(output))
			return nil
		case usecase.StreamEventKindError:
			reason, _ := event.Payload.(string)
			h.logger.Warn("chat_stream_error", slog.String("reason", reason))
			h.writeSSE(c, flusher, "error", errorResponse{Error: reason})
			return nil
		}
	}

	h.logger.Info("chat_stream_closed", slog.String("conversation_id", req.ConversationID))
	return nil
}

// writeSSE writes one SSE frame and reports whether the client is still
// there.
func (h *Handler) writeSSE(c echo.Context, flusher http.Flusher, event string, payload interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("sse_marshal_failed", slog.String("error", err.Error()))
		return false
	}

	var frame strings.Builder
	if event != "" {
		frame.WriteString("event: ")
		frame.WriteString(event)
		frame.WriteString("\n")
	}
	frame.WriteString("data: ")
	frame.Write(data)
	frame.WriteString("\n\n")

	if _, err := c.Response().Write([]byte(frame.String())); err != nil {
		h.logger.Info("client_disconnected", slog.String("error", err.Error()))
		return false
	}
	flusher.Flush()
	return true
}

func toChatResponse(output *usecase.ChatTurnOutput) chatResponse {
	resp := chatResponse{
		Answer:   output.Answer,
		Fallback: output.Fallback,
	}
	for _, ctx := range output.Contexts {
		resp.Sources = append(resp.Sources, chatSource{
			Source: ctx.Source,
			Page:   ctx.Page,
			Score:  ctx.Score,
		})
	}
	return resp
}

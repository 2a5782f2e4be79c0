package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/errcode"
	"github.com/abundance-ai/abundance/internal/pkg/response"
	"github.com/abundance-ai/abundance/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type completionRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

func (h *ChatHandler) Completion(c *gin.Context) {
	var req completionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	result, err := h.chat.SendMessage(c.Request.Context(), mustUser(c), req.SessionID, req.Message)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

type createSessionRequest struct {
	Title string `json:"title"`
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	session, err := h.chat.CreateSession(c.Request.Context(), mustUser(c), req.Title)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, session)
}

type sessionListResponse struct {
	Sessions []*model.ChatSession `json:"sessions"`
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	limit, offset := pageParams(c)
	sessions, err := h.chat.ListSessions(c.Request.Context(), mustUser(c).ID, limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, sessionListResponse{Sessions: sessions})
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	session, err := h.chat.GetSession(c.Request.Context(), mustUser(c), c.Param("session_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, session)
}

type updateSessionRequest struct {
	Title    *string `json:"title"`
	Archived *bool   `json:"archived"`
}

func (h *ChatHandler) UpdateSession(c *gin.Context) {
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	session, err := h.chat.UpdateSession(c.Request.Context(), mustUser(c), c.Param("session_id"), req.Title, req.Archived)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, session)
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	if err := h.chat.DeleteSession(c.Request.Context(), mustUser(c), c.Param("session_id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c)
}

type messageListResponse struct {
	Messages []*model.Message `json:"messages"`
}

func (h *ChatHandler) History(c *gin.Context) {
	limit, offset := pageParams(c)
	messages, err := h.chat.History(c.Request.Context(), mustUser(c), c.Param("session_id"), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, messageListResponse{Messages: messages})
}

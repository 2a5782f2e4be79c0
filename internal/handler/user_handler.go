package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/errcode"
	"github.com/abundance-ai/abundance/internal/pkg/response"
	"github.com/abundance-ai/abundance/internal/service"
)

type UserHandler struct {
	users  *service.UserService
	tokens *service.TokenService
}

func NewUserHandler(users *service.UserService, tokens *service.TokenService) *UserHandler {
	return &UserHandler{users: users, tokens: tokens}
}

func (h *UserHandler) Me(c *gin.Context) {
	response.Success(c, mustUser(c))
}

type updateProfileRequest struct {
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), mustUser(c).ID, req.FullName, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, user)
}

type balanceResponse struct {
	TokensRemaining int64 `json:"tokens_remaining"`
}

func (h *UserHandler) Balance(c *gin.Context) {
	balance, err := h.tokens.Balance(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, balanceResponse{TokensRemaining: balance})
}

type usageHistoryResponse struct {
	Entries []*model.UsageLogEntry `json:"entries"`
}

func (h *UserHandler) Usage(c *gin.Context) {
	limit, offset := pageParams(c)
	entries, err := h.tokens.History(c.Request.Context(), mustUser(c).ID, limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, usageHistoryResponse{Entries: entries})
}

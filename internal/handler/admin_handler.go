package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/errcode"
	"github.com/abundance-ai/abundance/internal/pkg/response"
	"github.com/abundance-ai/abundance/internal/repo"
	"github.com/abundance-ai/abundance/internal/service"
)

type AdminHandler struct {
	users  *service.UserService
	tokens *service.TokenService
}

func NewAdminHandler(users *service.UserService, tokens *service.TokenService) *AdminHandler {
	return &AdminHandler{users: users, tokens: tokens}
}

type userListResponse struct {
	Users []*model.User `json:"users"`
	Total int64         `json:"total"`
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := pageParams(c)
	users, total, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, userListResponse{Users: users, Total: total})
}

// CreateUser is reserved; self registration is the only way in for now.
func (h *AdminHandler) CreateUser(c *gin.Context) {
	response.Error(c, errcode.ErrNotImplemented, "admin user creation is not implemented")
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, user)
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *AdminHandler) SetActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	user, err := h.users.SetActive(c.Request.Context(), mustUser(c), c.Param("user_id"), *req.Active)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), mustUser(c), c.Param("user_id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c)
}

type grantTokensRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason"`
}

func (h *AdminHandler) GrantTokens(c *gin.Context) {
	var req grantTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	user, err := h.users.GrantTokens(c.Request.Context(), mustUser(c), c.Param("user_id"), req.Amount, req.Reason)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, user)
}

type usageTotalsResponse struct {
	Totals []*repo.UserUsage `json:"totals"`
}

func (h *AdminHandler) UsageTotals(c *gin.Context) {
	totals, err := h.tokens.Totals(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, usageTotalsResponse{Totals: totals})
}

func (h *AdminHandler) UserUsage(c *gin.Context) {
	limit, offset := pageParams(c)
	entries, err := h.tokens.History(c.Request.Context(), c.Param("user_id"), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, usageHistoryResponse{Entries: entries})
}

package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/abundance-ai/abundance/internal/middleware"
	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/errcode"
	"github.com/abundance-ai/abundance/internal/pkg/errs"
	"github.com/abundance-ai/abundance/internal/pkg/response"
)

func mustUser(c *gin.Context) *model.User {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		// unreachable behind the auth middleware
		panic("no authenticated user in context")
	}
	return user
}

// handleError maps service errors onto stable API codes. Unexpected errors
// are logged server side and surfaced as a generic internal error.
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, err.Error())
	case errors.Is(err, errs.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, errs.ErrConflict):
		response.Error(c, errcode.ErrConflict, err.Error())
	case errors.Is(err, errs.ErrInsufficientTokens):
		response.Error(c, errcode.ErrInsufficientTokens, "token balance exhausted")
	case errors.Is(err, errs.ErrUnsupportedFormat):
		response.Error(c, errcode.ErrUnsupportedFormat, err.Error())
	case errors.Is(err, errs.ErrEmptyContent):
		response.Error(c, errcode.ErrEmptyContent, err.Error())
	case errors.Is(err, errs.ErrGenerationTimeout):
		response.Error(c, errcode.ErrGenerationTimeout, "model did not answer in time")
	case errors.Is(err, errs.ErrGeneration):
		response.Error(c, errcode.ErrGenerationFailed, "model generation failed")
	default:
		logutil.GetLogger(c.Request.Context()).Error("request failed", zap.Error(err))
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

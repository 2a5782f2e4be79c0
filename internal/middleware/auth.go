package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/errcode"
	"github.com/abundance-ai/abundance/internal/pkg/jwt"
	"github.com/abundance-ai/abundance/internal/pkg/response"
	"github.com/abundance-ai/abundance/internal/repo"
)

const userContextKey = "auth_user"

// Auth validates the bearer token and loads the account behind it. The user
// row is fetched on every request so deactivation takes effect immediately,
// not at token expiry.
func Auth(secret []byte, users *repo.UserRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Error(c, errcode.ErrUnauthorized, "missing bearer token")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(strings.TrimPrefix(header, "Bearer "), secret)
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "unknown account")
			c.Abort()
			return
		}
		if !user.Active {
			response.Error(c, errcode.ErrForbidden, "account disabled")
			c.Abort()
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// AdminOnly must run after Auth.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || !user.IsAdmin() {
			response.Error(c, errcode.ErrForbidden, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*model.User, bool) {
	value, exists := c.Get(userContextKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*model.User)
	return user, ok
}

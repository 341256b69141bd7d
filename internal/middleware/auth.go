package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/scholarai/internal/pkg/errcode"
	"github.com/xxxsen/scholarai/internal/pkg/jwt"
	"github.com/xxxsen/scholarai/internal/pkg/response"
)

const (
	ContextUserIDKey      = "user_id"
	ContextDisplayNameKey = "user_display_name"
)

// IdentityResolver turns a bearer token into the caller's claims.
type IdentityResolver interface {
	Resolve(token string) (*jwt.Claims, error)
}

func Auth(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Error(c, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := resolver.Resolve(strings.TrimSpace(parts[1]))
		if err != nil {
			logutil.GetLogger(c.Request.Context()).Debug("reject token", zap.Error(err))
			response.Error(c, errcode.ErrUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		if claims.DisplayName != "" {
			c.Set(ContextDisplayNameKey, claims.DisplayName)
		}
		c.Next()
	}
}

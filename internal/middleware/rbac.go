package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/obra-api/internal/models"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
	"github.com/noah-isme/obra-api/pkg/response"
)

// RequireRoles only lets identities holding one of roles through.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		identity, ok := value.(*models.Identity)
		if !exists || !ok || identity == nil {
			response.Error(c, appErrors.ErrMissingToken)
			c.Abort()
			return
		}
		if _, ok := allowed[identity.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

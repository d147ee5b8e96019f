package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/obra-api/internal/models"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
	"github.com/noah-isme/obra-api/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing the resolved *models.Identity.
	ContextUserKey = "currentUser"
	// ContextTokenKey is the gin context key storing the raw bearer token.
	ContextTokenKey = "currentToken"
)

// TokenResolver maps a bearer token to an identity.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*models.Identity, error)
}

// Auth protects routes by requiring a bearer token that resolves to a live user.
func Auth(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		identity, err := resolver.ResolveToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, identity)
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", appErrors.ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", appErrors.ErrInvalidToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", appErrors.ErrMissingToken
	}
	return token, nil
}

// internal/api/auth_middleware.go
package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/BookFlow/internal/auth"
	"github.com/Corphon/BookFlow/internal/models"
)

const identityKey = "identity"

// AuthMiddleware requires a valid token in the Authorization header, or in the
// "token" query parameter for WebSocket upgrades.
func AuthMiddleware(tokens *auth.TokenConfig, rh *ResponseHelper) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			rh.Unauthorized(c, "Authentication required")
			return
		}

		identity, err := auth.ParseToken(token, tokens)
		if err != nil {
			rh.FromError(c, err)
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireRole lets only the listed roles through.
func RequireRole(rh *ResponseHelper, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			rh.Unauthorized(c, "Authentication required")
			return
		}
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		rh.Forbidden(c, "This action requires the "+joinRoles(roles)+" role")
	}
}

// IdentityFrom returns the identity stored by AuthMiddleware.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}

func joinRoles(roles []models.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, " or ")
}

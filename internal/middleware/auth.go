package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"dating-app-server/internal/chat"
	"dating-app-server/internal/models"
	"dating-app-server/internal/utils"
)

// AuthMiddleware creates a middleware for bearer-token authentication.
// The verifier enforces both token validity and account liveness, so a
// banned or deactivated account is rejected even with a valid token.
func AuthMiddleware(verifier chat.IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			utils.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		identity, err := verifier.VerifyToken(c.Request.Context(), parts[1])
		if err != nil {
			if errors.Is(err, chat.ErrAuth) {
				utils.Unauthorized(c, "Invalid token")
			} else {
				utils.InternalServerError(c, "Authentication unavailable")
			}
			c.Abort()
			return
		}

		// Set user information in context for downstream handlers
		c.Set("userID", identity.ID)
		c.Set("userRole", identity.Role)

		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRoleFromContext(c)
		if !ok {
			utils.InternalServerError(c, "User role not found in context. AuthMiddleware might be missing.")
			c.Abort()
			return
		}

		for _, allowed := range allowedRoles {
			if role == allowed {
				c.Next()
				return
			}
		}

		utils.Forbidden(c, "You do not have permission to access this resource.")
		c.Abort()
	}
}

// GetUserIDFromContext returns the authenticated user ID, if present.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		return "", false
	}
	idStr, ok := userID.(string)
	return idStr, ok
}

// GetUserRoleFromContext returns the authenticated user role, if present.
func GetUserRoleFromContext(c *gin.Context) (models.Role, bool) {
	userRole, exists := c.Get("userRole")
	if !exists {
		return "", false
	}
	role, ok := userRole.(models.Role)
	return role, ok
}

// IsAdmin reports whether the current request carries the admin capability.
func IsAdmin(c *gin.Context) bool {
	role, ok := GetUserRoleFromContext(c)
	return ok && role == models.RoleAdmin
}

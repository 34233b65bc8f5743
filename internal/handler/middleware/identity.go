package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Caller identity arrives from the gateway as trusted headers; this
// service does not authenticate, it only requires the headers to be
// present and well formed.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	ctxUserIDKey   = "user_id"
	ctxUserRoleKey = "user_role"
)

type IdentityMiddleware struct{}

func NewIdentityMiddleware() *IdentityMiddleware {
	return &IdentityMiddleware{}
}

func (m *IdentityMiddleware) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.GetHeader(HeaderUserID)
		if idStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "X-User-ID header required",
			})
			c.Abort()
			return
		}

		userID, err := uuid.Parse(idStr)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid X-User-ID header",
			})
			c.Abort()
			return
		}

		role := c.GetHeader(HeaderUserRole)
		if role == "" {
			role = "patron"
		}

		c.Set(ctxUserIDKey, userID)
		c.Set(ctxUserRoleKey, role)
		c.Next()
	}
}

func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get(ctxUserIDKey)
	if !exists {
		return uuid.Nil, false
	}

	id, ok := userID.(uuid.UUID)
	return id, ok
}

func GetUserRole(c *gin.Context) (string, bool) {
	userRole, exists := c.Get(ctxUserRoleKey)
	if !exists {
		return "", false
	}

	role, ok := userRole.(string)
	return role, ok
}

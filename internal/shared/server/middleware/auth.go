package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"desap-backend/internal/shared/auth"
	"desap-backend/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userEmailKey = "userEmail"
	userNameKey  = "userName"
	userRoleKey  = "userRole"
	councilIDKey = "councilId"
)

// RoleCouncil marks council members allowed to review analyses.
const RoleCouncil = "council"

// Auth validates JWTs or guest headers and stores identity in context.
func Auth(env string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))

		if authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
			if token == "" {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}

			claims, err := auth.VerifyJWT(token)
			if err != nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}

			c.Set(userIDKey, claims.Sub)
			if claims.Email != "" {
				c.Set(userEmailKey, claims.Email)
			}
			if claims.UserName != "" {
				c.Set(userNameKey, claims.UserName)
			}
			if claims.Role != "" {
				c.Set(userRoleKey, claims.Role)
			}
			if claims.CouncilID != "" {
				c.Set(councilIDKey, claims.CouncilID)
			}
			c.Next()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader("X-Guest-Id"))
		if guestID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}

		c.Set(userIDKey, "guest:"+guestID)
		c.Set(userNameKey, guestID)
		c.Next()
	}
}

// RequireReviewer rejects callers whose token lacks the council reviewer role.
func RequireReviewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if RoleFromContext(c) != RoleCouncil {
			respond.Error(c, http.StatusForbidden, "forbidden", "council reviewer role required", nil)
			return
		}
		c.Next()
	}
}

// UserIDFromContext returns the authenticated user ID, if any.
func UserIDFromContext(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// UserNameFromContext returns the authenticated user name, if any.
func UserNameFromContext(c *gin.Context) string {
	return c.GetString(userNameKey)
}

// UserEmailFromContext returns the authenticated email, if any.
func UserEmailFromContext(c *gin.Context) string {
	return c.GetString(userEmailKey)
}

// RoleFromContext returns the authenticated role, if any.
func RoleFromContext(c *gin.Context) string {
	return c.GetString(userRoleKey)
}

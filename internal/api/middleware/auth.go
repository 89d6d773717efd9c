package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/flosla/services/registration/internal/services"
)

// AdminIDContextKey is the gin context key holding the authenticated admin ID
const AdminIDContextKey = "admin_id"

// AdminAuth validates the bearer token and stores the admin ID in the
// request context.
func AdminAuth(adminService *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header format. Expected: 'Bearer {token}'"})
			c.Abort()
			return
		}

		adminID, err := adminService.ParseToken(parts[1])
		if err != nil {
			log.Warn().Err(err).Msg("Rejected admin token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(AdminIDContextKey, adminID)
		c.Next()
	}
}

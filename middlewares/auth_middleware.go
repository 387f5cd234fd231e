package middlewares

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yolan2/tandonia/config"
	"github.com/yolan2/tandonia/utils"
)

// AuthMiddleware resolves the bearer token to an identity. A missing token is
// 401; a token that is present but rejected is 403. Verification goes to the
// managed backend's auth service when one is configured, otherwise the local
// HS256 secret; both paths produce the same userID/email context values.
func AuthMiddleware(b *config.Backends) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		if b.HasSupabase() {
			user, err := b.Supa.Auth().GetUser(c.Request.Context(), tokenString)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid token"})
				return
			}
			c.Set("userID", user.ID)
			c.Set("email", user.Email)
			c.Next()
			return
		}

		userID, email, err := utils.ParseJWT(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			return
		}
		c.Set("userID", strconv.FormatUint(uint64(userID), 10))
		c.Set("email", email)
		c.Next()
	}
}

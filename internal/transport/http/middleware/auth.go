package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abakirov/taskhub/internal/token"
)

const errUnauthorized = "Unauthorized"

// accessVerifier is the slice of the token service this middleware needs.
type accessVerifier interface {
	VerifyAccess(tokenString string) (*token.Claims, error)
}

// Auth validates a Bearer access token and sets "userID" and "email" in the
// gin context. Invalid and expired tokens fail closed.
func Auth(tokens accessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		claims, err := tokens.VerifyAccess(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		c.Set("userID", claims.Subject)
		c.Set("email", claims.Email)
		c.Next()
	}
}

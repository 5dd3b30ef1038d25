package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Auth accepts either one of the static tokens or an HMAC signed JWT.
type Auth struct {
	StaticTokens []string
	JWTSecret    string
}

// Enabled reports whether any credential is configured. Without one the
// API is open, which is only meant for local use.
func (x Auth) Enabled() bool {
	return x.JWTSecret != "" || len(x.StaticTokens) > 0
}

func (x Auth) valid(token string) bool {
	if x.JWTSecret != "" {
		_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenMalformed
			}
			return []byte(x.JWTSecret), nil
		}, jwt.WithLeeway(5*time.Second))
		if err == nil {
			return true
		}
	}

	for _, t := range x.StaticTokens {
		if t = strings.TrimSpace(t); t != "" && token == t {
			return true
		}
	}
	return false
}

// middleware reads a Bearer token, or the access_token query parameter for
// websocket clients that cannot set headers.
func (x Auth) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !x.Enabled() {
			c.Next()
			return
		}

		token := c.Query("access_token")
		if auth := c.GetHeader("Authorization"); auth != "" {
			parts := strings.Fields(auth)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
				return
			}
			token = parts[1]
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		if !x.valid(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

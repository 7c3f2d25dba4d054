// utils/apikey.go
package utils

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware rejects every request that does not carry the shared
// secret in X-API-Key. Paths under staticPrefix are served without a key.
//
// secret may be the plain key or a bcrypt hash of it ($2a$, $2b$, $2y$).
func APIKeyMiddleware(secret, staticPrefix string) gin.HandlerFunc {
	check := apiKeyChecker(secret)

	return func(c *gin.Context) {
		if staticPrefix != "" && strings.HasPrefix(c.Request.URL.Path, staticPrefix) {
			c.Next()
			return
		}

		key := c.GetHeader(APIKeyHeader)
		if key == "" || !check(key) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid or missing API key"})
			return
		}

		c.Next()
	}
}

func apiKeyChecker(secret string) func(string) bool {
	if isBcryptHash(secret) {
		hash := []byte(secret)
		return func(key string) bool {
			return bcrypt.CompareHashAndPassword(hash, []byte(key)) == nil
		}
	}
	want := []byte(secret)
	return func(key string) bool {
		return secret != "" && subtle.ConstantTimeCompare([]byte(key), want) == 1
	}
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// HashAPIKey returns a bcrypt hash suitable for the API_KEY setting.
func HashAPIKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(bytes), err
}

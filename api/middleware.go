package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"release-registry/storage"
)

const accountIDKey = "accountID"

// authenticate resolves the bearer access key to an account id and stores it
// on the request context. An unknown key is reported as unauthorized, not as
// not-found, so callers cannot probe for key existence.
func (s *Server) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing access key"})
		return
	}

	accountID, err := s.store.GetAccountIDFromAccessKey(c.Request.Context(), token)
	if err != nil {
		if storage.IsCode(err, storage.ErrExpired) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "The access key has expired"})
			return
		}
		if storage.IsCode(err, storage.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid access key"})
			return
		}
		fail(c, err)
		return
	}

	c.Set(accountIDKey, accountID)
	c.Next()
}

func accountID(c *gin.Context) string {
	return c.GetString(accountIDKey)
}

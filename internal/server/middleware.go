package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminRequired gates the operator surface with the shared bearer
// token. An empty configured token disables the whole admin group
// rather than leaving it open.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := s.cfg.AdminToken
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		header := c.GetHeader("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Next()
	}
}
